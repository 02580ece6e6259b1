package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arklim/blog-platform/internal/repository"
	"github.com/arklim/blog-platform/internal/transport/http/middleware"
	"github.com/arklim/blog-platform/internal/usecase"
)

const defaultTrendingLimit = 10

// ViewHandler exposes view counts, trending rankings, and likes.
type ViewHandler struct {
	posts   *usecase.PostService
	counter *usecase.CounterService
}

// NewViewHandler builds a view handler instance.
func NewViewHandler(posts *usecase.PostService, counter *usecase.CounterService) *ViewHandler {
	return &ViewHandler{posts: posts, counter: counter}
}

// RegisterRoutes wires the counter endpoints onto the group.
func (h *ViewHandler) RegisterRoutes(group *gin.RouterGroup, auth gin.HandlerFunc, likeLimit gin.HandlerFunc) {
	group.GET("/posts/:id/views", h.ViewCount)
	group.GET("/trending", h.Trending)

	like := []gin.HandlerFunc{auth}
	if likeLimit != nil {
		like = append(like, likeLimit)
	}
	group.POST("/posts/:id/like", append(like, h.Like)...)
}

var viewErrorCases = []ErrorCase{
	{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "post not found"},
	{Err: usecase.ErrPostIDRequired, Status: http.StatusBadRequest, Message: "post id is required"},
}

// ViewCount returns the live view count: the cached value when present,
// otherwise the durable value which also re-seeds the cache.
func (h *ViewHandler) ViewCount(c *gin.Context) {
	id := c.Param("id")

	views, err := h.posts.ViewCount(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, viewErrorCases, http.StatusInternalServerError, "failed to load view count")
		return
	}

	c.JSON(http.StatusOK, ViewCountResponse{PostID: id, Views: views})
}

// Trending returns up to limit posts ranked by like score. A degraded cache
// yields an empty ranking, never an error.
func (h *ViewHandler) Trending(c *gin.Context) {
	limit := defaultTrendingLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	entries := h.counter.GetTrending(c.Request.Context(), limit)

	out := make([]TrendingEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, TrendingEntryResponse{PostID: entry.PostID, Score: entry.Score})
	}

	c.JSON(http.StatusOK, TrendingResponse{Entries: out})
}

// Like adjusts the post's trending score by the submitted delta (+1 like,
// -1 unlike).
func (h *ViewHandler) Like(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedAuthorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}
	if req.Delta != 1 && req.Delta != -1 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "delta must be 1 or -1"))
		return
	}

	id := c.Param("id")
	score, err := h.counter.AdjustTrendingScore(c.Request.Context(), id, userID, req.Delta)
	if err != nil {
		RespondWithMappedError(c, err, viewErrorCases, http.StatusInternalServerError, "failed to record like")
		return
	}

	c.JSON(http.StatusOK, LikeResponse{PostID: id, Score: score})
}
