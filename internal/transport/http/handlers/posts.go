package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/blog-platform/internal/core/domain"
	"github.com/arklim/blog-platform/internal/repository"
	"github.com/arklim/blog-platform/internal/transport/http/middleware"
	"github.com/arklim/blog-platform/internal/usecase"
)

// PostHandler exposes the versioned post lifecycle over HTTP.
type PostHandler struct {
	posts   *usecase.PostService
	counter *usecase.CounterService
}

// NewPostHandler builds a post handler instance.
func NewPostHandler(posts *usecase.PostService, counter *usecase.CounterService) *PostHandler {
	return &PostHandler{posts: posts, counter: counter}
}

// RegisterRoutes wires the post endpoints onto the group. Write endpoints
// require authentication and may carry extra per-route middleware such as
// rate limits.
func (h *PostHandler) RegisterRoutes(group *gin.RouterGroup, auth gin.HandlerFunc, createLimit, updateLimit gin.HandlerFunc) {
	group.GET("", h.List)
	group.GET("/:id", h.Get)

	create := []gin.HandlerFunc{auth}
	if createLimit != nil {
		create = append(create, createLimit)
	}
	group.POST("", append(create, h.Create)...)

	update := []gin.HandlerFunc{auth}
	if updateLimit != nil {
		update = append(update, updateLimit)
	}
	group.PATCH("/:id", append(update, h.Update)...)

	group.DELETE("/:id", auth, h.Delete)
}

var postErrorCases = []ErrorCase{
	{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "post not found"},
	{Err: repository.ErrVersionConflict, Status: http.StatusConflict, Message: "post was modified by another session; reload before saving"},
	{Err: usecase.ErrNotOwner, Status: http.StatusForbidden, Message: "post belongs to another author"},
	{Err: usecase.ErrTitleRequired, Status: http.StatusBadRequest, Message: "title is required"},
	{Err: usecase.ErrPostIDRequired, Status: http.StatusBadRequest, Message: "post id is required"},
}

// Create inserts a new post at version 1 owned by the authenticated author.
func (h *PostHandler) Create(c *gin.Context) {
	authorID, ok := middleware.GetAuthenticatedAuthorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PostCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	post, err := h.posts.Create(c.Request.Context(), authorID, usecase.PostInput{
		Title:      req.Title,
		Content:    req.Content,
		CoverImage: req.CoverImage,
		Status:     domain.PostStatus(req.Status),
	})
	if err != nil {
		RespondWithMappedError(c, err, postErrorCases, http.StatusInternalServerError, "failed to create post")
		return
	}

	c.JSON(http.StatusCreated, NewPostSummary(post))
}

// Get returns a single post. Reading a post counts as a view: the counter
// bump is fire-and-forget and never delays or fails the response.
func (h *PostHandler) Get(c *gin.Context) {
	id := c.Param("id")

	post, err := h.posts.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, postErrorCases, http.StatusInternalServerError, "failed to load post")
		return
	}

	if h.counter != nil {
		h.counter.IncrementView(c.Request.Context(), post.ID)
	}

	summary := NewPostSummary(post)
	if h.counter != nil {
		if views, found := h.counter.GetViewCount(c.Request.Context(), post.ID); found {
			summary.ViewCount = views
		}
	}

	c.JSON(http.StatusOK, summary)
}

// List returns posts for the dashboard, newest first.
func (h *PostHandler) List(c *gin.Context) {
	filter := domain.PostFilter{
		AuthorID: c.Query("author_id"),
		Status:   domain.PostStatus(c.Query("status")),
	}

	posts, err := h.posts.List(c.Request.Context(), filter)
	if err != nil {
		RespondWithMappedError(c, err, postErrorCases, http.StatusInternalServerError, "failed to list posts")
		return
	}

	summaries := make([]PostSummary, 0, len(posts))
	for i := range posts {
		summaries = append(summaries, NewPostSummary(&posts[i]))
	}

	c.JSON(http.StatusOK, PostListResponse{Posts: summaries, Total: len(summaries)})
}

// Update applies a versioned save. A stale version yields 409 and the client
// must reload before retrying.
func (h *PostHandler) Update(c *gin.Context) {
	authorID, ok := middleware.GetAuthenticatedAuthorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PostUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	update := domain.PostUpdate{
		Title:           req.Title,
		Content:         req.Content,
		CoverImage:      req.CoverImage,
		ExpectedVersion: req.Version,
	}
	if req.Status != nil {
		status := domain.PostStatus(*req.Status)
		update.Status = &status
	}

	post, err := h.posts.Update(c.Request.Context(), c.Param("id"), authorID, update)
	if err != nil {
		RespondWithMappedError(c, err, postErrorCases, http.StatusInternalServerError, "failed to update post")
		return
	}

	c.JSON(http.StatusOK, NewPostSummary(post))
}

// Delete soft-deletes a post owned by the authenticated author.
func (h *PostHandler) Delete(c *gin.Context) {
	authorID, ok := middleware.GetAuthenticatedAuthorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.posts.SoftDelete(c.Request.Context(), c.Param("id"), authorID); err != nil {
		RespondWithMappedError(c, err, postErrorCases, http.StatusInternalServerError, "failed to delete post")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "post deleted"})
}
