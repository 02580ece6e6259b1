package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/blog-platform/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// PostSummary describes a post as returned by the API.
type PostSummary struct {
	ID         string            `json:"id"`
	AuthorID   string            `json:"author_id"`
	Title      string            `json:"title"`
	Content    string            `json:"content,omitempty"`
	CoverImage *string           `json:"cover_image,omitempty"`
	Status     domain.PostStatus `json:"status"`
	Version    int64             `json:"version"`
	ViewCount  int64             `json:"view_count"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewPostSummary maps a domain post to its API representation.
func NewPostSummary(post *domain.Post) PostSummary {
	return PostSummary{
		ID:         post.ID,
		AuthorID:   post.AuthorID,
		Title:      post.Title,
		Content:    post.Content,
		CoverImage: post.CoverImage,
		Status:     post.Status,
		Version:    post.Version,
		ViewCount:  post.ViewCount,
		CreatedAt:  post.CreatedAt,
		UpdatedAt:  post.UpdatedAt,
	}
}

// PostCreateRequest defines the payload for creating a post.
type PostCreateRequest struct {
	Title      string  `json:"title" binding:"required"`
	Content    string  `json:"content"`
	CoverImage *string `json:"cover_image"`
	Status     string  `json:"status"`
}

// PostUpdateRequest defines the payload for a versioned save. Version is the
// last version the client observed; a stale value yields 409.
type PostUpdateRequest struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	CoverImage *string `json:"cover_image"`
	Status     *string `json:"status"`
	Version    int64   `json:"version" binding:"required"`
}

// PostListResponse wraps a page of posts.
type PostListResponse struct {
	Posts []PostSummary `json:"posts"`
	Total int           `json:"total"`
}

// ViewCountResponse carries the live view count of a post.
type ViewCountResponse struct {
	PostID string `json:"post_id"`
	Views  int64  `json:"views"`
}

// TrendingEntryResponse is one ranked post in the trending listing.
type TrendingEntryResponse struct {
	PostID string  `json:"post_id"`
	Score  float64 `json:"score"`
}

// TrendingResponse wraps the trending ranking.
type TrendingResponse struct {
	Entries []TrendingEntryResponse `json:"entries"`
}

// LikeRequest defines the payload toggling a like.
type LikeRequest struct {
	// Delta is +1 for a like, -1 for an unlike.
	Delta int `json:"delta" binding:"required"`
}

// LikeResponse acknowledges a like adjustment with the new score.
type LikeResponse struct {
	PostID string  `json:"post_id"`
	Score  float64 `json:"score"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessCheckResult describes the outcome of one readiness probe.
type ReadinessCheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ReadinessResponse is returned by the readiness endpoint.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks []ReadinessCheckResult `json:"checks"`
}
