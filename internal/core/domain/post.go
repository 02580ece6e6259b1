package domain

import "time"

// PostStatus enumerates the lifecycle states of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Post is the editable document persisted in PostgreSQL. The version column
// is the optimistic-concurrency token: it increments by exactly 1 on every
// successful update, and updates carrying a stale version are rejected.
type Post struct {
	ID         string
	AuthorID   string
	Title      string
	Content    string
	CoverImage *string
	Status     PostStatus
	Version    int64
	ViewCount  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// IsDeleted reports whether the post has been soft-deleted.
func (p Post) IsDeleted() bool {
	return p.DeletedAt != nil
}

// PostUpdate carries the editable fields of a save request together with the
// version the client last observed.
type PostUpdate struct {
	Title           *string
	Content         *string
	CoverImage      *string
	Status          *PostStatus
	ExpectedVersion int64
}

// PostFilter narrows dashboard listings.
type PostFilter struct {
	AuthorID string
	Status   PostStatus
	Limit    int
	Offset   int
}
