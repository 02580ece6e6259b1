package domain

import "time"

// PostViewedEvent notifies subscribers that a post accumulated a view.
type PostViewedEvent struct {
	EventID  string
	PostID   string
	ViewedAt time.Time
}

// PostLikedEvent notifies subscribers of a like or unlike. Delta is +1 for a
// like and -1 for an unlike; Score carries the resulting trending score.
type PostLikedEvent struct {
	EventID string
	PostID  string
	UserID  string
	Delta   int
	Score   float64
	LikedAt time.Time
}

// PostUpdatedEvent notifies subscribers that a post's content changed.
type PostUpdatedEvent struct {
	EventID   string
	PostID    string
	AuthorID  string
	Version   int64
	Status    PostStatus
	UpdatedAt time.Time
}

// PostDeletedEvent notifies subscribers that a post was soft-deleted.
type PostDeletedEvent struct {
	EventID   string
	PostID    string
	AuthorID  string
	DeletedAt time.Time
}
