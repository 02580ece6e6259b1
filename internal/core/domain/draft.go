package domain

import "time"

// DraftSnapshot is a point-in-time local backup of a post's editable fields.
// Snapshots live in client-local scratch storage and survive a crashed
// editor session; they are advisory, never the system of record.
type DraftSnapshot struct {
	Key        string     `json:"key"`
	PostID     string     `json:"post_id,omitempty"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	CoverImage string     `json:"cover_image,omitempty"`
	Status     PostStatus `json:"status,omitempty"`
	Version    int64      `json:"version"`
	ModifiedAt time.Time  `json:"modified_at"`
}
