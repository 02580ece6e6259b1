package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arklim/blog-platform/internal/core/domain"
)

var (
	// ErrVersionConflict indicates the server rejected a save because the
	// submitted version is stale. The caller must reload before retrying.
	ErrVersionConflict = errors.New("post version conflict")
	// ErrNotFound indicates the post does not exist on the server.
	ErrNotFound = errors.New("post not found")
)

// SaveRequest carries the document fields and the version the editor last
// observed.
type SaveRequest struct {
	Title      *string           `json:"title,omitempty"`
	Content    *string           `json:"content,omitempty"`
	CoverImage *string           `json:"cover_image,omitempty"`
	Status     domain.PostStatus `json:"status,omitempty"`
	Version    int64             `json:"version"`
}

// SaveResult is the server acknowledgement of a save.
type SaveResult struct {
	PostID    string    `json:"id"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RemoteSaver is the save surface the autosave scheduler depends on.
type RemoteSaver interface {
	SavePost(ctx context.Context, postID string, req SaveRequest) (*SaveResult, error)
}

// Client is a thin HTTP client for the post API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient constructs a post API client against baseURL, authenticating
// with the given bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.http = client
	}
	return c
}

// SavePost submits a versioned save. A 409 response maps to
// ErrVersionConflict; the caller must reload the post and adopt its current
// version before retrying.
func (c *Client) SavePost(ctx context.Context, postID string, req SaveRequest) (*SaveResult, error) {
	var result SaveResult
	path := fmt.Sprintf("/api/v1/posts/%s", postID)
	if err := c.do(ctx, http.MethodPatch, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPost fetches the current server copy of a post, used after a conflict
// to adopt the authoritative version.
func (c *Client) GetPost(ctx context.Context, postID string) (*SaveResult, error) {
	var result SaveResult
	path := fmt.Sprintf("/api/v1/posts/%s", postID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return ErrVersionConflict
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return ErrNotFound
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ RemoteSaver = (*Client)(nil)
