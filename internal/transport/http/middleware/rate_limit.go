package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/blog-platform/internal/core/domain"
)

const (
	rateLimitProblemType  = "https://blog.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimitFunc is the check the limiter delegates to.
type RateLimitFunc func(c *gin.Context, subject string, limit int, window time.Duration) domain.RateLimitDecision

// RateLimiter turns sliding-window decisions into HTTP semantics: quota
// headers on every response and an RFC 9457 payload on rejection.
type RateLimiter struct {
	check  RateLimitFunc
	logger *zap.Logger
	now    func() time.Time
}

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(check RateLimitFunc, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		check:  check,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// AuthorIdentifier scopes limits to the authenticated author, falling back
// to the client IP for anonymous requests.
func AuthorIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		if authorID, ok := GetAuthenticatedAuthorID(c); ok && authorID != "" {
			return authorID, true
		}
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// RateLimit returns a Gin middleware enforcing the provided rules.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	filtered := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		filtered = append(filtered, rule)
	}

	return func(c *gin.Context) {
		if len(filtered) == 0 || rl.check == nil {
			c.Next()
			return
		}

		var headerDecision *domain.RateLimitDecision

		for _, rule := range filtered {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			subject := fmt.Sprintf("%s:%s", rule.Name, identifier)
			decision := rl.check(c, subject, rule.Limit, rule.Window)

			if headerDecision == nil || shouldReplaceHeaderDecision(*headerDecision, decision) {
				snapshot := decision
				headerDecision = &snapshot
			}

			if !decision.Allowed {
				rl.applyHeaders(c, decision)
				rl.respondRateLimited(c, decision)
				return
			}
		}

		if headerDecision != nil {
			rl.applyHeaders(c, *headerDecision)
		}

		c.Next()
	}
}

func shouldReplaceHeaderDecision(current, candidate domain.RateLimitDecision) bool {
	if !candidate.Allowed && current.Allowed {
		return true
	}

	if candidate.Allowed == current.Allowed {
		if candidate.Remaining < current.Remaining {
			return true
		}
		if candidate.Remaining == current.Remaining && candidate.ResetAt.Before(current.ResetAt) {
			return true
		}
	}

	return false
}

func (rl *RateLimiter) applyHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

	if !decision.Allowed {
		seconds := retryAfterSeconds(rl.now(), decision)
		headers.Set("Retry-After", strconv.Itoa(seconds))
	}
}

func (rl *RateLimiter) respondRateLimited(c *gin.Context, decision domain.RateLimitDecision) {
	retrySeconds := retryAfterSeconds(rl.now(), decision)

	detail := fmt.Sprintf("Too many requests. Try again in %d seconds.", retrySeconds)
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	problem := ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     detail,
		Instance:   instance,
		RetryAfter: retrySeconds,
		TraceID:    GetTraceID(c),
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, problem)
}

func retryAfterSeconds(now time.Time, decision domain.RateLimitDecision) int {
	seconds := int(math.Ceil(decision.ResetAt.Sub(now).Seconds()))
	if seconds < 0 {
		seconds = 0
	}
	return seconds
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
