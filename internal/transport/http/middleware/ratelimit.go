package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"cdms/internal/transport/http/api"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*limiterPool)

// limiterPool keeps one token bucket per caller key. Buckets refill at
// perMinute/60 tokens a second and allow a full minute's worth in a burst.
type limiterPool struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	keyFn    RateLimitKeyFunc
	limiters map[string]*rate.Limiter
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(p *limiterPool) {
		if fn != nil {
			p.keyFn = fn
		}
	}
}

func WithBurst(burst int) RateLimitOption {
	return func(p *limiterPool) {
		if burst > 0 {
			p.burst = burst
		}
	}
}

func RateLimit(perMinute int, opts ...RateLimitOption) func(http.Handler) http.Handler {
	pool := newLimiterPool(perMinute, actorOrIPKey)
	for _, opt := range opts {
		opt(pool)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.allow(r) {
				reject(w, r, pool)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginRateLimit throttles credential guessing on two axes at once: the
// calling address and the submitted account. A botnet rotating addresses
// still trips the per-account bucket.
func LoginRateLimit(perMinute int) func(http.Handler) http.Handler {
	limit := max(perMinute/4, 1)
	byIP := newLimiterPool(limit, clientIPKey)
	byEmail := newLimiterPool(limit, AuthEmailOrIPKey("email"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !byIP.allow(r) {
				reject(w, r, byIP)
				return
			}
			if !byEmail.allow(r) {
				reject(w, r, byEmail)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	normalizedField := strings.TrimSpace(field)
	if normalizedField == "" {
		normalizedField = "email"
	}
	return func(r *http.Request) string {
		email := extractJSONField(r, normalizedField)
		if email == "" {
			return clientIPKey(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		if len(parts) > 0 {
			value := strings.TrimSpace(parts[0])
			if value != "" {
				return value
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func newLimiterPool(perMinute int, keyFn RateLimitKeyFunc) *limiterPool {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &limiterPool{
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    max(perMinute, 1),
		keyFn:    keyFn,
		limiters: map[string]*rate.Limiter{},
	}
}

func (p *limiterPool) allow(r *http.Request) bool {
	if p.limit <= 0 {
		return true
	}
	key := p.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}

	p.mu.Lock()
	limiter, ok := p.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(p.limit, p.burst)
		p.limiters[key] = limiter
	}
	p.mu.Unlock()

	return limiter.Allow()
}

func reject(w http.ResponseWriter, r *http.Request, p *limiterPool) {
	w.Header().Set("Retry-After", "60")
	slog.Warn("rate limit exceeded",
		"path", r.URL.Path,
		"method", r.Method,
		"perMinute", int(float64(p.limit)*60),
	)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
}

func extractJSONField(r *http.Request, field string) string {
	if r == nil || r.Body == nil {
		return ""
	}
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if !strings.Contains(contentType, "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if len(raw) == 0 {
		return ""
	}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}
