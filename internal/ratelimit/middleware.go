package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/comanda-app/backend-comanda/internal/common"
)

// Throttle is the HTTP face of the sliding window. Over-limit requests get
// the API error envelope with a Retry-After hint; a Redis outage fails open
// because a broken limiter must never block checkouts.
type Throttle struct {
	Store   SlidingWindow
	Key     func(*http.Request) string
	Window  time.Duration
	Max     int
	OnError func(error)
}

// Middleware enforces the limit before delegating to the next handler.
func (t Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.Key == nil || t.Max <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		d, err := t.Store.Take(r.Context(), t.Key(r), t.Window, t.Max)
		if err != nil {
			if t.OnError != nil {
				t.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(t.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retryAfter := int(time.Until(d.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED",
				"too many requests, try again shortly",
				map[string]any{"retryAfterSec": retryAfter})
			return
		}

		next.ServeHTTP(w, r)
	})
}
