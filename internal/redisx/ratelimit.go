package redisx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"timeline-service/internal/shared/httpx"
	"timeline-service/internal/shared/logx"
)

// Class groups routes that share a budget.
type Class string

const (
	// ClassAction covers optimistic item actions on open screens.
	ClassAction Class = "action"
	// ClassAuthoring covers writes that create or edit content.
	ClassAuthoring Class = "authoring"
)

// Policy is the budget of one class. FailOpen lets requests through while
// redis is unreachable; otherwise they are refused with 503.
type Policy struct {
	Limit    int64
	Window   time.Duration
	FailOpen bool
}

// Decision is the outcome of counting one hit.
type Decision struct {
	Allowed    bool
	Count      int64
	Remaining  int64
	RetryAfter time.Duration
}

var ErrLimiterDown = errors.New("rate limiter unavailable")

// Limiter counts writes per viewer and class in fixed windows that start at a
// viewer's first hit.
type Limiter struct {
	r   *redis.Client
	log *zap.Logger
}

func NewLimiter(r *redis.Client, log *zap.Logger) *Limiter {
	return &Limiter{r: r, log: logx.OrNop(log).With(zap.String("component", "ratelimit"))}
}

func limitKey(class Class, viewer string) string {
	return "rl:" + string(class) + ":" + viewer
}

// Allow counts a hit for viewer in class.
func (l *Limiter) Allow(ctx context.Context, class Class, viewer string, p Policy) (Decision, error) {
	k := limitKey(class, viewer)
	pipe := l.r.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrLimiterDown, err)
	}
	left := ttl.Val()
	if left <= 0 {
		if err := l.r.PExpire(ctx, k, p.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrLimiterDown, err)
		}
		left = p.Window
	}
	n := incr.Val()
	d := Decision{Allowed: n <= p.Limit, Count: n, Remaining: max(p.Limit-n, 0)}
	if !d.Allowed {
		d.RetryAfter = left
	}
	return d, nil
}

// Middleware throttles the viewer found in the request context.
func (l *Limiter) Middleware(class Class, p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer, err := httpx.UserFromCtx(r)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, err, "missing_user")
				return
			}
			d, err := l.Allow(r.Context(), class, viewer, p)
			if err != nil {
				if p.FailOpen {
					l.log.Warn("limiter down, letting request through",
						zap.String("class", string(class)), zap.Error(err))
					next.ServeHTTP(w, r)
					return
				}
				httpx.WriteError(w, http.StatusServiceUnavailable, ErrLimiterDown, "rate_limiter_unavailable")
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(p.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
				httpx.WriteError(w, http.StatusTooManyRequests,
					fmt.Errorf("%s limit of %d per %s exceeded", class, p.Limit, p.Window),
					"rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
