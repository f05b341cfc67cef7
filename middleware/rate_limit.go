package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/askboard/utils"
)

const limiterIdle = 5 * time.Minute

type visitor struct {
	limiter *rate.Limiter
	expires time.Time
}

type ipLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
}

// RateLimitMiddleware applies a per IP token bucket allowing perMinute
// requests per minute. perMinute <= 0 disables limiting.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(ctx *gin.Context) { ctx.Next() }
	}
	l := &ipLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(perMinute/2, 1),
		visitors: make(map[string]*visitor),
	}

	return func(ctx *gin.Context) {
		if !l.allow(ctx.ClientIP(), time.Now()) {
			utils.Abort(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			return
		}
		ctx.Next()
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, v := range l.visitors {
		if now.After(v.expires) {
			delete(l.visitors, key)
		}
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.expires = now.Add(limiterIdle)
	return v.limiter.AllowN(now, 1)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
