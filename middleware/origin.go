package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// OriginPolicy decides which browser origins may call the API or open the
// live channel.
type OriginPolicy struct {
	allowAll   bool
	devMode    bool
	allowedSet map[string]struct{}
}

// NewOriginPolicy builds a policy from the configured origin list. A "*"
// entry allows every origin; devMode additionally allows any localhost origin.
func NewOriginPolicy(allowed []string, devMode bool) *OriginPolicy {
	p := &OriginPolicy{devMode: devMode, allowedSet: make(map[string]struct{}, len(allowed))}
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o == "*" {
			p.allowAll = true
			continue
		}
		p.allowedSet[strings.ToLower(o)] = struct{}{}
	}
	return p
}

// Allow reports whether origin may connect. Requests without an Origin
// header (curl, server to server) are allowed.
func (p *OriginPolicy) Allow(origin string) bool {
	if origin == "" || p.allowAll {
		return true
	}
	if p.devMode && isLocalhost(origin) {
		return true
	}
	_, ok := p.allowedSet[strings.ToLower(strings.TrimRight(origin, "/"))]
	return ok
}

func isLocalhost(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// CORS applies the origin policy to cross origin API calls.
func CORS(p *OriginPolicy) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  p.Allow,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
