package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cppla/askboard/utils"
)

func TestOriginPolicy(t *testing.T) {
	allowed := []string{"http://localhost:5173", "https://board.example.com/"}

	prod := NewOriginPolicy(allowed, false)
	dev := NewOriginPolicy(allowed, true)
	all := NewOriginPolicy([]string{"*"}, false)

	cases := []struct {
		name   string
		policy *OriginPolicy
		origin string
		want   bool
	}{
		{"no origin", prod, "", true},
		{"listed", prod, "http://localhost:5173", true},
		{"listed with trailing slash in config", prod, "https://board.example.com", true},
		{"case insensitive", prod, "HTTPS://BOARD.EXAMPLE.COM", true},
		{"unlisted", prod, "https://evil.example", false},
		{"unlisted localhost in production", prod, "http://localhost:8080", false},
		{"any localhost in development", dev, "http://localhost:8080", true},
		{"loopback ip in development", dev, "http://127.0.0.1:3000", true},
		{"unlisted remote in development", dev, "https://evil.example", false},
		{"wildcard", all, "https://anything.example", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.policy.Allow(c.origin); got != c.want {
				t.Fatalf("Allow(%q) = %v, want %v", c.origin, got, c.want)
			}
		})
	}
}

func TestCORSHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(NewOriginPolicy([]string{"http://localhost:5173"}, false)))
	r.GET("/api/posts", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("allow credentials = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("disallowed origin status = %d, want 403", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("no origin status = %d, want 200", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// burst of 2 for 4 per minute
	r.POST("/write", RateLimitMiddleware(4), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/write", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1"); code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i+1, code)
		}
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("over limit: status = %d, want 429", code)
	}
	if code := send("10.0.0.2"); code != http.StatusNoContent {
		t.Fatalf("other ip: status = %d", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/write", RateLimitMiddleware(0), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/write", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i+1, w.Code)
		}
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = c.GetString(utils.RequestIDKey)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("generated id %q is not a uuid", seen)
	}
	if w.Header().Get("X-Request-ID") != seen {
		t.Fatalf("header = %q, context = %q", w.Header().Get("X-Request-ID"), seen)
	}

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", incoming)
	r.ServeHTTP(httptest.NewRecorder(), req)
	if seen != incoming {
		t.Fatalf("incoming id not reused: %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "not a uuid")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not a uuid" {
		t.Fatal("malformed id should be replaced")
	}
}
