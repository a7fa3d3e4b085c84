package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTokens struct {
	valid map[string]string
}

func (f fakeTokens) Validate(token string) bool {
	_, ok := f.valid[token]
	return ok
}

func (f fakeTokens) ExtractSubject(token string) (string, error) {
	sub, ok := f.valid[token]
	if !ok {
		return "", errors.New("invalid")
	}
	return sub, nil
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	tokens := fakeTokens{valid: map[string]string{"good": "user1@mail.com"}}
	r.GET("/me", JWT(tokens), func(c *gin.Context) {
		p, _ := Principal(c)
		c.String(http.StatusOK, p)
	})
	return r
}

func TestJWT(t *testing.T) {
	r := newAuthRouter()

	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer bad", http.StatusUnauthorized, ""},
		{"valid", "Bearer good", http.StatusOK, "user1@mail.com"},
		{"lowercase scheme", "bearer good", http.StatusOK, "user1@mail.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.code {
				t.Fatalf("expected %d got %d", tc.code, w.Code)
			}
			if tc.body != "" && w.Body.String() != tc.body {
				t.Fatalf("expected body %q got %q", tc.body, w.Body.String())
			}
		})
	}
}

func TestRedisRateLimitFallsBackToMemory(t *testing.T) {
	saved := redisClient
	redisClient = nil
	defer func() { redisClient = saved }()

	r := gin.New()
	r.GET("/test", RedisRateLimit(2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", w.Header().Get("Retry-After"))
	}
}

func TestLimiterBackendWithoutRedis(t *testing.T) {
	saved := redisClient
	redisClient = nil
	defer func() { redisClient = saved }()

	backend, err := LimiterBackend(t.Context())
	if err != nil || backend != "memory" {
		t.Fatalf("backend = %q, %v", backend, err)
	}
}

func TestCommentRateLimitPerIP(t *testing.T) {
	saved := redisClient
	redisClient = nil
	defer func() { redisClient = saved }()

	r := gin.New()
	r.POST("/c", CommentRateLimit(1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/c", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do("10.0.0.1"); code != http.StatusNoContent {
		t.Fatalf("first comment: expected 204 got %d", code)
	}
	if code := do("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("second comment: expected 429 got %d", code)
	}
	if code := do("10.0.0.2"); code != http.StatusNoContent {
		t.Fatalf("other client: expected 204 got %d", code)
	}
}

func TestWriteRateLimitPerPrincipal(t *testing.T) {
	saved := redisClient
	redisClient = nil
	defer func() { redisClient = saved }()

	tokens := fakeTokens{valid: map[string]string{"a": "a@mail.com", "b": "b@mail.com"}}
	r := gin.New()
	r.POST("/w", JWT(tokens), WriteRateLimit(1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/w", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do("a"); code != http.StatusNoContent {
		t.Fatalf("first write: expected 204 got %d", code)
	}
	if code := do("a"); code != http.StatusTooManyRequests {
		t.Fatalf("second write: expected 429 got %d", code)
	}
	if code := do("b"); code != http.StatusNoContent {
		t.Fatalf("other principal: expected 204 got %d", code)
	}
}

func TestWriteRateLimitWithoutPrincipal(t *testing.T) {
	r := gin.New()
	r.POST("/w", WriteRateLimit(1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/w", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	now := time.Unix(1000, 0)
	l := newMemoryLimiter(time.Second)
	l.now = func() time.Time { return now }

	if n := l.incr("k"); n != 1 {
		t.Fatalf("expected 1 got %d", n)
	}
	if n := l.incr("k"); n != 2 {
		t.Fatalf("expected 2 got %d", n)
	}
	now = now.Add(2 * time.Second)
	if n := l.incr("k"); n != 1 {
		t.Fatalf("expected counter reset, got %d", n)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc" {
		t.Fatalf("expected propagated id abc, got %q", got)
	}
}
