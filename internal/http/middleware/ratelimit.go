package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type clientInfo struct {
	start time.Time
	count int64
}

// memoryLimiter is a fixed-window counter used when Redis is not available.
type memoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	clients map[string]*clientInfo
	now     func() time.Time
	sweep   time.Time
}

func newMemoryLimiter(window time.Duration) *memoryLimiter {
	return &memoryLimiter{
		window:  window,
		clients: make(map[string]*clientInfo),
		now:     time.Now,
	}
}

// incr counts a hit for key and returns the count in the current window.
func (l *memoryLimiter) incr(key string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.sweep) > l.window {
		for k, ci := range l.clients {
			if now.Sub(ci.start) > l.window {
				delete(l.clients, k)
			}
		}
		l.sweep = now
	}

	ci, ok := l.clients[key]
	if !ok || now.Sub(ci.start) > l.window {
		ci = &clientInfo{start: now}
		l.clients[key] = ci
	}
	ci.count++
	return ci.count
}

// CommentRateLimit limits anonymous comment posts per client IP.
func CommentRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return limit("comment_rl", maxRequests, window, clientIP, newMemoryLimiter(window))
}
