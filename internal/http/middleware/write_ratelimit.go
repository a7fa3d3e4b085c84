package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// WriteRateLimit limits mutating requests per authenticated principal (not
// per IP). Requires JWT to run before it.
func WriteRateLimit(maxWrites int, window time.Duration) gin.HandlerFunc {
	return limit("write_rl", maxWrites, window, Principal, newMemoryLimiter(window))
}
