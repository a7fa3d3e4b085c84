package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports storage reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is one named readiness probe. Run returns a short detail; an error
// marks the check unhealthy. Only a failing Required check makes the service
// unready; others degrade it.
type Check struct {
	Name     string
	Required bool
	Run      func(ctx context.Context) (string, error)
}

// StorageCheck pings the task store.
func StorageCheck(db Pinger, driver string) Check {
	return Check{
		Name:     "storage",
		Required: true,
		Run: func(ctx context.Context) (string, error) {
			return driver, db.Ping(ctx)
		},
	}
}

type HealthHandler struct {
	storage Check
	extra   []Check
	started time.Time
	version string
}

func NewHealthHandler(storage Check, version string, extra ...Check) *HealthHandler {
	return &HealthHandler{
		storage: storage,
		extra:   extra,
		started: time.Now(),
		version: version,
	}
}

type CheckResult struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ReadinessResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Liveness only reports that the process serves requests.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness runs every check. 503 when a required check fails.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := ReadinessResponse{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]CheckResult, len(h.extra)+1),
	}
	code := http.StatusOK

	for _, check := range append([]Check{h.storage}, h.extra...) {
		detail, err := check.Run(ctx)
		if err == nil {
			resp.Checks[check.Name] = CheckResult{Status: "healthy", Detail: detail}
			continue
		}
		resp.Checks[check.Name] = CheckResult{Status: "unhealthy", Detail: detail, Error: err.Error()}
		if check.Required {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		} else if resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	}

	c.JSON(code, resp)
}

// Health is the quick probe: storage only.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if _, err := h.storage.Run(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  h.storage.Name + " unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}
