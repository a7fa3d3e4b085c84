package handlers

import (
	"errors"
	"net/http"

	"taskmanager/internal/domain"
	"taskmanager/internal/http/middleware"
	"taskmanager/internal/logger"

	"github.com/gin-gonic/gin"
)

const wrongArguments = "Wrong arguments format"

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoAuthority):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrBadCredentials), errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrTaskDuplicate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error to {message}. Unclassified errors are
// logged and reported without detail.
func writeError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		middleware.TaskOps.WithLabelValues(op, "error").Inc()
		logger.WithContext(c.Request.Context()).Error("request failed", "op", op, "error", err)
		c.AbortWithStatusJSON(status, gin.H{"message": "internal server error"})
		return
	}

	middleware.TaskOps.WithLabelValues(op, "client_error").Inc()
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Message
	}
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

func badArguments(c *gin.Context, op string) {
	middleware.TaskOps.WithLabelValues(op, "client_error").Inc()
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": wrongArguments})
}

func succeeded(op string) {
	middleware.TaskOps.WithLabelValues(op, "ok").Inc()
}
