package handlers

import (
	"net/http"

	"taskmanager/internal/http/middleware"
	"taskmanager/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Auth  *service.AuthService
	Tasks *service.TaskService
}

func NewHandler(auth *service.AuthService, tasks *service.TaskService) *Handler {
	return &Handler{Auth: auth, Tasks: tasks}
}

// principal returns the authenticated email or aborts with 401.
func principal(c *gin.Context) (string, bool) {
	email, ok := middleware.Principal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return "", false
	}
	return email, true
}
