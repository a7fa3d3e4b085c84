package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"taskmanager/internal/domain"
	"taskmanager/internal/service"

	"github.com/gin-gonic/gin"
)

type CreateTaskRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Status      domain.Status   `json:"status" binding:"required"`
	Priority    domain.Priority `json:"priority" binding:"required"`
	Executors   []string        `json:"executors" binding:"required,dive,email"`
}

type CommentRequest struct {
	Text string `json:"text" binding:"required"`
}

type ExecutorRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
}

func (h *Handler) GetTask(c *gin.Context) {
	view, err := h.Tasks.GetTask(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, "get", err)
		return
	}
	succeeded("get")
	c.JSON(http.StatusOK, view)
}

// ListTasks serves GET /tasks?author&executor&page&status&priority.
// author wins over executor; missing filters select every value.
func (h *Handler) ListTasks(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badArguments(c, "list")
			return
		}
		page = n
	}

	statuses, err := parseFilter(c.QueryArray("status"), domain.ParseStatus)
	if err != nil {
		writeError(c, "list", err)
		return
	}
	if len(statuses) == 0 {
		statuses = domain.AllStatuses()
	}
	priorities, err := parseFilter(c.QueryArray("priority"), domain.ParsePriority)
	if err != nil {
		writeError(c, "list", err)
		return
	}
	if len(priorities) == 0 {
		priorities = domain.AllPriorities()
	}

	ctx := c.Request.Context()
	var views []domain.TaskView
	switch author, executor := c.Query("author"), c.Query("executor"); {
	case author != "":
		views, err = h.Tasks.GetTasksByAuthorEmail(ctx, author, page-1, statuses, priorities)
	case executor != "":
		views, err = h.Tasks.GetTasksByExecutorEmail(ctx, executor, page-1, statuses, priorities)
	default:
		views, err = h.Tasks.GetTasks(ctx, page-1, statuses, priorities)
	}
	if err != nil {
		writeError(c, "list", err)
		return
	}

	succeeded("list")
	c.JSON(http.StatusOK, views)
}

// parseFilter accepts repeated parameters and comma-separated lists.
func parseFilter[T comparable](raw []string, parse func(string) (T, error)) ([]T, error) {
	var out []T
	seen := make(map[T]bool)
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			v, err := parse(part)
			if err != nil {
				return nil, err
			}
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func (h *Handler) CreateTask(c *gin.Context) {
	requester, ok := principal(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badArguments(c, "create")
		return
	}

	err := h.Tasks.CreateTask(c.Request.Context(), service.CreateTaskInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Executors:   req.Executors,
	}, requester)
	if err != nil {
		writeError(c, "create", err)
		return
	}

	succeeded("create")
	c.Status(http.StatusNoContent)
}

// UpdateTask serves PATCH /tasks/:name?status&priority. Absent parameters
// leave the field unchanged.
func (h *Handler) UpdateTask(c *gin.Context) {
	requester, ok := principal(c)
	if !ok {
		return
	}

	var status *domain.Status
	if raw := c.Query("status"); raw != "" {
		s, err := domain.ParseStatus(raw)
		if err != nil {
			writeError(c, "update", err)
			return
		}
		status = &s
	}
	var priority *domain.Priority
	if raw := c.Query("priority"); raw != "" {
		p, err := domain.ParsePriority(raw)
		if err != nil {
			writeError(c, "update", err)
			return
		}
		priority = &p
	}

	if err := h.Tasks.UpdateTask(c.Request.Context(), requester, c.Param("name"), status, priority); err != nil {
		writeError(c, "update", err)
		return
	}

	succeeded("update")
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badArguments(c, "comment")
		return
	}

	if err := h.Tasks.AddComment(c.Request.Context(), c.Param("name"), req.Text); err != nil {
		writeError(c, "comment", err)
		return
	}

	succeeded("comment")
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddExecutor(c *gin.Context) {
	requester, ok := principal(c)
	if !ok {
		return
	}

	var req ExecutorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badArguments(c, "add_executor")
		return
	}

	if err := h.Tasks.AddExecutor(c.Request.Context(), requester, c.Param("name"), req.Email); err != nil {
		writeError(c, "add_executor", err)
		return
	}

	succeeded("add_executor")
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteTask(c *gin.Context) {
	requester, ok := principal(c)
	if !ok {
		return
	}

	if err := h.Tasks.DeleteTask(c.Request.Context(), requester, c.Param("name")); err != nil {
		writeError(c, "delete", err)
		return
	}

	succeeded("delete")
	c.Status(http.StatusNoContent)
}
