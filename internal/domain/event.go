package domain

import "time"

const (
	EventTaskCreated   = "task_created"
	EventTaskUpdated   = "task_updated"
	EventTaskDeleted   = "task_deleted"
	EventCommentAdded  = "comment_added"
	EventExecutorAdded = "executor_added"
)

// TaskEvent is broadcast to stream subscribers after a write commits.
type TaskEvent struct {
	Type      string    `json:"type"`
	Task      string    `json:"task"`
	Actor     string    `json:"actor,omitempty"`
	Status    Status    `json:"status,omitempty"`
	Priority  Priority  `json:"priority,omitempty"`
	Executor  string    `json:"executor,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
