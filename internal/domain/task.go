package domain

import "strings"

// Status of a task. Any value may follow any other.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// AllStatuses returns every status in declaration order.
func AllStatuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusDone}
}

func (s Status) IsValid() bool {
	for _, v := range AllStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus accepts the canonical upper-case name, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", Errorf(ErrValidation, "Unknown status '%s'", raw)
	}
	return s, nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// AllPriorities returns every priority in declaration order.
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

func (p Priority) IsValid() bool {
	for _, v := range AllPriorities() {
		if p == v {
			return true
		}
	}
	return false
}

func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.IsValid() {
		return "", Errorf(ErrValidation, "Unknown priority '%s'", raw)
	}
	return p, nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Task is the stored task row. Executors and comments are not embedded;
// they are read from the store by task ID.
type Task struct {
	ID          int64    `db:"id"`
	Name        string   `db:"name"`
	Description string   `db:"description"`
	Status      Status   `db:"status"`
	Priority    Priority `db:"priority"`
	AuthorID    int64    `db:"author_id"`
	AuthorEmail string   `db:"author_email"`
}

type Comment struct {
	ID          int64  `db:"id"`
	TaskID      int64  `db:"task_id"`
	AuthorID    int64  `db:"author_id"`
	AuthorEmail string `db:"author_email"`
	Text        string `db:"text"`
}

// TaskQuery selects a page of tasks. Statuses and Priorities are set
// membership filters and must be non-empty. At most one of AuthorEmail and
// ExecutorEmail is expected to be set.
type TaskQuery struct {
	AuthorEmail   string
	ExecutorEmail string
	Statuses      []Status
	Priorities    []Priority
	Offset        int
	Limit         int
}

// StatusStrings converts statuses for driver parameters.
func StatusStrings(in []Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func PriorityStrings(in []Priority) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = string(p)
	}
	return out
}

// TaskView is the read-facing projection of a task.
type TaskView struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      Status        `json:"status"`
	Priority    Priority      `json:"priority"`
	Author      string        `json:"author"`
	Executors   []string      `json:"executors"`
	Comments    []CommentView `json:"comments"`
}

type CommentView struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}
