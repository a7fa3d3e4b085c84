package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskmanager/internal/domain"
	"taskmanager/internal/logger"
)

// PageSize is the number of tasks returned per page.
const PageSize = 5

// CreateTaskInput holds the fields of a new task.
type CreateTaskInput struct {
	Name        string
	Description string
	Status      domain.Status
	Priority    domain.Priority
	Executors   []string
}

// TaskService implements the task lifecycle and its authorization rules.
// Reads are public; every mutation except AddComment takes the
// authenticated requester's email.
type TaskService struct {
	tx     Transactor
	tasks  TaskStore
	users  UserStore
	events EventPublisher
	now    func() time.Time
}

func NewTaskService(tx Transactor, tasks TaskStore, users UserStore) *TaskService {
	return &TaskService{tx: tx, tasks: tasks, users: users, now: time.Now}
}

// SetPublisher attaches a subscriber for committed task events.
func (s *TaskService) SetPublisher(p EventPublisher) {
	s.events = p
}

func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput, authorEmail string) error {
	if in.Name == "" {
		return domain.Errorf(domain.ErrValidation, "Task name must not be empty")
	}
	if !in.Status.IsValid() || !in.Priority.IsValid() {
		return domain.Errorf(domain.ErrValidation, "Wrong arguments format")
	}

	err := s.tx.WithinTx(ctx, false, func(ctx context.Context) error {
		exists, err := s.tasks.ExistsByName(ctx, in.Name)
		if err != nil {
			return fmt.Errorf("check task name: %w", err)
		}
		if exists {
			return duplicate(in.Name)
		}

		author, err := s.resolveUser(ctx, authorEmail)
		if err != nil {
			return err
		}

		var executors []*domain.User
		seen := make(map[int64]bool, len(in.Executors))
		for _, email := range in.Executors {
			u, err := s.resolveUser(ctx, email)
			if err != nil {
				return err
			}
			if seen[u.ID] {
				continue
			}
			seen[u.ID] = true
			executors = append(executors, u)
		}

		task := &domain.Task{
			Name:        in.Name,
			Description: in.Description,
			Status:      in.Status,
			Priority:    in.Priority,
			AuthorID:    author.ID,
			AuthorEmail: author.Email,
		}
		if err := s.tasks.Create(ctx, task); err != nil {
			if errors.Is(err, domain.ErrRecordExists) {
				return duplicate(in.Name)
			}
			return fmt.Errorf("create task: %w", err)
		}

		for _, u := range executors {
			if err := s.tasks.AddExecutor(ctx, task.ID, u.ID); err != nil {
				return fmt.Errorf("add executor: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("task created", "task", in.Name, "author", authorEmail, "executors", len(in.Executors))
	s.publish(domain.TaskEvent{
		Type:     domain.EventTaskCreated,
		Task:     in.Name,
		Actor:    authorEmail,
		Status:   in.Status,
		Priority: in.Priority,
	})
	return nil
}

func (s *TaskService) DeleteTask(ctx context.Context, requester, name string) error {
	err := s.tx.WithinTx(ctx, false, func(ctx context.Context) error {
		task, err := s.findTask(ctx, name)
		if err != nil {
			return err
		}
		if task.AuthorEmail != requester {
			return domain.Errorf(domain.ErrNoAuthority, "Only task's author can delete the task")
		}
		if _, err := s.tasks.DeleteByName(ctx, name); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("task deleted", "task", name, "by", requester)
	s.publish(domain.TaskEvent{Type: domain.EventTaskDeleted, Task: name, Actor: requester})
	return nil
}

// AddComment appends a comment to the task. The comment is attributed to
// the task's author; callers cannot choose the author.
func (s *TaskService) AddComment(ctx context.Context, name, text string) error {
	if text == "" {
		return domain.Errorf(domain.ErrValidation, "Comment text must not be empty")
	}

	var author string
	err := s.tx.WithinTx(ctx, false, func(ctx context.Context) error {
		task, err := s.findTask(ctx, name)
		if err != nil {
			return err
		}
		author = task.AuthorEmail

		c := &domain.Comment{
			TaskID:      task.ID,
			AuthorID:    task.AuthorID,
			AuthorEmail: task.AuthorEmail,
			Text:        text,
		}
		if err := s.tasks.AddComment(ctx, c); err != nil {
			return fmt.Errorf("add comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("comment added", "task", name)
	s.publish(domain.TaskEvent{Type: domain.EventCommentAdded, Task: name, Actor: author, Text: text})
	return nil
}

func (s *TaskService) AddExecutor(ctx context.Context, requester, name, executorEmail string) error {
	err := s.tx.WithinTx(ctx, false, func(ctx context.Context) error {
		task, err := s.findTask(ctx, name)
		if err != nil {
			return err
		}
		if task.AuthorEmail != requester {
			return domain.Errorf(domain.ErrNoAuthority, "Only task's author can add executors")
		}

		executor, err := s.resolveUser(ctx, executorEmail)
		if err != nil {
			return err
		}
		if err := s.tasks.AddExecutor(ctx, task.ID, executor.ID); err != nil {
			return fmt.Errorf("add executor: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("executor added", "task", name, "executor", executorEmail)
	s.publish(domain.TaskEvent{Type: domain.EventExecutorAdded, Task: name, Actor: requester, Executor: executorEmail})
	return nil
}

// UpdateTask changes status and/or priority; nil leaves a field as is.
// Priority is checked first: only the author may change it. Status may be
// changed by the author or any current executor.
func (s *TaskService) UpdateTask(ctx context.Context, requester, name string, status *domain.Status, priority *domain.Priority) error {
	if status != nil && !status.IsValid() {
		return domain.Errorf(domain.ErrValidation, "Unknown status '%s'", *status)
	}
	if priority != nil && !priority.IsValid() {
		return domain.Errorf(domain.ErrValidation, "Unknown priority '%s'", *priority)
	}

	var updated domain.Task
	err := s.tx.WithinTx(ctx, false, func(ctx context.Context) error {
		task, err := s.findTask(ctx, name)
		if err != nil {
			return err
		}
		isAuthor := task.AuthorEmail == requester

		if priority != nil {
			if !isAuthor {
				return domain.Errorf(domain.ErrNoAuthority, "Only task's author can update the priority")
			}
			task.Priority = *priority
		}

		if status != nil {
			if !isAuthor {
				isExecutor, err := s.tasks.IsExecutor(ctx, task.ID, requester)
				if err != nil {
					return fmt.Errorf("check executor: %w", err)
				}
				if !isExecutor {
					return domain.Errorf(domain.ErrNoAuthority, "Only task's author and executors can update the status")
				}
			}
			task.Status = *status
		}

		if err := s.tasks.Update(ctx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		updated = *task
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("task updated", "task", name, "by", requester, "status", updated.Status, "priority", updated.Priority)
	s.publish(domain.TaskEvent{
		Type:     domain.EventTaskUpdated,
		Task:     name,
		Actor:    requester,
		Status:   updated.Status,
		Priority: updated.Priority,
	})
	return nil
}

func (s *TaskService) GetTask(ctx context.Context, name string) (*domain.TaskView, error) {
	var view domain.TaskView
	err := s.tx.WithinTx(ctx, true, func(ctx context.Context) error {
		task, err := s.findTask(ctx, name)
		if err != nil {
			return err
		}
		v, err := s.project(ctx, task)
		if err != nil {
			return err
		}
		view = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// GetTasks returns page (0-indexed) of all tasks matching the filters.
// The filter sets must be non-empty; callers expand "no filter" to every
// enumeration value.
func (s *TaskService) GetTasks(ctx context.Context, page int, statuses []domain.Status, priorities []domain.Priority) ([]domain.TaskView, error) {
	q, err := buildQuery(page, statuses, priorities)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, q, "")
}

func (s *TaskService) GetTasksByAuthorEmail(ctx context.Context, email string, page int, statuses []domain.Status, priorities []domain.Priority) ([]domain.TaskView, error) {
	q, err := buildQuery(page, statuses, priorities)
	if err != nil {
		return nil, err
	}
	q.AuthorEmail = email
	return s.list(ctx, q, email)
}

func (s *TaskService) GetTasksByExecutorEmail(ctx context.Context, email string, page int, statuses []domain.Status, priorities []domain.Priority) ([]domain.TaskView, error) {
	q, err := buildQuery(page, statuses, priorities)
	if err != nil {
		return nil, err
	}
	q.ExecutorEmail = email
	return s.list(ctx, q, email)
}

func (s *TaskService) list(ctx context.Context, q domain.TaskQuery, mustExist string) ([]domain.TaskView, error) {
	views := []domain.TaskView{}
	err := s.tx.WithinTx(ctx, true, func(ctx context.Context) error {
		if mustExist != "" {
			ok, err := s.users.ExistsByEmail(ctx, mustExist)
			if err != nil {
				return fmt.Errorf("check user: %w", err)
			}
			if !ok {
				return domain.UserNotFound(mustExist)
			}
		}

		tasks, err := s.tasks.Find(ctx, q)
		if err != nil {
			return fmt.Errorf("find tasks: %w", err)
		}
		for i := range tasks {
			v, err := s.project(ctx, &tasks[i])
			if err != nil {
				return err
			}
			views = append(views, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func buildQuery(page int, statuses []domain.Status, priorities []domain.Priority) (domain.TaskQuery, error) {
	if page < 0 {
		return domain.TaskQuery{}, domain.Errorf(domain.ErrValidation, "Page index must not be less than zero")
	}
	if len(statuses) == 0 || len(priorities) == 0 {
		return domain.TaskQuery{}, domain.Errorf(domain.ErrValidation, "Status and priority filters must not be empty")
	}
	for _, st := range statuses {
		if !st.IsValid() {
			return domain.TaskQuery{}, domain.Errorf(domain.ErrValidation, "Unknown status '%s'", st)
		}
	}
	for _, p := range priorities {
		if !p.IsValid() {
			return domain.TaskQuery{}, domain.Errorf(domain.ErrValidation, "Unknown priority '%s'", p)
		}
	}
	return domain.TaskQuery{
		Statuses:   statuses,
		Priorities: priorities,
		Offset:     page * PageSize,
		Limit:      PageSize,
	}, nil
}

// project assembles the read view from the task row and its relations.
func (s *TaskService) project(ctx context.Context, t *domain.Task) (domain.TaskView, error) {
	executors, err := s.tasks.ListExecutors(ctx, t.ID)
	if err != nil {
		return domain.TaskView{}, fmt.Errorf("list executors: %w", err)
	}
	comments, err := s.tasks.ListComments(ctx, t.ID)
	if err != nil {
		return domain.TaskView{}, fmt.Errorf("list comments: %w", err)
	}

	view := domain.TaskView{
		Name:        t.Name,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Author:      t.AuthorEmail,
		Executors:   make([]string, 0, len(executors)),
		Comments:    make([]domain.CommentView, 0, len(comments)),
	}
	for _, u := range executors {
		view.Executors = append(view.Executors, u.Email)
	}
	for _, c := range comments {
		view.Comments = append(view.Comments, domain.CommentView{Author: c.AuthorEmail, Text: c.Text})
	}
	return view, nil
}

func (s *TaskService) findTask(ctx context.Context, name string) (*domain.Task, error) {
	task, err := s.tasks.FindByName(ctx, name)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.TaskNotFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return task, nil
}

func (s *TaskService) resolveUser(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.UserNotFound(email)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *TaskService) publish(ev domain.TaskEvent) {
	if s.events == nil {
		return
	}
	ev.Timestamp = s.now().UTC()
	s.events.Publish(ev)
}

func duplicate(name string) error {
	return domain.Errorf(domain.ErrTaskDuplicate, "Task '%s' already exists", name)
}
