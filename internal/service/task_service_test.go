package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"taskmanager/internal/domain"
	"taskmanager/internal/repository/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.TaskEvent
}

func (r *recorder) Publish(ev domain.TaskEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func newTaskService(t *testing.T) (*TaskService, *recorder) {
	t.Helper()
	st := memory.New()
	if _, err := ProvisionUsers(context.Background(), st, st, CredentialsPlain, DemoUsers()); err != nil {
		t.Fatal(err)
	}
	svc := NewTaskService(st, st, st)
	rec := &recorder{}
	svc.SetPublisher(rec)
	return svc, rec
}

func input(name string, executors ...string) CreateTaskInput {
	return CreateTaskInput{
		Name:        name,
		Description: "d",
		Status:      domain.StatusOpen,
		Priority:    domain.PriorityLow,
		Executors:   executors,
	}
}

var (
	allStatuses   = domain.AllStatuses()
	allPriorities = domain.AllPriorities()
)

func TestCreateAndGetTask(t *testing.T) {
	svc, rec := newTaskService(t)
	ctx := context.Background()

	if err := svc.CreateTask(ctx, input("T1", "user2@mail.com", "user2@mail.com"), "user1@mail.com"); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	view, err := svc.GetTask(ctx, "T1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if view.Author != "user1@mail.com" {
		t.Fatalf("author = %s", view.Author)
	}
	if len(view.Executors) != 1 || view.Executors[0] != "user2@mail.com" {
		t.Fatalf("executors = %v", view.Executors)
	}
	if len(view.Comments) != 0 {
		t.Fatalf("comments = %v", view.Comments)
	}
	if got := rec.types(); len(got) != 1 || got[0] != domain.EventTaskCreated {
		t.Fatalf("events = %v", got)
	}
}

func TestCreateTaskDuplicate(t *testing.T) {
	svc, rec := newTaskService(t)
	ctx := context.Background()

	if err := svc.CreateTask(ctx, input("T1"), "user1@mail.com"); err != nil {
		t.Fatal(err)
	}
	err := svc.CreateTask(ctx, CreateTaskInput{Name: "T1", Description: "other", Status: domain.StatusDone, Priority: domain.PriorityHigh}, "user2@mail.com")
	if !errors.Is(err, domain.ErrTaskDuplicate) {
		t.Fatalf("expected ErrTaskDuplicate, got %v", err)
	}
	if err.Error() != "Task 'T1' already exists" {
		t.Fatalf("message = %q", err.Error())
	}

	view, _ := svc.GetTask(ctx, "T1")
	if view.Author != "user1@mail.com" || view.Description != "d" {
		t.Fatalf("store changed: %+v", view)
	}
	if len(rec.types()) != 1 {
		t.Fatalf("failed create must not publish: %v", rec.types())
	}
}

func TestCreateTaskUnknownExecutorRollsBack(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	err := svc.CreateTask(ctx, input("T1", "user2@mail.com", "ghost@mail.com"), "user1@mail.com")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.GetTask(ctx, "T1"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("task must not exist, got %v", err)
	}

	err = svc.CreateTask(ctx, input("T2"), "ghost@mail.com")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("unknown author: expected ErrUserNotFound, got %v", err)
	}
}

func TestOnlyAuthorMutates(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()
	if err := svc.CreateTask(ctx, input("T1", "user2@mail.com"), "user1@mail.com"); err != nil {
		t.Fatal(err)
	}

	high := domain.PriorityHigh
	done := domain.StatusDone

	cases := []struct {
		name string
		fn   func() error
		msg  string
	}{
		{"delete", func() error { return svc.DeleteTask(ctx, "user2@mail.com", "T1") }, "Only task's author can delete the task"},
		{"add executor", func() error { return svc.AddExecutor(ctx, "user2@mail.com", "T1", "user3@mail.com") }, "Only task's author can add executors"},
		{"priority", func() error { return svc.UpdateTask(ctx, "user2@mail.com", "T1", nil, &high) }, "Only task's author can update the priority"},
		{"priority and status", func() error { return svc.UpdateTask(ctx, "user2@mail.com", "T1", &done, &high) }, "Only task's author can update the priority"},
		{"status by stranger", func() error { return svc.UpdateTask(ctx, "user3@mail.com", "T1", &done, nil) }, "Only task's author and executors can update the status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			if !errors.Is(err, domain.ErrNoAuthority) {
				t.Fatalf("expected ErrNoAuthority, got %v", err)
			}
			if err.Error() != tc.msg {
				t.Fatalf("message = %q", err.Error())
			}
		})
	}

	view, err := svc.GetTask(ctx, "T1")
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != domain.StatusOpen || view.Priority != domain.PriorityLow || len(view.Executors) != 1 {
		t.Fatalf("state changed: %+v", view)
	}
}

func TestUpdateTask(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()
	if err := svc.CreateTask(ctx, input("T1", "user2@mail.com"), "user1@mail.com"); err != nil {
		t.Fatal(err)
	}

	inProgress := domain.StatusInProgress
	if err := svc.UpdateTask(ctx, "user2@mail.com", "T1", &inProgress, nil); err != nil {
		t.Fatalf("executor status update: %v", err)
	}

	done := domain.StatusDone
	high := domain.PriorityHigh
	if err := svc.UpdateTask(ctx, "user1@mail.com", "T1", &done, &high); err != nil {
		t.Fatalf("author update: %v", err)
	}

	// neither field is a no-op write
	if err := svc.UpdateTask(ctx, "user3@mail.com", "T1", nil, nil); err != nil {
		t.Fatalf("empty update: %v", err)
	}

	view, _ := svc.GetTask(ctx, "T1")
	if view.Status != domain.StatusDone || view.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected state %+v", view)
	}

	if err := svc.UpdateTask(ctx, "user1@mail.com", "missing", &done, nil); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestAddExecutorIdempotent(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()
	if err := svc.CreateTask(ctx, input("T1"), "user1@mail.com"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.AddExecutor(ctx, "user1@mail.com", "T1", "user3@mail.com"); err != nil {
			t.Fatalf("AddExecutor #%d: %v", i, err)
		}
	}
	view, _ := svc.GetTask(ctx, "T1")
	if len(view.Executors) != 1 || view.Executors[0] != "user3@mail.com" {
		t.Fatalf("executors = %v", view.Executors)
	}

	if err := svc.AddExecutor(ctx, "user1@mail.com", "T1", "ghost@mail.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCommentsAndDelete(t *testing.T) {
	svc, rec := newTaskService(t)
	ctx := context.Background()
	if err := svc.CreateTask(ctx, input("T1"), "user1@mail.com"); err != nil {
		t.Fatal(err)
	}

	for _, text := range []string{"first", "second"} {
		if err := svc.AddComment(ctx, "T1", text); err != nil {
			t.Fatalf("AddComment: %v", err)
		}
	}
	view, _ := svc.GetTask(ctx, "T1")
	if len(view.Comments) != 2 || view.Comments[0].Text != "first" || view.Comments[1].Author != "user1@mail.com" {
		t.Fatalf("comments = %+v", view.Comments)
	}

	if err := svc.AddComment(ctx, "missing", "x"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := svc.AddComment(ctx, "T1", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	if err := svc.DeleteTask(ctx, "user1@mail.com", "T1"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := svc.GetTask(ctx, "T1"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := svc.DeleteTask(ctx, "user1@mail.com", "T1"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("second delete: expected ErrTaskNotFound, got %v", err)
	}

	// recreating the name starts with no comments
	if err := svc.CreateTask(ctx, input("T1"), "user1@mail.com"); err != nil {
		t.Fatal(err)
	}
	view, _ = svc.GetTask(ctx, "T1")
	if len(view.Comments) != 0 {
		t.Fatalf("comments survived delete: %+v", view.Comments)
	}

	want := []string{
		domain.EventTaskCreated, domain.EventCommentAdded, domain.EventCommentAdded,
		domain.EventTaskDeleted, domain.EventTaskCreated,
	}
	got := rec.types()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestEmptyOnlyValidation(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	if err := svc.CreateTask(ctx, input(""), "user1@mail.com"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty name: expected ErrValidation, got %v", err)
	}

	// blank but non-empty values are accepted
	if err := svc.CreateTask(ctx, input("  "), "user1@mail.com"); err != nil {
		t.Fatalf("blank name: %v", err)
	}
	if err := svc.AddComment(ctx, "  ", "  "); err != nil {
		t.Fatalf("blank comment: %v", err)
	}
	view, err := svc.GetTask(ctx, "  ")
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Comments) != 1 || view.Comments[0].Text != "  " {
		t.Fatalf("comments = %+v", view.Comments)
	}
}

func TestGetTasksPagination(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		if err := svc.CreateTask(ctx, input(fmt.Sprintf("T%d", i)), "user1@mail.com"); err != nil {
			t.Fatal(err)
		}
	}

	first, err := svc.GetTasks(ctx, 0, allStatuses, allPriorities)
	if err != nil || len(first) != 5 {
		t.Fatalf("page 0: %d tasks, err %v", len(first), err)
	}
	if first[0].Name != "T1" || first[4].Name != "T5" {
		t.Fatalf("unexpected order: %s..%s", first[0].Name, first[4].Name)
	}
	second, err := svc.GetTasks(ctx, 1, allStatuses, allPriorities)
	if err != nil || len(second) != 2 {
		t.Fatalf("page 1: %d tasks, err %v", len(second), err)
	}
	third, err := svc.GetTasks(ctx, 2, allStatuses, allPriorities)
	if err != nil || len(third) != 0 {
		t.Fatalf("page 2: %d tasks, err %v", len(third), err)
	}
}

func TestGetTasksFilters(t *testing.T) {
	svc, _ := newTaskService(t)
	ctx := context.Background()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(svc.CreateTask(ctx, CreateTaskInput{Name: "A", Description: "d", Status: domain.StatusOpen, Priority: domain.PriorityHigh, Executors: []string{"user3@mail.com"}}, "user1@mail.com"))
	must(svc.CreateTask(ctx, CreateTaskInput{Name: "B", Description: "d", Status: domain.StatusDone, Priority: domain.PriorityLow}, "user1@mail.com"))
	must(svc.CreateTask(ctx, CreateTaskInput{Name: "C", Description: "d", Status: domain.StatusOpen, Priority: domain.PriorityLow, Executors: []string{"user3@mail.com"}}, "user2@mail.com"))

	open, err := svc.GetTasks(ctx, 0, []domain.Status{domain.StatusOpen}, allPriorities)
	if err != nil || len(open) != 2 {
		t.Fatalf("open filter: %v %v", open, err)
	}

	byAuthor, err := svc.GetTasksByAuthorEmail(ctx, "user1@mail.com", 0, allStatuses, []domain.Priority{domain.PriorityLow})
	if err != nil || len(byAuthor) != 1 || byAuthor[0].Name != "B" {
		t.Fatalf("author filter: %v %v", byAuthor, err)
	}

	byExecutor, err := svc.GetTasksByExecutorEmail(ctx, "user3@mail.com", 0, allStatuses, allPriorities)
	if err != nil || len(byExecutor) != 2 {
		t.Fatalf("executor filter: %v %v", byExecutor, err)
	}

	none, err := svc.GetTasksByExecutorEmail(ctx, "user4@mail.com", 0, allStatuses, allPriorities)
	if err != nil || len(none) != 0 {
		t.Fatalf("executor without tasks: %v %v", none, err)
	}

	if _, err := svc.GetTasksByAuthorEmail(ctx, "ghost@mail.com", 0, allStatuses, allPriorities); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.GetTasks(ctx, 0, nil, allPriorities); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty filter: expected ErrValidation, got %v", err)
	}
	if _, err := svc.GetTasks(ctx, -1, allStatuses, allPriorities); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("negative page: expected ErrValidation, got %v", err)
	}
}
