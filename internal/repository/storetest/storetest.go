// Package storetest checks a store implementation against the contracts the
// service layer relies on.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"taskmanager/internal/domain"
	"taskmanager/internal/service"
)

// Store is everything a backend provides.
type Store interface {
	service.UserStore
	service.UserProvisioner
	service.TaskStore
	service.Transactor
}

var seq atomic.Int64

// unique returns a name that does not collide across runs against a shared
// database.
func unique(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), seq.Add(1))
}

// Run executes the contract suite. newStore must return a usable store; it
// may be shared between subtests.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("TaskCRUD", func(t *testing.T) { testTaskCRUD(t, newStore(t)) })
	t.Run("Relations", func(t *testing.T) { testRelations(t, newStore(t)) })
	t.Run("Find", func(t *testing.T) { testFind(t, newStore(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
}

func createUser(t *testing.T, st Store) *domain.User {
	t.Helper()
	u := &domain.User{Email: unique("u") + "@mail.com", Password: "pw"}
	created, err := st.CreateUser(context.Background(), u)
	if err != nil || !created || u.ID == 0 {
		t.Fatalf("CreateUser: created=%v id=%d err=%v", created, u.ID, err)
	}
	return u
}

func createTask(t *testing.T, st Store, author *domain.User, status domain.Status, priority domain.Priority) *domain.Task {
	t.Helper()
	task := &domain.Task{
		Name:        unique("task"),
		Description: "d",
		Status:      status,
		Priority:    priority,
		AuthorID:    author.ID,
	}
	if err := st.Create(context.Background(), task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.ID == 0 {
		t.Fatal("Create did not assign an id")
	}
	return task
}

func testUsers(t *testing.T, st Store) {
	ctx := context.Background()
	u := createUser(t, st)

	again := &domain.User{Email: u.Email, Password: "other"}
	created, err := st.CreateUser(ctx, again)
	if err != nil || created {
		t.Fatalf("second CreateUser: created=%v err=%v", created, err)
	}
	if again.ID != u.ID {
		t.Fatalf("expected existing id %d, got %d", u.ID, again.ID)
	}

	got, err := st.FindByEmail(ctx, u.Email)
	if err != nil || got.Password != "pw" {
		t.Fatalf("FindByEmail: %+v %v", got, err)
	}
	if _, err := st.FindByEmail(ctx, unique("ghost")); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if ok, err := st.ExistsByEmail(ctx, u.Email); err != nil || !ok {
		t.Fatalf("ExistsByEmail: %v %v", ok, err)
	}
}

func testTaskCRUD(t *testing.T, st Store) {
	ctx := context.Background()
	author := createUser(t, st)
	task := createTask(t, st, author, domain.StatusOpen, domain.PriorityLow)

	dup := &domain.Task{Name: task.Name, Status: domain.StatusOpen, Priority: domain.PriorityLow, AuthorID: author.ID}
	if err := st.Create(ctx, dup); !errors.Is(err, domain.ErrRecordExists) {
		t.Fatalf("expected ErrRecordExists, got %v", err)
	}

	got, err := st.FindByName(ctx, task.Name)
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if got.AuthorEmail != author.Email || got.Status != domain.StatusOpen {
		t.Fatalf("unexpected task %+v", got)
	}

	got.Status = domain.StatusDone
	got.Priority = domain.PriorityHigh
	if err := st.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = st.FindByName(ctx, task.Name)
	if got.Status != domain.StatusDone || got.Priority != domain.PriorityHigh {
		t.Fatalf("update not stored: %+v", got)
	}

	n, err := st.DeleteByName(ctx, task.Name)
	if err != nil || n != 1 {
		t.Fatalf("DeleteByName: n=%d err=%v", n, err)
	}
	if ok, _ := st.ExistsByName(ctx, task.Name); ok {
		t.Fatal("task still exists")
	}
	if _, err := st.FindByName(ctx, task.Name); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if n, err := st.DeleteByName(ctx, task.Name); err != nil || n != 0 {
		t.Fatalf("second delete: n=%d err=%v", n, err)
	}
}

func testRelations(t *testing.T, st Store) {
	ctx := context.Background()
	author := createUser(t, st)
	e1 := createUser(t, st)
	e2 := createUser(t, st)
	task := createTask(t, st, author, domain.StatusOpen, domain.PriorityLow)

	for _, id := range []int64{e1.ID, e2.ID, e1.ID} {
		if err := st.AddExecutor(ctx, task.ID, id); err != nil {
			t.Fatalf("AddExecutor: %v", err)
		}
	}
	executors, err := st.ListExecutors(ctx, task.ID)
	if err != nil || len(executors) != 2 {
		t.Fatalf("ListExecutors: %v %v", executors, err)
	}
	if executors[0].Email != e1.Email || executors[1].Email != e2.Email {
		t.Fatalf("executors out of insertion order: %v", executors)
	}
	if ok, _ := st.IsExecutor(ctx, task.ID, e2.Email); !ok {
		t.Fatal("e2 should be an executor")
	}
	if ok, _ := st.IsExecutor(ctx, task.ID, author.Email); ok {
		t.Fatal("author is not an executor")
	}

	for _, text := range []string{"one", "two"} {
		c := &domain.Comment{TaskID: task.ID, AuthorID: author.ID, Text: text}
		if err := st.AddComment(ctx, c); err != nil {
			t.Fatalf("AddComment: %v", err)
		}
	}
	comments, err := st.ListComments(ctx, task.ID)
	if err != nil || len(comments) != 2 {
		t.Fatalf("ListComments: %v %v", comments, err)
	}
	if comments[0].Text != "one" || comments[1].AuthorEmail != author.Email {
		t.Fatalf("unexpected comments %+v", comments)
	}

	if _, err := st.DeleteByName(ctx, task.Name); err != nil {
		t.Fatal(err)
	}
	comments, _ = st.ListComments(ctx, task.ID)
	executors, _ = st.ListExecutors(ctx, task.ID)
	if len(comments) != 0 || len(executors) != 0 {
		t.Fatalf("relations survived delete: %v %v", comments, executors)
	}
}

func testFind(t *testing.T, st Store) {
	ctx := context.Background()
	author := createUser(t, st)
	executor := createUser(t, st)

	var ids []int64
	for i := 0; i < 7; i++ {
		task := createTask(t, st, author, domain.StatusOpen, domain.PriorityMedium)
		ids = append(ids, task.ID)
	}
	other := createTask(t, st, author, domain.StatusDone, domain.PriorityMedium)
	if err := st.AddExecutor(ctx, other.ID, executor.ID); err != nil {
		t.Fatal(err)
	}

	q := domain.TaskQuery{
		AuthorEmail: author.Email,
		Statuses:    []domain.Status{domain.StatusOpen},
		Priorities:  domain.AllPriorities(),
		Limit:       5,
	}
	page, err := st.Find(ctx, q)
	if err != nil || len(page) != 5 {
		t.Fatalf("first page: %d %v", len(page), err)
	}
	for i, task := range page {
		if task.ID != ids[i] || task.AuthorEmail != author.Email {
			t.Fatalf("page[%d] = %+v, want id %d", i, task, ids[i])
		}
	}

	q.Offset = 5
	page, err = st.Find(ctx, q)
	if err != nil || len(page) != 2 {
		t.Fatalf("second page: %d %v", len(page), err)
	}

	q = domain.TaskQuery{
		ExecutorEmail: executor.Email,
		Statuses:      domain.AllStatuses(),
		Priorities:    domain.AllPriorities(),
		Limit:         5,
	}
	page, err = st.Find(ctx, q)
	if err != nil || len(page) != 1 || page[0].ID != other.ID {
		t.Fatalf("executor filter: %+v %v", page, err)
	}

	q.Statuses = []domain.Status{domain.StatusOpen}
	page, err = st.Find(ctx, q)
	if err != nil || len(page) != 0 {
		t.Fatalf("executor+status filter: %+v %v", page, err)
	}
}

func testRollback(t *testing.T, st Store) {
	ctx := context.Background()
	author := createUser(t, st)
	name := unique("rollback")
	boom := errors.New("boom")

	err := st.WithinTx(ctx, false, func(ctx context.Context) error {
		task := &domain.Task{Name: name, Status: domain.StatusOpen, Priority: domain.PriorityLow, AuthorID: author.ID}
		if err := st.Create(ctx, task); err != nil {
			return err
		}
		// nested call joins the outer transaction
		return st.WithinTx(ctx, false, func(ctx context.Context) error {
			if ok, err := st.ExistsByName(ctx, name); err != nil || !ok {
				return fmt.Errorf("task not visible inside tx: %v %v", ok, err)
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ok, _ := st.ExistsByName(ctx, name); ok {
		t.Fatal("rolled back task is visible")
	}
}
