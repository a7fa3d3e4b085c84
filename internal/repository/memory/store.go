// Package memory is a process-local store with the same contracts as the
// SQL repositories. Transactions are serialized and a failed write
// transaction restores the state it started from.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"taskmanager/internal/domain"
)

var errReadOnly = errors.New("write in read-only transaction")

type executorRow struct {
	taskID int64
	userID int64
}

type state struct {
	users     map[int64]domain.User
	byEmail   map[string]int64
	tasks     map[int64]domain.Task
	byName    map[string]int64
	executors []executorRow
	comments  []domain.Comment
	seq       int64
}

func (s *state) clone() *state {
	cp := &state{
		users:     make(map[int64]domain.User, len(s.users)),
		byEmail:   make(map[string]int64, len(s.byEmail)),
		tasks:     make(map[int64]domain.Task, len(s.tasks)),
		byName:    make(map[string]int64, len(s.byName)),
		executors: append([]executorRow(nil), s.executors...),
		comments:  append([]domain.Comment(nil), s.comments...),
		seq:       s.seq,
	}
	for k, v := range s.users {
		cp.users[k] = v
	}
	for k, v := range s.byEmail {
		cp.byEmail[k] = v
	}
	for k, v := range s.tasks {
		cp.tasks[k] = v
	}
	for k, v := range s.byName {
		cp.byName[k] = v
	}
	return cp
}

type txKey struct{}

type txState struct {
	store    *Store
	readOnly bool
}

type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{st: &state{
		users:   make(map[int64]domain.User),
		byEmail: make(map[string]int64),
		tasks:   make(map[int64]domain.Task),
		byName:  make(map[string]int64),
	}}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() {}

func (s *Store) WithinTx(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok && tx.store == s {
		if tx.readOnly && !readOnly {
			return errReadOnly
		}
		return fn(ctx)
	}

	if readOnly {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return fn(context.WithValue(ctx, txKey{}, &txState{store: s, readOnly: true}))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, &txState{store: s})); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// read runs fn under the caller's transaction or a fresh read lock.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok && tx.store == s {
		return fn(s.st)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

// write runs fn under the caller's write transaction or a fresh one.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	return s.WithinTx(ctx, false, func(ctx context.Context) error {
		return fn(s.st)
	})
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

// Users

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := s.read(ctx, func(st *state) error {
		id, ok := st.byEmail[email]
		if !ok {
			return domain.ErrRecordNotFound
		}
		u := st.users[id]
		out = &u
		return nil
	})
	return out, err
}

func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := s.read(ctx, func(st *state) error {
		_, ok = st.byEmail[email]
		return nil
	})
	return ok, err
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) (bool, error) {
	created := false
	err := s.write(ctx, func(st *state) error {
		if id, ok := st.byEmail[u.Email]; ok {
			u.ID = id
			return nil
		}
		u.ID = st.nextID()
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
		st.users[u.ID] = *u
		st.byEmail[u.Email] = u.ID
		created = true
		return nil
	})
	return created, err
}

// Tasks

func (s *Store) ExistsByName(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := s.read(ctx, func(st *state) error {
		_, ok = st.byName[name]
		return nil
	})
	return ok, err
}

func (s *Store) FindByName(ctx context.Context, name string) (*domain.Task, error) {
	var out *domain.Task
	err := s.read(ctx, func(st *state) error {
		id, ok := st.byName[name]
		if !ok {
			return domain.ErrRecordNotFound
		}
		t := st.tasks[id]
		t.AuthorEmail = st.users[t.AuthorID].Email
		out = &t
		return nil
	})
	return out, err
}

func (s *Store) Create(ctx context.Context, t *domain.Task) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.byName[t.Name]; ok {
			return domain.ErrRecordExists
		}
		if _, ok := st.users[t.AuthorID]; !ok {
			return errors.New("author does not exist")
		}
		t.ID = st.nextID()
		st.tasks[t.ID] = *t
		st.byName[t.Name] = t.ID
		return nil
	})
}

func (s *Store) Update(ctx context.Context, t *domain.Task) error {
	return s.write(ctx, func(st *state) error {
		cur, ok := st.tasks[t.ID]
		if !ok {
			return domain.ErrRecordNotFound
		}
		cur.Description = t.Description
		cur.Status = t.Status
		cur.Priority = t.Priority
		st.tasks[t.ID] = cur
		return nil
	})
}

func (s *Store) DeleteByName(ctx context.Context, name string) (int64, error) {
	var n int64
	err := s.write(ctx, func(st *state) error {
		id, ok := st.byName[name]
		if !ok {
			return nil
		}
		delete(st.tasks, id)
		delete(st.byName, name)

		executors := st.executors[:0]
		for _, e := range st.executors {
			if e.taskID != id {
				executors = append(executors, e)
			}
		}
		st.executors = executors

		comments := st.comments[:0]
		for _, c := range st.comments {
			if c.TaskID != id {
				comments = append(comments, c)
			}
		}
		st.comments = comments
		n = 1
		return nil
	})
	return n, err
}

func (s *Store) AddExecutor(ctx context.Context, taskID, userID int64) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.tasks[taskID]; !ok {
			return domain.ErrRecordNotFound
		}
		if _, ok := st.users[userID]; !ok {
			return domain.ErrRecordNotFound
		}
		for _, e := range st.executors {
			if e.taskID == taskID && e.userID == userID {
				return nil
			}
		}
		st.executors = append(st.executors, executorRow{taskID: taskID, userID: userID})
		return nil
	})
}

func (s *Store) IsExecutor(ctx context.Context, taskID int64, email string) (bool, error) {
	var ok bool
	err := s.read(ctx, func(st *state) error {
		uid, found := st.byEmail[email]
		if !found {
			return nil
		}
		for _, e := range st.executors {
			if e.taskID == taskID && e.userID == uid {
				ok = true
				return nil
			}
		}
		return nil
	})
	return ok, err
}

func (s *Store) ListExecutors(ctx context.Context, taskID int64) ([]domain.User, error) {
	var out []domain.User
	err := s.read(ctx, func(st *state) error {
		for _, e := range st.executors {
			if e.taskID == taskID {
				out = append(out, st.users[e.userID])
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) AddComment(ctx context.Context, c *domain.Comment) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.tasks[c.TaskID]; !ok {
			return domain.ErrRecordNotFound
		}
		c.ID = st.nextID()
		c.AuthorEmail = st.users[c.AuthorID].Email
		st.comments = append(st.comments, *c)
		return nil
	})
}

func (s *Store) ListComments(ctx context.Context, taskID int64) ([]domain.Comment, error) {
	var out []domain.Comment
	err := s.read(ctx, func(st *state) error {
		for _, c := range st.comments {
			if c.TaskID == taskID {
				c.AuthorEmail = st.users[c.AuthorID].Email
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) Find(ctx context.Context, q domain.TaskQuery) ([]domain.Task, error) {
	var out []domain.Task
	err := s.read(ctx, func(st *state) error {
		statuses := make(map[domain.Status]bool, len(q.Statuses))
		for _, v := range q.Statuses {
			statuses[v] = true
		}
		priorities := make(map[domain.Priority]bool, len(q.Priorities))
		for _, v := range q.Priorities {
			priorities[v] = true
		}

		var executorID int64 = -1
		if q.ExecutorEmail != "" {
			id, ok := st.byEmail[q.ExecutorEmail]
			if !ok {
				return nil
			}
			executorID = id
		}

		var matched []domain.Task
		for _, t := range st.tasks {
			if !statuses[t.Status] || !priorities[t.Priority] {
				continue
			}
			t.AuthorEmail = st.users[t.AuthorID].Email
			if q.AuthorEmail != "" && t.AuthorEmail != q.AuthorEmail {
				continue
			}
			if executorID >= 0 && !st.hasExecutor(t.ID, executorID) {
				continue
			}
			matched = append(matched, t)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

		if q.Offset >= len(matched) {
			return nil
		}
		end := len(matched)
		if q.Limit > 0 && q.Offset+q.Limit < end {
			end = q.Offset + q.Limit
		}
		out = matched[q.Offset:end]
		return nil
	})
	return out, err
}

func (st *state) hasExecutor(taskID, userID int64) bool {
	for _, e := range st.executors {
		if e.taskID == taskID && e.userID == userID {
			return true
		}
	}
	return false
}
