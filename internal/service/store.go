package service

import (
	"context"

	"taskmanager/internal/domain"
)

// UserStore is the read side of the user table. FindByEmail returns
// domain.ErrRecordNotFound when no user has the email.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// UserProvisioner creates users. Creating an email that already exists is
// not an error and leaves the stored user untouched; created reports whether
// a row was inserted.
type UserProvisioner interface {
	CreateUser(ctx context.Context, u *domain.User) (created bool, err error)
}

// TaskStore owns tasks, executor membership and comments. Executor and
// comment relations exist only here and are read back by task ID.
type TaskStore interface {
	ExistsByName(ctx context.Context, name string) (bool, error)
	// FindByName returns domain.ErrRecordNotFound when absent.
	FindByName(ctx context.Context, name string) (*domain.Task, error)
	// Create returns domain.ErrRecordExists on a name collision.
	Create(ctx context.Context, t *domain.Task) error
	Update(ctx context.Context, t *domain.Task) error
	// DeleteByName removes the task with its comments and executor rows.
	DeleteByName(ctx context.Context, name string) (int64, error)

	// AddExecutor is a no-op when the membership already exists.
	AddExecutor(ctx context.Context, taskID, userID int64) error
	IsExecutor(ctx context.Context, taskID int64, email string) (bool, error)
	ListExecutors(ctx context.Context, taskID int64) ([]domain.User, error)

	AddComment(ctx context.Context, c *domain.Comment) error
	ListComments(ctx context.Context, taskID int64) ([]domain.Comment, error)

	Find(ctx context.Context, q domain.TaskQuery) ([]domain.Task, error)
}

// Transactor runs fn as one atomic unit. Store calls made with the context
// passed to fn take part in the transaction; a nested WithinTx joins it.
type Transactor interface {
	WithinTx(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) error
}

// EventPublisher receives events after the write they describe has committed.
type EventPublisher interface {
	Publish(ev domain.TaskEvent)
}
