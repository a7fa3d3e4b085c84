package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrUserNotFound   = errors.New("user not found")
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskDuplicate  = errors.New("task already exists")
	ErrNoAuthority    = errors.New("no authority")
	ErrBadCredentials = errors.New("bad credentials")
	ErrInvalidToken   = errors.New("invalid token")
)

// Storage-level sentinels returned by store implementations.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRecordExists   = errors.New("record already exists")
)

// Error carries a user-facing message for one of the error kinds.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func UserNotFound(email string) error {
	return Errorf(ErrUserNotFound, "User '%s' is not found", email)
}

func TaskNotFound(name string) error {
	return Errorf(ErrTaskNotFound, "Task '%s' is not found", name)
}
