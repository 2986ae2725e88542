package services

import (
	"errors"

	"tasklist/backend/internal/repositories"
)

var (
	// ErrTaskNotFound is returned when no task has the requested id.
	ErrTaskNotFound = repositories.ErrTaskNotFound
	// ErrNotAuthorized is returned when the task exists but belongs to
	// another user.
	ErrNotAuthorized = errors.New("user not authorized")
)
