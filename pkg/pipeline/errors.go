package pipeline

import "github.com/pkg/errors"

var (
	// ErrTaskNotFound is returned when an operation names an unknown task id
	ErrTaskNotFound = errors.New("pipeline: task not found")

	// ErrDuplicateTask is returned when a task id is enqueued twice
	ErrDuplicateTask = errors.New("pipeline: duplicate task id")

	// ErrInvalidTransition is returned when an operation does not apply to
	// the task's current status, for example cancelling a pending task or
	// retrying one that did not fail
	ErrInvalidTransition = errors.New("pipeline: invalid task transition")

	// ErrNoHandler is returned when no handler is registered for a task type
	ErrNoHandler = errors.New("pipeline: no handler registered for task type")
)
