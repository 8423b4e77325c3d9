package search

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexNotFound is matched by API and task errors reporting a missing index
	ErrIndexNotFound = errors.New("index not found")
	// ErrTaskTimeout is returned when an asynchronous task does not finish in time
	ErrTaskTimeout = errors.New("timed out waiting for task")
	// ErrUnavailable is returned by Health when the engine reports a non-available status
	ErrUnavailable = errors.New("search engine unavailable")
	// ErrEmptyFilter is returned when a deletion is requested without conditions
	ErrEmptyFilter = errors.New("filter has no conditions")
)

const codeIndexNotFound = "index_not_found"

// APIError is a non-2xx response from the engine
type APIError struct {
	Status  int
	Code    string
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("search api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("search api error %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrIndexNotFound) match
func (e *APIError) Is(target error) bool {
	return target == ErrIndexNotFound && e.Code == codeIndexNotFound
}

// retryable reports whether the request may succeed if repeated
func (e *APIError) retryable() bool {
	return e.Status >= 500 || e.Status == 429
}

// TaskError is an asynchronous task that ended in the failed or canceled state
type TaskError struct {
	TaskUID int64
	Type    string
	Status  string
	Code    string
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d (%s) %s: %s: %s", e.TaskUID, e.Type, e.Status, e.Code, e.Message)
}

// Is lets errors.Is(err, ErrIndexNotFound) match
func (e *TaskError) Is(target error) bool {
	return target == ErrIndexNotFound && e.Code == codeIndexNotFound
}
