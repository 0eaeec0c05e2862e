package workflow

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// ErrorKindConfiguration is fatal and never retried: the job cannot start.
	ErrorKindConfiguration ErrorKind = iota + 1
	// ErrorKindSource means the external feed could not be read or held an invalid line.
	ErrorKindSource
	// ErrorKindTransaction means a write transaction rolled back.
	ErrorKindTransaction
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindConfiguration:
		return "configuration"
	case ErrorKindSource:
		return "source"
	case ErrorKindTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

var (
	ErrSystemActorNotFound = errors.New("system actor not found")
	ErrJobLocked           = errors.New("job is already running")
)

// JobError is returned by the pipelines at their boundary. Conflicts are never errors.
type JobError struct {
	Kind ErrorKind
	Op   string
	// Key identifies the batch, group or line being processed, if any.
	Key  string
	Err  error
}

func (e *JobError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func newJobError(kind ErrorKind, op string, key string, err error) error {
	if err == nil {
		return nil
	}
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return err
	}
	return &JobError{Kind: kind, Op: op, Key: key, Err: err}
}

// IsKind reports whether err carries a JobError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var jobErr *JobError
	return errors.As(err, &jobErr) && jobErr.Kind == kind
}
