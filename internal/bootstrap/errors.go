package bootstrap

import (
	"errors"
	"fmt"

	"hostboot/internal/pins"
)

// Failure kinds. Every fatal error returned by Run matches exactly one of
// these with errors.Is.
var (
	ErrUnsupportedTarget = pins.ErrUnsupportedTarget
	ErrNetwork           = errors.New("network failure")
	ErrIntegrityMismatch = errors.New("integrity mismatch")
	ErrExtraction        = errors.New("extraction failure")
	ErrSubprocess        = errors.New("subprocess failure")
	ErrFilesystem        = errors.New("filesystem failure")
)

// ErrAlreadyRun is returned when Run is called a second time.
var ErrAlreadyRun = errors.New("bootstrap already run")

type stepError struct {
	kind error
	err  error
}

func (e *stepError) Error() string { return e.err.Error() }

func (e *stepError) Unwrap() error { return e.err }

func (e *stepError) Is(target error) bool { return target == e.kind }

// failure tags a formatted error with its kind.
func failure(kind error, format string, args ...any) error {
	return &stepError{kind: kind, err: fmt.Errorf(format, args...)}
}

// Kind returns the failure kind of err, or nil if it carries none.
func Kind(err error) error {
	for _, kind := range []error{ErrUnsupportedTarget, ErrNetwork, ErrIntegrityMismatch, ErrExtraction, ErrSubprocess, ErrFilesystem} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
