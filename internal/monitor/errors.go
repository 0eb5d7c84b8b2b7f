package monitor

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsafeCategory is returned for a category name that would place files
	// anywhere other than a direct child folder of the monitored root.
	ErrUnsafeCategory = errors.New("unsafe category")

	// ErrInvalidRoot is returned when the monitored root is missing or relative.
	ErrInvalidRoot = errors.New("invalid monitored root")

	// ErrInvalidPattern is returned for a category rule pattern that does not compile.
	ErrInvalidPattern = errors.New("invalid category pattern")

	// ErrInvalidTable is returned when the record store file is not a usable table.
	ErrInvalidTable = errors.New("record store is not a valid table")

	// ErrCollisionExhausted is returned when no free suffixed name was found.
	ErrCollisionExhausted = errors.New("no free destination name")
)

// IsConfigError reports whether err is a configuration or safety violation that
// must abort a cycle before any mutation.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnsafeCategory) || errors.Is(err, ErrInvalidPattern) || errors.Is(err, ErrInvalidRoot)
}

// ReadError reports that a file could not be fingerprinted this cycle.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("reading %s: %v", e.Path, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// Warning is a per-file problem that excluded one file from one cycle.
type Warning struct {
	Path string
	Err  error
}

func (w Warning) String() string {
	if w.Path == "" {
		return w.Err.Error()
	}
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}
