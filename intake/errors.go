package intake

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyWatching = errors.New("intake queue is already watching")
	ErrNotWatching     = errors.New("intake queue is not watching")
	ErrQueueFull       = errors.New("intake queue is full")
)

// ErrorKind classifies why a candidate was dropped
type ErrorKind string

const (
	KindUnsupported ErrorKind = "unsupported"
	KindVanished    ErrorKind = "vanished"
	KindUnstable    ErrorKind = "unstable"
	KindInvalid     ErrorKind = "invalid"
	KindCreate      ErrorKind = "create"
)

// Error is an admission failure for one path. It is logged and the path is
// remembered; nothing retries it automatically.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("intake %s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("intake %s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
