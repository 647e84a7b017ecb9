package rankmaniac

import (
	"errors"
	"fmt"

	"github.com/anatomi/rankmaniac/internal/pkg/rmaws"
)

// ErrorKind classifies the errors returned by an Orchestrator.
type ErrorKind int

// Error kinds. Anything not tagged otherwise is Fatal.
const (
	Fatal ErrorKind = iota
	Precondition
	Transient
)

func (k ErrorKind) String() string {
	switch k {
	case Precondition:
		return "precondition"
	case Transient:
		return "transient"
	}
	return "fatal"
}

var (
	// ErrPrecondition matches (errors.Is) operations invoked in an invalid state.
	ErrPrecondition = errors.New("precondition failed")
	// ErrTransient matches (errors.Is) remote calls rejected by rate limiting.
	ErrTransient = errors.New("transient remote failure")
)

// Error is a classified orchestrator error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an *Error against the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrPrecondition:
		return e.Kind == Precondition
	case ErrTransient:
		return e.Kind == Transient
	}
	return false
}

// KindOf returns the kind of a non-nil error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Fatal
}

// IsTransient reports whether retrying the same call later may succeed.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func preconditionf(op, format string, args ...interface{}) error {
	return &Error{Kind: Precondition, Op: op, Err: fmt.Errorf(format, args...)}
}

// classify tags throttling failures as Transient; every other error is
// returned unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if rmaws.IsThrottle(err) {
		return &Error{Kind: Transient, Op: op, Err: err}
	}
	return err
}
