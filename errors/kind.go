package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Kind is a stable category attached to errors so callers can report a
// categorizable reason string without string-matching messages.
type Kind string

const (
	// KindConfiguration marks a call that failed before any network attempt,
	// e.g. no client configured for the requested provider.
	KindConfiguration Kind = "configuration"
	// KindProvider marks an upstream transport or API failure.
	KindProvider Kind = "provider"
	// KindParse marks malformed structured model output.
	KindParse Kind = "parse"
	// KindToolExecution marks a failure inside a tool invocation.
	KindToolExecution Kind = "tool_execution"
	// KindMaxIterations marks the execution loop safety valve.
	KindMaxIterations Kind = "max_iterations"
	// KindCancelled marks an explicit abort of a running task.
	KindCancelled Kind = "cancelled"
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// Newk creates a new error tagged with the given kind, with file and line
// number information like New.
func Newk(kind Kind, format string, a ...interface{}) error {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return &kindError{
		kind: kind,
		err:  fmt.Errorf("[%s:%d] %s", file, line, fmt.Sprintf(format, a...)),
	}
}

// WithKind tags an existing error with a kind. Returns nil for a nil error.
// When a chain carries several kinds, KindOf reports the outermost one.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// KindOf returns the kind attached to err or any error it wraps. Untagged
// errors report an empty Kind.
func KindOf(err error) Kind {
	var ke *kindError
	if stderrors.As(err, &ke) {
		return ke.kind
	}
	return ""
}
