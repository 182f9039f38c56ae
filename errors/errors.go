// Package errors provides error constructors that record the file and line
// of the call site, so a failure deep inside a tool or adapter can be traced
// without a stack trace. Wrapped errors keep the %w chain intact for the
// standard library's errors.Is and errors.As.
package errors

import (
	"fmt"
	"path/filepath"
	"runtime"
)

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "???:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// New returns an error prefixed with the caller's file and line.
func New(msg string) error {
	return fmt.Errorf("[%s] %s", caller(1), msg)
}

// Newf is New with fmt.Sprintf semantics.
func Newf(format string, a ...interface{}) error {
	return fmt.Errorf("[%s] %s", caller(1), fmt.Sprintf(format, a...))
}

// Wrap annotates err with a message and the caller's file and line. Returns
// nil when err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w", caller(1), msg, err)
}

// Wrapf is Wrap with fmt.Sprintf semantics.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w", caller(1), fmt.Sprintf(format, a...), err)
}
