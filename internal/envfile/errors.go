package envfile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFileNotFound is returned when an env file does not exist or cannot be read.
	ErrFileNotFound = errors.New("environment file not found")
	// ErrInvalidLine is returned when a line cannot be parsed as KEY=VALUE.
	ErrInvalidLine = errors.New("invalid environment line")
	// ErrMissingRequired is returned when required variables are absent after loading.
	ErrMissingRequired = errors.New("missing required environment variables")
	// ErrCircularReference is returned when a ${NAME} reference refers back to itself.
	ErrCircularReference = errors.New("circular variable reference")
	// ErrMaxDepthExceeded is returned when nested expansion does not settle in time.
	ErrMaxDepthExceeded = errors.New("maximum expansion depth exceeded")
	// ErrNoPaths is returned when Load is called without any file.
	ErrNoPaths = errors.New("at least one path must be provided")
)

// InvalidLineError reports a malformed line. Line is 1-based and zero when
// the line was parsed outside of a file.
type InvalidLineError struct {
	Line   int
	Text   string
	Reason string
}

// Error implements the error interface.
func (e *InvalidLineError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Text)
}

// Is reports InvalidLineError as ErrInvalidLine.
func (e *InvalidLineError) Is(target error) bool {
	return target == ErrInvalidLine
}

// MissingRequiredVarsError lists every required variable absent from a load.
type MissingRequiredVarsError struct {
	Missing []string
}

// Error implements the error interface.
func (e *MissingRequiredVarsError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingRequired, strings.Join(e.Missing, ", "))
}

// Is reports MissingRequiredVarsError as ErrMissingRequired.
func (e *MissingRequiredVarsError) Is(target error) bool {
	return target == ErrMissingRequired
}
