package secrets

import (
	"errors"
	"fmt"
)

var (
	// ErrSecretResolution classifies every failure to turn a secret URI into a value.
	ErrSecretResolution = errors.New("secret resolution failed")
	// ErrNoProvider is returned when no provider is registered for a URI scheme.
	ErrNoProvider = errors.New("no provider registered for scheme")
	// ErrMalformedURI is returned for secret:// URIs without a scheme/path separator.
	ErrMalformedURI = errors.New("invalid secret URI format")
	// ErrInvalidProvider is returned by Register for providers that cannot be used.
	ErrInvalidProvider = errors.New("invalid secret provider")
)

// ResolutionError describes a failed secret lookup.
type ResolutionError struct {
	URI    string
	Scheme string
	Err    error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve secret %s", e.URI)
	}
	return fmt.Sprintf("resolve secret %s: %v", e.URI, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is reports ResolutionError as ErrSecretResolution.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrSecretResolution
}

func resolutionErrorf(uri, format string, args ...any) error {
	return &ResolutionError{URI: uri, Err: fmt.Errorf(format, args...)}
}
