package model

import (
	"errors"
	"fmt"
)

// ErrCanceled is returned by dialogs when the user dismisses them.
var ErrCanceled = errors.New("canceled by user")

// PlatformError reports a failure of the test project: entity files,
// naming or the index.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// IntegrationError reports a failure talking to JIRA.
type IntegrationError struct {
	Op  string
	Err error

	// Auth is set when JIRA rejected the credential.
	Auth bool
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// IOError reports a failure writing a generated script.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsIntegrationError reports whether err (or any error in its chain) is an
// IntegrationError.
func IsIntegrationError(err error) bool {
	var ie *IntegrationError
	return errors.As(err, &ie)
}

// IsAuthError reports whether err carries an IntegrationError caused by a
// rejected credential.
func IsAuthError(err error) bool {
	var ie *IntegrationError
	return errors.As(err, &ie) && ie.Auth
}
