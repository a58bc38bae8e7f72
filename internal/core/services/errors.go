package services

import (
	"errors"
	"fmt"
	"strings"
)

// Wizard errors
var (
	ErrSessionNotFound      = errors.New("wizard: session not found")
	ErrServiceUnknown       = errors.New("wizard: service not in catalog")
	ErrServiceNotSelected   = errors.New("wizard: service not selected")
	ErrInvalidAction        = errors.New("wizard: invalid resolve action")
	ErrInvalidAssignment    = errors.New("wizard: invalid host assignment")
	ErrServiceInstalled     = errors.New("wizard: installed services are read-only")
	ErrNothingToSubmit      = errors.New("wizard: nothing to submit")
	ErrInstalledUnremovable = errors.New("wizard: installed services cannot be removed")
	ErrSessionSubmitted     = errors.New("wizard: session has a job in progress")
)

// Tracker errors
var (
	ErrJobNotFound  = errors.New("tracker: job not found")
	ErrJobNotFailed = errors.New("tracker: only failed jobs can be retried")
)

// Command errors
var (
	ErrCommandInvalid = errors.New("command: invalid input")
)

// Host probe errors
var (
	ErrHostUnreachable = errors.New("hosts: host unreachable")
)

// ConflictError reports a service whose required infra services are not installed.
// The user resolves it by installing the missing infra services first.
type ConflictError struct {
	Service string
	Missing []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resolver: service %s requires infra services that are not installed: %s",
		e.Service, strings.Join(e.Missing, ", "))
}

// AsConflict unwraps err into a *ConflictError.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
