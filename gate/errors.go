package gate

import (
	"errors"
	"fmt"

	"github.com/diewo77/go-saas/validation"
)

// Sentinel errors. The typed errors below unwrap to them, so callers that
// only care about the category can use errors.Is.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidSubject = errors.New("invalid subject")
	ErrUnknownRole    = errors.New("unknown role")
)

// AuthorizationError is returned when policy denies a well-formed request.
type AuthorizationError struct {
	Action  Action
	Subject SubjectName
	Reason  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s %s denied: %s", e.Action, e.Subject, e.Reason)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// ValidationError is returned when an attribute bag does not satisfy the
// schema of its subject.
type ValidationError struct {
	Subject    SubjectName
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Subject, e.Violations)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidSubject }

// ConfigurationError signals an unknown role reaching the ability builder,
// which means a corrupted membership record or a programming error.
type ConfigurationError struct {
	Role string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no rule table for role %q", e.Role)
}

func (e *ConfigurationError) Unwrap() error { return ErrUnknownRole }
