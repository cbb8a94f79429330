package httpx

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-saas/gate"
	"github.com/sirupsen/logrus"
)

// StatusError is a handler-level failure that already knows its HTTP status.
type StatusError struct {
	Status  int
	Code    string
	Details any
}

func (e *StatusError) Error() string { return e.Code }

func BadRequest(code string, details any) *StatusError {
	return &StatusError{Status: http.StatusBadRequest, Code: code, Details: details}
}

func NotFound(code string) *StatusError {
	return &StatusError{Status: http.StatusNotFound, Code: code}
}

func Forbidden(code string) *StatusError {
	return &StatusError{Status: http.StatusForbidden, Code: code}
}

func Conflict(code string) *StatusError {
	return &StatusError{Status: http.StatusConflict, Code: code}
}

// WriteError maps err onto a JSON error response:
//
//	*StatusError              its own status
//	*gate.ValidationError     400 with the violations
//	*gate.AuthorizationError  403 with the denial reason
//	anything else             500, logged
func WriteError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var (
		statusErr *StatusError
		valErr    *gate.ValidationError
		authErr   *gate.AuthorizationError
		cfgErr    *gate.ConfigurationError
	)
	switch {
	case errors.As(err, &statusErr):
		JSONError(w, statusErr.Status, statusErr.Code, statusErr.Details)
	case errors.As(err, &valErr):
		JSONError(w, http.StatusBadRequest, "invalid_subject", valErr.Violations)
	case errors.As(err, &authErr):
		JSONError(w, http.StatusForbidden, "forbidden", map[string]string{
			"action":  string(authErr.Action),
			"subject": string(authErr.Subject),
			"reason":  authErr.Reason,
		})
	case errors.As(err, &cfgErr):
		log.WithError(err).WithField("role", cfgErr.Role).Error("policy configuration error")
		JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	default:
		log.WithError(err).Error("unhandled error")
		JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
