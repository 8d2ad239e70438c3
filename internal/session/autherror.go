package session

import (
	"fmt"

	domainerrors "github.com/taleforge/taleforge/internal/errors"
)

// Reason says why a login or registration failed.
type Reason string

// Failure reasons.
const (
	ReasonInvalidCredentials Reason = "InvalidCredentials"
	ReasonNetwork            Reason = "NetworkError"
	ReasonServer             Reason = "ServerError"
	ReasonValidation         Reason = "ValidationError"
)

// AuthError is returned by Login and Register. Fields holds per-field messages for
// ReasonValidation.
type AuthError struct {
	Reason  Reason
	Message string
	Fields  map[string]string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// classifyAuthFailure maps a gateway error to a failure reason. Registration
// surfaces client errors as validation problems; login reports them as bad
// credentials.
func classifyAuthFailure(err error, registering bool) *AuthError {
	ae := &AuthError{Reason: ReasonServer, Message: err.Error(), Err: err}

	var de *domainerrors.Error
	if !domainerrors.As(err, &de) {
		return ae
	}
	ae.Message = de.Message

	switch de.Code {
	case domainerrors.CodeUnavailable:
		if de.IsNetwork() {
			ae.Reason = ReasonNetwork
		}
	case domainerrors.CodeValidation, domainerrors.CodeConflict:
		if registering {
			ae.Reason = ReasonValidation
			ae.Fields = de.Fields()
		} else {
			ae.Reason = ReasonInvalidCredentials
		}
	case domainerrors.CodeUnauthorized, domainerrors.CodeForbidden, domainerrors.CodeInvalidCredentials:
		ae.Reason = ReasonInvalidCredentials
	}
	return ae
}

var errNotSignedIn = domainerrors.Unauthorized("not signed in")
