package http

import (
	"errors"
	"net/http"

	"fintrack/internal/core"
)

// Client-facing authentication messages.
const (
	msgMissingAuth        = "AuthenticationError: Unauthorized request received."
	msgInvalidAuthPayload = "AuthenticationError: Invalid authentication payload."
	msgInvalidCredentials = "AuthenticationError: Invalid credentials. Please provide valid credentials."
	msgInternal           = "An internal error occurred while processing the request."
)

// statusFor maps an error onto its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingAuth), errors.Is(err, ErrInvalidAuthPayload), errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrInvalidLocale),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrPeriodNotDefined),
		errors.Is(err, core.ErrNoEntries),
		errors.Is(err, core.ErrIncompleteProfile):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the payload of the error body: a list for field
// validation failures, a string otherwise. Internal failures are not
// described.
func messageFor(err error) any {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.messages
	}
	switch {
	case errors.Is(err, ErrMissingAuth):
		return msgMissingAuth
	case errors.Is(err, ErrInvalidAuthPayload):
		return msgInvalidAuthPayload
	case errors.Is(err, ErrInvalidCredentials):
		return msgInvalidCredentials
	case errors.Is(err, core.ErrNoEntries):
		return "No transaction records available for the given period and ledger."
	}
	if statusFor(err) == http.StatusInternalServerError {
		return msgInternal
	}
	return err.Error()
}
