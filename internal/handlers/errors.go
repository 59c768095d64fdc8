package handlers

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// MsgInternal is the only detail a client sees of a server-side failure.
const MsgInternal = "Internal server error"

// ErrorBody is the error envelope of every failed request.
type ErrorBody struct {
	status int

	Success bool   `json:"success"`
	Message string `json:"error"`
}

func (e *ErrorBody) Error() string {
	return e.Message
}

// GetStatus returns the HTTP status of the error.
func (e *ErrorBody) GetStatus() int {
	return e.status
}

// UseErrorEnvelope makes huma render all errors, including its own request
// validation errors, as ErrorBody. Schema validation failures are reported
// as 400 like every other client error.
func UseErrorEnvelope() {
	huma.NewError = NewError
}

// NewError builds an ErrorBody. It matches the signature of huma.NewError.
func NewError(status int, msg string, errs ...error) huma.StatusError {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}

	details := make([]string, 0, len(errs))

	for _, err := range errs {
		if err != nil {
			details = append(details, err.Error())
		}
	}

	if len(details) > 0 {
		msg = msg + ": " + strings.Join(details, "; ")
	}

	return &ErrorBody{status: status, Message: msg}
}
