package associates

import "errors"

// Error kinds reported to callers of the Mutator.
var (
	ErrInvalid  = errors.New("invalid request")
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
)

// Conditions reported by a Repository when a field patch cannot be applied.
var (
	ErrDocumentMissing = errors.New("associates: document does not exist")
	ErrFieldExists     = errors.New("associates: field already exists")
	ErrFieldMissing    = errors.New("associates: field does not exist")
)

// Error is a domain error with a client-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func invalid(msg string) error {
	return &Error{Kind: ErrInvalid, Message: msg}
}

func conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

func notFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}
