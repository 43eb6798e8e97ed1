package core

import "github.com/pkg/errors"

// FieldError ties a message to the request field it rejects, e.g. a payment
// amount that does not match the meal plan price.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a rejected request. The API layer renders Fields as a
// field -> message map with a 400 status; domain services return it for
// business rules the validator tags cannot express.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown is a non-recoverable integrity error; the server stops serving
// instead of handing out corrupt data.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
