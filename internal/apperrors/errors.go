package apperrors

import "errors"

// Failure kinds recognized at the API boundary. Callers classify wrapped
// errors with errors.Is and map them to transport-level responses.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrAuthorization = errors.New("not authorized")
	ErrTransport     = errors.New("transport failure")
	ErrPersistence   = errors.New("persistence failure")
)
