package errors

import "errors"

// Error kinds. Every business error wraps exactly one of them so the transport
// layer can pick an HTTP status without knowing the module that raised it.
var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrUpstream   = errors.New("upstream unavailable")
)

// Error is a business error tagged with its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap lets errors.Is match the kind.
func (e *Error) Unwrap() error { return e.Kind }

// New creates a business error of the given kind
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of err, or nil for infrastructure errors
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrForbidden, ErrNotFound, ErrConflict, ErrUpstream} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
