package hardcover

import (
	"errors"
	"fmt"
)

// ErrUnrecognizedShape is returned when a response does not match any of the
// shapes the client knows how to decode.
var ErrUnrecognizedShape = errors.New("unrecognized response shape")

// ShapeError describes which field had an unexpected shape.
type ShapeError struct {
	Field string
	Raw   string
}

func (e *ShapeError) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		raw = raw[:120] + "..."
	}
	return fmt.Sprintf("%s: field %q: %s", ErrUnrecognizedShape, e.Field, raw)
}

func (e *ShapeError) Unwrap() error {
	return ErrUnrecognizedShape
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, string(e.Body))
}

// MutationError carries the error string Hardcover returns inside a
// successful mutation response.
type MutationError struct {
	Operation string
	Message   string
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Operation, e.Message)
}

// BookError is a custom error type that includes a book ID
// This is used to pass book IDs through error chains without string parsing
type BookError struct {
	// The underlying error that occurred
	Err error
	// The Hardcover book or user_book id related to the error
	BookID int
}

// Error implements the error interface
func (e *BookError) Error() string {
	if e.BookID != 0 {
		return fmt.Sprintf("%s (book ID: %d)", e.Err.Error(), e.BookID)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *BookError) Unwrap() error {
	return e.Err
}

// WithBookID wraps an error with a book ID
func WithBookID(err error, bookID int) error {
	if err == nil {
		return nil
	}
	return &BookError{Err: err, BookID: bookID}
}

// GetBookID returns the book ID from an error if it's a BookError
func GetBookID(err error) (int, bool) {
	var bookErr *BookError
	if errors.As(err, &bookErr) {
		return bookErr.BookID, bookErr.BookID != 0
	}
	return 0, false
}
