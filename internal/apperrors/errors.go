package apperrors

import (
	"fmt"
	"net/http"
)

// Type classifies an error for callers and for HTTP status mapping.
type Type uint

const (
	TypeUnknown Type = iota
	TypeValidation
	TypeDuplicateTicker
	TypeInsufficientQuantity
	TypeNotFound
	TypeConcurrentModification
	TypeQuoteUnavailable
	TypeStoreUnavailable
)

// Error carries a type alongside the message so callers can branch on the
// failure class with errors.Is without string matching.
type Error struct {
	Type    Type
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on error type, so sentinel values below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Sentinels for errors.Is checks.
var (
	ErrValidation             = &Error{Type: TypeValidation, Message: "validation failed"}
	ErrDuplicateTicker        = &Error{Type: TypeDuplicateTicker, Message: "ticker already held"}
	ErrInsufficientQuantity   = &Error{Type: TypeInsufficientQuantity, Message: "insufficient quantity"}
	ErrNotFound               = &Error{Type: TypeNotFound, Message: "not found"}
	ErrConcurrentModification = &Error{Type: TypeConcurrentModification, Message: "concurrent modification"}
	ErrQuoteUnavailable       = &Error{Type: TypeQuoteUnavailable, Message: "quote unavailable"}
	ErrStoreUnavailable       = &Error{Type: TypeStoreUnavailable, Message: "store unavailable"}
)

func Validation(format string, args ...interface{}) *Error {
	return &Error{Type: TypeValidation, Message: fmt.Sprintf(format, args...)}
}

func DuplicateTicker(symbol string) *Error {
	return &Error{Type: TypeDuplicateTicker, Message: fmt.Sprintf("ticker already held: %s", symbol)}
}

func DuplicateWatch(symbol string) *Error {
	return &Error{Type: TypeDuplicateTicker, Message: fmt.Sprintf("ticker already watched: %s", symbol)}
}

func InsufficientQuantity(symbol string, have, want int64) *Error {
	return &Error{
		Type:    TypeInsufficientQuantity,
		Message: fmt.Sprintf("insufficient quantity for %s: have %d, want %d", symbol, have, want),
	}
}

func NotFound(what, key string) *Error {
	return &Error{Type: TypeNotFound, Message: fmt.Sprintf("%s not found: %s", what, key)}
}

func ConcurrentModification(symbol string) *Error {
	return &Error{Type: TypeConcurrentModification, Message: fmt.Sprintf("concurrent modification: %s", symbol)}
}

func QuoteUnavailable(symbol string, err error) *Error {
	return &Error{Type: TypeQuoteUnavailable, Message: fmt.Sprintf("quote unavailable for %s", symbol), Err: err}
}

func StoreUnavailable(err error) *Error {
	return &Error{Type: TypeStoreUnavailable, Message: "store unavailable", Err: err}
}

// StatusCode maps an error type to the HTTP status the API layer returns.
func (e *Error) StatusCode() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeDuplicateTicker, TypeConcurrentModification:
		return http.StatusConflict
	case TypeInsufficientQuantity:
		return http.StatusUnprocessableEntity
	case TypeNotFound:
		return http.StatusNotFound
	case TypeQuoteUnavailable:
		return http.StatusBadGateway
	case TypeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
