package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors. The two-phase coordinators translate every store failure
// into one of these before it leaves the service layer; raw transport errors
// never reach handlers.
var (
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict   = New("CONFLICT", http.StatusConflict, "conflict")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrObjectWrite: phase 1 of an upload failed. Nothing was persisted; the
	// operation is retriable from scratch.
	ErrObjectWrite = New("OBJECT_WRITE_FAILED", http.StatusBadGateway, "failed to store report file")
	// ErrRecordWrite: the object was stored but the metadata write failed,
	// leaving an orphan object. Surfaced as a partial failure, not rolled back.
	ErrRecordWrite = New("RECORD_WRITE_PARTIAL", http.StatusBadGateway, "report file stored but metadata write failed")
	// ErrObjectDelete: phase 1 of a delete failed. The record and its object
	// are still intact and consistent.
	ErrObjectDelete = New("OBJECT_DELETE_FAILED", http.StatusBadGateway, "failed to delete report file")
	// ErrRecordDelete: the object is gone but the record deletion failed,
	// leaving a record that points at a missing object.
	ErrRecordDelete = New("RECORD_DELETE_DANGLING", http.StatusBadGateway, "report file deleted but record removal failed")
	// ErrCatalogLoad: the full scan of the record store failed.
	ErrCatalogLoad = New("CATALOG_LOAD_FAILED", http.StatusBadGateway, "failed to load report catalog")

	// ErrCacheMiss signals a cache lookup found no entry. Internal sentinel,
	// never returned to callers.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
