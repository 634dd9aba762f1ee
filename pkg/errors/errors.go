package errors

import (
	"fmt"
	"net/http"
)

// AppError is an error with an HTTP status attached. The error
// middleware renders it, so handlers only push errors onto the
// gin context instead of writing responses inline.
type AppError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode satisfies the interface the error middleware checks for.
func (e *AppError) StatusCode() int {
	return e.Status
}

func BadRequest(message string, err error) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: message, Err: err}
}

func NotFound(resource string) *AppError {
	return &AppError{Status: http.StatusNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func Conflict(message string) *AppError {
	return &AppError{Status: http.StatusConflict, Message: message}
}

func Internal(err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Message: "internal server error", Err: err}
}
