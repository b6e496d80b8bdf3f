package errors

import (
	stderrors "errors"
	"fmt"
)

const (
	ErrNotFound     = "NOT FOUND"
	ErrInvalidInput = "INVALID INPUT"
	ErrAuth         = "UNAUTHORIZED"
	ErrAccessDenied = "ACCESS DENIED"
	ErrConflict     = "CONFLICT"
	ErrInternal     = "INTERNAL"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorResponse) Error() string {
	return fmt.Sprintf("code: %s, message: %s", e.Code, e.Message)
}

func New(code string, message string) ErrorResponse {
	return ErrorResponse{Code: code, Message: message}
}

func Invalid(format string, args ...any) ErrorResponse {
	return ErrorResponse{Code: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NotFound(message string) ErrorResponse {
	return ErrorResponse{Code: ErrNotFound, Message: message}
}

func Internal(message string) ErrorResponse {
	return ErrorResponse{Code: ErrInternal, Message: message}
}

// CodeOf returns the code of the first ErrorResponse in err's chain, or
// ErrInternal when there is none.
func CodeOf(err error) string {
	var appErr ErrorResponse
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
