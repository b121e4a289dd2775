package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeNotFound       ErrCode = "NOT_FOUND"
	ErrCodeBadRequest     ErrCode = "BAD_REQUEST"
	ErrCodeInternal       ErrCode = "INTERNAL_ERROR"
	ErrCodeIO             ErrCode = "IO_ERROR"
	ErrCodeParse          ErrCode = "PARSE_ERROR"
	ErrCodeTransient      ErrCode = "TRANSIENT"
	ErrCodePermanent      ErrCode = "PERMANENT"
	ErrCodeRateLimited    ErrCode = "RATE_LIMITED"
	ErrCodeQuotaExhausted ErrCode = "QUOTA_EXHAUSTED"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// NewIOError reports unreadable or unwritable persisted state.
func NewIOError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeIO,
		Message: message,
		Err:     err,
	}
}

// NewParseError reports malformed JSON state or a misshapen generation response.
func NewParseError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeParse,
		Message: message,
		Err:     err,
	}
}

// NewTransientError creates a retryable error (5xx, timeout, connection failure)
func NewTransientError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeTransient,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a non-retryable API rejection
func NewPermanentError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodePermanent,
		Message: message,
		Err:     err,
	}
}

// NewRateLimitedError creates a new rate limited error
func NewRateLimitedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeRateLimited,
		Message: message,
	}
}

// NewQuotaExhaustedError reports that a hard request ceiling has been reached
func NewQuotaExhaustedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeQuotaExhausted,
		Message: message,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) ErrCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsRateLimited checks if the error is a rate limited error
func IsRateLimited(err error) bool {
	return CodeOf(err) == ErrCodeRateLimited
}

// IsTransient reports whether err may succeed on retry. Rate limiting is transient.
func IsTransient(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeTransient || code == ErrCodeRateLimited
}

// IsPermanent checks if the error is a non-retryable rejection
func IsPermanent(err error) bool {
	return CodeOf(err) == ErrCodePermanent
}

// IsParse checks if the error is a parse error
func IsParse(err error) bool {
	return CodeOf(err) == ErrCodeParse
}

// IsIO checks if the error is an I/O error
func IsIO(err error) bool {
	return CodeOf(err) == ErrCodeIO
}

// IsQuotaExhausted checks if the error is a quota exhaustion
func IsQuotaExhausted(err error) bool {
	return CodeOf(err) == ErrCodeQuotaExhausted
}
