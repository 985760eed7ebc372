package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory defines the type of error for proper handling.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryRateLimit  ErrorCategory = "rate_limit"
	CategoryInternal   ErrorCategory = "internal"
)

// AppError wraps an errbuilder error with category and HTTP context.
//
// Business-data problems (missing or malformed metrics) never become an
// AppError: the engine coerces those to nulls. AppErrors mark contract
// violations and infrastructure failures only.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	code := "INTERNAL_ERROR"
	switch e.ErrBuilder.ErrCode() {
	case errbuilder.CodeInvalidArgument:
		code = "VALIDATION_ERROR"
	case errbuilder.CodeNotFound:
		code = "NOT_FOUND"
	case errbuilder.CodeResourceExhausted:
		code = "RATE_LIMIT_EXCEEDED"
	}
	return fmt.Sprintf("[%s] %s", code, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// WithRequestID attaches the request ID for log correlation.
func (e *AppError) WithRequestID(id string) *AppError {
	e.RequestID = id
	return e
}

func newAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, status int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: status,
		Timestamp:  time.Now(),
	}
}

// NewValidationError marks a structurally wrong request: the caller violated
// the contract, not the data quality.
func NewValidationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return newAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewNotFoundError marks a missing repo or series.
func NewNotFoundError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(message)
	return newAppError(builder, CategoryNotFound, http.StatusNotFound)
}

// NewRateLimitError marks a rejected request with its retry hint.
func NewRateLimitError(message string, retryAfter time.Duration) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg(fmt.Sprintf("%s (retry after %s)", message, retryAfter))
	return newAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewInternalError marks an unexpected failure (storage, encoding).
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return newAppError(builder, CategoryInternal, http.StatusInternalServerError)
}

// RespondWithError writes a JSON error body and aborts the request.
func RespondWithError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewInternalError("internal server error", err)
	}
	if id := c.GetString("request_id"); id != "" && appErr.RequestID == "" {
		appErr.RequestID = id
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
		"error":      appErr.ErrBuilder.Msg,
		"category":   appErr.Category,
		"request_id": appErr.RequestID,
	})
}
