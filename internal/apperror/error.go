package apperror

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// AppError is an error carrying a stable Code. StatusCode is the HTTP
// status the code maps to, or the upstream status for UPSTREAM_ERROR.
type AppError struct {
	Code       Code
	Message    string
	StatusCode int
	Context    string
	cause      error
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Context != "" {
		b.WriteString(" [" + e.Context + "]")
	}
	if e.cause != nil {
		b.WriteString(": " + e.cause.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.cause }

// Is matches any *AppError with the same code, so sentinels built with
// New work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// LogValue renders the error as a group when passed to slog.
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("message", e.Message),
		slog.Int("status", e.StatusCode),
	}
	if e.Context != "" {
		attrs = append(attrs, slog.String("context", e.Context))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Option customizes an AppError.
type Option func(*AppError)

func WithContext(context string) Option {
	return func(e *AppError) { e.Context = context }
}

func WithStatusCode(status int) Option {
	return func(e *AppError) { e.StatusCode = status }
}

func WithCause(cause error) Option {
	return func(e *AppError) { e.cause = cause }
}

// New builds an error with the code's default message and status.
func New(code Code, opts ...Option) *AppError {
	e := &AppError{Code: code, Message: messages[code], StatusCode: statusFor(code)}
	for _, opt := range opts {
		opt(e)
	}
	if e.Message == "" {
		e.Message = string(code)
	}
	return e
}

func NotFound(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusNotFound))
}

func Validation(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusBadRequest))
}

func Internal(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithStatusCode(http.StatusInternalServerError))
}

// External wraps a failure talking to a dependency we do not own.
func External(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithStatusCode(http.StatusServiceUnavailable))
}

// Upstream is an UPSTREAM_ERROR keeping the remote status in StatusCode
// and the remote body in Context.
func Upstream(status int, body string) *AppError {
	return New(CodeUpstreamError, WithStatusCode(status), WithContext(body))
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode returns the code of the first AppError in err's chain, or
// UNKNOWN_ERROR.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

func statusFor(code Code) int {
	switch code {
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeStaleQuote:
		return http.StatusConflict
	case CodeUpstreamError:
		return http.StatusBadGateway
	case CodeNoQuoteAvailable, CodeNoPoolFound, CodeNoRoute:
		return http.StatusUnprocessableEntity
	case CodeIdenticalTokens:
		return http.StatusBadRequest
	}

	s := string(code)
	switch {
	case strings.Contains(s, "NOT_FOUND"):
		return http.StatusNotFound
	case strings.Contains(s, "INVALID"), strings.Contains(s, "UNSUPPORTED"):
		return http.StatusBadRequest
	case strings.Contains(s, "CONNECTION"), strings.Contains(s, "TIMEOUT"):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
