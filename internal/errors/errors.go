// Package errors defines the domain error taxonomy and its mapping to the
// wire-level error response.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// Domain prefixes. The prefix of an error code (text before the first '-')
// identifies the domain that owns the error.
const (
	PrefixAuthor  = "1"
	PrefixBook    = "2"
	PrefixRequest = "3"
)

var prefixNames = map[string]string{
	PrefixAuthor:  "AUTHOR",
	PrefixBook:    "BOOK",
	PrefixRequest: "REQUEST",
}

const unknownPrefixName = "UNKNOWN"

// Default response values for anything that is not an AppError.
const (
	DefaultCode    = "000"
	DefaultMessage = "Uncontrolled unexpected error"
	DefaultName    = "UnknownError"
)

// Response is the JSON body returned to callers on failure.
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Name    string `json:"name"`
}

// AppError is an expected, classified failure. Its message is safe to show to
// callers; the cause is kept for diagnostics only.
type AppError struct {
	Code       string
	Message    string
	Name       string
	HTTPStatus int
	cause      error
}

// Option customises an AppError at construction.
type Option func(*options)

type options struct {
	cause      error
	httpStatus int
	kind       string
}

// WithCause records the underlying failure.
func WithCause(err error) Option {
	return func(o *options) { o.cause = err }
}

// WithHTTPStatus sets the transport status. Defaults to 500.
func WithHTTPStatus(status int) Option {
	return func(o *options) { o.httpStatus = status }
}

// WithKind appends a variant label to the derived name, e.g.
// "BOOK_ERROR.NotFoundById".
func WithKind(kind string) Option {
	return func(o *options) { o.kind = kind }
}

// New creates an AppError for code. The display name is derived from the
// code prefix.
func New(code, message string, opts ...Option) *AppError {
	o := options{httpStatus: http.StatusInternalServerError}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpStatus == 0 {
		o.httpStatus = http.StatusInternalServerError
	}

	name := PrefixName(code) + "_ERROR"
	if o.kind != "" {
		name += "." + o.kind
	}

	return &AppError{
		Code:       code,
		Message:    message,
		Name:       name,
		HTTPStatus: o.httpStatus,
		cause:      o.cause,
	}
}

// PrefixName returns the domain label owning code, or "UNKNOWN" when the
// prefix is not registered.
func PrefixName(code string) string {
	prefix, _, _ := strings.Cut(code, "-")
	if name, ok := prefixNames[prefix]; ok {
		return name
	}
	return unknownPrefixName
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Name, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Name, e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Response returns the caller-facing body and status. The cause is never
// included.
func (e *AppError) Response() (Response, int) {
	return Response{Code: e.Code, Message: e.Message, Name: e.Name}, e.HTTPStatus
}

// DefaultResponse is the body used for every unclassified failure.
func DefaultResponse() (Response, int) {
	return Response{Code: DefaultCode, Message: DefaultMessage, Name: DefaultName}, http.StatusInternalServerError
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err != nil && stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Classify maps any error to a response. known reports whether err carried an
// AppError; when it did not, the default response is returned.
func Classify(err error) (resp Response, status int, known bool) {
	if appErr, ok := AsAppError(err); ok {
		resp, status = appErr.Response()
		return resp, status, true
	}
	resp, status = DefaultResponse()
	return resp, status, false
}

// FromPanic converts a recovered panic value into an error. AppErrors passed
// to panic keep their identity; any other value becomes unclassified.
func FromPanic(v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case error:
		return val
	default:
		return fmt.Errorf("panic: %v", val)
	}
}

// Validation reports an invalid request payload or query.
func Validation(message string, cause error) *AppError {
	return New(PrefixRequest+"-001", message,
		WithHTTPStatus(http.StatusBadRequest),
		WithKind("Validation"),
		WithCause(cause),
	)
}

// RateLimited reports a caller that exceeded the configured request rate.
func RateLimited() *AppError {
	return New(PrefixRequest+"-002", "Too many requests",
		WithHTTPStatus(http.StatusTooManyRequests),
		WithKind("RateLimited"),
	)
}

// RouteNotFound reports a request that matched no registered route.
func RouteNotFound(method, path string) *AppError {
	return New(PrefixRequest+"-003", fmt.Sprintf("Route %s %s not found", method, path),
		WithHTTPStatus(http.StatusNotFound),
		WithKind("RouteNotFound"),
	)
}
