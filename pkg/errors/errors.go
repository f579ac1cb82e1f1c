package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error identifier. Clients branch on the
// code, never on the message text.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeStateConflict      Code = "STATE_CONFLICT"
	CodeIdempotency        Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit          Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
	CodeInsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientPoints Code = "INSUFFICIENT_POINTS"
	CodeNoActiveHold       Code = "NO_ACTIVE_HOLD"
	CodeAlreadySettled     Code = "CONTRACT_ALREADY_SETTLED"
	CodeUnverifiedReceipt  Code = "UNVERIFIED_RECEIPT"
)

// Metadata fixes how a code surfaces over HTTP. PublicMessage is what clients
// see regardless of the internal message; DetailsAllowed gates whether
// structured details leak past the boundary.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retryable      = true
	detailsAllowed = true
)

func meta(status int, canRetry bool, publicMsg string, withDetails bool) Metadata {
	return Metadata{
		HTTPStatus:     status,
		Retryable:      canRetry,
		PublicMessage:  publicMsg,
		DetailsAllowed: withDetails,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:         meta(http.StatusBadRequest, !retryable, "validation failed", detailsAllowed),
	CodeUnauthorized:       meta(http.StatusUnauthorized, !retryable, "authentication required", !detailsAllowed),
	CodeForbidden:          meta(http.StatusForbidden, !retryable, "access denied", !detailsAllowed),
	CodeNotFound:           meta(http.StatusNotFound, !retryable, "resource not found", !detailsAllowed),
	CodeConflict:           meta(http.StatusConflict, !retryable, "conflict detected", !detailsAllowed),
	CodeStateConflict:      meta(http.StatusUnprocessableEntity, !retryable, "state transition disallowed", detailsAllowed),
	CodeIdempotency:        meta(http.StatusConflict, !retryable, "idempotency key reused", detailsAllowed),
	CodeRateLimit:          meta(http.StatusTooManyRequests, !retryable, "rate limit exceeded", !detailsAllowed),
	CodeInternal:           meta(http.StatusInternalServerError, retryable, "internal server error", !detailsAllowed),
	CodeDependency:         meta(http.StatusServiceUnavailable, retryable, "dependency unavailable", detailsAllowed),
	CodeInsufficientFunds:  meta(http.StatusUnprocessableEntity, !retryable, "insufficient balance", detailsAllowed),
	CodeInsufficientPoints: meta(http.StatusUnprocessableEntity, !retryable, "insufficient points", detailsAllowed),
	CodeNoActiveHold:       meta(http.StatusInternalServerError, !retryable, "no active escrow hold", !detailsAllowed),
	CodeAlreadySettled:     meta(http.StatusConflict, !retryable, "contract already settled", detailsAllowed),
	CodeUnverifiedReceipt:  meta(http.StatusUnprocessableEntity, !retryable, "receipt could not be verified", detailsAllowed),
}

// MetadataFor never fails. Unknown codes surface as internal errors.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error couples a code with an internal message and optional cause. The
// message is for logs; the HTTP layer renders the code's PublicMessage.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts the typed error from anywhere in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether err carries the given typed code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
