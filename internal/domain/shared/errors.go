package shared

import "errors"

// ErrorKind classifies an error for retry and surfacing policy.
// Validation and business-rule failures are never retried; gateway
// transient failures are retried per caller policy and count toward the
// circuit breaker; a circuit-open failure is surfaced as "temporarily
// unavailable" and never counted as a new failure.
type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindBusinessRule      ErrorKind = "BUSINESS_RULE_VIOLATION"
	KindDuplicateRequest  ErrorKind = "DUPLICATE_REQUEST"
	KindGatewayTransient  ErrorKind = "GATEWAY_TRANSIENT_ERROR"
	KindGatewayRejection  ErrorKind = "GATEWAY_REJECTION"
	KindCircuitOpen       ErrorKind = "CIRCUIT_OPEN"
	KindConsistency       ErrorKind = "CONSISTENCY_ERROR"
	KindStuckState        ErrorKind = "STUCK_STATE_ERROR"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInvalidState      ErrorKind = "INVALID_STATE"
	KindRateLimitExceeded ErrorKind = "RATE_LIMIT_EXCEEDED"
)

// DomainError represents a classified domain-level error.
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	cause   error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *DomainError) Unwrap() error {
	return e.cause
}

// NewDomainError creates a new domain error.
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

// WrapDomainError creates a new domain error wrapping a cause.
func WrapDomainError(kind ErrorKind, code, message string, cause error) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message, cause: cause}
}

// KindOf returns the classification of err, or an empty kind when err is
// not a DomainError.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether err may be retried by caller policy.
// Only gateway transient failures qualify.
func IsRetryable(err error) bool {
	return IsKind(err, KindGatewayTransient)
}

// Common domain errors
var (
	ErrNotFound         = NewDomainError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrInvalidInput     = NewDomainError(KindValidation, "INVALID_INPUT", "Invalid input provided")
	ErrInvalidState     = NewDomainError(KindInvalidState, "INVALID_STATE", "Operation not allowed in current state")
	ErrDuplicateRequest = NewDomainError(KindDuplicateRequest, "DUPLICATE_REQUEST", "An identical request is already processing")
	ErrCircuitOpen      = NewDomainError(KindCircuitOpen, "CIRCUIT_OPEN", "Payment gateway temporarily unavailable")
	ErrRateLimited      = NewDomainError(KindRateLimitExceeded, "RATE_LIMIT_EXCEEDED", "Too many payment attempts, slow down")
)
