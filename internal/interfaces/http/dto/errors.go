package dto

import (
	"net/http"

	"github.com/consultpay/backend/internal/domain/shared"
)

// General error codes used when the failure has no domain classification.
const (
	ErrCodeInternal    = "INTERNAL_ERROR"
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeInvalidJSON = "INVALID_JSON"
	ErrCodeValidation  = "VALIDATION_ERROR"
)

// kindHTTPStatus maps domain error kinds to HTTP status codes.
//
// Gateway rejections surface as 402: the request was well-formed but the
// payment instrument was declined. Circuit-open and gateway-transient
// failures are 503 so clients back off and retry.
var kindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:        http.StatusBadRequest,
	shared.KindBusinessRule:      http.StatusUnprocessableEntity,
	shared.KindDuplicateRequest:  http.StatusConflict,
	shared.KindGatewayTransient:  http.StatusServiceUnavailable,
	shared.KindGatewayRejection:  http.StatusPaymentRequired,
	shared.KindCircuitOpen:       http.StatusServiceUnavailable,
	shared.KindConsistency:       http.StatusInternalServerError,
	shared.KindStuckState:        http.StatusInternalServerError,
	shared.KindNotFound:          http.StatusNotFound,
	shared.KindInvalidState:      http.StatusConflict,
	shared.KindRateLimitExceeded: http.StatusTooManyRequests,
}

// HTTPStatusForKind returns the HTTP status code for a domain error kind,
// defaulting to 500 for unknown kinds.
func HTTPStatusForKind(kind shared.ErrorKind) int {
	if status, ok := kindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
