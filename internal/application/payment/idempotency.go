package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Idempotency keys are derived deterministically from request identity so
// a retried call resolves to the same gateway side effect. Keys never
// include timestamps.

// AuthorizeIdempotencyKey derives the key for an authorization from the
// request tuple plus the correlated session.
func AuthorizeIdempotencyKey(clientRef, payeeRef, sessionRef uuid.UUID, amount int64) string {
	return derivedKey("auth", fmt.Sprintf("%s:%s:%s:%d", clientRef, payeeRef, sessionRef, amount))
}

// CaptureIdempotencyKey derives the key for a capture from the payment ID
// alone, so a retried capture is a no-op.
func CaptureIdempotencyKey(paymentRef string) string {
	return derivedKey("capture", paymentRef)
}

// CancelIdempotencyKey derives the key for a void from the payment ID alone.
func CancelIdempotencyKey(paymentRef string) string {
	return derivedKey("cancel", paymentRef)
}

// RefundIdempotencyKey derives the key for a refund from the payment ID
// and the refunded amount, so repeat calls for the same amount are no-ops.
func RefundIdempotencyKey(paymentRef string, amount int64) string {
	return derivedKey("refund", fmt.Sprintf("%s:%d", paymentRef, amount))
}

// TransferIdempotencyKey derives the key for a payout from the pending
// transfer ID.
func TransferIdempotencyKey(transferID uuid.UUID) string {
	return derivedKey("transfer", transferID.String())
}

func derivedKey(op, identity string) string {
	sum := sha256.Sum256([]byte(op + ":" + identity))
	return op + "_" + hex.EncodeToString(sum[:16])
}
