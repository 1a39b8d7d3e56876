package payment

import (
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/google/uuid"
)

// AuthorizePaymentRequest is the application-level request to authorize a
// consultation payment. Amounts are minor units in the request currency.
type AuthorizePaymentRequest struct {
	ClientRef    uuid.UUID
	PayeeRef     uuid.UUID
	SessionRef   uuid.UUID
	ServiceKind  payment.ServiceKind
	Amount       int64
	Commission   int64
	PayeeShare   int64
	Currency     string
	DiscountCode string
	Description  string
}

// PaymentResponse is the application-level view of a payment record.
type PaymentResponse struct {
	ID                  string                `json:"id"`
	ClientRef           uuid.UUID             `json:"client_ref"`
	PayeeRef            uuid.UUID             `json:"payee_ref"`
	SessionRef          uuid.UUID             `json:"session_ref"`
	ServiceKind         payment.ServiceKind   `json:"service_kind"`
	Amount              int64                 `json:"amount"`
	Commission          int64                 `json:"commission"`
	PayeeShare          int64                 `json:"payee_share"`
	Currency            string                `json:"currency"`
	RoutingMode         payment.RoutingMode   `json:"routing_mode"`
	Status              payment.Status        `json:"status"`
	GatewayFamily       payment.GatewayFamily `json:"gateway_family"`
	PayeeVerifiedAtAuth bool                  `json:"payee_verified_at_auth"`
	TransferID          string                `json:"transfer_id,omitempty"`
	RefundID            string                `json:"refund_id,omitempty"`
	CapturedAmount      int64                 `json:"captured_amount,omitempty"`
	RefundedAmount      int64                 `json:"refunded_amount,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// ToPaymentResponse converts a domain PaymentRecord to its response
func ToPaymentResponse(p *payment.PaymentRecord) PaymentResponse {
	return PaymentResponse{
		ID:                  p.ID,
		ClientRef:           p.ClientRef,
		PayeeRef:            p.PayeeRef,
		SessionRef:          p.SessionRef,
		ServiceKind:         p.ServiceKind,
		Amount:              p.Amount,
		Commission:          p.Commission,
		PayeeShare:          p.PayeeShare,
		Currency:            p.Currency,
		RoutingMode:         p.RoutingMode,
		Status:              p.Status,
		GatewayFamily:       p.GatewayFamily,
		PayeeVerifiedAtAuth: p.PayeeVerifiedAtAuth,
		TransferID:          p.TransferID,
		RefundID:            p.RefundID,
		CapturedAmount:      p.CapturedAmount,
		RefundedAmount:      p.RefundedAmount,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

// CapturePaymentRequest asks the settlement engine to capture a payment.
type CapturePaymentRequest struct {
	PaymentRef string
	SessionRef uuid.UUID
}

// RefundPaymentRequest asks the settlement engine to refund a payment.
// Amount of 0 means a full refund.
type RefundPaymentRequest struct {
	PaymentRef string
	Reason     string
	Amount     int64
}

// CancelPaymentRequest asks the settlement engine to void an uncaptured
// authorization.
type CancelPaymentRequest struct {
	PaymentRef string
	Reason     string
}

// TransferProcessingStats summarizes one transfer-processing pass.
type TransferProcessingStats struct {
	Reclaimed int `json:"reclaimed"`
	Settled   int `json:"settled"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ReconciliationStats summarizes one reconciliation run.
type ReconciliationStats struct {
	AutoCaptured     int `json:"auto_captured"`
	AutoCancelled    int `json:"auto_cancelled"`
	OrphansCancelled int `json:"orphans_cancelled"`
	Errors           int `json:"errors"`
}

// Corrected reports whether the run took any corrective action.
func (s ReconciliationStats) Corrected() bool {
	return s.AutoCaptured > 0 || s.AutoCancelled > 0 || s.OrphansCancelled > 0
}
