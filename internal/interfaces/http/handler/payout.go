package handler

import (
	apppayment "github.com/consultpay/backend/internal/application/payment"
	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PayoutHandler handles deferred payout API endpoints
type PayoutHandler struct {
	BaseHandler
	transferProcessor *apppayment.TransferProcessor
	settlementService *apppayment.SettlementService
}

// NewPayoutHandler creates a new PayoutHandler
func NewPayoutHandler(
	transferProcessor *apppayment.TransferProcessor,
	settlementService *apppayment.SettlementService,
) *PayoutHandler {
	return &PayoutHandler{
		transferProcessor: transferProcessor,
		settlementService: settlementService,
	}
}

// payoutDecisionResponse reports where a payee's funds currently route.
type payoutDecisionResponse struct {
	PayeeRef string `json:"payee_ref"`
	Mode     string `json:"mode"`
	Account  string `json:"account,omitempty"`
}

// ProcessPending drains a payee's escrowed transfers, typically invoked
// when the identity service reports the payee as newly verified
// POST /payouts/payees/:payee_id/process
func (h *PayoutHandler) ProcessPending(c *gin.Context) {
	payeeRef, err := uuid.Parse(c.Param("payee_id"))
	if err != nil {
		h.BadRequest(c, "payee_id must be a valid UUID")
		return
	}

	stats, err := h.transferProcessor.ProcessPendingTransfersForPayee(c.Request.Context(), payeeRef)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

// RetryFailed re-queues a payee's retryable failed transfers and
// reprocesses them
// POST /payouts/payees/:payee_id/retry
func (h *PayoutHandler) RetryFailed(c *gin.Context) {
	payeeRef, err := uuid.Parse(c.Param("payee_id"))
	if err != nil {
		h.BadRequest(c, "payee_id must be a valid UUID")
		return
	}

	stats, err := h.transferProcessor.RetryFailedTransfersForPayee(c.Request.Context(), payeeRef)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

// Decision reports the payout routing decision for a payee
// GET /payouts/payees/:payee_id/decision
func (h *PayoutHandler) Decision(c *gin.Context) {
	payeeRef, err := uuid.Parse(c.Param("payee_id"))
	if err != nil {
		h.BadRequest(c, "payee_id must be a valid UUID")
		return
	}

	route, err := h.settlementService.PayoutDecision(c.Request.Context(), payeeRef)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := payoutDecisionResponse{
		PayeeRef: payeeRef.String(),
		Mode:     string(route.Kind),
	}
	if route.Kind == payment.PayoutExternalAccount {
		account, err := h.settlementService.ExternalAccountID(c.Request.Context(), route)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		resp.Account = account
	}

	h.Success(c, resp)
}

// RegisterRoutes registers payout routes
func (h *PayoutHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payouts := rg.Group("/payouts")
	{
		payouts.POST("/payees/:payee_id/process", h.ProcessPending)
		payouts.POST("/payees/:payee_id/retry", h.RetryFailed)
		payouts.GET("/payees/:payee_id/decision", h.Decision)
	}
}
