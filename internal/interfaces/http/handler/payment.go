package handler

import (
	apppayment "github.com/consultpay/backend/internal/application/payment"
	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles payment lifecycle API endpoints
type PaymentHandler struct {
	BaseHandler
	authorizeService  *apppayment.AuthorizeService
	settlementService *apppayment.SettlementService
	paymentRepo       payment.PaymentRecordRepository
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	authorizeService *apppayment.AuthorizeService,
	settlementService *apppayment.SettlementService,
	paymentRepo payment.PaymentRecordRepository,
) *PaymentHandler {
	return &PaymentHandler{
		authorizeService:  authorizeService,
		settlementService: settlementService,
		paymentRepo:       paymentRepo,
	}
}

// AuthorizePaymentRequest is the request body for authorizing a payment.
// All amounts are minor units of the given currency.
type AuthorizePaymentRequest struct {
	ClientRef    string `json:"client_ref" binding:"required,uuid"`
	PayeeRef     string `json:"payee_ref" binding:"required,uuid"`
	SessionRef   string `json:"session_ref" binding:"required,uuid"`
	ServiceKind  string `json:"service_kind" binding:"required,servicekind"`
	Amount       int64  `json:"amount" binding:"required,gt=0"`
	Commission   int64  `json:"commission" binding:"gte=0"`
	PayeeShare   int64  `json:"payee_share" binding:"gte=0"`
	Currency     string `json:"currency" binding:"required,len=3"`
	DiscountCode string `json:"discount_code"`
	Description  string `json:"description"`
}

// CapturePaymentRequest is the request body for capturing a payment.
type CapturePaymentRequest struct {
	SessionRef string `json:"session_ref" binding:"required,uuid"`
}

// RefundPaymentRequest is the request body for refunding a payment.
// Amount of 0 refunds the full captured amount.
type RefundPaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
	Amount int64  `json:"amount" binding:"gte=0"`
}

// CancelPaymentRequest is the request body for voiding an authorization.
type CancelPaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Authorize places an authorization hold for a consultation payment
// POST /payments/authorize
func (h *PaymentHandler) Authorize(c *gin.Context) {
	var req AuthorizePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	clientRef, _ := uuid.Parse(req.ClientRef)
	payeeRef, _ := uuid.Parse(req.PayeeRef)
	sessionRef, _ := uuid.Parse(req.SessionRef)

	resp, err := h.authorizeService.Authorize(c.Request.Context(), apppayment.AuthorizePaymentRequest{
		ClientRef:    clientRef,
		PayeeRef:     payeeRef,
		SessionRef:   sessionRef,
		ServiceKind:  payment.ServiceKind(req.ServiceKind),
		Amount:       req.Amount,
		Commission:   req.Commission,
		PayeeShare:   req.PayeeShare,
		Currency:     req.Currency,
		DiscountCode: req.DiscountCode,
		Description:  req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// Get returns a payment record by ID
// GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	record, err := h.paymentRepo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, apppayment.ToPaymentResponse(record))
}

// Capture captures an authorized payment
// POST /payments/:id/capture
func (h *PaymentHandler) Capture(c *gin.Context) {
	var req CapturePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	sessionRef, _ := uuid.Parse(req.SessionRef)

	resp, err := h.settlementService.Capture(c.Request.Context(), apppayment.CapturePaymentRequest{
		PaymentRef: c.Param("id"),
		SessionRef: sessionRef,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Refund refunds a captured payment, fully or partially
// POST /payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	resp, err := h.settlementService.Refund(c.Request.Context(), apppayment.RefundPaymentRequest{
		PaymentRef: c.Param("id"),
		Reason:     req.Reason,
		Amount:     req.Amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Cancel voids an uncaptured authorization
// POST /payments/:id/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	var req CancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	resp, err := h.settlementService.Cancel(c.Request.Context(), apppayment.CancelPaymentRequest{
		PaymentRef: c.Param("id"),
		Reason:     req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// RegisterRoutes registers payment routes
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("/authorize", h.Authorize)
		payments.GET("/:id", h.Get)
		payments.POST("/:id/capture", h.Capture)
		payments.POST("/:id/refund", h.Refund)
		payments.POST("/:id/cancel", h.Cancel)
	}
}
