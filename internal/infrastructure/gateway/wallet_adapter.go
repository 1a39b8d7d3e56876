package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"go.uber.org/zap"
)

const (
	walletAuthorizePath     = "/v1/authorizations"
	walletAuthorizationPath = "/v1/authorizations/%s"
	walletCapturePath       = "/v1/authorizations/%s/capture"
	walletVoidPath          = "/v1/authorizations/%s/void"
	walletRefundPath        = "/v1/refunds"
	walletTransferPath      = "/v1/transfers"
	walletIdempotencyHeader = "Idempotency-Key"
	walletRequestTimeout    = 30 * time.Second
)

// WalletGateway implements the authorize/capture/void wallet rail over a
// signed JSON HTTP API. The wallet provider has no split support, so
// wallet payments always route through platform escrow.
type WalletGateway struct {
	config     *WalletConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWalletGateway creates a new wallet-rail adapter
func NewWalletGateway(config *WalletConfig, logger *zap.Logger) (*WalletGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &WalletGateway{
		config:     config,
		httpClient: &http.Client{Timeout: walletRequestTimeout},
		logger:     logger,
	}, nil
}

// Family returns the wallet rail family
func (g *WalletGateway) Family() payment.GatewayFamily {
	return payment.GatewayFamilyWallet
}

type walletAuthorization struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type walletCaptureResponse struct {
	CapturedAmount int64 `json:"captured_amount"`
}

type walletRefundResponse struct {
	ID             string `json:"id"`
	RefundedAmount int64  `json:"refunded_amount"`
}

type walletTransferResponse struct {
	ID string `json:"id"`
}

type walletError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Authorize holds funds on the client's wallet. A repeated idempotency
// key answers 409 with the original authorization, surfaced via
// ExistingAuthorization.
func (g *WalletGateway) Authorize(ctx context.Context, req payment.AuthorizeRequest) (*payment.AuthorizeResult, error) {
	if req.Split != nil {
		return nil, payment.NewGatewayRejection("authorize", "split_unsupported", nil)
	}

	body := map[string]interface{}{
		"merchant_id": g.config.MerchantID,
		"amount":      req.Amount,
		"currency":    req.Currency,
		"client_ref":  req.ClientRef,
		"description": req.Description,
		"capture":     false,
		"metadata":    req.Metadata,
	}

	respBody, status, err := g.doRequest(ctx, http.MethodPost, walletAuthorizePath, req.IdempotencyKey, body)
	if err != nil {
		return nil, err
	}

	var auth walletAuthorization
	if err := json.Unmarshal(respBody, &auth); err != nil {
		return nil, payment.NewGatewayTransientError("authorize",
			fmt.Errorf("wallet: malformed authorize response: %w", err))
	}

	return &payment.AuthorizeResult{
		AuthorizationID:       auth.ID,
		Status:                mapWalletStatus(auth.Status),
		ExistingAuthorization: status == http.StatusConflict,
	}, nil
}

// Capture collects held wallet funds
func (g *WalletGateway) Capture(ctx context.Context, authorizationID, idempotencyKey string) (*payment.CaptureResult, error) {
	path := fmt.Sprintf(walletCapturePath, authorizationID)
	respBody, _, err := g.doRequest(ctx, http.MethodPost, path, idempotencyKey, map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	var captured walletCaptureResponse
	if err := json.Unmarshal(respBody, &captured); err != nil {
		return nil, payment.NewGatewayTransientError("capture",
			fmt.Errorf("wallet: malformed capture response: %w", err))
	}
	// Wallet captures never auto-split; there is no transfer ID.
	return &payment.CaptureResult{CapturedAmount: captured.CapturedAmount}, nil
}

// Cancel voids an uncaptured wallet authorization
func (g *WalletGateway) Cancel(ctx context.Context, authorizationID, idempotencyKey string) error {
	path := fmt.Sprintf(walletVoidPath, authorizationID)
	_, _, err := g.doRequest(ctx, http.MethodPost, path, idempotencyKey, map[string]interface{}{})
	return err
}

// Refund reverses a captured wallet payment
func (g *WalletGateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	body := map[string]interface{}{
		"authorization_id": req.AuthorizationID,
		"reason":           req.Reason,
	}
	if req.Amount > 0 {
		body["amount"] = req.Amount
	}

	respBody, _, err := g.doRequest(ctx, http.MethodPost, walletRefundPath, req.IdempotencyKey, body)
	if err != nil {
		return nil, err
	}

	var refunded walletRefundResponse
	if err := json.Unmarshal(respBody, &refunded); err != nil {
		return nil, payment.NewGatewayTransientError("refund",
			fmt.Errorf("wallet: malformed refund response: %w", err))
	}
	return &payment.RefundResult{
		RefundID:       refunded.ID,
		RefundedAmount: refunded.RefundedAmount,
	}, nil
}

// Transfer pays out platform-held wallet funds
func (g *WalletGateway) Transfer(ctx context.Context, req payment.TransferRequest) (*payment.TransferResult, error) {
	body := map[string]interface{}{
		"destination": req.DestinationAccountID,
		"amount":      req.Amount,
		"currency":    req.Currency,
		"reference":   req.PaymentRef,
	}

	respBody, _, err := g.doRequest(ctx, http.MethodPost, walletTransferPath, req.IdempotencyKey, body)
	if err != nil {
		return nil, err
	}

	var tr walletTransferResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, payment.NewGatewayTransientError("transfer",
			fmt.Errorf("wallet: malformed transfer response: %w", err))
	}
	return &payment.TransferResult{TransferID: tr.ID}, nil
}

// RetrieveStatus returns the authoritative wallet authorization status
func (g *WalletGateway) RetrieveStatus(ctx context.Context, authorizationID string) (payment.AuthorizationStatus, error) {
	path := fmt.Sprintf(walletAuthorizationPath, authorizationID)
	respBody, _, err := g.doRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return "", err
	}

	var auth walletAuthorization
	if err := json.Unmarshal(respBody, &auth); err != nil {
		return "", payment.NewGatewayTransientError("retrieve_status",
			fmt.Errorf("wallet: malformed authorization response: %w", err))
	}
	return mapWalletStatus(auth.Status), nil
}

// doRequest signs and sends one API call. 5xx and transport failures are
// transient; other non-2xx responses are terminal rejections. A 409 on
// authorize is returned to the caller with the replayed body.
func (g *WalletGateway) doRequest(ctx context.Context, method, path, idempotencyKey string, body interface{}) ([]byte, int, error) {
	op := walletOp(method, path)

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("wallet: failed to marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, g.config.Endpoint+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("wallet: failed to build request: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := newNonce()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Merchant-Id", g.config.MerchantID)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Nonce", nonce)
	req.Header.Set("X-Signature", g.sign(timestamp, nonce, bodyBytes))
	if idempotencyKey != "" {
		req.Header.Set(walletIdempotencyHeader, idempotencyKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, payment.NewGatewayTransientError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, payment.NewGatewayTransientError(op, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, resp.StatusCode, nil
	case resp.StatusCode == http.StatusConflict:
		// Idempotency replay: the body carries the original resource.
		return respBody, resp.StatusCode, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, resp.StatusCode, payment.NewGatewayTransientError(op,
			fmt.Errorf("wallet: %s returned %d", path, resp.StatusCode))
	default:
		var apiErr walletError
		reason := fmt.Sprintf("status %d", resp.StatusCode)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			reason = apiErr.Code + ": " + apiErr.Message
		}
		return nil, resp.StatusCode, payment.NewGatewayRejection(op, reason, nil)
	}
}

// sign computes the HMAC-SHA256 request signature over
// timestamp.nonce.body with the merchant API secret.
func (g *WalletGateway) sign(timestamp, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(g.config.APISecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write([]byte(nonce))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf)
}

// walletOp names the operation for error classification from the path.
func walletOp(method, path string) string {
	switch {
	case strings.HasSuffix(path, "/capture"):
		return "capture"
	case strings.HasSuffix(path, "/void"):
		return "cancel"
	case strings.HasPrefix(path, walletRefundPath):
		return "refund"
	case strings.HasPrefix(path, walletTransferPath):
		return "transfer"
	case method == http.MethodGet:
		return "retrieve_status"
	default:
		return "authorize"
	}
}

// mapWalletStatus converts the provider status onto the gateway port.
func mapWalletStatus(status string) payment.AuthorizationStatus {
	switch status {
	case "authorized":
		return payment.AuthStatusRequiresCapture
	case "pending_user_action":
		return payment.AuthStatusRequiresAction
	case "captured":
		return payment.AuthStatusCaptured
	case "voided":
		return payment.AuthStatusCancelled
	case "refunded":
		return payment.AuthStatusRefunded
	default:
		return payment.AuthStatusFailed
	}
}

// Ensure WalletGateway implements Gateway
var _ payment.Gateway = (*WalletGateway)(nil)
