package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client reads payee payout-capability flags from the identity and
// verification collaborator.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new identity client
func NewClient(cfg *config.IdentityConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type payoutCapabilityResponse struct {
	Verified             bool   `json:"verified"`
	DestinationAccountID string `json:"destination_account_id"`
}

// PayoutCapability returns whether the payee's payout identity
// verification is complete and which gateway account receives payouts.
func (c *Client) PayoutCapability(ctx context.Context, payeeRef uuid.UUID) (payment.PayoutCapability, error) {
	url := fmt.Sprintf("%s/v1/payees/%s/payout-capability", c.baseURL, payeeRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return payment.PayoutCapability{}, fmt.Errorf("identity: failed to build request: %w", err)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return payment.PayoutCapability{}, fmt.Errorf("identity: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// An unknown payee is simply unverified.
		return payment.PayoutCapability{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return payment.PayoutCapability{}, fmt.Errorf("identity: payout capability returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return payment.PayoutCapability{}, fmt.Errorf("identity: failed to read response: %w", err)
	}
	var capability payoutCapabilityResponse
	if err := json.Unmarshal(body, &capability); err != nil {
		return payment.PayoutCapability{}, fmt.Errorf("identity: malformed response: %w", err)
	}

	c.logger.Debug("Payout capability resolved",
		zap.String("payee_ref", payeeRef.String()),
		zap.Bool("verified", capability.Verified))

	return payment.PayoutCapability{
		Verified:             capability.Verified,
		DestinationAccountID: capability.DestinationAccountID,
	}, nil
}

// Ensure Client implements VerificationService
var _ payment.VerificationService = (*Client)(nil)
