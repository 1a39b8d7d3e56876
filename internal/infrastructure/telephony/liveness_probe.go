package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/consultpay/backend/internal/domain/session"
	"github.com/consultpay/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LivenessProbe asks the call establishment system whether a conference
// is still bound to a session. Reconciliation consults it before
// cancelling an apparently orphaned session; an error here means
// "unknown", and unknown never cancels anything.
type LivenessProbe struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewLivenessProbe creates a new LivenessProbe
func NewLivenessProbe(cfg *config.TelephonyConfig, logger *zap.Logger) *LivenessProbe {
	return &LivenessProbe{
		baseURL:    cfg.BaseURL,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type connectionStateResponse struct {
	Live bool `json:"live"`
}

// HasLiveConnection reports whether a verified conference or connection
// is still bound to the session.
func (p *LivenessProbe) HasLiveConnection(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	url := fmt.Sprintf("%s/v1/sessions/%s/connection", p.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("telephony: failed to build request: %w", err)
	}
	if p.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("telephony: liveness probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// No connection record means nothing live is bound.
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("telephony: liveness probe returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("telephony: failed to read response: %w", err)
	}
	var state connectionStateResponse
	if err := json.Unmarshal(body, &state); err != nil {
		return false, fmt.Errorf("telephony: malformed response: %w", err)
	}
	return state.Live, nil
}

// Ensure LivenessProbe implements session.LivenessProbe
var _ session.LivenessProbe = (*LivenessProbe)(nil)
