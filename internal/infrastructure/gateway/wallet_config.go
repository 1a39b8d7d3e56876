package gateway

import (
	"fmt"
	"strings"
)

// WalletConfig holds configuration for the wallet-rail integration
type WalletConfig struct {
	// Endpoint is the base URL of the wallet provider API
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`

	// MerchantID identifies the platform at the wallet provider
	MerchantID string `json:"merchant_id" mapstructure:"merchant_id"`

	// APISecret signs every request body
	APISecret string `json:"api_secret" mapstructure:"api_secret"`
}

// Validate validates the wallet configuration
func (c *WalletConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("wallet: endpoint is required")
	}
	if !strings.HasPrefix(c.Endpoint, "https://") && !strings.HasPrefix(c.Endpoint, "http://") {
		return fmt.Errorf("wallet: endpoint must be an http(s) URL")
	}
	if c.MerchantID == "" {
		return fmt.Errorf("wallet: merchant id is required")
	}
	if c.APISecret == "" {
		return fmt.Errorf("wallet: api secret is required")
	}
	return nil
}
