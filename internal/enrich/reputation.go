package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"unifi-report/internal/schema"
)

// ReputationConfig configures the IP reputation HTTP integration. The
// endpoint is expected to answer GET {base_url}/{ip} with a JSON body.
type ReputationConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Header  string `yaml:"header"`
}

// DefaultReputationConfig returns the default reputation configuration.
func DefaultReputationConfig() ReputationConfig {
	return ReputationConfig{
		Header: "X-Api-Key",
	}
}

// ReputationIntegration queries a reputation service over HTTP.
type ReputationIntegration struct {
	config ReputationConfig
	client *http.Client
}

// NewReputationIntegration creates the reputation integration.
func NewReputationIntegration(cfg ReputationConfig) *ReputationIntegration {
	if cfg.Header == "" {
		cfg.Header = "X-Api-Key"
	}
	return &ReputationIntegration{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *ReputationIntegration) Configured() bool {
	return r.config.BaseURL != ""
}

func (r *ReputationIntegration) Validate() error {
	u, err := url.Parse(r.config.BaseURL)
	if err != nil {
		return fmt.Errorf("reputation: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("reputation: base URL must be http or https, got %q", u.Scheme)
	}
	return nil
}

// reputationResponse is the subset of the service answer we keep.
type reputationResponse struct {
	Reputation string `json:"reputation"`
	Country    string `json:"country"`
	ASN        string `json:"asn"`
}

func (r *ReputationIntegration) Fetch(ctx context.Context, ip string) (*schema.IPIntel, error) {
	endpoint := strings.TrimSuffix(r.config.BaseURL, "/") + "/" + url.PathEscape(ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("reputation: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set(r.config.Header, r.config.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reputation: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Unknown address, not an error.
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reputation: service returned %d", resp.StatusCode)
	}

	var body reputationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("reputation: failed to decode response: %w", err)
	}

	if body.Reputation == "" && body.Country == "" && body.ASN == "" {
		return nil, nil
	}
	return &schema.IPIntel{
		Provider:   "reputation",
		Reputation: body.Reputation,
		Country:    body.Country,
		ASN:        body.ASN,
	}, nil
}
