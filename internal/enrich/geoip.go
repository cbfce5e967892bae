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

// GeoIPConfig configures the GeoIP-lite integration. It answers country
// and ASN only; reputation stays empty.
type GeoIPConfig struct {
	BaseURL string `yaml:"base_url"`
}

// DefaultGeoIPConfig returns the default GeoIP configuration.
func DefaultGeoIPConfig() GeoIPConfig {
	return GeoIPConfig{}
}

// GeoIPIntegration queries a GeoIP-lite endpoint over HTTP.
type GeoIPIntegration struct {
	config GeoIPConfig
	client *http.Client
}

// NewGeoIPIntegration creates the GeoIP integration.
func NewGeoIPIntegration(cfg GeoIPConfig) *GeoIPIntegration {
	return &GeoIPIntegration{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GeoIPIntegration) Configured() bool {
	return g.config.BaseURL != ""
}

func (g *GeoIPIntegration) Validate() error {
	u, err := url.Parse(g.config.BaseURL)
	if err != nil {
		return fmt.Errorf("geoip: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("geoip: base URL must be http or https, got %q", u.Scheme)
	}
	return nil
}

type geoipResponse struct {
	CountryCode string `json:"country_code"`
	Country     string `json:"country"`
	ASN         string `json:"asn"`
}

func (g *GeoIPIntegration) Fetch(ctx context.Context, ip string) (*schema.IPIntel, error) {
	endpoint := strings.TrimSuffix(g.config.BaseURL, "/") + "/" + url.PathEscape(ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("geoip: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geoip: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geoip: service returned %d", resp.StatusCode)
	}

	var body geoipResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("geoip: failed to decode response: %w", err)
	}

	country := body.Country
	if country == "" {
		country = body.CountryCode
	}
	if country == "" && body.ASN == "" {
		return nil, nil
	}
	return &schema.IPIntel{
		Provider: "geoip",
		Country:  country,
		ASN:      body.ASN,
	}, nil
}
