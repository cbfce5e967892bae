package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"unifi-report/internal/report"
	"unifi-report/internal/schema"
)

// WebhookSinkConfig configures report delivery over HTTP.
type WebhookSinkConfig struct {
	URL     string            `yaml:"url" validate:"required,url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// WebhookSink posts the report as JSON to an HTTP endpoint.
type WebhookSink struct {
	config WebhookSinkConfig
	client *http.Client
}

// webhookPayload is the wire format delivered to the endpoint. The
// rendered text rides along so receivers without schema knowledge can
// still display something readable.
type webhookPayload struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	PeriodStart time.Time                  `json:"period_start,omitempty"`
	PeriodEnd   time.Time                  `json:"period_end,omitempty"`
	Findings    []schema.Finding           `json:"findings"`
	Sources     []schema.SourceIPSummary   `json:"sources,omitempty"`
	Health      schema.DeviceHealthSummary `json:"health"`
	Rendered    string                     `json:"rendered"`
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(cfg WebhookSinkConfig) *WebhookSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &WebhookSink{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, r report.Report, rendered []byte) error {
	payload, err := json.Marshal(webhookPayload{
		GeneratedAt: r.GeneratedAt,
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
		Findings:    r.Result.Findings,
		Sources:     r.Result.SourceSummaries,
		Health:      r.Result.Health,
		Rendered:    string(rendered),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
