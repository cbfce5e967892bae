// Package enrich attaches optional third-party context to threat-source
// summaries. Integrations are a fixed compiled-in list; lookups run in
// parallel with per-integration timeouts and never block or fail the
// analysis itself.
package enrich

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"unifi-report/internal/ips"
	"unifi-report/internal/schema"
)

// Integration is the capability contract for one enrichment source.
// Configured reports whether the operator enabled it; Validate checks
// the configuration; Fetch performs one lookup.
type Integration interface {
	Configured() bool
	Validate() error
	Fetch(ctx context.Context, ip string) (*schema.IPIntel, error)
}

// Config holds enrichment settings for all integrations.
type Config struct {
	Reputation ReputationConfig `yaml:"reputation"`
	GeoIP      GeoIPConfig      `yaml:"geoip"`
	Timeout    time.Duration    `yaml:"timeout"`
}

// DefaultConfig returns the default enrichment configuration. All
// integrations are off until given an endpoint.
func DefaultConfig() Config {
	return Config{
		Reputation: DefaultReputationConfig(),
		GeoIP:      DefaultGeoIPConfig(),
		Timeout:    5 * time.Second,
	}
}

// Enricher fans lookups out to the configured integrations.
type Enricher struct {
	integrations []Integration
	timeout      time.Duration
}

// NewEnricher creates an enricher over the compiled-in integration list.
// Unconfigured integrations are dropped; misconfigured ones are an error.
func NewEnricher(cfg Config) (*Enricher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	// Order is precedence: the first integration that answers wins.
	all := []Integration{
		NewReputationIntegration(cfg.Reputation),
		NewGeoIPIntegration(cfg.GeoIP),
	}

	var active []Integration
	for _, integ := range all {
		if !integ.Configured() {
			continue
		}
		if err := integ.Validate(); err != nil {
			return nil, err
		}
		active = append(active, integ)
	}

	return &Enricher{integrations: active, timeout: cfg.Timeout}, nil
}

// Active returns the number of configured integrations.
func (e *Enricher) Active() int {
	return len(e.integrations)
}

// Enrich attaches intel to each external source summary in place.
// Lookups for distinct sources run concurrently; a failed or empty
// lookup leaves Intel nil.
func (e *Enricher) Enrich(ctx context.Context, summaries []schema.SourceIPSummary) {
	if len(e.integrations) == 0 || len(summaries) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i := range summaries {
		s := &summaries[i]
		if ips.IsInternalIP(s.SourceIP) {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Intel = e.lookup(ctx, s.SourceIP)
		}()
	}
	wg.Wait()
}

// lookup tries each integration in precedence order until one answers.
func (e *Enricher) lookup(ctx context.Context, ip string) *schema.IPIntel {
	for _, integ := range e.integrations {
		lctx, cancel := context.WithTimeout(ctx, e.timeout)
		intel, err := integ.Fetch(lctx, ip)
		cancel()

		if err != nil {
			slog.Warn("enrichment lookup failed", "ip", ip, "error", err)
			continue
		}
		if intel != nil {
			return intel
		}
	}
	return nil
}
