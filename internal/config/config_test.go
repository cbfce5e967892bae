package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Controller.Site != "default" {
		t.Errorf("Controller.Site = %q", cfg.Controller.Site)
	}
	if cfg.Ingest.PollInterval != 60*time.Second {
		t.Errorf("Ingest.PollInterval = %v", cfg.Ingest.PollInterval)
	}
	if cfg.Queue.Size != 10000 {
		t.Errorf("Queue.Size = %d", cfg.Queue.Size)
	}
	if cfg.Analysis.AggregationThreshold != 10 {
		t.Errorf("AggregationThreshold = %d", cfg.Analysis.AggregationThreshold)
	}
	if cfg.Report.Schedule != "daily" {
		t.Errorf("Report.Schedule = %q", cfg.Report.Schedule)
	}
	if cfg.State.Backend != "file" {
		t.Errorf("State.Backend = %q", cfg.State.Backend)
	}
	if cfg.Storage.Enabled {
		t.Error("storage must be disabled by default")
	}
	if !cfg.Delivery.File.Enabled {
		t.Error("file delivery must be enabled by default")
	}
	if cfg.Delivery.Email.Enabled || cfg.Delivery.Kafka.Enabled || cfg.Delivery.S3.Enabled {
		t.Error("network sinks must be disabled by default")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.Size != 10000 {
		t.Errorf("Queue.Size = %d, want default", cfg.Queue.Size)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
controller:
  base_url: https://unifi.example.net
  username: reporter
  password: hunter22
ingest:
  poll_interval: 2m
report:
  schedule: hourly
delivery:
  file:
    enabled: true
    dir: /var/reports
  webhook:
    enabled: true
    url: https://hooks.example.net/report
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Controller.BaseURL != "https://unifi.example.net" {
		t.Errorf("BaseURL = %q", cfg.Controller.BaseURL)
	}
	if cfg.Ingest.PollInterval != 2*time.Minute {
		t.Errorf("PollInterval = %v", cfg.Ingest.PollInterval)
	}
	if cfg.Report.Schedule != "hourly" {
		t.Errorf("Schedule = %q", cfg.Report.Schedule)
	}
	if cfg.Delivery.File.Dir != "/var/reports" {
		t.Errorf("file sink dir = %q", cfg.Delivery.File.Dir)
	}
	if !cfg.Delivery.Webhook.Enabled || cfg.Delivery.Webhook.URL != "https://hooks.example.net/report" {
		t.Errorf("webhook sink = %+v", cfg.Delivery.Webhook)
	}

	// Unset sections keep their defaults.
	if cfg.Queue.Size != 10000 {
		t.Errorf("Queue.Size = %d, want default", cfg.Queue.Size)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UNIFI_REPORT_CONTROLLER_URL", "https://gw.example.net")
	t.Setenv("UNIFI_REPORT_LOG_LEVEL", "debug")
	t.Setenv("CLICKHOUSE_HOST", "ch1:9000, ch2:9000")
	t.Setenv("REDIS_ADDR", "redis.example.net:6379")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Controller.BaseURL != "https://gw.example.net" {
		t.Errorf("BaseURL = %q", cfg.Controller.BaseURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	if len(cfg.Storage.ClickHouse.Hosts) != 2 || cfg.Storage.ClickHouse.Hosts[1] != "ch2:9000" {
		t.Errorf("Hosts = %v", cfg.Storage.ClickHouse.Hosts)
	}
	if cfg.State.Backend != "redis" || cfg.State.Redis.Addr != "redis.example.net:6379" {
		t.Errorf("state = %+v", cfg.State)
	}
}

func TestSecretResolution(t *testing.T) {
	t.Setenv("UNIFI_TEST_CONTROLLER_PASSWORD", "from-env")

	path := writeConfig(t, `
controller:
  base_url: https://unifi.example.net
  username: reporter
  password: env:UNIFI_TEST_CONTROLLER_PASSWORD
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Controller.Password != "from-env" {
		t.Errorf("Password = %q, want resolved value", cfg.Controller.Password)
	}
}

func TestSecretResolutionFailureSurfaces(t *testing.T) {
	path := writeConfig(t, `
controller:
  base_url: https://unifi.example.net
  username: reporter
  password: env:UNIFI_TEST_DEFINITELY_MISSING
`)

	if _, err := Load(path); err == nil {
		t.Error("unresolvable secret reference must fail loading")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Controller.Username = "reporter"
		cfg.Controller.Password = "hunter22"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with credentials", func(c *Config) {}, false},
		{"api key instead of password", func(c *Config) {
			c.Controller.Username = ""
			c.Controller.Password = ""
			c.Controller.APIKey = "k1"
		}, false},
		{"no credentials", func(c *Config) {
			c.Controller.Username = ""
			c.Controller.APIKey = ""
		}, true},
		{"missing controller url", func(c *Config) { c.Controller.BaseURL = "" }, true},
		{"zero queue size", func(c *Config) { c.Queue.Size = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"unknown state backend", func(c *Config) { c.State.Backend = "etcd" }, true},
		{"file backend without path", func(c *Config) { c.State.Path = "" }, true},
		{"enabled email missing host", func(c *Config) { c.Delivery.Email.Enabled = true }, true},
		{"disabled email ignores missing host", func(c *Config) { c.Delivery.Email.Enabled = false }, false},
		{"enabled kafka missing brokers", func(c *Config) { c.Delivery.Kafka.Enabled = true }, true},
		{"redis backend validates addr", func(c *Config) {
			c.State.Backend = "redis"
			c.State.Redis.Addr = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
