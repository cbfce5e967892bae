// Package config handles configuration loading for unifi-report.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"unifi-report/internal/delivery"
	"unifi-report/internal/encryption"
	"unifi-report/internal/enrich"
	"unifi-report/internal/schema"
	"unifi-report/internal/secrets"
	"unifi-report/internal/state"
	"unifi-report/internal/storage"
	"unifi-report/internal/unifi"
)

// Config holds the complete application configuration.
type Config struct {
	Controller unifi.ClientConfig   `yaml:"controller"`
	Ingest     unifi.IngesterConfig `yaml:"ingest"`
	Queue      QueueConfig          `yaml:"queue"`
	Analysis   AnalysisConfig       `yaml:"analysis"`
	Report     ReportConfig         `yaml:"report"`
	State      StateConfig          `yaml:"state"`
	Storage    StorageConfig        `yaml:"storage"`
	Enrich     enrich.Config        `yaml:"enrich"`
	Delivery   DeliveryConfig       `yaml:"delivery"`
	Logging    LoggingConfig        `yaml:"logging"`
	Encryption EncryptionConfig     `yaml:"encryption"`
}

// QueueConfig holds processing queue settings.
type QueueConfig struct {
	Size int `yaml:"size" validate:"gt=0"`
}

// AnalysisConfig holds analysis settings.
type AnalysisConfig struct {
	// AggregationThreshold is the minimum event count before a threat
	// source gets its own summary and finding.
	AggregationThreshold int                     `yaml:"aggregation_threshold" validate:"gt=0"`
	Health               schema.HealthThresholds `yaml:"health"`
}

// ReportConfig holds report generation settings.
type ReportConfig struct {
	// Schedule is a preset (hourly, daily, weekly) or a Go duration.
	// Only used in daemon mode.
	Schedule string `yaml:"schedule"`
	Styled   bool   `yaml:"styled"`
}

// StateConfig selects where the collection watermark lives.
type StateConfig struct {
	Backend string            `yaml:"backend" validate:"oneof=file redis"`
	Path    string            `yaml:"path"`
	Redis   state.RedisConfig `yaml:"redis"`
}

// StorageConfig holds findings-history settings.
type StorageConfig struct {
	Enabled     bool                       `yaml:"enabled"`
	ClickHouse  storage.ClickHouseConfig   `yaml:"clickhouse"`
	BatchWriter storage.BatchWriterConfig  `yaml:"batch_writer"`
	Retention   storage.RetentionConfig    `yaml:"retention"`
}

// DeliveryConfig holds per-sink delivery settings. A sink only runs when
// its enabled flag is set.
type DeliveryConfig struct {
	File    FileDelivery    `yaml:"file"`
	Webhook WebhookDelivery `yaml:"webhook"`
	Email   EmailDelivery   `yaml:"email"`
	Kafka   KafkaDelivery   `yaml:"kafka"`
	S3      S3Delivery      `yaml:"s3"`
}

type FileDelivery struct {
	Enabled bool `yaml:"enabled"`
	delivery.FileSinkConfig `yaml:",inline"`
}

type WebhookDelivery struct {
	Enabled bool `yaml:"enabled"`
	delivery.WebhookSinkConfig `yaml:",inline"`
}

type EmailDelivery struct {
	Enabled bool `yaml:"enabled"`
	delivery.EmailSinkConfig `yaml:",inline"`
}

type KafkaDelivery struct {
	Enabled bool `yaml:"enabled"`
	delivery.KafkaSinkConfig `yaml:",inline"`
}

type S3Delivery struct {
	Enabled bool `yaml:"enabled"`
	delivery.S3SinkConfig `yaml:",inline"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// EncryptionConfig names the environment variable carrying the
// passphrase for enc: secret references.
type EncryptionConfig struct {
	PassphraseEnv string `yaml:"passphrase_env"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Controller: unifi.DefaultClientConfig(),
		Ingest:     unifi.DefaultIngesterConfig(),
		Queue: QueueConfig{
			Size: 10000,
		},
		Analysis: AnalysisConfig{
			AggregationThreshold: 10,
			Health:               schema.DefaultHealthThresholds(),
		},
		Report: ReportConfig{
			Schedule: "daily",
			Styled:   false,
		},
		State: StateConfig{
			Backend: "file",
			Path:    "state/watermark.json",
			Redis:   state.DefaultRedisConfig(),
		},
		Storage: StorageConfig{
			Enabled:     false, // needs a ClickHouse instance
			ClickHouse:  storage.DefaultClickHouseConfig(),
			BatchWriter: storage.DefaultBatchWriterConfig(),
			Retention:   storage.DefaultRetentionConfig(),
		},
		Enrich: enrich.DefaultConfig(),
		Delivery: DeliveryConfig{
			File: FileDelivery{
				Enabled:        true,
				FileSinkConfig: delivery.DefaultFileSinkConfig(),
			},
			Kafka: KafkaDelivery{
				KafkaSinkConfig: delivery.DefaultKafkaSinkConfig(),
			},
			S3: S3Delivery{
				S3SinkConfig: delivery.DefaultS3SinkConfig(),
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Encryption: EncryptionConfig{
			PassphraseEnv: "UNIFI_REPORT_PASSPHRASE",
		},
	}
}

// Load loads configuration from the given path, falling back to
// UNIFI_REPORT_CONFIG and then configs/config.yaml. A missing file is
// not an error; defaults apply. Secret references (env:, file:, enc:)
// are resolved after parsing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("UNIFI_REPORT_CONFIG")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveSecrets resolves secret references in every credential field.
func (c *Config) resolveSecrets() error {
	var engine *encryption.Engine
	if name := c.Encryption.PassphraseEnv; name != "" {
		if passphrase := os.Getenv(name); passphrase != "" {
			var err error
			engine, err = encryption.NewEngine(passphrase)
			if err != nil {
				return fmt.Errorf("invalid passphrase in %s: %w", name, err)
			}
		}
	}

	resolver := secrets.NewResolver(engine)
	err := resolver.ResolveAll(
		&c.Controller.Password,
		&c.Controller.APIKey,
		&c.State.Redis.Password,
		&c.Storage.ClickHouse.Password,
		&c.Delivery.Email.Password,
		&c.Delivery.S3.SecretAccessKey,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve secrets: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("UNIFI_REPORT_CONTROLLER_URL"); url != "" {
		c.Controller.BaseURL = url
	}
	if site := os.Getenv("UNIFI_REPORT_CONTROLLER_SITE"); site != "" {
		c.Controller.Site = site
	}
	if user := os.Getenv("UNIFI_REPORT_CONTROLLER_USER"); user != "" {
		c.Controller.Username = user
	}
	if pass := os.Getenv("UNIFI_REPORT_CONTROLLER_PASSWORD"); pass != "" {
		c.Controller.Password = pass
	}
	if key := os.Getenv("UNIFI_REPORT_CONTROLLER_API_KEY"); key != "" {
		c.Controller.APIKey = key
	}

	if level := os.Getenv("UNIFI_REPORT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("UNIFI_REPORT_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if schedule := os.Getenv("UNIFI_REPORT_SCHEDULE"); schedule != "" {
		c.Report.Schedule = schedule
	}

	if enabled := os.Getenv("UNIFI_REPORT_STORAGE_ENABLED"); enabled != "" {
		c.Storage.Enabled = enabled == "true"
	}
	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		c.Storage.ClickHouse.Hosts = splitAndTrim(host, ",")
	}
	if db := os.Getenv("CLICKHOUSE_DATABASE"); db != "" {
		c.Storage.ClickHouse.Database = db
	}
	if user := os.Getenv("CLICKHOUSE_USER"); user != "" {
		c.Storage.ClickHouse.Username = user
	}
	if pass := os.Getenv("CLICKHOUSE_PASSWORD"); pass != "" {
		c.Storage.ClickHouse.Password = pass
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.State.Backend = "redis"
		c.State.Redis.Addr = addr
	}

	if size := os.Getenv("UNIFI_REPORT_QUEUE_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			c.Queue.Size = n
		}
	}
}

// splitAndTrim splits a string by separator and drops empty parts.
func splitAndTrim(s, sep string) []string {
	var parts []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Validate validates the configuration. Disabled sections are skipped
// so an unconfigured sink does not block startup.
func (c *Config) Validate() error {
	v := validator.New()

	checks := []struct {
		name    string
		enabled bool
		value   any
	}{
		{"controller", true, c.Controller},
		{"queue", true, c.Queue},
		{"analysis", true, c.Analysis},
		{"logging", true, c.Logging},
		{"state.redis", c.State.Backend == "redis", c.State.Redis},
		{"delivery.file", c.Delivery.File.Enabled, c.Delivery.File.FileSinkConfig},
		{"delivery.webhook", c.Delivery.Webhook.Enabled, c.Delivery.Webhook.WebhookSinkConfig},
		{"delivery.email", c.Delivery.Email.Enabled, c.Delivery.Email.EmailSinkConfig},
		{"delivery.kafka", c.Delivery.Kafka.Enabled, c.Delivery.Kafka.KafkaSinkConfig},
		{"delivery.s3", c.Delivery.S3.Enabled, c.Delivery.S3.S3SinkConfig},
	}

	for _, check := range checks {
		if !check.enabled {
			continue
		}
		if err := v.Struct(check.value); err != nil {
			return fmt.Errorf("invalid %s configuration: %w", check.name, err)
		}
	}

	if c.State.Backend != "file" && c.State.Backend != "redis" {
		return fmt.Errorf("state.backend must be file or redis, got %q", c.State.Backend)
	}
	if c.State.Backend == "file" && c.State.Path == "" {
		return fmt.Errorf("state.path is required with the file backend")
	}
	if c.Controller.Username == "" && c.Controller.APIKey == "" {
		return fmt.Errorf("controller needs either username/password or an API key")
	}

	return nil
}
