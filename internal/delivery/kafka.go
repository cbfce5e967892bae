package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"unifi-report/internal/report"
	"unifi-report/internal/schema"
)

// KafkaSinkConfig configures finding delivery to a Kafka topic.
type KafkaSinkConfig struct {
	Brokers      []string      `yaml:"brokers" validate:"required,min=1"`
	Topic        string        `yaml:"topic" validate:"required"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RequiredAcks int           `yaml:"required_acks"`
}

// DefaultKafkaSinkConfig returns the default Kafka sink configuration.
func DefaultKafkaSinkConfig() KafkaSinkConfig {
	return KafkaSinkConfig{
		Topic:        "network-findings",
		BatchTimeout: time.Second,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: -1,
	}
}

// KafkaSink publishes each finding as one message, keyed by event key so
// downstream consumers partition by finding kind. Unlike the other sinks
// it delivers the structured findings, not the rendered document.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a Kafka sink.
func NewKafkaSink(cfg KafkaSinkConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Debug(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Error(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
	}
	return &KafkaSink{writer: writer}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, r report.Report, _ []byte) error {
	if len(r.Result.Findings) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(r.Result.Findings))
	for _, finding := range r.Result.Findings {
		value, err := json.Marshal(kafkaFinding{
			Finding:     finding,
			GeneratedAt: r.GeneratedAt,
		})
		if err != nil {
			return fmt.Errorf("kafka: failed to marshal finding: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(finding.EventKey),
			Value: value,
			Time:  r.GeneratedAt,
		})
	}

	if err := s.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("kafka: failed to publish findings: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

type kafkaFinding struct {
	schema.Finding
	GeneratedAt time.Time `json:"generated_at"`
}
