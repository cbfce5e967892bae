package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"unifi-report/internal/report"
)

// FileSinkConfig configures report delivery to the local filesystem.
type FileSinkConfig struct {
	Dir string `yaml:"dir" validate:"required"`

	// NamePattern builds the file name; the report's generation time is
	// substituted for the {date} placeholder.
	NamePattern string `yaml:"name_pattern"`
}

// DefaultFileSinkConfig returns the default file sink configuration.
func DefaultFileSinkConfig() FileSinkConfig {
	return FileSinkConfig{
		Dir:         "reports",
		NamePattern: "report-{date}.txt",
	}
}

// FileSink writes each report to a dated file.
type FileSink struct {
	config FileSinkConfig
}

// NewFileSink creates a file sink.
func NewFileSink(cfg FileSinkConfig) *FileSink {
	if cfg.NamePattern == "" {
		cfg.NamePattern = "report-{date}.txt"
	}
	return &FileSink{config: cfg}
}

func (s *FileSink) Name() string { return "file" }

// Deliver writes the rendered report. An existing file for the same
// instant is overwritten; re-running a report is an idempotent operation.
func (s *FileSink) Deliver(_ context.Context, r report.Report, rendered []byte) error {
	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(s.config.Dir, s.fileName(r.GeneratedAt))
	if err := os.WriteFile(path, rendered, 0o644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

func (s *FileSink) fileName(t time.Time) string {
	date := t.UTC().Format("2006-01-02T15-04-05Z")
	return strings.ReplaceAll(s.config.NamePattern, "{date}", date)
}
