// Package startup provides verbose startup diagnostics and initialization
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"unifi-report/internal/config"
)

// DiagnosticResult represents the result of a diagnostic check
type DiagnosticResult struct {
	Name    string
	Status  Status
	Message string
	Details map[string]string
}

// Status represents the status of a diagnostic check
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusError:
		return "ERROR"
	case StatusSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// dialTimeout bounds each reachability probe.
const dialTimeout = 5 * time.Second

// Diagnostics runs all startup diagnostics
type Diagnostics struct {
	cfg     *config.Config
	results []DiagnosticResult
	logger  *slog.Logger
}

// NewDiagnostics creates a new diagnostics runner
func NewDiagnostics(cfg *config.Config, logger *slog.Logger) *Diagnostics {
	return &Diagnostics{
		cfg:    cfg,
		logger: logger,
	}
}

// RunAll runs all diagnostic checks
func (d *Diagnostics) RunAll(ctx context.Context) []DiagnosticResult {
	d.logger.Info("running startup diagnostics")

	d.checkSystem()
	d.checkDirectories()
	d.checkConfiguration()

	d.checkController(ctx)
	d.checkCredentials()

	d.checkState(ctx)
	d.checkDelivery()
	d.checkStorage(ctx)

	d.printSummary()

	return d.results
}

func (d *Diagnostics) addResult(result DiagnosticResult) {
	d.results = append(d.results, result)

	attrs := []any{
		"check", result.Name,
		"status", result.Status.String(),
	}
	if result.Message != "" {
		attrs = append(attrs, "message", result.Message)
	}
	for k, v := range result.Details {
		attrs = append(attrs, k, v)
	}

	switch result.Status {
	case StatusOK:
		d.logger.Info("diagnostic check passed", attrs...)
	case StatusWarning:
		d.logger.Warn("diagnostic check warning", attrs...)
	case StatusError:
		d.logger.Error("diagnostic check failed", attrs...)
	case StatusSkipped:
		d.logger.Debug("diagnostic check skipped", attrs...)
	}
}

func (d *Diagnostics) checkSystem() {
	d.logger.Info("checking system requirements")

	d.addResult(DiagnosticResult{
		Name:    "runtime",
		Status:  StatusOK,
		Message: "Go runtime detected",
		Details: map[string]string{
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"cpus":       fmt.Sprintf("%d", runtime.NumCPU()),
		},
	})
}

func (d *Diagnostics) checkDirectories() {
	d.logger.Info("checking required directories")

	dirs := []struct {
		path   string
		create bool
	}{
		{filepath.Dir(d.cfg.State.Path), true},
		{d.cfg.Delivery.File.Dir, d.cfg.Delivery.File.Enabled},
		{"configs", false},
	}

	for _, dir := range dirs {
		if dir.path == "" || dir.path == "." {
			continue
		}

		name := fmt.Sprintf("directory_%s", dir.path)
		info, err := os.Stat(dir.path)
		switch {
		case os.IsNotExist(err) && dir.create:
			if mkErr := os.MkdirAll(dir.path, 0750); mkErr != nil {
				d.addResult(DiagnosticResult{
					Name:    name,
					Status:  StatusError,
					Message: fmt.Sprintf("Failed to create directory: %s", mkErr),
				})
			} else {
				d.addResult(DiagnosticResult{
					Name:    name,
					Status:  StatusOK,
					Message: "Directory created",
					Details: map[string]string{"path": dir.path},
				})
			}
		case os.IsNotExist(err):
			d.addResult(DiagnosticResult{
				Name:    name,
				Status:  StatusWarning,
				Message: "Directory missing",
				Details: map[string]string{"path": dir.path},
			})
		case err != nil:
			d.addResult(DiagnosticResult{
				Name:    name,
				Status:  StatusError,
				Message: fmt.Sprintf("Error checking directory: %s", err),
			})
		case !info.IsDir():
			d.addResult(DiagnosticResult{
				Name:    name,
				Status:  StatusError,
				Message: "Path exists but is not a directory",
				Details: map[string]string{"path": dir.path},
			})
		default:
			d.addResult(DiagnosticResult{
				Name:    name,
				Status:  StatusOK,
				Message: "Directory exists",
				Details: map[string]string{"path": dir.path},
			})
		}
	}
}

func (d *Diagnostics) checkConfiguration() {
	d.logger.Info("validating configuration")

	configPath := os.Getenv("UNIFI_REPORT_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusWarning,
			Message: "Config file not found, using defaults",
			Details: map[string]string{"path": configPath},
		})
	} else {
		d.addResult(DiagnosticResult{
			Name:    "config_file",
			Status:  StatusOK,
			Message: "Config file found",
			Details: map[string]string{"path": configPath},
		})
	}

	if err := d.cfg.Validate(); err != nil {
		d.addResult(DiagnosticResult{
			Name:    "config_validation",
			Status:  StatusError,
			Message: fmt.Sprintf("Configuration validation failed: %s", err),
		})
	} else {
		d.addResult(DiagnosticResult{
			Name:    "config_validation",
			Status:  StatusOK,
			Message: "Configuration is valid",
		})
	}
}

func (d *Diagnostics) checkController(ctx context.Context) {
	d.logger.Info("checking controller reachability")

	host, err := controllerHostPort(d.cfg.Controller.BaseURL)
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "controller_reachability",
			Status:  StatusError,
			Message: fmt.Sprintf("Invalid controller URL: %s", err),
		})
		return
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "controller_reachability",
			Status:  StatusError,
			Message: fmt.Sprintf("Cannot reach controller: %s", err),
			Details: map[string]string{"host": host},
		})
		return
	}
	conn.Close()

	d.addResult(DiagnosticResult{
		Name:    "controller_reachability",
		Status:  StatusOK,
		Message: "Controller is reachable",
		Details: map[string]string{"host": host},
	})
}

func (d *Diagnostics) checkCredentials() {
	switch {
	case d.cfg.Controller.APIKey != "":
		d.addResult(DiagnosticResult{
			Name:    "controller_credentials",
			Status:  StatusOK,
			Message: "API key authentication configured",
		})
	case d.cfg.Controller.Username != "" && d.cfg.Controller.Password != "":
		d.addResult(DiagnosticResult{
			Name:    "controller_credentials",
			Status:  StatusOK,
			Message: "Local account authentication configured",
			Details: map[string]string{
				"recommendation": "Prefer an API key over a password where the controller supports it",
			},
		})
	default:
		d.addResult(DiagnosticResult{
			Name:    "controller_credentials",
			Status:  StatusError,
			Message: "No controller credentials configured",
			Details: map[string]string{
				"recommendation": "Set controller.api_key or controller.username and controller.password",
			},
		})
	}

	if d.cfg.Controller.InsecureSkipVerify {
		d.addResult(DiagnosticResult{
			Name:    "controller_tls",
			Status:  StatusWarning,
			Message: "TLS verification is DISABLED for the controller",
			Details: map[string]string{
				"recommendation": "Install a trusted certificate and set controller.insecure_skip_verify=false",
			},
		})
	} else {
		d.addResult(DiagnosticResult{
			Name:    "controller_tls",
			Status:  StatusOK,
			Message: "Controller TLS verification is enabled",
		})
	}
}

func (d *Diagnostics) checkState(ctx context.Context) {
	d.logger.Info("checking state backend")

	switch d.cfg.State.Backend {
	case "redis":
		dialer := net.Dialer{Timeout: dialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", d.cfg.State.Redis.Addr)
		if err != nil {
			d.addResult(DiagnosticResult{
				Name:    "state_redis",
				Status:  StatusError,
				Message: fmt.Sprintf("Cannot connect to Redis: %s", err),
				Details: map[string]string{"addr": d.cfg.State.Redis.Addr},
			})
			return
		}
		conn.Close()
		d.addResult(DiagnosticResult{
			Name:    "state_redis",
			Status:  StatusOK,
			Message: "Redis is reachable",
			Details: map[string]string{"addr": d.cfg.State.Redis.Addr},
		})
	default:
		d.addResult(DiagnosticResult{
			Name:    "state_file",
			Status:  StatusOK,
			Message: "File watermark store configured",
			Details: map[string]string{"path": d.cfg.State.Path},
		})
	}
}

func (d *Diagnostics) checkDelivery() {
	d.logger.Info("checking delivery sinks")

	sinks := []struct {
		name    string
		enabled bool
	}{
		{"file", d.cfg.Delivery.File.Enabled},
		{"webhook", d.cfg.Delivery.Webhook.Enabled},
		{"email", d.cfg.Delivery.Email.Enabled},
		{"kafka", d.cfg.Delivery.Kafka.Enabled},
		{"s3", d.cfg.Delivery.S3.Enabled},
	}

	enabledCount := 0
	for _, sink := range sinks {
		status := StatusSkipped
		message := "Disabled"
		if sink.enabled {
			status = StatusOK
			message = "Enabled"
			enabledCount++
		}
		d.addResult(DiagnosticResult{
			Name:    fmt.Sprintf("sink_%s", sink.name),
			Status:  status,
			Message: message,
		})
	}

	if enabledCount == 0 {
		d.addResult(DiagnosticResult{
			Name:    "delivery",
			Status:  StatusWarning,
			Message: "No delivery sinks enabled - reports will not be delivered",
			Details: map[string]string{"recommendation": "Enable at least the file sink"},
		})
	} else {
		d.logger.Info("delivery sinks summary", "enabled", enabledCount, "total", len(sinks))
	}
}

func (d *Diagnostics) checkStorage(ctx context.Context) {
	d.logger.Info("checking storage configuration")

	if !d.cfg.Storage.Enabled {
		d.addResult(DiagnosticResult{
			Name:    "storage",
			Status:  StatusSkipped,
			Message: "Findings history is disabled",
			Details: map[string]string{
				"recommendation": "Enable storage to keep a queryable findings history",
			},
		})
		return
	}

	host := "localhost:9000"
	if len(d.cfg.Storage.ClickHouse.Hosts) > 0 {
		host = d.cfg.Storage.ClickHouse.Hosts[0]
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		d.addResult(DiagnosticResult{
			Name:    "clickhouse_connectivity",
			Status:  StatusError,
			Message: fmt.Sprintf("Cannot connect to ClickHouse: %s", err),
			Details: map[string]string{"host": host},
		})
		return
	}
	conn.Close()

	d.addResult(DiagnosticResult{
		Name:    "clickhouse_connectivity",
		Status:  StatusOK,
		Message: "ClickHouse is reachable",
		Details: map[string]string{"host": host},
	})
}

func (d *Diagnostics) printSummary() {
	var ok, warnings, errors, skipped int
	for _, r := range d.results {
		switch r.Status {
		case StatusOK:
			ok++
		case StatusWarning:
			warnings++
		case StatusError:
			errors++
		case StatusSkipped:
			skipped++
		}
	}

	d.logger.Info("diagnostics summary",
		"passed", ok,
		"warnings", warnings,
		"errors", errors,
		"skipped", skipped,
	)

	if errors > 0 {
		d.logger.Error("startup diagnostics found critical errors - reporting may not function correctly")
	} else if warnings > 0 {
		d.logger.Warn("startup diagnostics found warnings - review for production readiness")
	} else {
		d.logger.Info("all startup diagnostics passed")
	}
}

// HasErrors returns true if any diagnostic check failed
func (d *Diagnostics) HasErrors() bool {
	for _, r := range d.results {
		if r.Status == StatusError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any diagnostic check has warnings
func (d *Diagnostics) HasWarnings() bool {
	for _, r := range d.results {
		if r.Status == StatusWarning {
			return true
		}
	}
	return false
}

// controllerHostPort extracts a dialable host:port from the controller URL.
func controllerHostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}

	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "http":
			host = net.JoinHostPort(u.Hostname(), "80")
		default:
			host = net.JoinHostPort(u.Hostname(), "443")
		}
	}
	return host, nil
}

// EnsureDirectories creates the directories a default deployment writes to.
func EnsureDirectories(cfg *config.Config) error {
	dirs := []string{"configs"}
	if stateDir := filepath.Dir(cfg.State.Path); stateDir != "" && stateDir != "." {
		dirs = append(dirs, stateDir)
	}
	if cfg.Delivery.File.Enabled && cfg.Delivery.File.Dir != "" {
		dirs = append(dirs, cfg.Delivery.File.Dir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
