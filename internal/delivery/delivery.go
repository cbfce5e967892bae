// Package delivery sends finished reports to their configured
// destinations. Every sink receives the same report; one failing sink
// never blocks the others.
package delivery

import (
	"context"
	"errors"
	"log/slog"

	sanitize "unifi-report/internal/errors"
	"unifi-report/internal/report"
)

// Sink delivers one rendered report to a destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, r report.Report, rendered []byte) error
}

// Manager fans a report out to every registered sink.
type Manager struct {
	sinks []Sink
}

// NewManager creates a delivery manager.
func NewManager(sinks ...Sink) *Manager {
	return &Manager{sinks: sinks}
}

// Register adds a sink.
func (m *Manager) Register(s Sink) {
	m.sinks = append(m.sinks, s)
}

// Sinks returns the registered sink count.
func (m *Manager) Sinks() int {
	return len(m.sinks)
}

// Deliver sends the report to every sink. Failures are logged per sink and
// collected; the returned error joins them so the caller still sees that
// something went wrong.
func (m *Manager) Deliver(ctx context.Context, r report.Report, rendered []byte) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Deliver(ctx, r, rendered); err != nil {
			// Sink errors can quote full request URLs; scrub before they
			// reach logs or the joined error.
			err = sanitize.Sanitize(err)
			slog.Error("report delivery failed", "sink", sink.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		slog.Info("report delivered", "sink", sink.Name(), "findings", len(r.Result.Findings))
	}
	return errors.Join(errs...)
}
