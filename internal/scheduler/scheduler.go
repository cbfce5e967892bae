// Package scheduler drives recurring report cycles in daemon mode.
// Schedules are preset-based (hourly, daily, weekly) or an explicit
// interval; presets align to wall-clock boundaries so reports land at
// predictable times.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Preset names accepted by Parse.
const (
	PresetHourly = "hourly"
	PresetDaily  = "daily"
	PresetWeekly = "weekly"
)

// Schedule computes when the next cycle is due.
type Schedule interface {
	// Next returns the first instant strictly after t when a cycle
	// should run.
	Next(t time.Time) time.Time
	String() string
}

// Parse turns a schedule spec into a Schedule. Accepted forms are the
// presets ("hourly", "daily", "weekly") and Go durations ("30m", "6h").
func Parse(spec string) (Schedule, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case PresetHourly:
		return presetSchedule{name: PresetHourly, align: time.Hour}, nil
	case PresetDaily:
		return presetSchedule{name: PresetDaily, align: 24 * time.Hour}, nil
	case PresetWeekly:
		return weeklySchedule{}, nil
	case "":
		return nil, fmt.Errorf("scheduler: empty schedule")
	}

	d, err := time.ParseDuration(spec)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %q is not a preset or duration", spec)
	}
	if d < time.Minute {
		return nil, fmt.Errorf("scheduler: interval %s is below the 1m minimum", d)
	}
	return intervalSchedule{interval: d}, nil
}

// presetSchedule aligns to wall-clock boundaries in UTC: hourly runs at
// minute zero, daily at midnight.
type presetSchedule struct {
	name  string
	align time.Duration
}

func (p presetSchedule) Next(t time.Time) time.Time {
	return t.UTC().Truncate(p.align).Add(p.align)
}

func (p presetSchedule) String() string { return p.name }

// weeklySchedule runs Mondays at midnight UTC.
type weeklySchedule struct{}

func (weeklySchedule) Next(t time.Time) time.Time {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := (int(time.Monday) - int(midnight.Weekday()) + 7) % 7
	next := midnight.AddDate(0, 0, days)
	if !next.After(t) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (weeklySchedule) String() string { return PresetWeekly }

// intervalSchedule runs at a fixed distance from the previous instant.
type intervalSchedule struct {
	interval time.Duration
}

func (i intervalSchedule) Next(t time.Time) time.Time { return t.Add(i.interval) }

func (i intervalSchedule) String() string { return i.interval.String() }

// Runner fires a cycle function per the schedule until the context is
// canceled. Cycle errors are logged, not fatal; the next cycle still runs.
type Runner struct {
	schedule Schedule
	cycle    func(ctx context.Context, due time.Time) error
}

// NewRunner creates a runner for the given schedule and cycle function.
func NewRunner(schedule Schedule, cycle func(ctx context.Context, due time.Time) error) *Runner {
	return &Runner{schedule: schedule, cycle: cycle}
}

// Run blocks until ctx is canceled, invoking the cycle at each due
// instant. A cycle that overruns delays the following one; cycles never
// overlap.
func (r *Runner) Run(ctx context.Context) error {
	for {
		now := time.Now()
		due := r.schedule.Next(now)
		slog.Info("next report cycle scheduled", "schedule", r.schedule.String(), "due", due)

		timer := time.NewTimer(due.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := r.cycle(ctx, due); err != nil {
			slog.Error("report cycle failed", "due", due, "error", err)
		}
	}
}
