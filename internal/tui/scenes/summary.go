// Package scenes holds the individual views of the report browser.
package scenes

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"unifi-report/internal/report"
	"unifi-report/internal/schema"
	"unifi-report/internal/tui/styles"
)

// Source supplies reports to the scenes. Latest returns the most recently
// generated report; the implementation decides whether a call serves a
// cached result or triggers a fresh collection cycle.
type Source interface {
	Latest(ctx context.Context) (report.Report, error)
}

// TickMsg is sent on each refresh tick. Scene names the owner so inactive
// scenes can ignore ticks that are not theirs.
type TickMsg struct {
	Scene string
	Time  time.Time
}

// fetchTimeout bounds one report fetch. A fetch may run a full collection
// cycle against the controller, so this is deliberately generous.
const fetchTimeout = 30 * time.Second

// SummaryScene shows the report headline: finding counts by severity,
// device health and unclassified record totals.
type SummaryScene struct {
	src        Source
	rep        report.Report
	loaded     bool
	err        string
	width      int
	height     int
	lastUpdate time.Time
	loading    bool
}

// summaryMsg carries a refreshed report for the summary scene.
type summaryMsg struct {
	rep report.Report
	err string
}

// NewSummaryScene creates the summary scene.
func NewSummaryScene(src Source) *SummaryScene {
	return &SummaryScene{
		src:     src,
		loading: true,
	}
}

// Init fetches the initial report.
func (s *SummaryScene) Init() tea.Cmd {
	return s.fetchReport()
}

func (s *SummaryScene) fetchReport() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		rep, err := s.src.Latest(ctx)
		if err != nil {
			return summaryMsg{err: err.Error()}
		}
		return summaryMsg{rep: rep}
	}
}

// TickCmd returns a command that ticks every interval.
// The parent model schedules this only while the scene is active.
func (s *SummaryScene) TickCmd() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "summary", Time: t}
	})
}

// Update handles messages for the summary scene.
func (s *SummaryScene) Update(msg tea.Msg) (*SummaryScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		return s, nil

	case tea.KeyMsg:
		if msg.String() == "r" {
			s.loading = true
			return s, s.fetchReport()
		}
		return s, nil

	case summaryMsg:
		s.loading = false
		s.err = msg.err
		if msg.err == "" {
			s.rep = msg.rep
			s.loaded = true
		}
		s.lastUpdate = time.Now()
		return s, nil

	case TickMsg:
		if msg.Scene == "summary" {
			return s, s.fetchReport()
		}
		return s, nil
	}

	return s, nil
}

// View renders the summary.
func (s *SummaryScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Network Report"))
	b.WriteString("\n\n")

	if s.loading && !s.loaded {
		b.WriteString(styles.Muted.Render("  Generating report..."))
		return b.String()
	}

	if s.err != "" {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("  Error: %s", s.err)))
		b.WriteString("\n\n")
		b.WriteString(styles.Muted.Render("  Check controller connectivity and credentials in config.yaml."))
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render("  Press [r] to retry."))
		return b.String()
	}

	result := s.rep.Result
	counts := severityCounts(result.Findings)

	b.WriteString(fmt.Sprintf("  Status: %s\n\n", s.statusText(counts)))

	cards := []string{
		renderMetricCard("Findings", fmt.Sprintf("%d", len(result.Findings))),
		renderMetricCard("Severe", fmt.Sprintf("%d", counts[schema.SeveritySevere])),
		renderMetricCard("Medium", fmt.Sprintf("%d", counts[schema.SeverityMedium])),
		renderMetricCard("Low", fmt.Sprintf("%d", counts[schema.SeverityLow])),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	b.WriteString("\n\n")

	b.WriteString(styles.Subtitle.Render("  Device Health"))
	b.WriteString("\n")
	b.WriteString(s.renderHealthLine(result.Health))
	b.WriteString("\n\n")

	if result.UnclassifiedTotal > 0 {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  Unclassified records: %d across %d event keys",
			result.UnclassifiedTotal, len(result.Unclassified))))
		b.WriteString("\n\n")
	}

	if !s.rep.PeriodStart.IsZero() {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  Period: %s to %s",
			s.rep.PeriodStart.UTC().Format("2006-01-02 15:04"),
			s.rep.PeriodEnd.UTC().Format("2006-01-02 15:04"))))
		b.WriteString("\n")
	}
	if !s.lastUpdate.IsZero() {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  Last updated: %s  |  [r] Refresh", s.lastUpdate.Format("15:04:05"))))
	}

	return b.String()
}

func (s *SummaryScene) statusText(counts map[schema.Severity]int) string {
	health := s.rep.Result.Health
	switch {
	case counts[schema.SeveritySevere] > 0 || health.DevicesCritical > 0:
		return styles.StatusError.Render("● ATTENTION NEEDED")
	case counts[schema.SeverityMedium] > 0 || health.DevicesWarning > 0:
		return styles.StatusWarning.Render("● DEGRADED")
	default:
		return styles.StatusOK.Render("● HEALTHY")
	}
}

func (s *SummaryScene) renderHealthLine(health schema.DeviceHealthSummary) string {
	total := health.DevicesOK + health.DevicesWarning + health.DevicesCritical
	if total == 0 {
		return styles.Muted.Render("  No device metrics in this period.")
	}

	parts := []string{
		styles.StatusOK.Render(fmt.Sprintf("%d ok", health.DevicesOK)),
	}
	if health.DevicesWarning > 0 {
		parts = append(parts, styles.StatusWarning.Render(fmt.Sprintf("%d warning", health.DevicesWarning)))
	}
	if health.DevicesCritical > 0 {
		parts = append(parts, styles.StatusError.Render(fmt.Sprintf("%d critical", health.DevicesCritical)))
	}
	return fmt.Sprintf("  %d devices: %s", total, strings.Join(parts, ", "))
}

func renderMetricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s",
		styles.MetricValue.Render(value),
		styles.MetricLabel.Render(label),
	)
	return styles.MetricCard.Render(content)
}

func severityCounts(findings []schema.Finding) map[schema.Severity]int {
	counts := make(map[schema.Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
