package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"unifi-report/internal/schema"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	severeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#EF4444"))

	mediumStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F59E0B"))

	lowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6B7280")).
			Padding(0, 1)
)

// StyledFormatter renders reports with terminal colors for interactive
// use. File and mail delivery keep the plain Formatter; color codes do not
// belong in archives.
type StyledFormatter struct{}

// NewStyledFormatter creates a terminal formatter.
func NewStyledFormatter() *StyledFormatter {
	return &StyledFormatter{}
}

// Format writes a colored rendition of the report.
func (f *StyledFormatter) Format(w io.Writer, r Report) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Network Report"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Generated " + r.GeneratedAt.UTC().Format(time.RFC3339)))
	b.WriteString("\n\n")

	if len(r.Result.Findings) == 0 {
		b.WriteString(lowStyle.Render("No findings for this period."))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	for _, sev := range severityOrder {
		var lines []string
		for _, finding := range r.Result.Findings {
			if finding.Severity != sev {
				continue
			}
			line := "• " + finding.Title
			if finding.Duplicates > 0 {
				line += mutedStyle.Render(fmt.Sprintf(" (x%d)", finding.Duplicates+1))
			}
			if finding.Remediation != "" {
				line += "\n  " + mutedStyle.Render(finding.Remediation)
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}

		header := severityStyle(sev).Render(strings.ToUpper(sev.String()))
		b.WriteString(sectionStyle.Render(header + "\n" + strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	if total := r.Result.Health.DevicesOK + r.Result.Health.DevicesWarning + r.Result.Health.DevicesCritical; total > 0 {
		summary := fmt.Sprintf("Devices: %d ok, %d warning, %d critical",
			r.Result.Health.DevicesOK, r.Result.Health.DevicesWarning, r.Result.Health.DevicesCritical)
		b.WriteString(tierStyle(r.Result.Health.WorstTier).Render(summary))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func severityStyle(s schema.Severity) lipgloss.Style {
	switch s {
	case schema.SeveritySevere:
		return severeStyle
	case schema.SeverityMedium:
		return mediumStyle
	}
	return lowStyle
}

func tierStyle(t schema.HealthTier) lipgloss.Style {
	switch t {
	case schema.TierCritical:
		return severeStyle
	case schema.TierWarning:
		return mediumStyle
	}
	return lowStyle
}
