package scenes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"unifi-report/internal/schema"
	"unifi-report/internal/tui/styles"
)

// FindingsScene displays the report's findings as a scrollable table.
type FindingsScene struct {
	src        Source
	findings   []schema.Finding
	filter     severityFilter
	err        string
	width      int
	height     int
	cursor     int
	offset     int
	loading    bool
	maxRows    int
	lastUpdate time.Time
}

// severityFilter narrows the table to one severity. filterAll lists
// everything.
type severityFilter int

const (
	filterAll severityFilter = iota
	filterSevere
	filterMedium
	filterLow
	filterCount
)

func (sf severityFilter) label() string {
	switch sf {
	case filterSevere:
		return "severe"
	case filterMedium:
		return "medium"
	case filterLow:
		return "low"
	default:
		return "all"
	}
}

// matches reports whether a finding passes the filter.
func (sf severityFilter) matches(f schema.Finding) bool {
	switch sf {
	case filterSevere:
		return f.Severity == schema.SeveritySevere
	case filterMedium:
		return f.Severity == schema.SeverityMedium
	case filterLow:
		return f.Severity == schema.SeverityLow
	default:
		return true
	}
}

// findingsMsg carries refreshed findings.
type findingsMsg struct {
	findings []schema.Finding
	err      string
}

// NewFindingsScene creates the findings scene.
func NewFindingsScene(src Source) *FindingsScene {
	return &FindingsScene{
		src:     src,
		loading: true,
		maxRows: 10,
	}
}

// Init fetches the initial findings.
func (f *FindingsScene) Init() tea.Cmd {
	return f.fetchFindings()
}

func (f *FindingsScene) fetchFindings() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		rep, err := f.src.Latest(ctx)
		if err != nil {
			return findingsMsg{err: err.Error()}
		}
		return findingsMsg{findings: orderFindings(rep.Result.Findings)}
	}
}

// TickCmd returns a command that ticks every interval.
func (f *FindingsScene) TickCmd() tea.Cmd {
	return tea.Tick(15*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "findings", Time: t}
	})
}

// Update handles messages for the findings scene.
func (f *FindingsScene) Update(msg tea.Msg) (*FindingsScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		f.width = msg.Width
		f.height = msg.Height
		f.maxRows = max(5, f.height-12)
		return f, nil

	case tea.KeyMsg:
		visible := len(f.visible())
		switch msg.String() {
		case "up", "k":
			if f.cursor > 0 {
				f.cursor--
				if f.cursor < f.offset {
					f.offset = f.cursor
				}
			}
		case "down", "j":
			if f.cursor < visible-1 {
				f.cursor++
				if f.cursor >= f.offset+f.maxRows {
					f.offset = f.cursor - f.maxRows + 1
				}
			}
		case "pgup":
			f.cursor = max(0, f.cursor-f.maxRows)
			f.offset = max(0, f.offset-f.maxRows)
		case "pgdown":
			f.cursor = min(visible-1, f.cursor+f.maxRows)
			f.offset = min(max(0, visible-f.maxRows), f.offset+f.maxRows)
		case "s":
			f.filter = (f.filter + 1) % filterCount
			f.cursor = 0
			f.offset = 0
		case "r":
			f.loading = true
			return f, f.fetchFindings()
		}
		return f, nil

	case findingsMsg:
		f.loading = false
		f.findings = msg.findings
		f.err = msg.err
		f.lastUpdate = time.Now()
		if visible := len(f.visible()); f.cursor >= visible {
			f.cursor = max(0, visible-1)
		}
		return f, nil

	case TickMsg:
		if msg.Scene == "findings" {
			return f, f.fetchFindings()
		}
		return f, nil
	}

	return f, nil
}

// View renders the findings table.
func (f *FindingsScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Findings"))
	b.WriteString("\n\n")

	if f.loading && len(f.findings) == 0 {
		b.WriteString(styles.Muted.Render("  Loading findings..."))
		return b.String()
	}

	if f.err != "" {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("  Error: %s", f.err)))
		b.WriteString("\n\n")
		b.WriteString(styles.Muted.Render("  Press [r] to retry."))
		return b.String()
	}

	if len(f.findings) == 0 {
		b.WriteString(styles.StatusOK.Render("  No findings for this period."))
		b.WriteString("\n\n")
		b.WriteString(styles.Muted.Render("  Findings appear here once controller records match a rule."))
		return b.String()
	}

	visible := f.visible()

	countText := fmt.Sprintf("  %d findings", len(f.findings))
	if f.filter != filterAll {
		countText = fmt.Sprintf("  %d of %d findings (%s)", len(visible), len(f.findings), f.filter.label())
	}
	b.WriteString(styles.Subtitle.Render(countText))
	if f.loading {
		b.WriteString(styles.Muted.Render("  (refreshing...)"))
	}
	b.WriteString("\n\n")

	if len(visible) == 0 {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  No %s findings. Press [s] to change the filter.", f.filter.label())))
		return b.String()
	}

	header := fmt.Sprintf("  %-17s %-9s %-13s %s",
		"Timestamp", "Severity", "Category", "Title")
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	endIdx := min(f.offset+f.maxRows, len(visible))
	for i, finding := range visible[f.offset:endIdx] {
		idx := f.offset + i
		b.WriteString(f.renderFindingRow(finding, idx == f.cursor))
		b.WriteString("\n")
	}

	if f.cursor < len(visible) {
		b.WriteString(f.renderDetail(visible[f.cursor]))
	}

	if len(visible) > f.maxRows {
		scrollInfo := fmt.Sprintf("\n  %d-%d of %d (↑↓ to scroll, [s] filter, [r] refresh)",
			f.offset+1, endIdx, len(visible))
		b.WriteString(styles.Muted.Render(scrollInfo))
	} else {
		b.WriteString(styles.Muted.Render("\n  [s] Filter  [r] Refresh"))
	}

	if !f.lastUpdate.IsZero() {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  |  Updated: %s", f.lastUpdate.Format("15:04:05"))))
	}

	return b.String()
}

// visible returns the findings passing the current filter, in display
// order.
func (f *FindingsScene) visible() []schema.Finding {
	if f.filter == filterAll {
		return f.findings
	}
	out := make([]schema.Finding, 0, len(f.findings))
	for _, finding := range f.findings {
		if f.filter.matches(finding) {
			out = append(out, finding)
		}
	}
	return out
}

func (f *FindingsScene) renderFindingRow(finding schema.Finding, selected bool) string {
	timestamp := finding.Timestamp.UTC().Format("01-02 15:04:05")
	severity := formatSeverity(finding.Severity, !selected)
	category := truncate(string(finding.Category), 13)
	title := truncate(finding.Title, 50)
	if finding.Duplicates > 0 {
		title += fmt.Sprintf(" (x%d)", finding.Duplicates+1)
	}

	row := fmt.Sprintf("  %-17s %s %-13s %s", timestamp, severity, category, title)
	if selected {
		return styles.TableRowSelected.Render(row)
	}
	return row
}

// renderDetail shows description and remediation for the selected finding.
func (f *FindingsScene) renderDetail(finding schema.Finding) string {
	var b strings.Builder
	if finding.Description != "" {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("\n  %s", truncate(finding.Description, 100))))
	}
	if finding.Remediation != "" {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("\n  Action: %s", truncate(finding.Remediation, 92))))
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

// formatSeverity renders a fixed-width severity label. Styling is skipped
// inside selected rows so the row background stays uniform.
func formatSeverity(sev schema.Severity, styled bool) string {
	var style lipgloss.Style
	switch sev {
	case schema.SeveritySevere:
		style = styles.StatusError
	case schema.SeverityMedium:
		style = styles.StatusWarning
	default:
		style = styles.StatusOK
	}

	padded := fmt.Sprintf("%-9s", strings.ToUpper(sev.String()))
	if !styled {
		return padded
	}
	return style.Render(padded)
}

// orderFindings sorts most urgent first, then by time, then by title. The
// input slice is not modified.
func orderFindings(in []schema.Finding) []schema.Finding {
	out := make([]schema.Finding, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
