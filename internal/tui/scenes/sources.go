package scenes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"unifi-report/internal/schema"
	"unifi-report/internal/tui/styles"
)

// SourcesScene displays intrusion event sources and per-device health
// findings from the current report.
type SourcesScene struct {
	src        Source
	summaries  []schema.SourceIPSummary
	health     schema.DeviceHealthSummary
	err        string
	width      int
	height     int
	loading    bool
	lastUpdate time.Time
}

// sourcesMsg carries refreshed source and health data.
type sourcesMsg struct {
	summaries []schema.SourceIPSummary
	health    schema.DeviceHealthSummary
	err       string
}

// NewSourcesScene creates the sources scene.
func NewSourcesScene(src Source) *SourcesScene {
	return &SourcesScene{
		src:     src,
		loading: true,
	}
}

// Init fetches the initial data.
func (s *SourcesScene) Init() tea.Cmd {
	return s.fetchSources()
}

func (s *SourcesScene) fetchSources() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		rep, err := s.src.Latest(ctx)
		if err != nil {
			return sourcesMsg{err: err.Error()}
		}
		return sourcesMsg{
			summaries: rep.Result.SourceSummaries,
			health:    rep.Result.Health,
		}
	}
}

// TickCmd returns a command that ticks every interval.
func (s *SourcesScene) TickCmd() tea.Cmd {
	return tea.Tick(15*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "sources", Time: t}
	})
}

// Update handles messages for the sources scene.
func (s *SourcesScene) Update(msg tea.Msg) (*SourcesScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		return s, nil

	case tea.KeyMsg:
		if msg.String() == "r" {
			s.loading = true
			return s, s.fetchSources()
		}
		return s, nil

	case sourcesMsg:
		s.loading = false
		s.err = msg.err
		if msg.err == "" {
			s.summaries = msg.summaries
			s.health = msg.health
		}
		s.lastUpdate = time.Now()
		return s, nil

	case TickMsg:
		if msg.Scene == "sources" {
			return s, s.fetchSources()
		}
		return s, nil
	}

	return s, nil
}

// View renders the sources and device health sections.
func (s *SourcesScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Threat Sources & Devices"))
	b.WriteString("\n\n")

	if s.loading && s.lastUpdate.IsZero() {
		b.WriteString(styles.Muted.Render("  Loading..."))
		return b.String()
	}

	if s.err != "" {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("  Error: %s", s.err)))
		b.WriteString("\n\n")
		b.WriteString(styles.Muted.Render("  Press [r] to retry."))
		return b.String()
	}

	s.renderSources(&b)
	s.renderHealth(&b)

	if !s.lastUpdate.IsZero() {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  Last updated: %s  |  [r] Refresh", s.lastUpdate.Format("15:04:05"))))
	}

	return b.String()
}

func (s *SourcesScene) renderSources(b *strings.Builder) {
	b.WriteString(styles.Subtitle.Render("  Intrusion Event Sources"))
	b.WriteString("\n")

	if len(s.summaries) == 0 {
		b.WriteString(styles.Muted.Render("  No intrusion events in this period."))
		b.WriteString("\n\n")
		return
	}

	for _, summary := range s.summaries {
		marker := styles.StatusError.Render("●")
		locality := "external"
		if summary.Internal {
			marker = styles.StatusWarning.Render("●")
			locality = "internal"
		}
		b.WriteString(fmt.Sprintf("  %s %-16s %s  %d events\n",
			marker, summary.SourceIP, styles.Muted.Render(locality), summary.TotalEvents))

		if cats := topCategories(summary.Categories); cats != "" {
			b.WriteString(fmt.Sprintf("    %s %s\n", styles.Muted.Render("├"), cats))
		}
		if summary.Intel != nil {
			intel := summary.Intel.Reputation
			if summary.Intel.Country != "" {
				intel += ", " + summary.Intel.Country
			}
			if summary.Intel.ASN != "" {
				intel += ", " + summary.Intel.ASN
			}
			b.WriteString(fmt.Sprintf("    %s %s: %s\n",
				styles.Muted.Render("└"), summary.Intel.Provider, intel))
		}
	}
	b.WriteString("\n")
}

func (s *SourcesScene) renderHealth(b *strings.Builder) {
	b.WriteString(styles.Subtitle.Render("  Device Health"))
	b.WriteString("\n")

	total := s.health.DevicesOK + s.health.DevicesWarning + s.health.DevicesCritical
	if total == 0 {
		b.WriteString(styles.Muted.Render("  No device metrics in this period."))
		b.WriteString("\n\n")
		return
	}

	b.WriteString(fmt.Sprintf("  %d devices:  %s  %s  %s\n",
		total,
		styles.StatusOK.Render(fmt.Sprintf("%d ok", s.health.DevicesOK)),
		styles.StatusWarning.Render(fmt.Sprintf("%d warning", s.health.DevicesWarning)),
		styles.StatusError.Render(fmt.Sprintf("%d critical", s.health.DevicesCritical))))

	for _, finding := range s.health.Findings {
		style := styles.StatusWarning
		if finding.Tier == schema.TierCritical {
			style = styles.StatusError
		}
		b.WriteString(fmt.Sprintf("  %s %-16s %-12s %.1f (threshold %.1f)\n",
			style.Render("●"), finding.Device, finding.Metric, finding.Value, finding.Threshold))
	}
	b.WriteString("\n")
}

// topCategories renders category counts ordered by volume.
func topCategories(categories map[string]int) string {
	if len(categories) == 0 {
		return ""
	}

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if categories[names[i]] != categories[names[j]] {
			return categories[names[i]] > categories[names[j]]
		}
		return names[i] < names[j]
	})

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %d", name, categories[name])
	}
	return strings.Join(parts, "  ")
}
