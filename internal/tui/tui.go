// Package tui provides an interactive terminal browser for generated
// network reports.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"unifi-report/internal/tui/scenes"
	"unifi-report/internal/tui/styles"
)

// Source is the report supplier the browser reads from.
type Source = scenes.Source

// Scene represents the current view
type Scene int

const (
	SceneSummary Scene = iota
	SceneFindings
	SceneSources
)

// Model is the main TUI model
type Model struct {
	src Source

	// Current scene
	scene Scene

	// Scene models - only the active one receives updates
	summary  *scenes.SummaryScene
	findings *scenes.FindingsScene
	sources  *scenes.SourcesScene

	// Window dimensions
	width  int
	height int

	// Whether we're quitting
	quitting bool
}

// New creates a new TUI model reading from src.
func New(src Source) *Model {
	return &Model{
		src:      src,
		scene:    SceneSummary,
		summary:  scenes.NewSummaryScene(src),
		findings: scenes.NewFindingsScene(src),
		sources:  scenes.NewSourcesScene(src),
	}
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	// Only initialize the current scene's data fetch
	// This prevents multiple tickers from running at startup
	return tea.Batch(
		m.summary.Init(),
		m.getActiveSceneTickCmd(),
	)
}

// getActiveSceneTickCmd returns the tick command for the active scene only
// This is critical for performance - we don't want inactive scenes ticking
func (m *Model) getActiveSceneTickCmd() tea.Cmd {
	switch m.scene {
	case SceneSummary:
		return m.summary.TickCmd()
	case SceneFindings:
		return m.findings.TickCmd()
	case SceneSources:
		return m.sources.TickCmd()
	default:
		return nil
	}
}

// Update handles all messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		// Tab switching - number keys
		case "1":
			if m.scene != SceneSummary {
				m.scene = SceneSummary
				cmds = append(cmds, m.summary.Init(), m.summary.TickCmd())
			}
			return m, tea.Batch(cmds...)

		case "2":
			if m.scene != SceneFindings {
				m.scene = SceneFindings
				cmds = append(cmds, m.findings.Init(), m.findings.TickCmd())
			}
			return m, tea.Batch(cmds...)

		case "3":
			if m.scene != SceneSources {
				m.scene = SceneSources
				cmds = append(cmds, m.sources.Init(), m.sources.TickCmd())
			}
			return m, tea.Batch(cmds...)

		// Tab key cycles through scenes
		case "tab":
			m.scene = (m.scene + 1) % 3 // 3 scenes
			cmds = append(cmds, m.getActiveSceneTickCmd())
			return m, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Pass to all scenes so they can adjust
		m.summary, _ = m.summary.Update(msg)
		m.findings, _ = m.findings.Update(msg)
		m.sources, _ = m.sources.Update(msg)
		return m, nil

	case scenes.TickMsg:
		// Only forward tick to the active scene
		// This prevents inactive scenes from doing work
		var cmd tea.Cmd
		switch m.scene {
		case SceneSummary:
			m.summary, cmd = m.summary.Update(msg)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
			cmds = append(cmds, m.summary.TickCmd())
		case SceneFindings:
			m.findings, cmd = m.findings.Update(msg)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
			cmds = append(cmds, m.findings.TickCmd())
		case SceneSources:
			m.sources, cmd = m.sources.Update(msg)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
			cmds = append(cmds, m.sources.TickCmd())
		}
		return m, tea.Batch(cmds...)
	}

	// Forward other messages to active scene only
	var cmd tea.Cmd
	switch m.scene {
	case SceneSummary:
		m.summary, cmd = m.summary.Update(msg)
	case SceneFindings:
		m.findings, cmd = m.findings.Update(msg)
	case SceneSources:
		m.sources, cmd = m.sources.Update(msg)
	}

	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the current view
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	// Header with tabs
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	// Scene content
	switch m.scene {
	case SceneSummary:
		b.WriteString(m.summary.View())
	case SceneFindings:
		b.WriteString(m.findings.View())
	case SceneSources:
		b.WriteString(m.sources.View())
	}

	// Footer with help
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m *Model) renderHeader() string {
	tabs := []struct {
		name  string
		key   string
		scene Scene
	}{
		{"Summary", "1", SceneSummary},
		{"Findings", "2", SceneFindings},
		{"Sources", "3", SceneSources},
	}

	var tabViews []string
	for _, tab := range tabs {
		label := fmt.Sprintf(" %s %s ", tab.key, tab.name)
		if tab.scene == m.scene {
			tabViews = append(tabViews, styles.TabActive.Render(label))
		} else {
			tabViews = append(tabViews, styles.TabInactive.Render(label))
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabViews...)

	header := lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.MutedColor).
		Width(m.width).
		Render(tabBar)

	return header
}

func (m *Model) renderFooter() string {
	help := " [1-3] Switch tabs  [Tab] Next tab  [↑↓/jk] Navigate  [r] Refresh  [q] Quit "
	return styles.Help.Render(help)
}

// Run starts the TUI application
func Run(src Source) error {
	m := New(src)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
