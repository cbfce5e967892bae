package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"unifi-report/internal/analysis"
	"unifi-report/internal/report"
	"unifi-report/internal/schema"
	"unifi-report/internal/tui/scenes"
)

// stubSource serves a fixed report and counts how often it is asked.
type stubSource struct {
	mu    sync.Mutex
	rep   report.Report
	err   error
	calls int
}

func (s *stubSource) Latest(ctx context.Context) (report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.rep, s.err
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// keyMsg builds a tea.KeyMsg for the given key string.
func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

var testReportTime = time.Date(2024, 1, 12, 20, 0, 0, 0, time.UTC)

func testReport() report.Report {
	findings := []schema.Finding{
		{
			Category:  schema.CategoryConnectivity,
			Severity:  schema.SeverityLow,
			Title:     "Device office-ap reconnected",
			EventKey:  "EVT_AP_Connected",
			Timestamp: testReportTime.Add(-2 * time.Hour),
		},
		{
			Category:    schema.CategorySecurity,
			Severity:    schema.SeveritySevere,
			Title:       "Intrusion attempt from 203.0.113.9",
			Description: "Signature ET SCAN matched 14 times",
			Remediation: "Confirm the firewall rule blocking this source is active",
			EventKey:    "EVT_IPS_IpsAlert",
			Source:      "203.0.113.9",
			Timestamp:   testReportTime.Add(-1 * time.Hour),
			Duplicates:  13,
		},
		{
			Category:  schema.CategorySystem,
			Severity:  schema.SeverityMedium,
			Title:     "Gateway CPU high",
			EventKey:  "EVT_GW_CpuHigh",
			Timestamp: testReportTime.Add(-30 * time.Minute),
		},
	}
	for i := range findings {
		f := &findings[i]
		f.ID = schema.FindingID(f.EventKey, f.Source, f.Title, f.Timestamp)
	}

	return report.Report{
		GeneratedAt: testReportTime,
		PeriodStart: testReportTime.Add(-24 * time.Hour),
		PeriodEnd:   testReportTime,
		Result: analysis.Result{
			Findings: findings,
			SourceSummaries: []schema.SourceIPSummary{
				{
					SourceIP:    "203.0.113.9",
					TotalEvents: 14,
					Categories:  map[string]int{"scan": 11, "exploit": 3},
					Intel: &schema.IPIntel{
						Provider:   "reputation",
						Reputation: "malicious",
						Country:    "NL",
					},
				},
				{
					SourceIP:    "192.168.1.50",
					TotalEvents: 2,
					Categories:  map[string]int{"policy": 2},
					Internal:    true,
				},
			},
			Health: schema.DeviceHealthSummary{
				DevicesOK:       4,
				DevicesWarning:  1,
				DevicesCritical: 1,
				WorstTier:       schema.TierCritical,
				Findings: []schema.DeviceHealthFinding{
					{Device: "gateway", Metric: "temperature", Value: 93, Threshold: 90, Tier: schema.TierCritical},
					{Device: "office-sw", Metric: "cpu", Value: 84, Threshold: 80, Tier: schema.TierWarning},
				},
			},
			Unclassified:      map[string]int{"EVT_AD_Unknown": 3},
			UnclassifiedTotal: 3,
		},
	}
}

// ---------------------------------------------------------------------------
// 1. Model Initialization
// ---------------------------------------------------------------------------

func TestNewModelReturnsNonNil(t *testing.T) {
	m := New(&stubSource{})
	if m == nil {
		t.Fatal("New() returned nil")
	}
}

func TestNewModelDefaultScene(t *testing.T) {
	m := New(&stubSource{})
	if m.scene != SceneSummary {
		t.Errorf("expected initial scene SceneSummary (%d), got %d", SceneSummary, m.scene)
	}
}

func TestNewModelSubScenesNonNil(t *testing.T) {
	m := New(&stubSource{})
	if m.summary == nil {
		t.Error("summary scene is nil")
	}
	if m.findings == nil {
		t.Error("findings scene is nil")
	}
	if m.sources == nil {
		t.Error("sources scene is nil")
	}
}

func TestNewModelNotQuitting(t *testing.T) {
	m := New(&stubSource{})
	if m.quitting {
		t.Error("model should not be quitting on init")
	}
}

func TestSceneConstants(t *testing.T) {
	if SceneSummary != 0 {
		t.Errorf("expected SceneSummary=0, got %d", SceneSummary)
	}
	if SceneFindings != 1 {
		t.Errorf("expected SceneFindings=1, got %d", SceneFindings)
	}
	if SceneSources != 2 {
		t.Errorf("expected SceneSources=2, got %d", SceneSources)
	}
}

func TestModelInitReturnsCommand(t *testing.T) {
	m := New(&stubSource{})
	cmd := m.Init()
	if cmd == nil {
		t.Error("Model.Init() returned nil, expected a batch command")
	}
}

// ---------------------------------------------------------------------------
// 2. Key Handling and Scene Switching
// ---------------------------------------------------------------------------

func TestQuitOnQ(t *testing.T) {
	m := New(&stubSource{})
	updated, cmd := m.Update(keyMsg("q"))
	if !updated.(*Model).quitting {
		t.Error("q did not set quitting")
	}
	if cmd == nil {
		t.Error("q should return tea.Quit")
	}
}

func TestQuitOnCtrlC(t *testing.T) {
	m := New(&stubSource{})
	updated, _ := m.Update(keyMsg("ctrl+c"))
	if !updated.(*Model).quitting {
		t.Error("ctrl+c did not set quitting")
	}
}

func TestNumberKeysSwitchScenes(t *testing.T) {
	tests := []struct {
		key  string
		want Scene
	}{
		{"2", SceneFindings},
		{"3", SceneSources},
		{"1", SceneSummary},
	}

	m := New(&stubSource{})
	var model tea.Model = m
	for _, tt := range tests {
		model, _ = model.Update(keyMsg(tt.key))
		if got := model.(*Model).scene; got != tt.want {
			t.Errorf("key %q: scene = %d, want %d", tt.key, got, tt.want)
		}
	}
}

func TestNumberKeyOnActiveSceneIsNoop(t *testing.T) {
	m := New(&stubSource{})
	_, cmd := m.Update(keyMsg("1"))
	if cmd != nil {
		t.Error("re-selecting the active scene should not schedule commands")
	}
}

func TestSwitchingScenesStartsFetch(t *testing.T) {
	m := New(&stubSource{})
	_, cmd := m.Update(keyMsg("2"))
	if cmd == nil {
		t.Error("switching scenes should schedule the scene's init and ticker")
	}
}

func TestTabCyclesThroughAllScenes(t *testing.T) {
	m := New(&stubSource{})
	var model tea.Model = m

	want := []Scene{SceneFindings, SceneSources, SceneSummary}
	for i, expected := range want {
		model, _ = model.Update(keyMsg("tab"))
		if got := model.(*Model).scene; got != expected {
			t.Errorf("tab press %d: scene = %d, want %d", i+1, got, expected)
		}
	}
}

func TestWindowSizeBroadcastToAllScenes(t *testing.T) {
	m := New(&stubSource{})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	model := updated.(*Model)
	if model.width != 120 || model.height != 40 {
		t.Errorf("model dimensions = %dx%d", model.width, model.height)
	}
}

// ---------------------------------------------------------------------------
// 3. Model View
// ---------------------------------------------------------------------------

func TestViewEmptyWhenQuitting(t *testing.T) {
	m := New(&stubSource{})
	m.quitting = true
	if m.View() != "" {
		t.Error("quitting view must be empty")
	}
}

func TestViewContainsTabsAndFooter(t *testing.T) {
	m := New(&stubSource{})
	view := m.View()

	for _, want := range []string{"Summary", "Findings", "Sources", "Quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

// ---------------------------------------------------------------------------
// 4. Summary Scene
// ---------------------------------------------------------------------------

func runSceneCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return cmd()
}

func TestSummarySceneFetchesOnInit(t *testing.T) {
	src := &stubSource{rep: testReport()}
	scene := scenes.NewSummaryScene(src)

	msg := runSceneCmd(t, scene.Init())
	scene, _ = scene.Update(msg)

	view := scene.View()
	if !strings.Contains(view, "Network Report") {
		t.Errorf("view missing title: %q", view)
	}
	if !strings.Contains(view, "ATTENTION NEEDED") {
		t.Error("severe findings should render the attention status")
	}
	if src.callCount() != 1 {
		t.Errorf("source calls = %d, want 1", src.callCount())
	}
}

func TestSummarySceneShowsError(t *testing.T) {
	src := &stubSource{err: errors.New("controller unreachable")}
	scene := scenes.NewSummaryScene(src)

	msg := runSceneCmd(t, scene.Init())
	scene, _ = scene.Update(msg)

	view := scene.View()
	if !strings.Contains(view, "controller unreachable") {
		t.Errorf("error not surfaced: %q", view)
	}
	if !strings.Contains(view, "[r] to retry") {
		t.Error("error view should mention the retry key")
	}
}

func TestSummarySceneHealthyWithoutFindings(t *testing.T) {
	rep := testReport()
	rep.Result.Findings = nil
	rep.Result.Health = schema.DeviceHealthSummary{DevicesOK: 3}
	src := &stubSource{rep: rep}

	scene := scenes.NewSummaryScene(src)
	scene, _ = scene.Update(runSceneCmd(t, scene.Init()))

	if !strings.Contains(scene.View(), "HEALTHY") {
		t.Error("no findings and healthy devices should render HEALTHY")
	}
}

func TestSummarySceneIgnoresForeignTicks(t *testing.T) {
	scene := scenes.NewSummaryScene(&stubSource{})
	_, cmd := scene.Update(scenes.TickMsg{Scene: "findings", Time: time.Now()})
	if cmd != nil {
		t.Error("foreign tick must not trigger a fetch")
	}
}

func TestSummarySceneOwnTickTriggersFetch(t *testing.T) {
	scene := scenes.NewSummaryScene(&stubSource{})
	_, cmd := scene.Update(scenes.TickMsg{Scene: "summary", Time: time.Now()})
	if cmd == nil {
		t.Error("own tick must trigger a fetch")
	}
}

// ---------------------------------------------------------------------------
// 5. Findings Scene
// ---------------------------------------------------------------------------

func loadedFindingsScene(t *testing.T, rep report.Report) *scenes.FindingsScene {
	t.Helper()
	scene := scenes.NewFindingsScene(&stubSource{rep: rep})
	scene, _ = scene.Update(runSceneCmd(t, scene.Init()))
	return scene
}

func TestFindingsSceneOrdersBySeverity(t *testing.T) {
	scene := loadedFindingsScene(t, testReport())
	view := scene.View()

	severeIdx := strings.Index(view, "Intrusion attempt")
	mediumIdx := strings.Index(view, "Gateway CPU high")
	lowIdx := strings.Index(view, "reconnected")

	if severeIdx < 0 || mediumIdx < 0 || lowIdx < 0 {
		t.Fatalf("findings missing from view: %q", view)
	}
	if !(severeIdx < mediumIdx && mediumIdx < lowIdx) {
		t.Error("findings must render most urgent first")
	}
}

func TestFindingsSceneShowsDuplicateCount(t *testing.T) {
	scene := loadedFindingsScene(t, testReport())
	if !strings.Contains(scene.View(), "(x14)") {
		t.Error("folded duplicates should render as a multiplier")
	}
}

func TestFindingsSceneSelectedDetail(t *testing.T) {
	scene := loadedFindingsScene(t, testReport())
	view := scene.View()

	// Cursor starts on the severe finding; its remediation is shown.
	if !strings.Contains(view, "firewall rule") {
		t.Errorf("selected finding detail missing: %q", view)
	}
}

func TestFindingsSceneCursorNavigation(t *testing.T) {
	scene := loadedFindingsScene(t, testReport())

	// j moves to the medium finding, which carries no remediation, so the
	// severe finding's detail must disappear.
	scene, _ = scene.Update(keyMsg("j"))
	if strings.Contains(scene.View(), "firewall rule") {
		t.Error("detail must follow the cursor")
	}

	// k back up, then k again must not go past the top.
	scene, _ = scene.Update(keyMsg("k"))
	scene, _ = scene.Update(keyMsg("k"))
	if !strings.Contains(scene.View(), "firewall rule") {
		t.Error("cursor must clamp at the first finding")
	}
}

func TestFindingsSceneEmptyReport(t *testing.T) {
	rep := testReport()
	rep.Result.Findings = nil
	scene := loadedFindingsScene(t, rep)

	if !strings.Contains(scene.View(), "No findings for this period") {
		t.Errorf("empty view: %q", scene.View())
	}
}

func TestFindingsSceneSeverityFilter(t *testing.T) {
	scene := loadedFindingsScene(t, testReport())

	// First press narrows to severe findings only.
	scene, _ = scene.Update(keyMsg("s"))
	view := scene.View()
	if !strings.Contains(view, "1 of 3 findings (severe)") {
		t.Errorf("filtered count missing: %q", view)
	}
	if !strings.Contains(view, "Intrusion attempt") {
		t.Error("severe finding must stay visible under the severe filter")
	}
	if strings.Contains(view, "Gateway CPU high") || strings.Contains(view, "reconnected") {
		t.Error("non-severe findings must be hidden under the severe filter")
	}

	// Cycling through medium and low lands back on the full list.
	scene, _ = scene.Update(keyMsg("s"))
	if !strings.Contains(scene.View(), "Gateway CPU high") {
		t.Error("medium filter must show the medium finding")
	}
	scene, _ = scene.Update(keyMsg("s"))
	if !strings.Contains(scene.View(), "reconnected") {
		t.Error("low filter must show the low finding")
	}
	scene, _ = scene.Update(keyMsg("s"))
	if !strings.Contains(scene.View(), "3 findings") {
		t.Error("fourth press must return to the unfiltered list")
	}
}

func TestFindingsSceneFilterWithoutMatches(t *testing.T) {
	rep := testReport()
	rep.Result.Findings = rep.Result.Findings[:1] // low severity only
	scene := loadedFindingsScene(t, rep)

	scene, _ = scene.Update(keyMsg("s"))
	if !strings.Contains(scene.View(), "No severe findings") {
		t.Errorf("empty filter notice missing: %q", scene.View())
	}
}

func TestFindingsSceneRefreshKey(t *testing.T) {
	src := &stubSource{rep: testReport()}
	scene := scenes.NewFindingsScene(src)
	scene, _ = scene.Update(runSceneCmd(t, scene.Init()))

	_, cmd := scene.Update(keyMsg("r"))
	runSceneCmd(t, cmd)

	if src.callCount() != 2 {
		t.Errorf("source calls = %d, want 2 after manual refresh", src.callCount())
	}
}

// ---------------------------------------------------------------------------
// 6. Sources Scene
// ---------------------------------------------------------------------------

func TestSourcesSceneRendersSummaries(t *testing.T) {
	scene := scenes.NewSourcesScene(&stubSource{rep: testReport()})
	scene, _ = scene.Update(runSceneCmd(t, scene.Init()))

	view := scene.View()
	for _, want := range []string{"203.0.113.9", "14 events", "scan: 11", "malicious", "192.168.1.50", "internal"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestSourcesSceneRendersDeviceHealth(t *testing.T) {
	scene := scenes.NewSourcesScene(&stubSource{rep: testReport()})
	scene, _ = scene.Update(runSceneCmd(t, scene.Init()))

	view := scene.View()
	for _, want := range []string{"6 devices", "gateway", "temperature", "93.0", "threshold 90.0"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestSourcesSceneEmptyPeriod(t *testing.T) {
	rep := testReport()
	rep.Result.SourceSummaries = nil
	rep.Result.Health = schema.DeviceHealthSummary{}

	scene := scenes.NewSourcesScene(&stubSource{rep: rep})
	scene, _ = scene.Update(runSceneCmd(t, scene.Init()))

	view := scene.View()
	if !strings.Contains(view, "No intrusion events") {
		t.Errorf("view missing empty-sources notice: %q", view)
	}
	if !strings.Contains(view, "No device metrics") {
		t.Errorf("view missing empty-health notice: %q", view)
	}
}
