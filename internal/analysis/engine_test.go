package analysis

import (
	"reflect"
	"testing"
	"time"

	"unifi-report/internal/health"
	"unifi-report/internal/ips"
	"unifi-report/internal/rules"
	"unifi-report/internal/schema"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	reg, err := rules.NewDefaultRegistry()
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	return NewEngine(reg, ips.NewAnalyzer(10), health.NewAnalyzer(schema.DefaultHealthThresholds()))
}

func entry(key, message string, fields map[string]string, sec int) schema.LogEntry {
	return schema.LogEntry{
		EventKey:  key,
		Message:   message,
		Fields:    fields,
		Timestamp: time.Date(2024, 1, 12, 18, 0, sec, 0, time.UTC),
	}
}

func TestAnalyzeEntries_ClassifiesAndTemplates(t *testing.T) {
	e := testEngine(t)

	result := e.AnalyzeEntries([]schema.LogEntry{
		entry("EVT_AD_LoginFailed", "", map[string]string{"admin": "ops", "ip": "203.0.113.9"}, 0),
	})

	if len(result.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(result.Findings))
	}
	f := result.Findings[0]
	if f.Title != "Failed controller login for ops" {
		t.Errorf("title = %q", f.Title)
	}
	if f.Category != schema.CategorySecurity || f.Severity != schema.SeverityMedium {
		t.Errorf("classification = %s/%s", f.Category, f.Severity)
	}
	if f.Description == "" || f.Remediation == "" {
		t.Error("description and remediation must render")
	}
}

func TestAnalyzeEntries_MissingFieldSentinel(t *testing.T) {
	e := testEngine(t)

	result := e.AnalyzeEntries([]schema.LogEntry{
		entry("EVT_AD_LoginFailed", "", nil, 0),
	})

	if len(result.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(result.Findings))
	}
	if got := result.Findings[0].Title; got != "Failed controller login for <missing:admin>" {
		t.Errorf("title = %q", got)
	}
}

func TestAnalyzeEntries_UnclassifiedCounted(t *testing.T) {
	e := testEngine(t)

	result := e.AnalyzeEntries([]schema.LogEntry{
		entry("EVT_XX_NoSuchKey", "", nil, 0),
		entry("EVT_XX_NoSuchKey", "", nil, 1),
		entry("EVT_YY_Other", "", nil, 2),
	})

	if len(result.Findings) != 0 {
		t.Errorf("unknown keys must not produce findings, got %d", len(result.Findings))
	}
	if result.UnclassifiedTotal != 3 {
		t.Errorf("unclassified total = %d, want 3", result.UnclassifiedTotal)
	}
	if result.Unclassified["EVT_XX_NoSuchKey"] != 2 {
		t.Errorf("per-key count = %d, want 2", result.Unclassified["EVT_XX_NoSuchKey"])
	}
}

func TestAnalyzeEntries_PatternPriority(t *testing.T) {
	e := testEngine(t)

	result := e.AnalyzeEntries([]schema.LogEntry{
		entry("EVT_AD_Login", "admin logged in from remote address", map[string]string{"admin": "ops", "ip": "198.51.100.4"}, 0),
		entry("EVT_AD_Login", "admin logged in", map[string]string{"admin": "ops", "ip": "192.168.1.4"}, 1),
	})

	if len(result.Findings) != 2 {
		t.Fatalf("findings = %d, want 2", len(result.Findings))
	}
	if result.Findings[0].Severity != schema.SeverityMedium {
		t.Errorf("remote login must match the patterned rule, got %s", result.Findings[0].Severity)
	}
	if result.Findings[1].Severity != schema.SeverityLow {
		t.Errorf("local login must fall through to the catch-all, got %s", result.Findings[1].Severity)
	}
}

func TestAnalyze_MergesAllSources(t *testing.T) {
	e := testEngine(t)

	batch := Batch{
		At: time.Date(2024, 1, 12, 20, 0, 0, 0, time.UTC),
		Entries: []schema.LogEntry{
			entry("EVT_GW_WANTransition", "", map[string]string{"device": "gw", "wan_iface": "wan2"}, 0),
		},
		IPSEvents: func() []schema.IPSEvent {
			events := make([]schema.IPSEvent, 12)
			for i := range events {
				events[i] = schema.IPSEvent{
					Timestamp: time.Date(2024, 1, 12, 19, 0, i, 0, time.UTC),
					Signature: "ET SCAN Nmap Scripting Engine",
					SrcIP:     "203.0.113.7",
					Blocked:   true,
				}
			}
			return events
		}(),
		Devices: []schema.DeviceMetrics{
			{Name: "gw", Temperature: func() *float64 { v := 95.0; return &v }()},
		},
	}

	result := e.Analyze(batch)

	keys := make(map[string]bool)
	for _, f := range result.Findings {
		keys[f.EventKey] = true
	}
	for _, want := range []string{"EVT_GW_WANTransition", "IPS_SOURCE_ACTIVITY", "DEVICE_HEALTH"} {
		if !keys[want] {
			t.Errorf("merged findings missing %s", want)
		}
	}
	if len(result.SourceSummaries) != 1 {
		t.Errorf("source summaries = %d, want 1", len(result.SourceSummaries))
	}
	if result.Health.WorstTier != schema.TierCritical {
		t.Errorf("health worst tier = %s, want critical", result.Health.WorstTier)
	}
}

func TestAnalyze_DedupAcrossRecords(t *testing.T) {
	e := testEngine(t)

	fields := map[string]string{"device": "office-ap"}
	result := e.Analyze(Batch{
		Entries: []schema.LogEntry{
			entry("EVT_AP_Lost_Contact", "", fields, 0),
			entry("EVT_AP_Lost_Contact", "", fields, 1),
			entry("EVT_AP_Lost_Contact", "", fields, 2),
		},
	})

	if len(result.Findings) != 1 {
		t.Fatalf("findings = %d, want 1 deduped", len(result.Findings))
	}
	if result.Findings[0].Duplicates != 2 {
		t.Errorf("duplicates = %d, want 2", result.Findings[0].Duplicates)
	}
}

// Re-running analysis over an unchanged batch must reproduce identical
// output, IDs included. Nothing in the pipeline may read the clock or any
// other ambient state.
func TestAnalyze_Deterministic(t *testing.T) {
	e := testEngine(t)

	batch := Batch{
		At: time.Date(2024, 1, 12, 20, 0, 0, 0, time.UTC),
		Entries: []schema.LogEntry{
			entry("EVT_AD_LoginFailed", "", map[string]string{"admin": "ops", "ip": "203.0.113.9"}, 0),
			entry("EVT_SW_PoeOverload", "", map[string]string{"device": "core-sw"}, 1),
		},
		IPSEvents: func() []schema.IPSEvent {
			events := make([]schema.IPSEvent, 11)
			for i := range events {
				events[i] = schema.IPSEvent{
					Timestamp: time.Date(2024, 1, 12, 19, 0, i, 0, time.UTC),
					Signature: "ET EXPLOIT attempt",
					SrcIP:     "198.51.100.9",
					Blocked:   i%2 == 0,
				}
			}
			return events
		}(),
		Devices: []schema.DeviceMetrics{
			{Name: "gw", CPUPercent: func() *float64 { v := 92.0; return &v }()},
		},
	}

	first := e.Analyze(batch)
	second := e.Analyze(batch)

	if !reflect.DeepEqual(first, second) {
		t.Error("identical input must produce identical output")
	}
	for i := range first.Findings {
		if first.Findings[i].ID != second.Findings[i].ID {
			t.Errorf("finding %d ID changed between runs", i)
		}
	}
}

func TestSortFindings(t *testing.T) {
	findings := []schema.Finding{
		{Severity: schema.SeverityLow, Category: schema.CategorySystem, Title: "c"},
		{Severity: schema.SeveritySevere, Category: schema.CategorySecurity, Title: "a"},
		{Severity: schema.SeveritySevere, Category: schema.CategoryConnectivity, Title: "b"},
	}

	SortFindings(findings)

	if findings[0].Title != "b" || findings[1].Title != "a" || findings[2].Title != "c" {
		t.Errorf("order = %s, %s, %s", findings[0].Title, findings[1].Title, findings[2].Title)
	}
}
