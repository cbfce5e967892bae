package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"unifi-report/internal/analysis"
	"unifi-report/internal/schema"
)

func sampleReport() Report {
	ts := time.Date(2024, 1, 12, 20, 0, 0, 0, time.UTC)
	return Report{
		GeneratedAt: ts,
		PeriodStart: ts.Add(-24 * time.Hour),
		PeriodEnd:   ts,
		Result: analysis.Result{
			Findings: []schema.Finding{
				{
					Category:    schema.CategoryConnectivity,
					Severity:    schema.SeveritySevere,
					Title:       "Device office-ap is offline",
					Description: "The controller lost contact with office-ap.",
					Remediation: "Check power and uplink cabling for office-ap.",
					EventKey:    "EVT_AP_Lost_Contact",
					Timestamp:   ts.Add(-time.Hour),
					Duplicates:  2,
				},
				{
					Category:  schema.CategorySecurity,
					Severity:  schema.SeverityMedium,
					Title:     "Failed controller login for ops",
					EventKey:  "EVT_AD_LoginFailed",
					Timestamp: ts.Add(-2 * time.Hour),
				},
				{
					Category:  schema.CategorySystem,
					Severity:  schema.SeverityLow,
					Title:     "Device gw upgraded",
					EventKey:  "EVT_GW_Upgraded",
					Timestamp: ts.Add(-3 * time.Hour),
				},
			},
			SourceSummaries: []schema.SourceIPSummary{
				{
					SourceIP:    "203.0.113.7",
					TotalEvents: 14,
					Categories:  map[string]int{"SCAN": 10, "MALWARE": 4},
					Internal:    false,
				},
			},
			Health: schema.DeviceHealthSummary{
				DevicesOK:      3,
				DevicesWarning: 1,
				WorstTier:      schema.TierWarning,
			},
			Unclassified:      map[string]int{"EVT_XX_Odd": 2},
			UnclassifiedTotal: 2,
		},
	}
}

func TestFormatter_Sections(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter().Format(&buf, sampleReport()); err != nil {
		t.Fatalf("Format: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"NETWORK REPORT",
		"Findings: 3 total (1 severe, 1 medium, 1 low)",
		"SEVERE",
		"[connectivity]",
		"Device office-ap is offline (x3)",
		"Action: Check power and uplink cabling",
		"THREAT SOURCES",
		"203.0.113.7 (external): 14 events",
		"SCAN: 10",
		"4 devices: 3 ok, 1 warning, 0 critical",
		"Unclassified records: 2 (EVT_XX_Odd: 2)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n---\n%s", want, out)
		}
	}

	// Severity blocks come most-urgent first.
	if strings.Index(out, "SEVERE") > strings.Index(out, "MEDIUM") {
		t.Error("severe block must precede medium")
	}
	if strings.Index(out, "MEDIUM") > strings.Index(out, "LOW") {
		t.Error("medium block must precede low")
	}
}

func TestFormatter_Deterministic(t *testing.T) {
	r := sampleReport()

	var first, second bytes.Buffer
	NewFormatter().Format(&first, r)
	NewFormatter().Format(&second, r)

	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("same report must format to identical bytes")
	}
}

func TestFormatter_EmptyResult(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter().Format(&buf, Report{
		GeneratedAt: time.Date(2024, 1, 12, 20, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(buf.String(), "No findings for this period.") {
		t.Errorf("empty result output:\n%s", buf.String())
	}
}

func TestStyledFormatter_RendersWithoutError(t *testing.T) {
	var buf bytes.Buffer
	if err := NewStyledFormatter().Format(&buf, sampleReport()); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(buf.String(), "Device office-ap is offline") {
		t.Error("styled output must carry the finding titles")
	}

	var empty bytes.Buffer
	if err := NewStyledFormatter().Format(&empty, Report{GeneratedAt: time.Now()}); err != nil {
		t.Fatalf("Format empty: %v", err)
	}
}
