package analysis

import (
	"testing"
	"time"

	"unifi-report/internal/schema"
)

func sampleFinding(eventKey, source, title string) schema.Finding {
	ts := time.Date(2024, 1, 12, 20, 0, 0, 0, time.UTC)
	return schema.Finding{
		ID:        schema.FindingID(eventKey, source, title, ts),
		Category:  schema.CategorySecurity,
		Severity:  schema.SeverityMedium,
		Title:     title,
		EventKey:  eventKey,
		Source:    source,
		Timestamp: ts,
	}
}

func TestStore_DedupFoldsDuplicates(t *testing.T) {
	s := NewStore()

	if !s.Add(sampleFinding("EVT_AD_LoginFailed", "gw", "Failed admin login")) {
		t.Error("first insert must report new")
	}
	if s.Add(sampleFinding("EVT_AD_LoginFailed", "gw", "Failed admin login")) {
		t.Error("identical finding must fold, not insert")
	}
	s.Add(sampleFinding("EVT_AD_LoginFailed", "gw", "Failed admin login"))

	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	got := s.Findings()
	if got[0].Duplicates != 2 {
		t.Errorf("duplicates = %d, want 2", got[0].Duplicates)
	}
}

func TestStore_DistinctKeysKept(t *testing.T) {
	s := NewStore()
	s.Add(sampleFinding("EVT_AD_LoginFailed", "gw", "Failed admin login"))
	s.Add(sampleFinding("EVT_AD_LoginFailed", "sw", "Failed admin login")) // different source
	s.Add(sampleFinding("EVT_AD_LoginFailed", "gw", "Another title"))      // different title

	if s.Len() != 3 {
		t.Errorf("len = %d, want 3", s.Len())
	}
}

func TestStore_PreservesInsertionOrder(t *testing.T) {
	s := NewStore()
	s.Add(sampleFinding("B", "", "second key first"))
	s.Add(sampleFinding("A", "", "first key second"))
	s.Add(sampleFinding("B", "", "second key first")) // duplicate does not reorder

	got := s.Findings()
	if got[0].EventKey != "B" || got[1].EventKey != "A" {
		t.Errorf("order = %s, %s; want B, A", got[0].EventKey, got[1].EventKey)
	}
}

func TestStore_FindingsReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Add(sampleFinding("EVT_AD_LoginFailed", "gw", "Failed admin login"))

	out := s.Findings()
	out[0].Title = "mutated"

	if s.Findings()[0].Title != "Failed admin login" {
		t.Error("mutating the returned slice must not affect the store")
	}
}
