package ips

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"unifi-report/internal/schema"
)

// Analyzer turns a batch of IPS events into findings and per-source
// summaries. It is a pure computation over its inputs; one Analyzer is
// safe for concurrent use.
type Analyzer struct {
	threshold int
}

// NewAnalyzer creates an analyzer with the given aggregation threshold.
// A threshold below 1 uses the default.
func NewAnalyzer(threshold int) *Analyzer {
	if threshold < 1 {
		threshold = DefaultAggregationThreshold
	}
	return &Analyzer{threshold: threshold}
}

// Analyze aggregates the events by source and derives one finding per
// surfaced source, plus one rollup finding for threats that were detected
// but not blocked. Severity escalates to severe when a surfaced source had
// unblocked events.
func (a *Analyzer) Analyze(events []schema.IPSEvent) ([]schema.Finding, []schema.SourceIPSummary) {
	if len(events) == 0 {
		return nil, nil
	}

	summaries := AggregateBySource(events, a.threshold)

	unblockedBySrc := make(map[string]int)
	unblockedTotal := 0
	var latest time.Time
	for _, ev := range events {
		if !ev.Blocked {
			unblockedBySrc[ev.SrcIP]++
			unblockedTotal++
		}
		if ev.Timestamp.After(latest) {
			latest = ev.Timestamp
		}
	}

	findings := make([]schema.Finding, 0, len(summaries)+1)
	for _, s := range summaries {
		findings = append(findings, a.sourceFinding(s, unblockedBySrc[s.SourceIP], latest))
	}

	if unblockedTotal > 0 {
		title := fmt.Sprintf("%d threat events were detected but not blocked", unblockedTotal)
		findings = append(findings, schema.Finding{
			ID:       schema.FindingID("IPS_UNBLOCKED", "", title, latest),
			Category: schema.CategorySecurity,
			Severity: schema.SeveritySevere,
			Title:    title,
			Description: fmt.Sprintf(
				"The intrusion detection engine observed %d of %d threat events without blocking them. "+
					"The affected signatures passed traffic into the network.", unblockedTotal, len(events)),
			Remediation: "Switch the affected IPS categories from detection to prevention mode, or add explicit firewall rules for the listed sources.",
			EventKey:    "IPS_UNBLOCKED",
			Timestamp:   latest,
		})
	}

	return findings, summaries
}

func (a *Analyzer) sourceFinding(s schema.SourceIPSummary, unblocked int, ts time.Time) schema.Finding {
	severity := schema.SeverityMedium
	if unblocked > 0 {
		severity = schema.SeveritySevere
	}

	locality := "external"
	if s.Internal {
		locality = "internal"
	}

	remediation := fmt.Sprintf("Block %s at the gateway and review firewall logs for successful sessions from it.", s.SourceIP)
	if s.Internal {
		remediation = fmt.Sprintf("Source %s is inside the network: isolate the host and investigate it for compromise before it reaches further targets.", s.SourceIP)
	}

	title := fmt.Sprintf("Repeated threat activity from %s address %s", locality, s.SourceIP)
	return schema.Finding{
		ID:       schema.FindingID("IPS_SOURCE_ACTIVITY", s.SourceIP, title, ts),
		Category: schema.CategorySecurity,
		Severity: severity,
		Title:    title,
		Description: fmt.Sprintf("%d threat events were recorded from %s (%s). Breakdown: %s.",
			s.TotalEvents, s.SourceIP, locality, formatBreakdown(s.Categories)),
		Remediation: remediation,
		EventKey:    "IPS_SOURCE_ACTIVITY",
		Source:      s.SourceIP,
		Timestamp:   ts,
	}
}

// formatBreakdown renders a category count map as "SCAN: 8, MALWARE: 4" in
// descending count order, ties alphabetical, so report output is stable.
func formatBreakdown(categories map[string]int) string {
	type pair struct {
		name  string
		count int
	}
	pairs := make([]pair, 0, len(categories))
	for name, count := range categories {
		pairs = append(pairs, pair{name, count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].name < pairs[j].name
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s (%s): %d", p.name, FriendlyCategory(p.name), p.count)
	}
	return strings.Join(parts, ", ")
}
