// Package analysis orchestrates the pipeline: rule matching for generic
// controller events, delegation to the IPS and device-health analyzers,
// and merging of the results into one finding set.
package analysis

import (
	"sort"
	"time"

	"unifi-report/internal/health"
	"unifi-report/internal/ips"
	"unifi-report/internal/rules"
	"unifi-report/internal/schema"
)

// Batch is one polling cycle's worth of input: generic event records, IPS
// records, and a device metrics snapshot. At is the cycle's reference time,
// set by the caller so the engine never reads the clock; when zero, the
// latest record timestamp stands in.
type Batch struct {
	Entries   []schema.LogEntry
	IPSEvents []schema.IPSEvent
	Devices   []schema.DeviceMetrics
	At        time.Time
}

// Result is everything one analysis pass produces. Findings preserve input
// order; callers wanting severity grouping sort explicitly.
type Result struct {
	Findings        []schema.Finding
	SourceSummaries []schema.SourceIPSummary
	Health          schema.DeviceHealthSummary

	// Unclassified counts records whose event key no rule claimed, or
	// whose content no claiming rule's pattern matched. These are
	// observability counters, not errors.
	Unclassified      map[string]int
	UnclassifiedTotal int
}

// Engine runs analysis passes. It is a pure function of its inputs: the
// registry is read-only after construction and the engine holds no other
// state, so independent batches may be analyzed concurrently.
type Engine struct {
	registry *rules.Registry
	ips      *ips.Analyzer
	health   *health.Analyzer
}

// NewEngine creates an engine from constructed-once collaborators.
func NewEngine(registry *rules.Registry, ipsAnalyzer *ips.Analyzer, healthAnalyzer *health.Analyzer) *Engine {
	return &Engine{
		registry: registry,
		ips:      ipsAnalyzer,
		health:   healthAnalyzer,
	}
}

// Analyze runs one full pass over the batch and dedupes the merged
// findings. Per-record problems never abort the pass.
func (e *Engine) Analyze(batch Batch) Result {
	result := e.AnalyzeEntries(batch.Entries)

	store := NewStore()
	store.AddAll(result.Findings)

	if len(batch.IPSEvents) > 0 {
		ipsFindings, summaries := e.ips.Analyze(batch.IPSEvents)
		store.AddAll(ipsFindings)
		result.SourceSummaries = summaries
	}

	if len(batch.Devices) > 0 {
		result.Health = e.health.Analyze(batch.Devices)
		store.AddAll(health.ToFindings(result.Health, batchTime(batch)))
	}

	result.Findings = store.Findings()
	return result
}

// AnalyzeEntries classifies generic event records against the registry.
// Records that match no rule are counted, not failed, and produce no
// finding.
func (e *Engine) AnalyzeEntries(entries []schema.LogEntry) Result {
	result := Result{
		Unclassified: make(map[string]int),
	}

	for _, entry := range entries {
		rule, ok := e.registry.FindMatch(entry.EventKey, entry.Message)
		if !ok {
			result.Unclassified[entry.EventKey]++
			result.UnclassifiedTotal++
			continue
		}
		result.Findings = append(result.Findings, renderFinding(rule, entry))
	}

	return result
}

// renderFinding expands the rule's templates against the entry's fields.
func renderFinding(rule *rules.Rule, entry schema.LogEntry) schema.Finding {
	remediation := ""
	if rule.Remediation != "" {
		remediation = rules.RenderTemplate(rule.Remediation, entry.Fields)
	}

	source := entry.Fields["device"]
	if source == "" {
		source = entry.Fields["client"]
	}

	title := rules.RenderTemplate(rule.Title, entry.Fields)
	return schema.Finding{
		ID:          schema.FindingID(entry.EventKey, source, title, entry.Timestamp),
		Category:    rule.Category,
		Severity:    rule.Severity,
		Title:       title,
		Description: rules.RenderTemplate(rule.Description, entry.Fields),
		Remediation: remediation,
		EventKey:    entry.EventKey,
		Source:      source,
		Timestamp:   entry.Timestamp,
	}
}

// SortFindings orders findings by severity descending, then category, with
// a stable sort so input order breaks ties. Used for report grouping; the
// engine itself returns input order.
func SortFindings(findings []schema.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return findings[i].Severity > findings[j].Severity
		}
		return findings[i].Category < findings[j].Category
	})
}

func batchTime(batch Batch) time.Time {
	if !batch.At.IsZero() {
		return batch.At
	}
	var latest time.Time
	for _, e := range batch.Entries {
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	for _, e := range batch.IPSEvents {
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	return latest
}
