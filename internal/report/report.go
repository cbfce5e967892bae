// Package report renders an analysis result as a human-readable document.
// The plain formatter is deterministic: the same result formats to the same
// bytes, so archived reports can be compared directly.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"unifi-report/internal/analysis"
	"unifi-report/internal/schema"
)

// Report pairs one analysis result with the window it covers.
type Report struct {
	GeneratedAt time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
	Result      analysis.Result
}

// severityOrder walks severities from most to least urgent.
var severityOrder = []schema.Severity{
	schema.SeveritySevere,
	schema.SeverityMedium,
	schema.SeverityLow,
}

// categoryOrder fixes the section order inside a severity block.
var categoryOrder = []schema.Category{
	schema.CategorySecurity,
	schema.CategoryConnectivity,
	schema.CategoryPerformance,
	schema.CategorySystem,
}

// Formatter renders reports as plain text.
type Formatter struct{}

// NewFormatter creates a plain-text formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format writes the report. Findings are grouped by severity, then by
// category, then ordered by timestamp with title as the tiebreaker.
func (f *Formatter) Format(w io.Writer, r Report) error {
	var b strings.Builder

	b.WriteString("NETWORK REPORT\n")
	b.WriteString("==============\n")
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	if !r.PeriodStart.IsZero() {
		fmt.Fprintf(&b, "Period:    %s to %s\n",
			r.PeriodStart.UTC().Format(time.RFC3339), r.PeriodEnd.UTC().Format(time.RFC3339))
	}
	b.WriteString("\n")

	f.writeSummary(&b, r)
	f.writeFindings(&b, r.Result.Findings)
	f.writeSources(&b, r.Result.SourceSummaries)
	f.writeHealth(&b, r.Result.Health)
	f.writeUnclassified(&b, r.Result)

	_, err := io.WriteString(w, b.String())
	return err
}

func (f *Formatter) writeSummary(b *strings.Builder, r Report) {
	counts := make(map[schema.Severity]int)
	for _, finding := range r.Result.Findings {
		counts[finding.Severity]++
	}

	b.WriteString("SUMMARY\n")
	b.WriteString("-------\n")
	fmt.Fprintf(b, "Findings: %d total", len(r.Result.Findings))
	if len(r.Result.Findings) > 0 {
		parts := make([]string, 0, len(severityOrder))
		for _, sev := range severityOrder {
			if counts[sev] > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", counts[sev], sev))
			}
		}
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n\n")
}

func (f *Formatter) writeFindings(b *strings.Builder, findings []schema.Finding) {
	if len(findings) == 0 {
		b.WriteString("No findings for this period.\n\n")
		return
	}

	grouped := make(map[schema.Severity]map[schema.Category][]schema.Finding)
	for _, finding := range findings {
		if grouped[finding.Severity] == nil {
			grouped[finding.Severity] = make(map[schema.Category][]schema.Finding)
		}
		grouped[finding.Severity][finding.Category] = append(grouped[finding.Severity][finding.Category], finding)
	}

	for _, sev := range severityOrder {
		byCategory := grouped[sev]
		if len(byCategory) == 0 {
			continue
		}

		header := strings.ToUpper(sev.String())
		fmt.Fprintf(b, "%s\n%s\n", header, strings.Repeat("-", len(header)))

		for _, cat := range categoryOrder {
			section := byCategory[cat]
			if len(section) == 0 {
				continue
			}
			sort.SliceStable(section, func(i, j int) bool {
				if !section[i].Timestamp.Equal(section[j].Timestamp) {
					return section[i].Timestamp.Before(section[j].Timestamp)
				}
				return section[i].Title < section[j].Title
			})

			fmt.Fprintf(b, "[%s]\n", cat)
			for _, finding := range section {
				f.writeFinding(b, finding)
			}
		}
		b.WriteString("\n")
	}
}

func (f *Formatter) writeFinding(b *strings.Builder, finding schema.Finding) {
	fmt.Fprintf(b, "* %s", finding.Title)
	if finding.Duplicates > 0 {
		fmt.Fprintf(b, " (x%d)", finding.Duplicates+1)
	}
	b.WriteString("\n")

	if !finding.Timestamp.IsZero() {
		fmt.Fprintf(b, "  When: %s\n", finding.Timestamp.UTC().Format(time.RFC3339))
	}
	if finding.Description != "" {
		fmt.Fprintf(b, "  %s\n", finding.Description)
	}
	if finding.Remediation != "" {
		fmt.Fprintf(b, "  Action: %s\n", finding.Remediation)
	}
}

func (f *Formatter) writeSources(b *strings.Builder, summaries []schema.SourceIPSummary) {
	if len(summaries) == 0 {
		return
	}

	b.WriteString("THREAT SOURCES\n")
	b.WriteString("--------------\n")
	for _, s := range summaries {
		locality := "external"
		if s.Internal {
			locality = "internal"
		}
		fmt.Fprintf(b, "%s (%s): %d events\n", s.SourceIP, locality, s.TotalEvents)

		categories := make([]string, 0, len(s.Categories))
		for name := range s.Categories {
			categories = append(categories, name)
		}
		sort.Slice(categories, func(i, j int) bool {
			if s.Categories[categories[i]] != s.Categories[categories[j]] {
				return s.Categories[categories[i]] > s.Categories[categories[j]]
			}
			return categories[i] < categories[j]
		})
		for _, name := range categories {
			fmt.Fprintf(b, "  %s: %d\n", name, s.Categories[name])
		}
		if s.Intel != nil {
			fmt.Fprintf(b, "  Intel (%s): %s", s.Intel.Provider, s.Intel.Reputation)
			if s.Intel.Country != "" {
				fmt.Fprintf(b, ", %s", s.Intel.Country)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
}

func (f *Formatter) writeHealth(b *strings.Builder, health schema.DeviceHealthSummary) {
	total := health.DevicesOK + health.DevicesWarning + health.DevicesCritical
	if total == 0 {
		return
	}

	b.WriteString("DEVICE HEALTH\n")
	b.WriteString("-------------\n")
	fmt.Fprintf(b, "%d devices: %d ok, %d warning, %d critical\n",
		total, health.DevicesOK, health.DevicesWarning, health.DevicesCritical)
	b.WriteString("\n")
}

func (f *Formatter) writeUnclassified(b *strings.Builder, result analysis.Result) {
	if result.UnclassifiedTotal == 0 {
		return
	}

	fmt.Fprintf(b, "Unclassified records: %d", result.UnclassifiedTotal)

	keys := make([]string, 0, len(result.Unclassified))
	for key := range result.Unclassified {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if result.Unclassified[keys[i]] != result.Unclassified[keys[j]] {
			return result.Unclassified[keys[i]] > result.Unclassified[keys[j]]
		}
		return keys[i] < keys[j]
	})

	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = fmt.Sprintf("%s: %d", key, result.Unclassified[key])
	}
	fmt.Fprintf(b, " (%s)\n", strings.Join(parts, ", "))
}
