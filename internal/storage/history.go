package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"unifi-report/internal/schema"
)

// HistoryFinding is a finding row read back from the history, annotated
// with the run that produced it.
type HistoryFinding struct {
	schema.Finding
	GeneratedAt time.Time
}

// HistoryReader queries the findings history.
type HistoryReader struct {
	client *ClickHouseClient
}

// NewHistoryReader creates a new HistoryReader.
func NewHistoryReader(client *ClickHouseClient) *HistoryReader {
	return &HistoryReader{client: client}
}

const findingColumns = `
	id, generated_at, timestamp,
	category, severity, title, description, remediation,
	event_key, source, duplicates
`

// Recent returns findings generated since the given time, newest run
// first, worst severity first within a run.
func (hr *HistoryReader) Recent(ctx context.Context, since time.Time, limit int) ([]HistoryFinding, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM findings
		WHERE generated_at >= ?
		ORDER BY generated_at DESC, severity DESC, timestamp DESC
		LIMIT ?
	`, findingColumns)

	return hr.queryFindings(ctx, query, since, limit)
}

// ForRun returns every finding of one analysis run.
func (hr *HistoryReader) ForRun(ctx context.Context, generatedAt time.Time) ([]HistoryFinding, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM findings
		WHERE generated_at = ?
		ORDER BY severity DESC, timestamp ASC, title ASC
	`, findingColumns)

	return hr.queryFindings(ctx, query, generatedAt)
}

// Runs returns the instants of the most recent analysis runs, newest
// first, with per-run finding counts.
func (hr *HistoryReader) Runs(ctx context.Context, limit int) ([]RunInfo, error) {
	query := `
		SELECT generated_at, toUInt32(count())
		FROM findings
		GROUP BY generated_at
		ORDER BY generated_at DESC
		LIMIT ?
	`

	rows, err := hr.client.Query(ctx, query, limit)
	if err != nil {
		return nil, WrapQueryError("Runs", "findings", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var run RunInfo
		var count uint32
		if err := rows.Scan(&run.GeneratedAt, &count); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Findings = int(count)
		runs = append(runs, run)
	}

	return runs, nil
}

// CountBySeverity returns finding counts per severity since the given time.
func (hr *HistoryReader) CountBySeverity(ctx context.Context, since time.Time) (map[schema.Severity]uint64, error) {
	query := `
		SELECT severity, count()
		FROM findings
		WHERE generated_at >= ?
		GROUP BY severity
	`

	rows, err := hr.client.Query(ctx, query, since)
	if err != nil {
		return nil, WrapQueryError("CountBySeverity", "findings", err)
	}
	defer rows.Close()

	counts := make(map[schema.Severity]uint64)
	for rows.Next() {
		var severity uint8
		var count uint64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		counts[schema.Severity(severity)] = count
	}

	return counts, nil
}

// TopSources returns the source values most often seen in findings of
// the given event key since the given time. Used for threat-source
// trending across runs.
func (hr *HistoryReader) TopSources(ctx context.Context, eventKey string, since time.Time, limit int) ([]SourceCount, error) {
	query := `
		SELECT source, toUInt32(count())
		FROM findings
		WHERE event_key = ? AND source != '' AND generated_at >= ?
		GROUP BY source
		ORDER BY count() DESC
		LIMIT ?
	`

	rows, err := hr.client.Query(ctx, query, eventKey, since, limit)
	if err != nil {
		return nil, WrapQueryError("TopSources", "findings", err)
	}
	defer rows.Close()

	var sources []SourceCount
	for rows.Next() {
		var sc SourceCount
		var count uint32
		if err := rows.Scan(&sc.Source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		sc.Count = int(count)
		sources = append(sources, sc)
	}

	return sources, nil
}

func (hr *HistoryReader) queryFindings(ctx context.Context, query string, args ...any) ([]HistoryFinding, error) {
	rows, err := hr.client.Query(ctx, query, args...)
	if err != nil {
		return nil, WrapQueryError("Query", "findings", err)
	}
	defer rows.Close()

	var findings []HistoryFinding
	for rows.Next() {
		var (
			f          HistoryFinding
			id         uuid.UUID
			category   string
			severity   uint8
			duplicates uint32
		)
		if err := rows.Scan(
			&id,
			&f.GeneratedAt,
			&f.Timestamp,
			&category,
			&severity,
			&f.Title,
			&f.Description,
			&f.Remediation,
			&f.EventKey,
			&f.Source,
			&duplicates,
		); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.ID = id
		f.Category = schema.Category(category)
		f.Severity = schema.Severity(severity)
		f.Duplicates = int(duplicates)
		findings = append(findings, f)
	}

	return findings, nil
}

// RunInfo summarizes one stored analysis run.
type RunInfo struct {
	GeneratedAt time.Time `json:"generated_at"`
	Findings    int       `json:"findings"`
}

// SourceCount pairs a finding source with its occurrence count.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}
