package storage

import (
	"context"
	"fmt"
	"time"
)

// UnclassifiedEntry is one event key no rule matched during a run, with
// how often it occurred and one sample message for rule authoring.
type UnclassifiedEntry struct {
	EventKey      string
	SampleMessage string
	Count         int
}

// UnclassifiedWriter records unmatched event keys so operators can see
// which keys are worth a rule.
type UnclassifiedWriter struct {
	client *ClickHouseClient
}

// NewUnclassifiedWriter creates a new UnclassifiedWriter.
func NewUnclassifiedWriter(client *ClickHouseClient) *UnclassifiedWriter {
	return &UnclassifiedWriter{client: client}
}

// WriteBatch stores the unmatched keys of one analysis run.
func (uw *UnclassifiedWriter) WriteBatch(ctx context.Context, seenAt time.Time, entries []UnclassifiedEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := uw.client.PrepareBatch(ctx, `
		INSERT INTO unclassified_events (
			seen_at, event_key, sample_message, count
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare unclassified batch: %w", err)
	}

	for _, entry := range entries {
		err := batch.Append(
			seenAt,
			entry.EventKey,
			entry.SampleMessage,
			uint32(entry.Count),
		)
		if err != nil {
			return fmt.Errorf("failed to append unclassified entry: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send unclassified batch: %w", err)
	}

	return nil
}

// TopKeys returns the most frequent unmatched event keys since the given
// time, worst first.
func (uw *UnclassifiedWriter) TopKeys(ctx context.Context, since time.Time, limit int) ([]UnclassifiedEntry, error) {
	query := `
		SELECT
			event_key,
			any(sample_message),
			toUInt32(sum(count))
		FROM unclassified_events
		WHERE seen_at >= ?
		GROUP BY event_key
		ORDER BY sum(count) DESC
		LIMIT ?
	`

	rows, err := uw.client.Query(ctx, query, since, limit)
	if err != nil {
		return nil, WrapQueryError("TopKeys", "unclassified_events", err)
	}
	defer rows.Close()

	var entries []UnclassifiedEntry
	for rows.Next() {
		var entry UnclassifiedEntry
		var count uint32
		if err := rows.Scan(&entry.EventKey, &entry.SampleMessage, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unclassified entry: %w", err)
		}
		entry.Count = int(count)
		entries = append(entries, entry)
	}

	return entries, nil
}

// Count returns the number of unclassified rows since the given time.
func (uw *UnclassifiedWriter) Count(ctx context.Context, since time.Time) (uint64, error) {
	query := "SELECT toUInt64(sum(count)) FROM unclassified_events WHERE seen_at >= ?"

	rows, err := uw.client.Query(ctx, query, since)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count uint64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}

	return count, nil
}
