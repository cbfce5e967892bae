// Package schema defines the severity/category model and the record and
// finding types shared by every stage of the analysis pipeline.
package schema

import (
	"time"

	"github.com/google/uuid"
)

// Severity ranks how urgent a finding is. The zero value is the lowest
// severity; values are totally ordered and comparable with <.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeveritySevere
)

// String returns the report label for the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeveritySevere:
		return "severe"
	}
	return "unknown"
}

// IsValid checks if the severity is a defined level.
func (s Severity) IsValid() bool {
	return s >= SeverityLow && s <= SeveritySevere
}

// Category groups findings by operational concern. Categories are purely
// descriptive; no ordering is defined between them.
type Category string

const (
	CategorySecurity     Category = "security"
	CategoryConnectivity Category = "connectivity"
	CategoryPerformance  Category = "performance"
	CategorySystem       Category = "system"
)

// IsValid checks if the category is a defined value.
func (c Category) IsValid() bool {
	switch c {
	case CategorySecurity, CategoryConnectivity, CategoryPerformance, CategorySystem:
		return true
	}
	return false
}

// LogEntry is a normalized controller event record. The Fields bag carries
// the named values (device, user, IP, ...) that rule templates substitute.
// Timestamp is always UTC; normalization happens at the ingest boundary.
type LogEntry struct {
	EventKey  string            `json:"event_key" validate:"required"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp" validate:"required"`
}

// Field returns the named field and whether it is present.
func (e *LogEntry) Field(name string) (string, bool) {
	if e.Fields == nil {
		return "", false
	}
	v, ok := e.Fields[name]
	return v, ok
}

// Finding is a classified, human-readable statement derived from one raw
// record. Findings are immutable once created; the store owns them until
// formatting and delivery.
type Finding struct {
	ID          uuid.UUID `json:"id"`
	Category    Category  `json:"category"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Remediation string    `json:"remediation,omitempty"`
	EventKey    string    `json:"event_key"`
	Source      string    `json:"source,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	// Duplicates counts additional occurrences folded into this finding
	// by the store within a single run.
	Duplicates int `json:"duplicates,omitempty"`
}

// findingNamespace scopes content-derived finding IDs.
var findingNamespace = uuid.MustParse("9c4f1d52-3a78-4b0e-8c65-2d9a07e4f1b3")

// FindingID derives a stable ID from the fields that identify a finding.
// Re-analyzing an unchanged batch therefore reproduces identical output;
// no hidden state leaks into IDs.
func FindingID(eventKey, source, title string, ts time.Time) uuid.UUID {
	key := eventKey + "|" + source + "|" + title + "|" + ts.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(findingNamespace, []byte(key))
}
