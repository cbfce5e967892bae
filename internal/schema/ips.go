package schema

import "time"

// IPSEvent is a structured intrusion-detection record. It is distinct from
// LogEntry because IPS records carry threat metadata the generic rule
// catalog cannot classify.
type IPSEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Signature string    `json:"signature"`
	Category  string    `json:"category"`
	SrcIP     string    `json:"src_ip"`
	DstIP     string    `json:"dst_ip,omitempty"`
	SrcPort   int       `json:"src_port,omitempty"`
	DstPort   int       `json:"dst_port,omitempty"`
	Protocol  string    `json:"protocol,omitempty"`
	Blocked   bool      `json:"blocked"`
	Severity  Severity  `json:"severity"`
	Raw       string    `json:"raw,omitempty"`
}

// SourceIPSummary aggregates threat events observed from one source address.
// Summaries are only produced for sources meeting the aggregation threshold
// and are never mutated after construction.
type SourceIPSummary struct {
	SourceIP    string         `json:"source_ip"`
	TotalEvents int            `json:"total_events"`
	Categories  map[string]int `json:"categories"`
	Internal    bool           `json:"internal"`
	Signatures  []string       `json:"signatures"`

	// Intel is optional third-party enrichment. Nil when no integration
	// is configured or every lookup failed.
	Intel *IPIntel `json:"intel,omitempty"`
}

// IPIntel holds reputation/location context for a source address fetched
// from an external integration.
type IPIntel struct {
	Provider   string `json:"provider"`
	Reputation string `json:"reputation,omitempty"`
	Country    string `json:"country,omitempty"`
	ASN        string `json:"asn,omitempty"`
}
