package ips

import (
	"net/netip"
	"sort"

	"unifi-report/internal/schema"
)

// DefaultAggregationThreshold is the minimum event count before a source
// address is surfaced in a summary.
const DefaultAggregationThreshold = 10

// AggregateBySource groups threat events by source address and summarizes
// each source meeting the threshold: total count, per-category breakdown,
// distinct signatures, and an internal/external classification. Results are
// ordered by total count descending, ties stable by first appearance. A
// threshold below 1 falls back to the default. Empty input yields an empty
// result.
func AggregateBySource(events []schema.IPSEvent, threshold int) []schema.SourceIPSummary {
	if threshold < 1 {
		threshold = DefaultAggregationThreshold
	}

	type group struct {
		summary *schema.SourceIPSummary
		sigSeen map[string]bool
	}

	groups := make(map[string]*group)
	var order []string

	for _, ev := range events {
		if ev.SrcIP == "" {
			continue
		}
		g, ok := groups[ev.SrcIP]
		if !ok {
			g = &group{
				summary: &schema.SourceIPSummary{
					SourceIP:   ev.SrcIP,
					Categories: make(map[string]int),
					Internal:   IsInternalIP(ev.SrcIP),
				},
				sigSeen: make(map[string]bool),
			}
			groups[ev.SrcIP] = g
			order = append(order, ev.SrcIP)
		}

		g.summary.TotalEvents++

		category := ev.Category
		if category == "" {
			category, _, _ = ParseSignature(ev.Signature)
		}
		g.summary.Categories[category]++

		if ev.Signature != "" && !g.sigSeen[ev.Signature] {
			g.sigSeen[ev.Signature] = true
			g.summary.Signatures = append(g.summary.Signatures, ev.Signature)
		}
	}

	summaries := make([]schema.SourceIPSummary, 0, len(order))
	for _, ip := range order {
		if g := groups[ip]; g.summary.TotalEvents >= threshold {
			summaries = append(summaries, *g.summary)
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].TotalEvents > summaries[j].TotalEvents
	})
	return summaries
}

// IsInternalIP reports whether the address is in a private-use range
// (RFC1918 and equivalents) or loopback. A string that does not parse as
// an address classifies as external: for threat reporting, failing open to
// visibility beats hiding a source behind a parse error.
func IsInternalIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return addr.IsPrivate() || addr.IsLoopback()
}
