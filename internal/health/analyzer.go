// Package health evaluates device metrics against two-tier thresholds and
// rolls the results up into a fleet summary.
package health

import (
	"fmt"
	"time"

	"unifi-report/internal/schema"
)

// Analyzer compares device metric snapshots to a threshold set. It holds
// no mutable state; one Analyzer is safe for concurrent use.
type Analyzer struct {
	thresholds schema.HealthThresholds
}

// NewAnalyzer creates an analyzer. A zero-value thresholds struct is
// replaced with the shipped defaults.
func NewAnalyzer(thresholds schema.HealthThresholds) *Analyzer {
	if thresholds == (schema.HealthThresholds{}) {
		thresholds = schema.DefaultHealthThresholds()
	}
	return &Analyzer{thresholds: thresholds}
}

// metricCheck pairs one metric reading with its boundaries.
type metricCheck struct {
	name     string
	unit     string
	value    *float64
	warning  float64
	critical float64
}

// Analyze evaluates every device in the snapshot. Each metric yields at
// most one finding: the critical boundary is checked first and suppresses
// the warning for the same metric. Comparison is strictly greater-than, so
// a value exactly at a boundary does not trigger. Missing metrics are
// skipped, not treated as failures.
func (a *Analyzer) Analyze(devices []schema.DeviceMetrics) schema.DeviceHealthSummary {
	summary := schema.DeviceHealthSummary{}

	for _, dev := range devices {
		deviceTier := schema.TierOK

		for _, check := range []metricCheck{
			{"temperature", "°C", dev.Temperature, a.thresholds.TempWarning, a.thresholds.TempCritical},
			{"cpu", "%", dev.CPUPercent, a.thresholds.CPUWarning, a.thresholds.CPUCritical},
			{"memory", "%", dev.MemPercent, a.thresholds.MemWarning, a.thresholds.MemCritical},
			{"uptime", " days", dev.UptimeDays, a.thresholds.UptimeWarning, a.thresholds.UptimeCritical},
		} {
			if check.value == nil {
				continue
			}

			var finding *schema.DeviceHealthFinding
			switch {
			case *check.value > check.critical:
				finding = &schema.DeviceHealthFinding{
					Device: dev.Name, Metric: check.name,
					Value: *check.value, Threshold: check.critical,
					Tier: schema.TierCritical,
				}
			case *check.value > check.warning:
				finding = &schema.DeviceHealthFinding{
					Device: dev.Name, Metric: check.name,
					Value: *check.value, Threshold: check.warning,
					Tier: schema.TierWarning,
				}
			}
			if finding == nil {
				continue
			}

			summary.Findings = append(summary.Findings, *finding)
			if finding.Tier > deviceTier {
				deviceTier = finding.Tier
			}
		}

		switch deviceTier {
		case schema.TierCritical:
			summary.DevicesCritical++
		case schema.TierWarning:
			summary.DevicesWarning++
		default:
			summary.DevicesOK++
		}
		if deviceTier > summary.WorstTier {
			summary.WorstTier = deviceTier
		}
	}

	return summary
}

// ToFindings converts health findings into pipeline findings so they merge
// into the report alongside rule and IPS output.
func ToFindings(summary schema.DeviceHealthSummary, at time.Time) []schema.Finding {
	findings := make([]schema.Finding, 0, len(summary.Findings))
	for _, f := range summary.Findings {
		severity := schema.SeverityMedium
		if f.Tier == schema.TierCritical {
			severity = schema.SeveritySevere
		}

		category := schema.CategoryPerformance
		if f.Metric == "uptime" {
			category = schema.CategorySystem
		}

		title := fmt.Sprintf("%s %s is %s on %s", metricLabel(f.Metric), valueLabel(f), f.Tier, f.Device)
		findings = append(findings, schema.Finding{
			ID:       schema.FindingID("DEVICE_HEALTH", f.Device, title, at),
			Category: category,
			Severity: severity,
			Title:    title,
			Description: fmt.Sprintf("Device %s reports %s %s, above the %s threshold of %s.",
				f.Device, metricLabel(f.Metric), valueLabel(f), f.Tier, thresholdLabel(f)),
			Remediation: remediationFor(f),
			EventKey:    "DEVICE_HEALTH",
			Source:      f.Device,
			Timestamp:   at,
		})
	}
	return findings
}

func metricLabel(metric string) string {
	switch metric {
	case "temperature":
		return "Temperature"
	case "cpu":
		return "CPU load"
	case "memory":
		return "Memory usage"
	case "uptime":
		return "Uptime"
	}
	return metric
}

func valueLabel(f schema.DeviceHealthFinding) string {
	return fmt.Sprintf("%.1f%s", f.Value, unitFor(f.Metric))
}

func thresholdLabel(f schema.DeviceHealthFinding) string {
	return fmt.Sprintf("%.0f%s", f.Threshold, unitFor(f.Metric))
}

func unitFor(metric string) string {
	switch metric {
	case "temperature":
		return "°C"
	case "cpu", "memory":
		return "%"
	case "uptime":
		return " days"
	}
	return ""
}

func remediationFor(f schema.DeviceHealthFinding) string {
	switch f.Metric {
	case "temperature":
		return fmt.Sprintf("Check airflow and ambient temperature around %s; sustained heat shortens hardware life.", f.Device)
	case "cpu":
		return fmt.Sprintf("Identify what is loading %s — heavy DPI or IPS settings are the usual cause on gateways.", f.Device)
	case "memory":
		return fmt.Sprintf("Schedule a restart of %s during a maintenance window and watch for a leak pattern after it returns.", f.Device)
	case "uptime":
		return fmt.Sprintf("Schedule a restart of %s; very long uptimes usually mean pending firmware updates were never applied.", f.Device)
	}
	return ""
}
