package schema

// DeviceMetrics is a point-in-time snapshot of one device's monitored
// metrics. Nil pointers mark metrics the controller did not report; the
// health analyzer skips those checks rather than failing the device.
type DeviceMetrics struct {
	Name        string   `json:"name"`
	Model       string   `json:"model,omitempty"`
	IP          string   `json:"ip,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	CPUPercent  *float64 `json:"cpu_percent,omitempty"`
	MemPercent  *float64 `json:"mem_percent,omitempty"`
	UptimeDays  *float64 `json:"uptime_days,omitempty"`
}

// HealthTier is the threshold tier a metric reached. Critical implies the
// warning boundary was also exceeded.
type HealthTier int

const (
	TierOK HealthTier = iota
	TierWarning
	TierCritical
)

// String returns the report label for the tier.
func (t HealthTier) String() string {
	switch t {
	case TierOK:
		return "ok"
	case TierWarning:
		return "warning"
	case TierCritical:
		return "critical"
	}
	return "unknown"
}

// HealthThresholds holds the warning and critical boundaries for each
// monitored metric. Comparison is strictly greater-than: a value exactly at
// a boundary does not trigger. Immutable once constructed.
type HealthThresholds struct {
	TempWarning    float64 `yaml:"temp_warning" json:"temp_warning"`
	TempCritical   float64 `yaml:"temp_critical" json:"temp_critical"`
	CPUWarning     float64 `yaml:"cpu_warning" json:"cpu_warning"`
	CPUCritical    float64 `yaml:"cpu_critical" json:"cpu_critical"`
	MemWarning     float64 `yaml:"mem_warning" json:"mem_warning"`
	MemCritical    float64 `yaml:"mem_critical" json:"mem_critical"`
	UptimeWarning  float64 `yaml:"uptime_warning" json:"uptime_warning"`
	UptimeCritical float64 `yaml:"uptime_critical" json:"uptime_critical"`
}

// DefaultHealthThresholds returns the shipped boundaries: temperature
// 80/90 C, CPU 80/95 %, memory 85/95 %, uptime 90/180 days.
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{
		TempWarning:    80,
		TempCritical:   90,
		CPUWarning:     80,
		CPUCritical:    95,
		MemWarning:     85,
		MemCritical:    95,
		UptimeWarning:  90,
		UptimeCritical: 180,
	}
}

// DeviceHealthFinding records one metric of one device exceeding a boundary.
// At most one finding is emitted per metric per device.
type DeviceHealthFinding struct {
	Device    string     `json:"device"`
	Metric    string     `json:"metric"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
	Tier      HealthTier `json:"tier"`
}

// DeviceHealthSummary rolls up a health pass: per-tier device counts, the
// worst tier observed, and the individual findings.
type DeviceHealthSummary struct {
	DevicesOK       int                   `json:"devices_ok"`
	DevicesWarning  int                   `json:"devices_warning"`
	DevicesCritical int                   `json:"devices_critical"`
	WorstTier       HealthTier            `json:"worst_tier"`
	Findings        []DeviceHealthFinding `json:"findings,omitempty"`
}
