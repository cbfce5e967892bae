package unifi

import (
	"fmt"
	"strconv"
	"time"

	"unifi-report/internal/ips"
	"unifi-report/internal/schema"
)

// Normalizer converts raw controller records into the canonical report
// schema. It is stateless; one Normalizer serves all record kinds.
type Normalizer struct{}

// NewNormalizer creates a new controller record normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeEvent converts a raw controller event into a log entry. The
// event key passes through untouched; named values are collected into the
// fields bag for template rendering. Records without a usable timestamp
// fail with a TimestampError rather than being silently dated.
func (n *Normalizer) NormalizeEvent(ev *RawEvent) (*schema.LogEntry, error) {
	if ev.Key == "" {
		return nil, fmt.Errorf("event record has no key")
	}

	ts, err := n.timestamp(ev.Time, ev.Datetime)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.Key, err)
	}

	fields := make(map[string]string)
	putField(fields, "device", firstNonEmpty(ev.APName, ev.SWName, ev.GWName, ev.AP, ev.SW, ev.GW))
	putField(fields, "client", firstNonEmpty(ev.Hostname, ev.User))
	putField(fields, "admin", ev.Admin)
	putField(fields, "ip", ev.IP)
	putField(fields, "ssid", ev.SSID)
	putField(fields, "essid", ev.ESSID)
	putField(fields, "channel", anyToString(ev.Channel))
	putField(fields, "port", anyToString(ev.Port))
	putField(fields, "version", ev.Version)
	putField(fields, "wan_iface", ev.WANIface)

	return &schema.LogEntry{
		EventKey:  ev.Key,
		Message:   ev.Msg,
		Fields:    fields,
		Timestamp: ts,
	}, nil
}

// NormalizeAlarm converts a raw IPS alarm into a structured threat event.
// The blocked flag comes from the alarm's recorded action; severity follows
// it, since a threat the gateway let through demands more attention than
// one it stopped.
func (n *Normalizer) NormalizeAlarm(alarm *RawAlarm) (*schema.IPSEvent, error) {
	ts, err := n.timestamp(alarm.Time, alarm.Datetime)
	if err != nil {
		return nil, fmt.Errorf("alarm: %w", err)
	}

	blocked := ips.ActionBlocked(alarm.Action)
	severity := schema.SeveritySevere
	if blocked {
		severity = schema.SeverityMedium
	}

	category := alarm.Category
	if category == "" {
		category, _, _ = ips.ParseSignature(alarm.Signature)
	}

	return &schema.IPSEvent{
		Timestamp: ts,
		Signature: alarm.Signature,
		Category:  category,
		SrcIP:     firstNonEmpty(alarm.SrcIP, alarm.InnerSrcIP),
		DstIP:     firstNonEmpty(alarm.DstIP, alarm.InnerDstIP),
		SrcPort:   alarm.SrcPort,
		DstPort:   alarm.DstPort,
		Protocol:  alarm.Protocol,
		Blocked:   blocked,
		Severity:  severity,
		Raw:       alarm.Msg,
	}, nil
}

// NormalizeDevice converts a raw device record into a metrics snapshot.
// Metrics the controller did not report stay nil so the health analyzer
// skips them instead of judging a missing value.
func (n *Normalizer) NormalizeDevice(dev *RawDevice) *schema.DeviceMetrics {
	metrics := &schema.DeviceMetrics{
		Name:        dev.Name,
		Model:       dev.Model,
		IP:          dev.IP,
		Temperature: dev.Temperature,
	}

	if dev.SystemStats != nil {
		metrics.CPUPercent = parsePercent(dev.SystemStats.CPU)
		metrics.MemPercent = parsePercent(dev.SystemStats.Mem)
	}
	if dev.Uptime != nil {
		days := float64(*dev.Uptime) / 86400
		metrics.UptimeDays = &days
	}
	return metrics
}

// timestamp normalizes whichever time representation the record carries,
// preferring the numeric field over the display string.
func (n *Normalizer) timestamp(raw any, datetime string) (time.Time, error) {
	if raw != nil {
		if t, err := schema.NormalizeTimestamp(raw); err == nil {
			return t, nil
		}
	}
	return schema.NormalizeTimestamp(datetime)
}

func putField(fields map[string]string, name, value string) {
	if value != "" {
		fields[name] = value
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// anyToString renders the loosely typed controller fields (JSON numbers or
// strings) for the template fields bag.
func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return fmt.Sprintf("%v", v)
}

func parsePercent(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
