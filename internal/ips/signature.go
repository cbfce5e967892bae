// Package ips analyzes intrusion-detection records: signature parsing,
// per-source aggregation, and finding generation.
package ips

import (
	"regexp"
	"strings"
)

// signaturePattern matches the Emerging Threats naming convention
// "ET <CATEGORY> <description>". The category is one alphanumeric or
// underscore token; the prefix match is case-insensitive.
var signaturePattern = regexp.MustCompile(`^(?i:ET)\s+([A-Za-z0-9_]+)\s+(.+)$`)

// friendlyCategories maps raw signature categories to report labels.
var friendlyCategories = map[string]string{
	"SCAN":              "Reconnaissance",
	"MALWARE":           "Malware",
	"TROJAN":            "Trojan Activity",
	"EXPLOIT":           "Exploit Attempt",
	"ATTACK_RESPONSE":   "Successful Attack Response",
	"POLICY":            "Policy Violation",
	"DOS":               "Denial of Service",
	"PHISHING":          "Phishing",
	"CNC":               "Command and Control",
	"COINMINING":        "Cryptocurrency Mining",
	"WEB_SERVER":        "Web Server Attack",
	"WEB_CLIENT":        "Web Client Attack",
	"WEB_SPECIFIC_APPS": "Web Application Attack",
	"SQL":               "SQL Injection",
	"USER_AGENTS":       "Suspicious User Agent",
	"HUNTING":           "Threat Hunting Match",
	"INFO":              "Informational",
	"DNS":               "DNS Anomaly",
	"SHELLCODE":         "Shellcode Detection",
	"COMPROMISED":       "Known Compromised Host",
	"DROP":              "Known Bad Reputation",
}

// defaultFriendly is the label for categories outside the table.
const defaultFriendly = "Security Event"

// unknownCategory is the raw category for signatures that do not follow
// the convention.
const unknownCategory = "UNKNOWN"

// ParseSignature decomposes a threat signature into its raw category
// (upper-cased), a friendly label, and the remaining description. Vendor
// signatures that do not follow the "ET <CATEGORY> <description>"
// convention come back as (UNKNOWN, "Security Event", original); parsing
// never fails.
func ParseSignature(signature string) (category, friendly, description string) {
	m := signaturePattern.FindStringSubmatch(strings.TrimSpace(signature))
	if m == nil {
		return unknownCategory, defaultFriendly, signature
	}

	category = strings.ToUpper(m[1])
	friendly, ok := friendlyCategories[category]
	if !ok {
		friendly = defaultFriendly
	}
	return category, friendly, m[2]
}

// FriendlyCategory returns the report label for a raw category.
func FriendlyCategory(category string) string {
	if f, ok := friendlyCategories[strings.ToUpper(category)]; ok {
		return f
	}
	return defaultFriendly
}

// blockedActions are actions meaning the traffic was stopped.
var blockedActions = map[string]bool{
	"drop":    true,
	"dropped": true,
	"block":   true,
	"blocked": true,
	"reject":  true,
	"deny":    true,
	"denied":  true,
}

// detectedActions are actions meaning the traffic was observed but allowed
// through. Anything outside both sets is conservatively treated as not
// blocked so it surfaces in reporting.
var detectedActions = map[string]bool{
	"alert":    true,
	"detect":   true,
	"detected": true,
	"allow":    true,
	"allowed":  true,
	"log":      true,
	"monitor":  true,
}

// ActionBlocked classifies an IPS action string as blocked vs
// detected-only. Comparison is case-insensitive.
func ActionBlocked(action string) bool {
	return blockedActions[strings.ToLower(strings.TrimSpace(action))]
}
