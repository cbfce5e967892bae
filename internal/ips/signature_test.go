package ips

import "testing"

func TestParseSignature(t *testing.T) {
	tests := []struct {
		name            string
		signature       string
		wantCategory    string
		wantFriendly    string
		wantDescription string
	}{
		{
			name:            "documented convention",
			signature:       "ET SCAN Nmap Scripting Engine",
			wantCategory:    "SCAN",
			wantFriendly:    "Reconnaissance",
			wantDescription: "Nmap Scripting Engine",
		},
		{
			name:            "lowercase prefix and category",
			signature:       "et malware Win32/Agent variant outbound",
			wantCategory:    "MALWARE",
			wantFriendly:    "Malware",
			wantDescription: "Win32/Agent variant outbound",
		},
		{
			name:            "underscore category",
			signature:       "ET ATTACK_RESPONSE id check returned root",
			wantCategory:    "ATTACK_RESPONSE",
			wantFriendly:    "Successful Attack Response",
			wantDescription: "id check returned root",
		},
		{
			name:            "unmapped category falls back to default label",
			signature:       "ET MOBILE_MALWARE Android payload",
			wantCategory:    "MOBILE_MALWARE",
			wantFriendly:    "Security Event",
			wantDescription: "Android payload",
		},
		{
			name:            "vendor signature returns unchanged",
			signature:       "arbitrary vendor text",
			wantCategory:    "UNKNOWN",
			wantFriendly:    "Security Event",
			wantDescription: "arbitrary vendor text",
		},
		{
			name:            "prefix without description does not match",
			signature:       "ET SCAN",
			wantCategory:    "UNKNOWN",
			wantFriendly:    "Security Event",
			wantDescription: "ET SCAN",
		},
		{
			name:            "empty signature",
			signature:       "",
			wantCategory:    "UNKNOWN",
			wantFriendly:    "Security Event",
			wantDescription: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, friendly, description := ParseSignature(tt.signature)
			if category != tt.wantCategory {
				t.Errorf("category = %q, want %q", category, tt.wantCategory)
			}
			if friendly != tt.wantFriendly {
				t.Errorf("friendly = %q, want %q", friendly, tt.wantFriendly)
			}
			if description != tt.wantDescription {
				t.Errorf("description = %q, want %q", description, tt.wantDescription)
			}
		})
	}
}

func TestActionBlocked(t *testing.T) {
	tests := []struct {
		action string
		want   bool
	}{
		{"DROP", true},
		{"drop", true},
		{"blocked", true},
		{"Reject", true},
		{"denied", true},
		{"allowed", false},
		{"alert", false},
		{"detected", false},
		{"", false},
		{"quarantine", false}, // outside both sets: conservative default
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			if got := ActionBlocked(tt.action); got != tt.want {
				t.Errorf("ActionBlocked(%q) = %v, want %v", tt.action, got, tt.want)
			}
		})
	}
}
