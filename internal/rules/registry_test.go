package rules

import (
	"testing"

	"unifi-report/internal/schema"
)

func testRule(name, key string) Rule {
	return Rule{
		Name:        name,
		EventKeys:   []string{key},
		Category:    schema.CategorySystem,
		Severity:    schema.SeverityLow,
		Title:       "title for {device}",
		Description: "description",
	}
}

func TestRegistry_RejectsEmptyEventKeys(t *testing.T) {
	r := NewRegistry()
	rule := testRule("no-keys", "EVT_X")
	rule.EventKeys = nil

	if err := r.Register(rule); err == nil {
		t.Fatal("expected error for rule with no event keys")
	}
	if r.Len() != 0 {
		t.Errorf("rejected rule must not be stored, len=%d", r.Len())
	}
}

func TestRegistry_RejectsInvalidRegex(t *testing.T) {
	r := NewRegistry()
	rule := testRule("bad-regex", "EVT_X")
	rule.MessageRegex = "["

	if err := r.Register(rule); err == nil {
		t.Fatal("expected error for invalid message regex")
	}
}

func TestRegistry_FindMatchOrder(t *testing.T) {
	r := NewRegistry()

	narrow := testRule("narrow", "EVT_X")
	narrow.MessageContains = "special"
	broad := testRule("broad", "EVT_X")

	if err := r.Register(narrow); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(broad); err != nil {
		t.Fatal(err)
	}

	got, ok := r.FindMatch("EVT_X", "a SPECIAL case")
	if !ok || got.Name != "narrow" {
		t.Errorf("patterned rule registered first should win, got %v", got)
	}

	got, ok = r.FindMatch("EVT_X", "an ordinary case")
	if !ok || got.Name != "broad" {
		t.Errorf("fallback rule should match ordinary message, got %v", got)
	}
}

func TestRegistry_FindMatchDeterministic(t *testing.T) {
	// Same (key, message) pair must resolve identically regardless of how
	// registration was batched around unrelated rules.
	build := func(extraFirst bool) *Registry {
		r := NewRegistry()
		rules := []Rule{testRule("target", "EVT_T"), testRule("other", "EVT_O")}
		if extraFirst {
			rules[0], rules[1] = rules[1], rules[0]
		}
		for _, rule := range rules {
			if err := r.Register(rule); err != nil {
				t.Fatal(err)
			}
		}
		return r
	}

	a, okA := build(false).FindMatch("EVT_T", "msg")
	b, okB := build(true).FindMatch("EVT_T", "msg")
	if !okA || !okB || a.Name != b.Name {
		t.Errorf("match not deterministic across batching: %v vs %v", a, b)
	}
}

func TestRegistry_NoMatch(t *testing.T) {
	r := NewRegistry()
	rule := testRule("patterned", "EVT_X")
	rule.MessageContains = "needle"
	if err := r.Register(rule); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.FindMatch("EVT_UNKNOWN", "anything"); ok {
		t.Error("unknown event key must not match")
	}
	if _, ok := r.FindMatch("EVT_X", "haystack without it"); ok {
		t.Error("known key with non-matching content must not match")
	}

	if !r.IsKnownEventKey("EVT_X") {
		t.Error("EVT_X is claimed and must be known")
	}
	if r.IsKnownEventKey("EVT_UNKNOWN") {
		t.Error("never-registered key must not be known")
	}
}

func TestRegistry_IndexConsistentAfterEachRegister(t *testing.T) {
	r := NewRegistry()
	keys := []string{"EVT_A", "EVT_B", "EVT_C"}
	for i, k := range keys {
		if err := r.Register(testRule(k+"-rule", k)); err != nil {
			t.Fatal(err)
		}
		for _, seen := range keys[:i+1] {
			if !r.IsKnownEventKey(seen) {
				t.Errorf("after registering %s, key %s missing from index", k, seen)
			}
		}
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry()
	if err != nil {
		t.Fatalf("shipped catalog failed to load: %v", err)
	}
	if r.Len() == 0 {
		t.Fatal("shipped catalog is empty")
	}

	// Multi-key rules must be reachable through every key they claim.
	for _, key := range []string{"EVT_AP_Lost_Contact", "EVT_SW_Lost_Contact", "EVT_GW_Lost_Contact"} {
		rule, ok := r.FindMatch(key, "")
		if !ok {
			t.Errorf("no match for %s", key)
			continue
		}
		if rule.Name != "device-lost-contact" {
			t.Errorf("%s resolved to %s", key, rule.Name)
		}
	}

	// The remote-login rule is narrower than the catch-all and must win on
	// matching content.
	rule, ok := r.FindMatch("EVT_AD_Login", "admin login (remote)")
	if !ok || rule.Name != "admin-login-remote" {
		t.Errorf("remote login content should hit the patterned rule, got %v", rule)
	}
	rule, ok = r.FindMatch("EVT_AD_Login", "admin login (local)")
	if !ok || rule.Name != "admin-login" {
		t.Errorf("local login content should hit the catch-all, got %v", rule)
	}
}
