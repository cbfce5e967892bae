// Package rules holds the declarative event classification catalog and the
// registry that indexes it for lookup by event key.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"unifi-report/internal/schema"
)

// Rule maps a set of controller event keys (plus an optional message
// pattern) to a category, a severity, and the templates used to render a
// finding. Rules are defined once at startup and never mutated afterwards.
type Rule struct {
	// Name identifies the rule in logs and dedup keys.
	Name string

	// EventKeys are the controller event keys this rule claims. A rule
	// with no event keys is invalid and rejected at registration.
	EventKeys []string

	Category schema.Category
	Severity schema.Severity

	// Title, Description and Remediation are templates; {name} slots are
	// filled from the entry's field bag. Remediation may be empty — the
	// shipped catalog leaves it empty for low-severity rules by
	// convention, not contract.
	Title       string
	Description string
	Remediation string

	// MessageContains, when set, additionally requires the entry message
	// to contain this substring (case-insensitive) for the rule to apply.
	MessageContains string

	// MessageRegex, when set, additionally requires the entry message to
	// match this expression. Compiled at registration.
	MessageRegex string

	re *regexp.Regexp
}

// Validate checks the rule is well formed.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.EventKeys) == 0 {
		return fmt.Errorf("rule %q claims no event keys", r.Name)
	}
	if !r.Category.IsValid() {
		return fmt.Errorf("rule %q has invalid category %q", r.Name, r.Category)
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("rule %q has invalid severity %d", r.Name, r.Severity)
	}
	if r.Title == "" {
		return fmt.Errorf("rule %q has no title template", r.Name)
	}
	return nil
}

// compile prepares the optional message regex.
func (r *Rule) compile() error {
	if r.MessageRegex == "" {
		return nil
	}
	re, err := regexp.Compile(r.MessageRegex)
	if err != nil {
		return fmt.Errorf("rule %q message regex: %w", r.Name, err)
	}
	r.re = re
	return nil
}

// matchesMessage reports whether the entry message satisfies the rule's
// optional content pattern. Rules without a pattern match any message.
func (r *Rule) matchesMessage(message string) bool {
	if r.MessageContains != "" &&
		!strings.Contains(strings.ToLower(message), strings.ToLower(r.MessageContains)) {
		return false
	}
	if r.re != nil && !r.re.MatchString(message) {
		return false
	}
	return true
}
