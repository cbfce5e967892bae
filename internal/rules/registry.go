package rules

import "fmt"

// Registry owns the rule list and a derived index from event key to the
// rules claiming it, in registration order. Build it once at startup and
// treat it as read-only afterwards; a registry that is no longer mutated is
// safe to share across concurrent callers without locking.
type Registry struct {
	rules []*Rule
	index map[string][]*Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string][]*Rule),
	}
}

// NewDefaultRegistry returns a registry loaded with the shipped catalog.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, rule := range Catalog() {
		if err := r.Register(rule); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates the rule, appends it, and rebuilds the event-key
// index. The index is never left partially updated.
func (r *Registry) Register(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if err := rule.compile(); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	r.rules = append(r.rules, &rule)
	r.rebuild()
	return nil
}

func (r *Registry) rebuild() {
	index := make(map[string][]*Rule, len(r.index))
	for _, rule := range r.rules {
		for _, key := range rule.EventKeys {
			index[key] = append(index[key], rule)
		}
	}
	r.index = index
}

// RulesFor returns the rules claiming the event key, first registered
// first. The slice is shared; callers must not mutate it.
func (r *Registry) RulesFor(eventKey string) []*Rule {
	return r.index[eventKey]
}

// FindMatch returns the first rule claiming the event key whose optional
// message pattern also matches. The second return is false when the event
// key is unknown or no candidate's pattern matched.
func (r *Registry) FindMatch(eventKey, message string) (*Rule, bool) {
	for _, rule := range r.index[eventKey] {
		if rule.matchesMessage(message) {
			return rule, true
		}
	}
	return nil, false
}

// IsKnownEventKey reports whether any rule claims the event key. It
// distinguishes "unrecognized event" from "recognized event whose content
// did not match" for downstream counters.
func (r *Registry) IsKnownEventKey(eventKey string) bool {
	return len(r.index[eventKey]) > 0
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.rules)
}
