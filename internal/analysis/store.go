package analysis

import (
	"unifi-report/internal/schema"
)

// Store collects findings for one analysis pass and folds duplicates. Two
// findings are duplicates when event key, source, and rendered title all
// match; the first occurrence wins and its Duplicates counter tracks the
// rest. Store is not safe for concurrent use; each pass owns its own.
type Store struct {
	order []string
	byKey map[string]*schema.Finding
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byKey: make(map[string]*schema.Finding)}
}

func dedupKey(f schema.Finding) string {
	return f.EventKey + "|" + f.Source + "|" + f.Title
}

// Add inserts a finding, folding it into an existing one when the dedup key
// matches. It reports whether the finding was new.
func (s *Store) Add(f schema.Finding) bool {
	key := dedupKey(f)
	if existing, ok := s.byKey[key]; ok {
		existing.Duplicates++
		return false
	}
	stored := f
	s.byKey[key] = &stored
	s.order = append(s.order, key)
	return true
}

// AddAll inserts a slice of findings in order.
func (s *Store) AddAll(findings []schema.Finding) {
	for _, f := range findings {
		s.Add(f)
	}
}

// Findings returns the stored findings in insertion order. The slice is a
// copy; mutating it does not affect the store.
func (s *Store) Findings() []schema.Finding {
	out := make([]schema.Finding, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.byKey[key])
	}
	return out
}

// Len reports the number of distinct findings held.
func (s *Store) Len() int {
	return len(s.order)
}
