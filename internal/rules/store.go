// Package rules holds the active set of notification rules and their
// precomputed trait match sets.
package rules

import (
	"fmt"
	"sync"

	"github.com/opencompute/supersea/internal/filter"
	"github.com/opencompute/supersea/internal/model"
)

// Store is the in-memory set of active rules for one collection session.
// Rules keep insertion order; ids are unique.
type Store struct {
	mu    sync.Mutex
	rules []model.Rule
	index filter.MatchIndex
}

// NewStore creates an empty rule store.
func NewStore() *Store {
	return &Store{index: make(filter.MatchIndex)}
}

// Add appends a rule to the active set. Adding a rule whose id is already
// present is a programming error and panics.
func (s *Store) Add(rule model.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.ID == rule.ID {
			panic(fmt.Sprintf("rules: duplicate rule id %q", rule.ID))
		}
	}
	s.rules = append(s.rules, rule)
}

// Remove deletes a rule and discards its match index entry. It reports
// whether the id was present; removing an unknown id is a no-op.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			found = true
			break
		}
	}
	delete(s.index, id)
	return found
}

// List returns the active rules in insertion order.
func (s *Store) List() []model.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of active rules.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rules)
}

// SetMatchIndex records the precomputed token-id set for a trait rule. Until
// this is called the rule matches nothing.
func (s *Store) SetMatchIndex(id string, tokens map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[id] = tokens
}

// MatchIndex returns a snapshot of the rule-to-token match index. The token
// sets themselves are shared and treated as immutable once built.
func (s *Store) MatchIndex() filter.MatchIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(filter.MatchIndex, len(s.index))
	for id, tokens := range s.index {
		out[id] = tokens
	}
	return out
}

// Replace swaps in a previously snapshotted rule set and match index. Used
// by session restore.
func (s *Store) Replace(rules []model.Rule, index filter.MatchIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = make([]model.Rule, len(rules))
	copy(s.rules, rules)
	s.index = make(filter.MatchIndex, len(index))
	for id, tokens := range index {
		s.index[id] = tokens
	}
}
