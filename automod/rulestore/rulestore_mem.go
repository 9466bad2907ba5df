package rulestore

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/rule"

	"github.com/google/uuid"
)

// MemStore keeps rule sets in memory, in the order they were added.
type MemStore struct {
	mu   sync.RWMutex
	sets []*rule.RuleSet
}

var _ Store = (*MemStore)(nil)

func NewMemStore(sets ...*rule.RuleSet) *MemStore {
	return &MemStore{sets: sets}
}

// LoadFromFileJSON adds the rule sets of a file holding one rule set document, or an array of them. The file is checked against the rule set schema.
func (s *MemStore) LoadFromFileJSON(p string) error {
	raw, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	sets, err := rule.ValidateDocument(raw)
	if err != nil {
		return fmt.Errorf("loading rule sets from %s: %w", p, err)
	}
	for _, rs := range sets {
		s.Put(rs)
	}
	return nil
}

// Put adds a rule set, replacing any existing set with the same id in place.
func (s *MemStore) Put(rs *rule.RuleSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.sets {
		if existing.ID == rs.ID {
			s.sets[i] = rs
			return
		}
	}
	s.sets = append(s.sets, rs)
}

func (s *MemStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = slices.DeleteFunc(s.sets, func(rs *rule.RuleSet) bool { return rs.ID == id })
}

func (s *MemStore) filter(keep func(rs *rule.RuleSet) bool) []*rule.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*rule.RuleSet
	for _, rs := range s.sets {
		if keep(rs) {
			out = append(out, rs)
		}
	}
	return out
}

func (s *MemStore) GlobalRuleSets(ctx context.Context) ([]*rule.RuleSet, error) {
	return s.filter(func(rs *rule.RuleSet) bool { return rs.IsGlobal() }), nil
}

func (s *MemStore) GuildRuleSets(ctx context.Context, guildID event.Snowflake) ([]*rule.RuleSet, error) {
	return s.filter(func(rs *rule.RuleSet) bool { return !rs.IsGlobal() && *rs.GuildID == guildID }), nil
}
