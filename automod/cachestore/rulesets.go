package cachestore

import (
	"context"

	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/rule"
)

const (
	ruleSetsName = "rule_sets"
	globalScope  = "global"
)

// RuleSetScope is the cache key of the rule sets for one guild, or of the global rule sets when guild is nil.
func RuleSetScope(guild *event.Snowflake) string {
	if guild == nil {
		return globalScope
	}
	return guild.String()
}

// GetRuleSets returns the cached rule sets of a scope. The boolean is false on a miss; an empty list is a hit.
//
// Cached documents were validated when first loaded, and are decoded without re-validation.
func GetRuleSets(ctx context.Context, cs CacheStore, scope string) ([]*rule.RuleSet, bool, error) {
	sets, ok, err := getJSON[[]*rule.RuleSet](ctx, cs, ruleSetsName, scope)
	switch {
	case err != nil:
		ruleSetLookups.WithLabelValues("error").Inc()
		return nil, false, err
	case !ok:
		ruleSetLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	ruleSetLookups.WithLabelValues("hit").Inc()
	if sets == nil {
		sets = []*rule.RuleSet{}
	}
	return sets, true, nil
}

func SetRuleSets(ctx context.Context, cs CacheStore, scope string, sets []*rule.RuleSet) error {
	if sets == nil {
		sets = []*rule.RuleSet{}
	}
	return setJSON(ctx, cs, ruleSetsName, scope, sets)
}

func PurgeRuleSets(ctx context.Context, cs CacheStore, scope string) error {
	return cs.Purge(ctx, ruleSetsName, scope)
}
