package rulestore

import (
	"context"
	"log/slog"

	"github.com/guildwarden/warden/automod/cachestore"
	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/rule"
)

// CachedStore serves rule sets from a CacheStore, falling back to the inner Store on a miss. Entries expire with the cache's TTL; Invalidate drops one early.
type CachedStore struct {
	Inner  Store
	Cache  cachestore.CacheStore
	Logger *slog.Logger
}

var _ Store = (*CachedStore)(nil)

func NewCachedStore(inner Store, cache cachestore.CacheStore, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		Inner:  inner,
		Cache:  cache,
		Logger: logger.With("component", "rulestore"),
	}
}

func (s *CachedStore) cached(ctx context.Context, guild *event.Snowflake, load func() ([]*rule.RuleSet, error)) ([]*rule.RuleSet, error) {
	scope := cachestore.RuleSetScope(guild)
	sets, ok, err := cachestore.GetRuleSets(ctx, s.Cache, scope)
	if err != nil {
		// cache failures are not fatal; fall through to the store
		s.Logger.Warn("rule set cache read failed", "scope", scope, "err", err)
	} else if ok {
		return sets, nil
	}

	sets, err = load()
	if err != nil {
		return nil, err
	}
	if sets == nil {
		sets = []*rule.RuleSet{}
	}
	if err := cachestore.SetRuleSets(ctx, s.Cache, scope, sets); err != nil {
		s.Logger.Warn("rule set cache write failed", "scope", scope, "err", err)
	}
	return sets, nil
}

func (s *CachedStore) GlobalRuleSets(ctx context.Context) ([]*rule.RuleSet, error) {
	return s.cached(ctx, nil, func() ([]*rule.RuleSet, error) {
		return s.Inner.GlobalRuleSets(ctx)
	})
}

func (s *CachedStore) GuildRuleSets(ctx context.Context, guildID event.Snowflake) ([]*rule.RuleSet, error) {
	return s.cached(ctx, &guildID, func() ([]*rule.RuleSet, error) {
		return s.Inner.GuildRuleSets(ctx, guildID)
	})
}

func (s *CachedStore) Invalidate(ctx context.Context, guildID event.Snowflake) error {
	return cachestore.PurgeRuleSets(ctx, s.Cache, cachestore.RuleSetScope(&guildID))
}

func (s *CachedStore) InvalidateGlobal(ctx context.Context) error {
	return cachestore.PurgeRuleSets(ctx, s.Cache, cachestore.RuleSetScope(nil))
}
