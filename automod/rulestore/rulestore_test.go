package rulestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guildwarden/warden/automod/cachestore"
	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/rule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const fixturePath = "../rule/testdata/rule_sets.json"

func guildSet(t *testing.T, guild event.Snowflake, name string) *rule.RuleSet {
	doc := `{"name": "` + name + `", "enabled": true, "rules": [{"name": "r", "enabled": true, "trigger": "MESSAGE_CREATE", "actions": [{"delete_message": {}}]}]}`
	rs, err := rule.ParseRuleSet([]byte(doc))
	require.NoError(t, err)
	if guild != 0 {
		rs.GuildID = &guild
	}
	return rs
}

func TestMemStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemStore()
	require.NoError(t, s.LoadFromFileJSON(fixturePath))

	global, err := s.GlobalRuleSets(ctx)
	assert.NoError(err)
	require.Len(t, global, 1)
	assert.Equal("global new accounts", global[0].Name)

	guild, err := s.GuildRuleSets(ctx, 100)
	assert.NoError(err)
	require.Len(t, guild, 1)
	assert.Equal("phrase filter", guild[0].Name)

	other, err := s.GuildRuleSets(ctx, 101)
	assert.NoError(err)
	assert.Empty(other)

	extra := guildSet(t, 100, "second")
	s.Put(extra)
	guild, _ = s.GuildRuleSets(ctx, 100)
	assert.Len(guild, 2)

	replaced := guildSet(t, 100, "second, renamed")
	replaced.ID = extra.ID
	s.Put(replaced)
	guild, _ = s.GuildRuleSets(ctx, 100)
	require.Len(t, guild, 2)
	assert.Equal("second, renamed", guild[1].Name)

	s.Delete(extra.ID)
	guild, _ = s.GuildRuleSets(ctx, 100)
	assert.Len(guild, 1)

	assert.Error(s.LoadFromFileJSON("testdata/missing.json"))
}

func TestGormStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	s := NewGormStore(db)
	require.NoError(t, s.Migrate())

	first := guildSet(t, 5, "first")
	second := guildSet(t, 5, "second")
	global := guildSet(t, 0, "global")
	require.NoError(t, s.Save(ctx, second, 2))
	require.NoError(t, s.Save(ctx, first, 1))
	require.NoError(t, s.Save(ctx, global, 0))

	sets, err := s.GuildRuleSets(ctx, 5)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal("first", sets[0].Name)
	assert.Equal("second", sets[1].Name)
	assert.Equal(first.ID, sets[0].ID)
	assert.Equal(first.Rules[0].ID, sets[0].Rules[0].ID)
	require.NotNil(t, sets[0].Rules[0].Actions[0].DeleteMessage)

	sets, err = s.GlobalRuleSets(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.True(sets[0].IsGlobal())

	// upsert
	first.Name = "first, edited"
	require.NoError(t, s.Save(ctx, first, 1))
	sets, _ = s.GuildRuleSets(ctx, 5)
	require.Len(t, sets, 2)
	assert.Equal("first, edited", sets[0].Name)

	require.NoError(t, s.Delete(ctx, second.ID))
	sets, _ = s.GuildRuleSets(ctx, 5)
	assert.Len(sets, 1)

	invalid := guildSet(t, 5, "invalid")
	invalid.Rules[0].Actions[0] = rule.Action{Ban: &rule.BanAction{DeleteDays: 30}}
	assert.Error(s.Save(ctx, invalid, 3))
}

// countingStore counts loads, and fails them while err is set
type countingStore struct {
	Store
	guildLoads  int
	globalLoads int
	err         error
}

func (s *countingStore) GlobalRuleSets(ctx context.Context) ([]*rule.RuleSet, error) {
	s.globalLoads++
	if s.err != nil {
		return nil, s.err
	}
	return s.Store.GlobalRuleSets(ctx)
}

func (s *countingStore) GuildRuleSets(ctx context.Context, guildID event.Snowflake) ([]*rule.RuleSet, error) {
	s.guildLoads++
	if s.err != nil {
		return nil, s.err
	}
	return s.Store.GuildRuleSets(ctx, guildID)
}

func TestCachedStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mem := NewMemStore()
	require.NoError(t, mem.LoadFromFileJSON(fixturePath))
	inner := &countingStore{Store: mem}
	s := NewCachedStore(inner, cachestore.NewMemCacheStore(100, time.Minute), nil)

	for i := 0; i < 3; i++ {
		sets, err := s.GuildRuleSets(ctx, 100)
		require.NoError(t, err)
		require.Len(t, sets, 1)
		assert.Equal("phrase filter", sets[0].Name)
		assert.Len(sets[0].Rules, 2)
		assert.True(sets[0].Rules[0].Trigger.Matches(event.KindMessageCreate))
	}
	assert.Equal(1, inner.guildLoads)

	// empty results are cached too
	for i := 0; i < 2; i++ {
		sets, err := s.GuildRuleSets(ctx, 999)
		require.NoError(t, err)
		assert.Empty(sets)
	}
	assert.Equal(2, inner.guildLoads)

	_, err := s.GlobalRuleSets(ctx)
	assert.NoError(err)
	_, err = s.GlobalRuleSets(ctx)
	assert.NoError(err)
	assert.Equal(1, inner.globalLoads)

	assert.NoError(s.Invalidate(ctx, 100))
	_, err = s.GuildRuleSets(ctx, 100)
	assert.NoError(err)
	assert.Equal(3, inner.guildLoads)

	// errors are passed through, and not cached
	inner.err = errors.New("db down")
	assert.NoError(s.InvalidateGlobal(ctx))
	_, err = s.GlobalRuleSets(ctx)
	assert.ErrorIs(err, inner.err)
	inner.err = nil
	_, err = s.GlobalRuleSets(ctx)
	assert.NoError(err)
	assert.Equal(3, inner.globalLoads)
}
