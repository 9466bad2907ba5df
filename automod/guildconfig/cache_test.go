package guildconfig

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guildwarden/warden/automod/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// gatedStore holds every load until the gate is closed
type gatedStore struct {
	*MemStore
	gate  chan struct{}
	calls atomic.Int64
}

func (s *gatedStore) LoadGuildConfig(ctx context.Context, guildID event.Snowflake) (*GuildConfig, error) {
	s.calls.Add(1)
	<-s.gate
	return s.MemStore.LoadGuildConfig(ctx, guildID)
}

func TestCacheSingleLoad(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := &gatedStore{MemStore: NewMemStore(), gate: make(chan struct{})}
	cfg := DefaultGuildConfig(42)
	cfg.Prefix = "?"
	require.NoError(t, store.SaveGuildConfig(ctx, cfg))

	cache := NewCache(store, nil)

	const n = 32
	results := make([]*GuildConfig, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Get(ctx, 42)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	assert.Equal(int64(1), store.calls.Load())
	for i := 0; i < n; i++ {
		assert.NoError(errs[i])
		assert.Same(results[0], results[i])
	}
	assert.Equal("?", results[0].Prefix)

	// later lookups are served from the cache
	again, err := cache.Get(ctx, 42)
	assert.NoError(err)
	assert.Same(results[0], again)
	assert.Equal(int64(1), store.calls.Load())
}

func TestCacheDefaultConfig(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := NewMemStore()
	cache := NewCache(store, nil)

	cfg, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(event.Snowflake(7), cfg.ID)
	assert.Equal(DefaultPrefix, cfg.Prefix)
	assert.Equal(DefaultMuteDuration, cfg.MuteDuration)

	// absence of a row is cached like any other result
	_, err = cache.Get(ctx, 7)
	assert.NoError(err)
	assert.Equal(int64(1), store.Loads())
	assert.Equal(1, cache.Len())
}

func TestCacheLoadErrorsNotCached(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := NewMemStore()
	store.Err = errors.New("database unreachable")
	cache := NewCache(store, nil)

	_, err := cache.Get(ctx, 1)
	assert.ErrorIs(err, store.Err)
	_, ok := cache.Peek(1)
	assert.False(ok)

	store.Err = nil
	cfg, err := cache.Get(ctx, 1)
	assert.NoError(err)
	assert.NotNil(cfg)
	assert.Equal(int64(2), store.Loads())
}

func TestCacheSetInvalidate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := NewMemStore()
	cache := NewCache(store, nil)

	first, err := cache.Get(ctx, 5)
	require.NoError(t, err)

	next := first.Clone()
	next.MaxMention = 3
	cache.Set(next)
	got, err := cache.Get(ctx, 5)
	assert.NoError(err)
	assert.Equal(3, got.MaxMention)
	assert.Equal(0, first.MaxMention, "earlier snapshots are unchanged")

	cache.Invalidate(5)
	got, err = cache.Get(ctx, 5)
	assert.NoError(err)
	assert.Equal(0, got.MaxMention)
	assert.Equal(int64(2), store.Loads())
}

func TestCacheContextCancel(t *testing.T) {
	assert := assert.New(t)

	store := &gatedStore{MemStore: NewMemStore(), gate: make(chan struct{})}
	cache := NewCache(store, nil)

	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, _ = cache.Get(context.Background(), 9)
	}()
	for store.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cache.Get(ctx, 9)
	assert.ErrorIs(err, context.Canceled)

	close(store.gate)
	<-leaderDone
	_, ok := cache.Peek(9)
	assert.True(ok)
}

func TestFeatures(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultGuildConfig(1)
	assert.False(cfg.FeatureEnabled("invite_guard"))
	cfg.InviteGuard = true
	cfg.BanDMs = true
	assert.True(cfg.FeatureEnabled("invite_guard"))
	assert.True(cfg.FeatureEnabled("ban_dm"))
	assert.False(cfg.FeatureEnabled("no_such_feature"))

	cfg.DisabledChannels = []event.Snowflake{10, 11}
	assert.True(cfg.ChannelDisabled(11))
	assert.False(cfg.ChannelDisabled(12))
}

func TestGormStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	store := NewGormStore(db)
	require.NoError(t, store.Migrate())

	cfg, err := store.LoadGuildConfig(ctx, 100)
	assert.NoError(err)
	assert.Nil(cfg)

	saved := DefaultGuildConfig(100)
	saved.MuteRole = 555
	saved.DisabledChannels = []event.Snowflake{1, 2}
	saved.LogModEnabled = true
	require.NoError(t, store.SaveGuildConfig(ctx, saved))

	cfg, err = store.LoadGuildConfig(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(event.Snowflake(555), cfg.MuteRole)
	assert.Equal([]event.Snowflake{1, 2}, cfg.DisabledChannels)
	assert.Equal(DefaultMuteDuration, cfg.MuteDuration)
	assert.True(cfg.FeatureEnabled("log_mod"))

	update := cfg.Clone()
	update.Prefix = "$"
	require.NoError(t, store.SaveGuildConfig(ctx, update))
	cfg, err = store.LoadGuildConfig(ctx, 100)
	require.NoError(t, err)
	assert.Equal("$", cfg.Prefix)

	cache := NewCache(store, nil)
	got, err := cache.Get(ctx, 100)
	assert.NoError(err)
	assert.Equal("$", got.Prefix)
}
