package guildconfig

import (
	"context"
	"log/slog"
	"sync"

	"github.com/guildwarden/warden/automod/event"

	"github.com/puzpuzpuz/xsync/v3"
)

// Cache is a cache-aside view over a Store.
//
// Concurrent misses for the same guild are coalesced in to a single store load. Guilds without stored configuration get a default snapshot, which is cached like any other. Entries are never evicted; Set and Invalidate are the hooks for configuration changes.
type Cache struct {
	store   Store
	logger  *slog.Logger
	entries *xsync.MapOf[event.Snowflake, *GuildConfig]
	// in-flight loads, by guild
	loads sync.Map
}

type load struct {
	done chan struct{}
	cfg  *GuildConfig
	err  error
}

func NewCache(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:   store,
		logger:  logger.With("component", "guildconfig"),
		entries: xsync.NewMapOf[event.Snowflake, *GuildConfig](),
	}
}

func (c *Cache) Get(ctx context.Context, guildID event.Snowflake) (*GuildConfig, error) {
	if cfg, ok := c.entries.Load(guildID); ok {
		cacheHits.Inc()
		return cfg, nil
	}
	cacheMisses.Inc()

	// Coalesce concurrent misses for the same guild
	l := &load{done: make(chan struct{})}
	val, loaded := c.loads.LoadOrStore(guildID, l)
	if loaded {
		requestsCoalesced.Inc()
		pending := val.(*load)
		select {
		case <-pending.done:
			return pending.cfg, pending.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// a load which finished between the entry check and LoadOrStore has already published its entry
	if cfg, ok := c.entries.Load(guildID); ok {
		l.cfg = cfg
	} else {
		l.cfg, l.err = c.fetch(ctx, guildID)
	}

	c.loads.Delete(guildID)
	close(l.done)
	return l.cfg, l.err
}

func (c *Cache) fetch(ctx context.Context, guildID event.Snowflake) (*GuildConfig, error) {
	cfg, err := c.store.LoadGuildConfig(ctx, guildID)
	if err != nil {
		loadErrors.Inc()
		c.logger.Warn("failed to load guild config", "guild", guildID, "err", err)
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultGuildConfig(guildID)
	}
	// a concurrent Set wins over what was just loaded
	actual, _ := c.entries.LoadOrStore(guildID, cfg)
	return actual, nil
}

// Set replaces the cached snapshot for a guild. It does not write to the store.
func (c *Cache) Set(cfg *GuildConfig) {
	c.entries.Store(cfg.ID, cfg)
}

// Invalidate drops the cached snapshot, so the next Get reloads it.
func (c *Cache) Invalidate(guildID event.Snowflake) {
	c.entries.Delete(guildID)
}

// Peek returns the cached snapshot without loading.
func (c *Cache) Peek(guildID event.Snowflake) (*GuildConfig, bool) {
	return c.entries.Load(guildID)
}

func (c *Cache) Len() int {
	return c.entries.Size()
}
