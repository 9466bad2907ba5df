package guildconfig

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/guildwarden/warden/automod/event"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the durable source of guild configuration. A guild without a stored row returns a nil config and nil error.
type Store interface {
	LoadGuildConfig(ctx context.Context, guildID event.Snowflake) (*GuildConfig, error)
	SaveGuildConfig(ctx context.Context, cfg *GuildConfig) error
}

// MemStore is an in-process Store, mostly for tests and development. It counts loads.
type MemStore struct {
	mu      sync.Mutex
	configs map[event.Snowflake]*GuildConfig
	loads   atomic.Int64
	// returned by every load when set
	Err error
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		configs: make(map[event.Snowflake]*GuildConfig),
	}
}

func (s *MemStore) LoadGuildConfig(ctx context.Context, guildID event.Snowflake) (*GuildConfig, error) {
	s.loads.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[guildID]
	if !ok {
		return nil, nil
	}
	return cfg.Clone(), nil
}

func (s *MemStore) SaveGuildConfig(ctx context.Context, cfg *GuildConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ID] = cfg.Clone()
	return nil
}

// Loads returns the number of LoadGuildConfig calls so far.
func (s *MemStore) Loads() int64 {
	return s.loads.Load()
}

// GormStore keeps guild configuration in the guild_configs table.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&GuildConfig{})
}

func (s *GormStore) LoadGuildConfig(ctx context.Context, guildID event.Snowflake) (*GuildConfig, error) {
	var cfg GuildConfig
	err := s.db.WithContext(ctx).Where("id = ?", guildID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading guild config %s: %w", guildID, err)
	}
	return &cfg, nil
}

func (s *GormStore) SaveGuildConfig(ctx context.Context, cfg *GuildConfig) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(cfg).Error
	if err != nil {
		return fmt.Errorf("saving guild config %s: %w", cfg.ID, err)
	}
	return nil
}
