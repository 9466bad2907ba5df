package rulestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/rule"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RuleSetRow stores a rule set as its JSON document, with the columns needed to select it.
type RuleSetRow struct {
	ID        string           `gorm:"primaryKey"`
	GuildID   *event.Snowflake `gorm:"index"`
	Name      string
	Position  int
	Document  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RuleSetRow) TableName() string {
	return "rule_sets"
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&RuleSetRow{})
}

// Save validates and upserts a rule set. Position orders rule sets within the same scope.
func (s *GormStore) Save(ctx context.Context, rs *rule.RuleSet, position int) error {
	if err := rs.Validate(); err != nil {
		return err
	}
	rs.AssignIDs()
	doc, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	row := RuleSetRow{
		ID:       rs.ID.String(),
		GuildID:  rs.GuildID,
		Name:     rs.Name,
		Position: position,
		Document: string(doc),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving rule set %s: %w", rs.ID, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&RuleSetRow{}, "id = ?", id.String()).Error
}

func (s *GormStore) load(ctx context.Context, query string, args ...any) ([]*rule.RuleSet, error) {
	var rows []RuleSetRow
	err := s.db.WithContext(ctx).Where(query, args...).Order("position ASC, created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*rule.RuleSet, 0, len(rows))
	for _, row := range rows {
		rs, err := rule.ParseRuleSet([]byte(row.Document))
		if err != nil {
			return nil, fmt.Errorf("stored rule set %s: %w", row.ID, err)
		}
		out = append(out, rs)
	}
	return out, nil
}

func (s *GormStore) GlobalRuleSets(ctx context.Context) ([]*rule.RuleSet, error) {
	return s.load(ctx, "guild_id IS NULL")
}

func (s *GormStore) GuildRuleSets(ctx context.Context, guildID event.Snowflake) ([]*rule.RuleSet, error) {
	return s.load(ctx, "guild_id = ?", guildID)
}
