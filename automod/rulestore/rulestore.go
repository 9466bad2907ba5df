// Sources of rule sets for the rules engine: a JSON file (MemStore), a SQL table (GormStore), and a caching wrapper for either.
package rulestore

import (
	"context"

	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/rule"
)

// Store returns validated rule sets, in evaluation order. Returned rule sets are shared and must not be modified.
type Store interface {
	GlobalRuleSets(ctx context.Context) ([]*rule.RuleSet, error)
	GuildRuleSets(ctx context.Context, guildID event.Snowflake) ([]*rule.RuleSet, error)
}
