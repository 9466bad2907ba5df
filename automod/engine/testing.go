package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/guildwarden/warden/automod/action"
	"github.com/guildwarden/warden/automod/countstore"
	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/guildconfig"
	"github.com/guildwarden/warden/automod/rule"
	"github.com/guildwarden/warden/automod/rulestore"
	"github.com/guildwarden/warden/automod/util"
	"github.com/guildwarden/warden/automod/wordlist"
)

// TestFixture bundles an engine with the in-memory stores behind it, so tests can seed state and inspect dispatched actions.
type TestFixture struct {
	Engine    *Engine
	Configs   *guildconfig.MemStore
	WordLists *wordlist.Store
	Rules     *rulestore.MemStore
	Counters  *countstore.MemCountStore
	Sink      *action.RecordingSink
}

// EngineTestFixture returns an engine with in-memory stores, no dispatcher (actions run inline), and a fixed clock. The "banned-phrases" global word list is pre-loaded.
func EngineTestFixture(sets ...*rule.RuleSet) *TestFixture {
	configs := guildconfig.NewMemStore()
	lists := wordlist.NewStore()
	lists.SetGlobal(wordlist.NewWordList("banned-phrases", []string{"buy followers", "free nitro"}))
	rules := rulestore.NewMemStore(sets...)
	counters := countstore.NewMemCountStore()
	sink := &action.RecordingSink{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	eng := &Engine{
		Logger:    slog.Default(),
		Configs:   guildconfig.NewCache(configs, nil),
		WordLists: lists,
		Rules:     rules,
		Counters:  counters,
		Sink:      sink,
		Now:       func() time.Time { return now },
	}
	return &TestFixture{
		Engine:    eng,
		Configs:   configs,
		WordLists: lists,
		Rules:     rules,
		Counters:  counters,
		Sink:      sink,
	}
}

// Test helper which decodes a gateway payload and processes it. Intentionally exported, for use in other packages.
func (f *TestFixture) ProcessPayload(ctx context.Context, t string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	evt, err := event.DecodeEnvelope(&event.Envelope{Op: event.OpDispatch, T: &t, D: raw})
	if err != nil {
		return err
	}
	return f.Engine.ProcessEvent(ctx, evt)
}

// MustParseRuleSet parses a rule set document, panicking on error. For test code only.
func MustParseRuleSet(doc string) *rule.RuleSet {
	return util.MustResult(rule.ParseRuleSet([]byte(doc)))
}
