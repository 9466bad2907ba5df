package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/guildconfig"
	"github.com/guildwarden/warden/automod/rule"
	"github.com/guildwarden/warden/automod/wordlist"

	"github.com/google/uuid"
)

// EventContext is the per-event state shared by every rule evaluated for one event.
type EventContext struct {
	Event event.Event
	// nil for events without a guild, or when the guild config failed to load
	Config *guildconfig.GuildConfig
	Lists  wordlist.GuildWordLists
	Now    time.Time

	// normalized message body, for word list matching
	NormalizedContent string
}

func newEventContext(evt event.Event, cfg *guildconfig.GuildConfig, lists wordlist.GuildWordLists, now time.Time) *EventContext {
	ec := &EventContext{
		Event:  evt,
		Config: cfg,
		Lists:  lists,
		Now:    now,
	}
	if m := messageOf(evt); m != nil && messageHas(evt, "content") {
		ec.NormalizedContent = wordlist.Normalize(m.Content)
	}
	return ec
}

// RuleContext is the evaluation state of a single rule against a single event.
type RuleContext struct {
	// Actual golang "context.Context", if needed for timeouts etc
	Ctx context.Context
	// Any errors encountered while resolving data for the rule get rolled up in this nullable field. A rule with an error never fires.
	Err error
	// slog logger handle, with rule-specific structured fields pre-populated. Pointer, but expected to never be nil.
	Logger *slog.Logger

	RuleSet *rule.RuleSet
	Rule    *rule.Rule

	engine *Engine // NOTE: pointer, but expected never to be nil
	evt    *EventContext
}

func (e *Engine) newRuleContext(ctx context.Context, ec *EventContext, rs *rule.RuleSet, r *rule.Rule) *RuleContext {
	return &RuleContext{
		Ctx:     ctx,
		Logger:  e.Logger.With("rule_set", rs.Name, "rule", r.Name, "rule_id", r.ID),
		RuleSet: rs,
		Rule:    r,
		engine:  e,
		evt:     ec,
	}
}

func (c *RuleContext) Event() event.Event {
	return c.evt.Event
}

func (c *RuleContext) RuleID() uuid.UUID {
	return c.Rule.ID
}

// setErr records the first resolution error.
func (c *RuleContext) setErr(err error) {
	if nil == c.Err {
		c.Err = err
	}
}

// request external state via engine (indirect)
func (c *RuleContext) GetCount(name, val, period string) (int, bool) {
	out, err := c.engine.Counters.GetCount(c.Ctx, name, val, period)
	if err != nil {
		c.setErr(err)
		return 0, false
	}
	return out, true
}

// WordList resolves a list name against the guild's lists, then the global lists.
func (c *RuleContext) WordList(name string) *wordlist.WordList {
	wl, err := c.evt.Lists.Get(name)
	if err != nil {
		c.setErr(err)
		return nil
	}
	return wl
}
