package engine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/guildwarden/warden/automod/action"
	"github.com/guildwarden/warden/automod/countstore"
	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/guildconfig"
	"github.com/guildwarden/warden/automod/rule"
	"github.com/guildwarden/warden/automod/status"
)

var (
	errNoGuild   = errors.New("event has no guild")
	errNoUser    = errors.New("event has no user")
	errNoChannel = errors.New("event has no channel")
	errNoMessage = errors.New("event has no message")
)

func (c *RuleContext) guild() (event.Snowflake, error) {
	id, ok := c.Event().GuildID().Get()
	if !ok {
		return 0, errNoGuild
	}
	return id, nil
}

func (c *RuleContext) user() (event.Snowflake, error) {
	id, ok := c.Event().UserID().Get()
	if !ok {
		return 0, errNoUser
	}
	return id, nil
}

func (c *RuleContext) channel() (event.Snowflake, error) {
	id, ok := c.Event().ChannelID().Get()
	if !ok {
		return 0, errNoChannel
	}
	return id, nil
}

func (c *RuleContext) message() (channel, message event.Snowflake, err error) {
	channel, err = c.channel()
	if err != nil {
		return 0, 0, err
	}
	message, ok := messageIDOf(c.Event())
	if !ok {
		return 0, 0, errNoMessage
	}
	return channel, message, nil
}

func (c *RuleContext) reason(r string) string {
	if r != "" {
		return r
	}
	return "automod: " + c.Rule.Name
}

// resolve turns a rule action into a concrete action, filling in its targets from the event.
func (c *RuleContext) resolve(a *rule.Action) (action.Action, error) {
	switch {
	case a.Reply != nil:
		ch, msg, err := c.message()
		if err != nil {
			return nil, err
		}
		guild, _ := c.Event().GuildID().Get()
		return action.Reply{GuildID: guild, ChannelID: ch, MessageID: msg, Content: a.Reply.Content}, nil
	case a.SendMessage != nil:
		guild, _ := c.Event().GuildID().Get()
		if a.SendMessage.ChannelID != nil {
			return action.SendMessage{GuildID: guild, ChannelID: *a.SendMessage.ChannelID, Content: a.SendMessage.Content}, nil
		}
		ch, err := c.channel()
		if err != nil {
			return nil, err
		}
		return action.SendMessage{GuildID: guild, ChannelID: ch, Content: a.SendMessage.Content}, nil
	case a.DeleteMessage != nil:
		ch, msg, err := c.message()
		if err != nil {
			return nil, err
		}
		guild, _ := c.Event().GuildID().Get()
		return action.DeleteMessage{GuildID: guild, ChannelID: ch, MessageID: msg}, nil
	}

	guild, err := c.guild()
	if err != nil {
		return nil, err
	}
	user, err := c.user()
	if err != nil {
		return nil, err
	}
	switch {
	case a.Ban != nil:
		out := action.Ban{GuildID: guild, UserID: user, DeleteDays: a.Ban.DeleteDays, Reason: c.reason(a.Ban.Reason)}
		if a.Ban.Duration != nil {
			d := a.Ban.Duration.Std()
			out.Duration = &d
		}
		return out, nil
	case a.Kick != nil:
		return action.Kick{GuildID: guild, UserID: user, Reason: c.reason(a.Kick.Reason)}, nil
	case a.Mute != nil:
		out := action.Mute{GuildID: guild, UserID: user, Duration: guildconfig.DefaultMuteDuration, Reason: c.reason(a.Mute.Reason)}
		if cfg := c.evt.Config; cfg != nil {
			out.RoleID = cfg.MuteRole
			if cfg.MuteDuration > 0 {
				out.Duration = cfg.MuteDuration
			}
		}
		if a.Mute.Duration != nil {
			out.Duration = a.Mute.Duration.Std()
		}
		return out, nil
	case a.AddRole != nil:
		return action.AddRole{GuildID: guild, UserID: user, RoleID: a.AddRole.RoleID, Reason: c.reason(a.AddRole.Reason)}, nil
	case a.RemoveRole != nil:
		return action.RemoveRole{GuildID: guild, UserID: user, RoleID: a.RemoveRole.RoleID, Reason: c.reason(a.RemoveRole.Reason)}, nil
	}
	return nil, fmt.Errorf("unsupported action %q", a.Kind())
}

// dispatchKey identifies an action across re-deliveries of the same event. Empty when the event has no key.
func (c *RuleContext) dispatchKey(path string) string {
	k := c.Event().Key()
	if k == "" {
		return ""
	}
	return k + "/" + c.Rule.ID.String() + "/" + path
}

// runActions executes actions in declared order. Failures are logged and skip only the failing action.
func (c *RuleContext) runActions(actions []rule.Action, prefix string) {
	for i := range actions {
		a := &actions[i]
		path := prefix + strconv.Itoa(i)
		switch {
		case a.SubCondition != nil:
			c.runSubCondition(a.SubCondition, path)
		case a.Counter() != nil:
			c.runCounter(a, path)
		default:
			c.dispatch(a, path)
		}
	}
}

func (c *RuleContext) runSubCondition(sc *rule.SubConditionAction, path string) {
	// resolution errors only suppress this branch
	c.Err = nil
	s := c.Eval(&sc.Condition)
	if c.Err != nil {
		c.Logger.Warn("sub-condition evaluation failed", "path", path, "err", c.Err)
		ruleErrorCount.Inc()
		c.Err = nil
		return
	}
	switch s {
	case status.Met:
		c.runActions(sc.Actions, path+".then.")
	case status.NotMet:
		c.runActions(sc.ActionsElse, path+".else.")
	}
}

func (c *RuleContext) dispatch(a *rule.Action, path string) {
	kind := a.Kind()
	resolved, err := c.resolve(a)
	if err != nil {
		c.Logger.Warn("failed to resolve action", "kind", kind, "path", path, "err", err)
		actionErrorCount.WithLabelValues(kind).Inc()
		return
	}
	guild, _ := c.Event().GuildID().Get()
	d := &action.Dispatch{
		Key:       c.dispatchKey(path),
		GuildID:   guild,
		RuleSetID: c.RuleSet.ID,
		RuleID:    c.Rule.ID,
		RuleName:  c.Rule.Name,
		Action:    resolved,
	}
	if err := c.engine.Sink.Execute(c.Ctx, d); err != nil {
		c.Logger.Warn("action dispatch failed", "kind", kind, "key", d.Key, "err", err)
		actionErrorCount.WithLabelValues(kind).Inc()
		return
	}
	actionDispatchCount.WithLabelValues(kind).Inc()
}

func (c *RuleContext) runCounter(a *rule.Action, path string) {
	ca := a.Counter()
	kind := a.Kind()
	key, scopeID, ok := counterKey(c.Event(), ca.Scope)
	if !ok {
		c.Logger.Warn("failed to resolve counter", "kind", kind, "counter", ca.Name, "scope", ca.Scope, "path", path)
		actionErrorCount.WithLabelValues(kind).Inc()
		return
	}

	counters := c.engine.Counters
	var err error
	switch {
	case a.AddCounter != nil:
		err = counters.Increment(c.Ctx, ca.Name, key)
	case a.SubtractCounter != nil:
		err = counters.Decrement(c.Ctx, ca.Name, key)
	case a.ResetCounter != nil:
		err = counters.Reset(c.Ctx, ca.Name, key)
	}
	if err != nil {
		c.Logger.Warn("counter update failed", "kind", kind, "counter", ca.Name, "err", err)
		actionErrorCount.WithLabelValues(kind).Inc()
		return
	}
	actionDispatchCount.WithLabelValues(kind).Inc()

	// counter events never cause further counter events
	if c.Event().Kind() == event.KindCounter {
		return
	}
	val, ok := c.GetCount(ca.Name, key, countstore.PeriodTotal)
	if !ok {
		c.Logger.Warn("failed to read counter after update", "counter", ca.Name, "err", c.Err)
		c.Err = nil
		return
	}
	guild, _ := c.Event().GuildID().Get()
	counterEvt := &event.Counter{
		Guild:   guild,
		Name:    ca.Name,
		Scope:   ca.Scope,
		ScopeID: scopeID,
		Value:   val,
		Origin:  c.Event(),
	}
	if err := c.engine.processCounterEvent(c.Ctx, counterEvt); err != nil {
		c.Logger.Warn("counter event processing failed", "counter", ca.Name, "err", err)
	}
}
