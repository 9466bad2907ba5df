package engine

import (
	"fmt"
	"time"

	"github.com/guildwarden/warden/automod/countstore"
	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/helpers"
	"github.com/guildwarden/warden/automod/rule"
	"github.com/guildwarden/warden/automod/status"

	"github.com/bwmarrin/discordgo"
)

var unknown = status.Unknown

// Eval evaluates a condition tree. Combinators short-circuit on their dominating value.
func (c *RuleContext) Eval(cond *rule.Condition) status.Status {
	switch {
	case cond.And != nil:
		out := status.Met
		for i := range cond.And {
			s := c.Eval(&cond.And[i])
			if s == status.NotMet {
				return s
			}
			out = out.And(s)
		}
		return out
	case cond.Or != nil:
		out := status.NotMet
		for i := range cond.Or {
			s := c.Eval(&cond.Or[i])
			if s == status.Met {
				return s
			}
			out = out.Or(s)
		}
		return out
	case cond.Not != nil:
		return c.Eval(cond.Not).Not()
	case cond.AtLeast != nil:
		out := make([]status.Status, len(cond.AtLeast.Conditions))
		for i := range cond.AtLeast.Conditions {
			out[i] = c.Eval(&cond.AtLeast.Conditions[i])
		}
		return status.AtLeast(cond.AtLeast.MinCount, out...)
	case cond.Message != nil:
		return c.evalMessage(cond.Message)
	case cond.User != nil:
		return c.evalUser(cond.User, userOf(c.Event()))
	case cond.Member != nil:
		return c.evalMember(cond.Member, memberOf(c.Event()))
	case cond.Counter != nil:
		return c.evalCounter(cond.Counter)
	case cond.Guild != nil:
		return c.evalGuild(cond.Guild)
	}
	// empty condition
	return status.Met
}

func intStatus(ic *rule.IntegerConstraint, v int64) status.Status {
	return status.FromBool(ic.Matches(v))
}

func boolStatus(bc *rule.BoolConstraint, v bool) status.Status {
	return status.FromBool(bc.Matches(v))
}

func (c *RuleContext) timeStatus(tc *rule.TimeConstraint, v time.Time) status.Status {
	if v.IsZero() {
		return unknown
	}
	return status.FromBool(tc.Matches(v, c.evt.Now))
}

func idStatus(ic *rule.IntegerConstraint, raw string) status.Status {
	id, ok := parseID(raw)
	if !ok {
		return unknown
	}
	return intStatus(ic, int64(id))
}

func (c *RuleContext) evalMessage(mc *rule.MessageConstraint) status.Status {
	evt := c.Event()
	m := messageOf(evt)
	if m == nil {
		return unknown
	}
	if keys := messageFields(mc); len(keys) > 0 && !messageHas(evt, keys...) {
		return unknown
	}
	switch {
	case mc.ID != nil:
		return idStatus(mc.ID, m.ID)
	case mc.ChannelID != nil:
		return idStatus(mc.ChannelID, m.ChannelID)
	case mc.Content != nil:
		return c.evalContent(mc.Content, m.Content)
	case mc.Author != nil:
		return c.evalUser(mc.Author, m.Author)
	case mc.Member != nil:
		return c.evalMember(mc.Member, m.Member)
	case mc.CreatedAt != nil:
		created := m.Timestamp
		if created.IsZero() {
			if id, ok := parseID(m.ID); ok {
				created = id.Time()
			}
		}
		return c.timeStatus(mc.CreatedAt, created)
	case mc.MentionCount != nil:
		return intStatus(mc.MentionCount, int64(len(m.Mentions)))
	case mc.RoleMentionCount != nil:
		return intStatus(mc.RoleMentionCount, int64(len(m.MentionRoles)))
	case mc.AttachmentCount != nil:
		return intStatus(mc.AttachmentCount, int64(len(m.Attachments)))
	case mc.LinkCount != nil:
		return intStatus(mc.LinkCount, int64(len(helpers.ExtractTextURLs(m.Content))))
	case mc.InviteCount != nil:
		return intStatus(mc.InviteCount, int64(len(helpers.ExtractInviteCodes(m.Content))))
	case mc.MentionsEveryone != nil:
		return boolStatus(mc.MentionsEveryone, m.MentionEveryone)
	case mc.MentionsOverGuildLimit != nil:
		cfg := c.evt.Config
		if cfg == nil || cfg.MaxMention <= 0 {
			return unknown
		}
		return boolStatus(mc.MentionsOverGuildLimit, len(m.Mentions)+len(m.MentionRoles) > cfg.MaxMention)
	}
	return unknown
}

// messageFields lists the message keys a constraint reads.
func messageFields(mc *rule.MessageConstraint) []string {
	switch {
	case mc.ID != nil:
		return []string{"id"}
	case mc.ChannelID != nil:
		return []string{"channel_id"}
	case mc.Content != nil, mc.LinkCount != nil, mc.InviteCount != nil:
		return []string{"content"}
	case mc.Author != nil:
		return []string{"author"}
	case mc.Member != nil:
		return []string{"member"}
	case mc.MentionCount != nil:
		return []string{"mentions"}
	case mc.RoleMentionCount != nil:
		return []string{"mention_roles"}
	case mc.AttachmentCount != nil:
		return []string{"attachments"}
	case mc.MentionsEveryone != nil:
		return []string{"mention_everyone"}
	case mc.MentionsOverGuildLimit != nil:
		return []string{"mentions", "mention_roles"}
	}
	return nil
}

// evalContent handles word list operators on top of the plain string operators.
func (c *RuleContext) evalContent(sc *rule.StringConstraint, content string) status.Status {
	name, negate, ok := sc.WordList()
	if !ok {
		return status.FromBool(sc.Matches(content))
	}
	wl := c.WordList(name)
	if wl == nil {
		return unknown
	}
	hit := wl.MatchNormalized(c.evt.NormalizedContent)
	return status.FromBool(hit != negate)
}

func (c *RuleContext) evalString(sc *rule.StringConstraint, v string) status.Status {
	name, negate, ok := sc.WordList()
	if !ok {
		return status.FromBool(sc.Matches(v))
	}
	wl := c.WordList(name)
	if wl == nil {
		return unknown
	}
	return status.FromBool(wl.Match(v) != negate)
}

func (c *RuleContext) evalUser(uc *rule.UserConstraint, u *discordgo.User) status.Status {
	if uc.ID != nil {
		// the id is available even on events which don't carry a user object
		if u == nil {
			id, ok := c.Event().UserID().Get()
			if !ok {
				return unknown
			}
			return intStatus(uc.ID, int64(id))
		}
		return idStatus(uc.ID, u.ID)
	}
	if u == nil {
		return unknown
	}
	switch {
	case uc.Username != nil:
		return c.evalString(uc.Username, u.Username)
	case uc.IsBot != nil:
		return boolStatus(uc.IsBot, u.Bot)
	case uc.CreatedAt != nil:
		id, ok := parseID(u.ID)
		if !ok {
			return unknown
		}
		return c.timeStatus(uc.CreatedAt, id.Time())
	}
	return unknown
}

func (c *RuleContext) evalMember(mc *rule.MemberConstraint, m *discordgo.Member) status.Status {
	if m == nil {
		return unknown
	}
	switch {
	case mc.Nickname != nil:
		return c.evalString(mc.Nickname, m.Nick)
	case mc.Roles != nil:
		return status.FromBool(mc.Roles.Matches(parseIDs(m.Roles)))
	case mc.Deaf != nil:
		return boolStatus(mc.Deaf, m.Deaf)
	case mc.Mute != nil:
		return boolStatus(mc.Mute, m.Mute)
	case mc.Pending != nil:
		return boolStatus(mc.Pending, m.Pending)
	case mc.Boosting != nil:
		return boolStatus(mc.Boosting, m.PremiumSince != nil)
	case mc.JoinedAt != nil:
		return c.timeStatus(mc.JoinedAt, m.JoinedAt)
	}
	return unknown
}

// counterKey derives the counter value key for a scope. Keys include the guild, so counters never leak between guilds.
func counterKey(evt event.Event, scope string) (string, event.Snowflake, bool) {
	var id event.Snowflake
	var ok bool
	switch scope {
	case rule.ScopeGuild:
		id, ok = evt.GuildID().Get()
	case rule.ScopeChannel:
		id, ok = evt.ChannelID().Get()
	case rule.ScopeUser:
		id, ok = evt.UserID().Get()
	}
	if !ok {
		return "", 0, false
	}
	guild := evt.GuildID().OrElse(0)
	return fmt.Sprintf("%s/%s/%s", guild, scope, id), id, true
}

func (c *RuleContext) evalCounter(cc *rule.CounterConstraint) status.Status {
	key, _, ok := counterKey(c.Event(), cc.Scope)
	if !ok {
		return unknown
	}
	period := cc.Period
	if period == "" {
		period = countstore.PeriodTotal
	}
	v, ok := c.GetCount(cc.Name, key, period)
	if !ok {
		return unknown
	}
	return intStatus(&cc.Value, int64(v))
}

func (c *RuleContext) evalGuild(gc *rule.GuildConstraint) status.Status {
	cfg := c.evt.Config
	if cfg == nil {
		return unknown
	}
	switch {
	case gc.ID != nil:
		return intStatus(gc.ID, int64(cfg.ID))
	case gc.FeatureEnabled != nil:
		return status.FromBool(cfg.FeatureEnabled(*gc.FeatureEnabled))
	case gc.ChannelDisabled != nil:
		ch, ok := c.Event().ChannelID().Get()
		if !ok {
			return unknown
		}
		return boolStatus(gc.ChannelDisabled, cfg.ChannelDisabled(ch))
	}
	return unknown
}
