package rule

import (
	"errors"
	"fmt"
	"slices"
)

// Counter scopes. The scope decides which id of the event a counter is keyed on.
const (
	ScopeGuild   = "guild"
	ScopeChannel = "channel"
	ScopeUser    = "user"
)

var CounterScopes = []string{ScopeGuild, ScopeChannel, ScopeUser}

// Counter periods, matching the countstore periods.
var CounterPeriods = []string{"total", "day", "hour"}

// Features which can be tested with a guild constraint, mapped to GuildConfig toggles.
var GuildFeatures = []string{"join_msg", "leave_msg", "invite_guard", "log_msg", "log_mod", "log_member", "warn_dm", "ban_dm"}

// Condition is a node in a condition tree: either a combinator over child conditions, or a single leaf constraint.
//
// At most one field may be set. A condition with no fields set is trivially met.
type Condition struct {
	And     []Condition       `json:"and,omitempty"`
	Or      []Condition       `json:"or,omitempty"`
	Not     *Condition        `json:"not,omitempty"`
	AtLeast *AtLeastCondition `json:"at_least,omitempty"`

	Message *MessageConstraint `json:"message,omitempty"`
	User    *UserConstraint    `json:"user,omitempty"`
	Member  *MemberConstraint  `json:"member,omitempty"`
	Counter *CounterConstraint `json:"counter,omitempty"`
	Guild   *GuildConstraint   `json:"guild,omitempty"`
}

type AtLeastCondition struct {
	MinCount   int         `json:"min_count"`
	Conditions []Condition `json:"conditions"`
}

// IsEmpty reports whether the condition always holds.
func (c *Condition) IsEmpty() bool {
	return c.And == nil && c.Or == nil && c.Not == nil && c.AtLeast == nil && c.Message == nil && c.User == nil && c.Member == nil && c.Counter == nil && c.Guild == nil
}

func (c *Condition) Validate() error {
	if countSet(c.And != nil, c.Or != nil, c.Not != nil, c.AtLeast != nil, c.Message != nil, c.User != nil, c.Member != nil, c.Counter != nil, c.Guild != nil) > 1 {
		return errors.New("condition must set at most one field")
	}
	switch {
	case c.And != nil:
		return validateChildren("and", c.And)
	case c.Or != nil:
		if len(c.Or) == 0 {
			return errors.New("or: requires at least one condition")
		}
		return validateChildren("or", c.Or)
	case c.Not != nil:
		if err := c.Not.Validate(); err != nil {
			return fmt.Errorf("not: %w", err)
		}
	case c.AtLeast != nil:
		if c.AtLeast.MinCount < 1 || c.AtLeast.MinCount > len(c.AtLeast.Conditions) {
			return fmt.Errorf("at_least: min_count must be between 1 and %d", len(c.AtLeast.Conditions))
		}
		return validateChildren("at_least.conditions", c.AtLeast.Conditions)
	case c.Message != nil:
		if err := c.Message.Validate(); err != nil {
			return fmt.Errorf("message: %w", err)
		}
	case c.User != nil:
		if err := c.User.Validate(); err != nil {
			return fmt.Errorf("user: %w", err)
		}
	case c.Member != nil:
		if err := c.Member.Validate(); err != nil {
			return fmt.Errorf("member: %w", err)
		}
	case c.Counter != nil:
		if err := c.Counter.Validate(); err != nil {
			return fmt.Errorf("counter: %w", err)
		}
	case c.Guild != nil:
		if err := c.Guild.Validate(); err != nil {
			return fmt.Errorf("guild: %w", err)
		}
	}
	return nil
}

func validateChildren(path string, children []Condition) error {
	for i := range children {
		if err := children[i].Validate(); err != nil {
			return fmt.Errorf("%s[%d]: %w", path, i, err)
		}
	}
	return nil
}

// validator is implemented by every constraint type
type validator interface {
	Validate() error
}

// validateOne checks that exactly one of the named fields is non-nil, and validates it.
func validateOne(fields map[string]validator) error {
	var name string
	var v validator
	for k, f := range fields {
		if f == nil {
			continue
		}
		if v != nil {
			return errExactlyOne
		}
		name, v = k, f
	}
	if v == nil {
		return errExactlyOne
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// MessageConstraint applies to the message body of message events. On other variants it evaluates to Unknown.
type MessageConstraint struct {
	ID               *IntegerConstraint `json:"id,omitempty"`
	ChannelID        *IntegerConstraint `json:"channel_id,omitempty"`
	Content          *StringConstraint  `json:"content,omitempty"`
	Author           *UserConstraint    `json:"author,omitempty"`
	Member           *MemberConstraint  `json:"member,omitempty"`
	CreatedAt        *TimeConstraint    `json:"created_at,omitempty"`
	MentionCount     *IntegerConstraint `json:"mention_count,omitempty"`
	RoleMentionCount *IntegerConstraint `json:"role_mention_count,omitempty"`
	AttachmentCount  *IntegerConstraint `json:"attachment_count,omitempty"`
	LinkCount        *IntegerConstraint `json:"link_count,omitempty"`
	InviteCount      *IntegerConstraint `json:"invite_count,omitempty"`
	MentionsEveryone *BoolConstraint    `json:"mentions_everyone,omitempty"`
	// compares the number of user and role mentions against the guild's configured limit
	MentionsOverGuildLimit *BoolConstraint `json:"mentions_over_guild_limit,omitempty"`
}

func (c *MessageConstraint) Validate() error {
	fields := map[string]validator{}
	addField(fields, "id", c.ID)
	addField(fields, "channel_id", c.ChannelID)
	addField(fields, "content", c.Content)
	addField(fields, "author", c.Author)
	addField(fields, "member", c.Member)
	addField(fields, "created_at", c.CreatedAt)
	addField(fields, "mention_count", c.MentionCount)
	addField(fields, "role_mention_count", c.RoleMentionCount)
	addField(fields, "attachment_count", c.AttachmentCount)
	addField(fields, "link_count", c.LinkCount)
	addField(fields, "invite_count", c.InviteCount)
	addField(fields, "mentions_everyone", c.MentionsEveryone)
	addField(fields, "mentions_over_guild_limit", c.MentionsOverGuildLimit)
	return validateOne(fields)
}

// addField skips typed nil pointers, which would otherwise be non-nil interface values.
func addField[T any, P interface {
	*T
	validator
}](fields map[string]validator, name string, p P) {
	if p != nil {
		fields[name] = p
	}
}

// UserConstraint applies to the acting user of an event: the message author, the member's user, or the banned user.
type UserConstraint struct {
	ID        *IntegerConstraint `json:"id,omitempty"`
	Username  *StringConstraint  `json:"username,omitempty"`
	IsBot     *BoolConstraint    `json:"is_bot,omitempty"`
	CreatedAt *TimeConstraint    `json:"created_at,omitempty"`
}

func (c *UserConstraint) Validate() error {
	fields := map[string]validator{}
	addField(fields, "id", c.ID)
	addField(fields, "username", c.Username)
	addField(fields, "is_bot", c.IsBot)
	addField(fields, "created_at", c.CreatedAt)
	return validateOne(fields)
}

type MemberConstraint struct {
	Nickname *StringConstraint `json:"nickname,omitempty"`
	Roles    *IDListConstraint `json:"roles,omitempty"`
	Deaf     *BoolConstraint   `json:"deaf,omitempty"`
	Mute     *BoolConstraint   `json:"mute,omitempty"`
	Pending  *BoolConstraint   `json:"pending,omitempty"`
	Boosting *BoolConstraint   `json:"boosting,omitempty"`
	JoinedAt *TimeConstraint   `json:"joined_at,omitempty"`
}

func (c *MemberConstraint) Validate() error {
	fields := map[string]validator{}
	addField(fields, "nickname", c.Nickname)
	addField(fields, "roles", c.Roles)
	addField(fields, "deaf", c.Deaf)
	addField(fields, "mute", c.Mute)
	addField(fields, "pending", c.Pending)
	addField(fields, "boosting", c.Boosting)
	addField(fields, "joined_at", c.JoinedAt)
	return validateOne(fields)
}

type CounterConstraint struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
	// total (default), day or hour
	Period string            `json:"period,omitempty"`
	Value  IntegerConstraint `json:"value"`
}

func (c *CounterConstraint) Validate() error {
	if c.Name == "" {
		return errors.New("name must not be empty")
	}
	if !slices.Contains(CounterScopes, c.Scope) {
		return fmt.Errorf("unknown scope %q", c.Scope)
	}
	if c.Period != "" && !slices.Contains(CounterPeriods, c.Period) {
		return fmt.Errorf("unknown period %q", c.Period)
	}
	if err := c.Value.Validate(); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	return nil
}

// GuildConstraint tests the guild an event belongs to, and its configuration.
type GuildConstraint struct {
	ID              *IntegerConstraint `json:"id,omitempty"`
	FeatureEnabled  *string            `json:"feature_enabled,omitempty"`
	ChannelDisabled *BoolConstraint    `json:"channel_disabled,omitempty"`
}

func (c *GuildConstraint) Validate() error {
	if err := exactlyOne(c.ID != nil, c.FeatureEnabled != nil, c.ChannelDisabled != nil); err != nil {
		return err
	}
	switch {
	case c.ID != nil:
		return c.ID.Validate()
	case c.FeatureEnabled != nil:
		if !slices.Contains(GuildFeatures, *c.FeatureEnabled) {
			return fmt.Errorf("unknown feature %q", *c.FeatureEnabled)
		}
	case c.ChannelDisabled != nil:
		return c.ChannelDisabled.Validate()
	}
	return nil
}
