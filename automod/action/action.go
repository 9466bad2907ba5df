// Concrete moderation actions, and the sinks which execute them.
//
// The rules engine resolves rule actions against the event that fired them (filling in the user, channel and message) and hands the result to a Sink as a Dispatch. Sinks must tolerate duplicate dispatches: the inbound stream is at-least-once.
package action

import (
	"context"
	"time"

	"github.com/guildwarden/warden/automod/event"

	"github.com/google/uuid"
)

// Action is one of the concrete action types of this package.
type Action interface {
	Kind() string
}

type Reply struct {
	GuildID   event.Snowflake `json:"guild_id"`
	ChannelID event.Snowflake `json:"channel_id"`
	MessageID event.Snowflake `json:"message_id"`
	Content   string          `json:"content"`
}

type SendMessage struct {
	GuildID   event.Snowflake `json:"guild_id"`
	ChannelID event.Snowflake `json:"channel_id"`
	Content   string          `json:"content"`
}

type DeleteMessage struct {
	GuildID   event.Snowflake `json:"guild_id"`
	ChannelID event.Snowflake `json:"channel_id"`
	MessageID event.Snowflake `json:"message_id"`
}

type Ban struct {
	GuildID    event.Snowflake `json:"guild_id"`
	UserID     event.Snowflake `json:"user_id"`
	DeleteDays int             `json:"delete_days"`
	// nil for a permanent ban
	Duration *time.Duration `json:"duration,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

type Kick struct {
	GuildID event.Snowflake `json:"guild_id"`
	UserID  event.Snowflake `json:"user_id"`
	Reason  string          `json:"reason,omitempty"`
}

// Mute gives the member RoleID for Duration, or puts them in timeout when RoleID is zero.
type Mute struct {
	GuildID  event.Snowflake `json:"guild_id"`
	UserID   event.Snowflake `json:"user_id"`
	RoleID   event.Snowflake `json:"role_id,omitempty"`
	Duration time.Duration   `json:"duration"`
	Reason   string          `json:"reason,omitempty"`
}

type AddRole struct {
	GuildID event.Snowflake `json:"guild_id"`
	UserID  event.Snowflake `json:"user_id"`
	RoleID  event.Snowflake `json:"role_id"`
	Reason  string          `json:"reason,omitempty"`
}

type RemoveRole struct {
	GuildID event.Snowflake `json:"guild_id"`
	UserID  event.Snowflake `json:"user_id"`
	RoleID  event.Snowflake `json:"role_id"`
	Reason  string          `json:"reason,omitempty"`
}

func (Reply) Kind() string         { return "reply" }
func (SendMessage) Kind() string   { return "send_message" }
func (DeleteMessage) Kind() string { return "delete_message" }
func (Ban) Kind() string           { return "ban" }
func (Kick) Kind() string          { return "kick" }
func (Mute) Kind() string          { return "mute" }
func (AddRole) Kind() string       { return "add_role" }
func (RemoveRole) Kind() string    { return "remove_role" }

// Dispatch is an action together with where it came from.
type Dispatch struct {
	// stable across re-deliveries of the same event: event key, rule id and position of the action in the rule
	Key       string          `json:"key"`
	GuildID   event.Snowflake `json:"guild_id,omitempty"`
	RuleSetID uuid.UUID       `json:"rule_set_id"`
	RuleID    uuid.UUID       `json:"rule_id"`
	RuleName  string          `json:"rule_name"`
	Action    Action          `json:"action"`
}

type Sink interface {
	Execute(ctx context.Context, d *Dispatch) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, d *Dispatch) error

func (f SinkFunc) Execute(ctx context.Context, d *Dispatch) error {
	return f(ctx, d)
}
