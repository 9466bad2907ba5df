package rule

import (
	"errors"
	"fmt"
	"slices"

	"github.com/guildwarden/warden/automod/event"
)

// Upper bound on days of message history removed with a ban.
const MaxBanDeleteDays = 8

// Action is one moderation operation of a rule. Exactly one field must be set.
//
// Targets (user, channel, message) are not part of the rule document: they are resolved from the event when the rule fires.
type Action struct {
	Reply         *ReplyAction         `json:"reply,omitempty"`
	SendMessage   *SendMessageAction   `json:"send_message,omitempty"`
	DeleteMessage *DeleteMessageAction `json:"delete_message,omitempty"`
	Ban           *BanAction           `json:"ban,omitempty"`
	Kick          *KickAction          `json:"kick,omitempty"`
	Mute          *MuteAction          `json:"mute,omitempty"`
	AddRole       *RoleAction          `json:"add_role,omitempty"`
	RemoveRole    *RoleAction          `json:"remove_role,omitempty"`

	AddCounter      *CounterAction `json:"add_counter,omitempty"`
	SubtractCounter *CounterAction `json:"subtract_counter,omitempty"`
	ResetCounter    *CounterAction `json:"reset_counter,omitempty"`

	SubCondition *SubConditionAction `json:"sub_condition,omitempty"`
}

// Replies to the message which triggered the rule.
type ReplyAction struct {
	Content string `json:"content"`
}

// Sends a message to a fixed channel, or to the event's channel when no channel is given.
type SendMessageAction struct {
	ChannelID *event.Snowflake `json:"channel_id,omitempty"`
	Content   string           `json:"content"`
}

// Deletes the message which triggered the rule.
type DeleteMessageAction struct{}

type BanAction struct {
	DeleteDays int `json:"delete_days"`
	// temporary ban; permanent when absent
	Duration *Duration `json:"duration,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

type KickAction struct {
	Reason string `json:"reason,omitempty"`
}

// Mutes the acting user, with the guild's mute role when configured and a timeout otherwise. The duration falls back to the guild's configured mute duration.
type MuteAction struct {
	Duration *Duration `json:"duration,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

type RoleAction struct {
	RoleID event.Snowflake `json:"role_id"`
	Reason string          `json:"reason,omitempty"`
}

type CounterAction struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
}

// Evaluates a nested condition when the action runs. Actions run when it is met, ActionsElse when it is not met, and neither when it is unknown.
type SubConditionAction struct {
	Condition   Condition `json:"condition"`
	Actions     []Action  `json:"actions"`
	ActionsElse []Action  `json:"actions_else,omitempty"`
}

// Kind returns the name of the set field, matching the JSON key.
func (a *Action) Kind() string {
	switch {
	case a.Reply != nil:
		return "reply"
	case a.SendMessage != nil:
		return "send_message"
	case a.DeleteMessage != nil:
		return "delete_message"
	case a.Ban != nil:
		return "ban"
	case a.Kick != nil:
		return "kick"
	case a.Mute != nil:
		return "mute"
	case a.AddRole != nil:
		return "add_role"
	case a.RemoveRole != nil:
		return "remove_role"
	case a.AddCounter != nil:
		return "add_counter"
	case a.SubtractCounter != nil:
		return "subtract_counter"
	case a.ResetCounter != nil:
		return "reset_counter"
	case a.SubCondition != nil:
		return "sub_condition"
	}
	return ""
}

func (a *Action) Validate() error {
	err := exactlyOne(
		a.Reply != nil, a.SendMessage != nil, a.DeleteMessage != nil,
		a.Ban != nil, a.Kick != nil, a.Mute != nil,
		a.AddRole != nil, a.RemoveRole != nil,
		a.AddCounter != nil, a.SubtractCounter != nil, a.ResetCounter != nil,
		a.SubCondition != nil,
	)
	if err != nil {
		return fmt.Errorf("action %w", err)
	}
	switch {
	case a.Reply != nil:
		if a.Reply.Content == "" {
			return errors.New("reply: content must not be empty")
		}
	case a.SendMessage != nil:
		if a.SendMessage.Content == "" {
			return errors.New("send_message: content must not be empty")
		}
	case a.Ban != nil:
		if a.Ban.DeleteDays < 0 || a.Ban.DeleteDays > MaxBanDeleteDays {
			return fmt.Errorf("ban: delete_days must be between 0 and %d", MaxBanDeleteDays)
		}
		if a.Ban.Duration != nil && *a.Ban.Duration <= 0 {
			return errors.New("ban: duration must be positive")
		}
	case a.Mute != nil:
		if a.Mute.Duration != nil && *a.Mute.Duration <= 0 {
			return errors.New("mute: duration must be positive")
		}
	case a.AddRole != nil:
		if a.AddRole.RoleID == 0 {
			return errors.New("add_role: role_id is required")
		}
	case a.RemoveRole != nil:
		if a.RemoveRole.RoleID == 0 {
			return errors.New("remove_role: role_id is required")
		}
	case a.AddCounter != nil, a.SubtractCounter != nil, a.ResetCounter != nil:
		c := a.Counter()
		if c.Name == "" {
			return fmt.Errorf("%s: name must not be empty", a.Kind())
		}
		if !slices.Contains(CounterScopes, c.Scope) {
			return fmt.Errorf("%s: unknown scope %q", a.Kind(), c.Scope)
		}
	case a.SubCondition != nil:
		if err := a.SubCondition.Condition.Validate(); err != nil {
			return fmt.Errorf("sub_condition.condition: %w", err)
		}
		if err := validateActions("sub_condition.actions", a.SubCondition.Actions); err != nil {
			return err
		}
		return validateActions("sub_condition.actions_else", a.SubCondition.ActionsElse)
	}
	return nil
}

// Counter returns the counter operand of any of the counter actions.
func (a *Action) Counter() *CounterAction {
	switch {
	case a.AddCounter != nil:
		return a.AddCounter
	case a.SubtractCounter != nil:
		return a.SubtractCounter
	case a.ResetCounter != nil:
		return a.ResetCounter
	}
	return nil
}

func validateActions(path string, actions []Action) error {
	for i := range actions {
		if err := actions[i].Validate(); err != nil {
			return fmt.Errorf("%s[%d]: %w", path, i, err)
		}
	}
	return nil
}
