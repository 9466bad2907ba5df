package guildconfig

import (
	"slices"
	"time"

	"github.com/guildwarden/warden/automod/event"
)

const (
	DefaultPrefix       = "!"
	DefaultMuteDuration = 10 * time.Minute
)

// GuildConfig is the configuration snapshot of one guild.
//
// Snapshots are shared by pointer between concurrent evaluations, and must not be modified once they have been handed to a Cache. Changes are made by storing a new snapshot.
type GuildConfig struct {
	ID     event.Snowflake `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Prefix string          `json:"prefix"`

	JoinMsgEnabled  bool            `json:"join_msg_enabled"`
	JoinMsg         string          `json:"join_msg"`
	JoinMsgChannel  event.Snowflake `json:"join_msg_channel,omitempty"`
	LeaveMsgEnabled bool            `json:"leave_msg_enabled"`
	LeaveMsg        string          `json:"leave_msg"`
	LeaveMsgChannel event.Snowflake `json:"leave_msg_channel,omitempty"`

	LogMsgEnabled    bool            `json:"log_msg_enabled"`
	LogMsgChannel    event.Snowflake `json:"log_msg_channel,omitempty"`
	LogModEnabled    bool            `json:"log_mod_enabled"`
	LogModChannel    event.Snowflake `json:"log_mod_channel,omitempty"`
	LogMemberEnabled bool            `json:"log_member_enabled"`
	LogMemberChannel event.Snowflake `json:"log_member_channel,omitempty"`

	// role given to muted members; timeouts are used when unset
	MuteRole     event.Snowflake `json:"mute_role,omitempty"`
	MuteDuration time.Duration   `json:"mute_duration"`
	// maximum user and role mentions in one message, zero for no limit
	MaxMention       int               `json:"max_mention"`
	InviteGuard      bool              `json:"invite_guard"`
	WarnDMs          bool              `json:"warn_dms"`
	BanDMs           bool              `json:"ban_dms"`
	DisabledChannels []event.Snowflake `gorm:"serializer:json" json:"disabled_channels"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (GuildConfig) TableName() string {
	return "guild_configs"
}

// DefaultGuildConfig is used for guilds which have never been configured.
func DefaultGuildConfig(id event.Snowflake) *GuildConfig {
	return &GuildConfig{
		ID:               id,
		Prefix:           DefaultPrefix,
		MuteDuration:     DefaultMuteDuration,
		DisabledChannels: []event.Snowflake{},
	}
}

// FeatureEnabled reports the state of a named feature toggle. Unknown names are disabled.
func (c *GuildConfig) FeatureEnabled(name string) bool {
	switch name {
	case "join_msg":
		return c.JoinMsgEnabled
	case "leave_msg":
		return c.LeaveMsgEnabled
	case "invite_guard":
		return c.InviteGuard
	case "log_msg":
		return c.LogMsgEnabled
	case "log_mod":
		return c.LogModEnabled
	case "log_member":
		return c.LogMemberEnabled
	case "warn_dm":
		return c.WarnDMs
	case "ban_dm":
		return c.BanDMs
	}
	return false
}

func (c *GuildConfig) ChannelDisabled(id event.Snowflake) bool {
	return slices.Contains(c.DisabledChannels, id)
}

// Clone returns a deep copy, for building a modified snapshot.
func (c *GuildConfig) Clone() *GuildConfig {
	out := *c
	out.DisabledChannels = slices.Clone(c.DisabledChannels)
	return &out
}
