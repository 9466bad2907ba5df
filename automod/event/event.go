package event

import (
	"encoding/json"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/mo"
)

// Kind identifies an event variant. Values match gateway dispatch type names, which is also how rule triggers refer to them.
type Kind string

const (
	KindMessageCreate     Kind = "MESSAGE_CREATE"
	KindMessageUpdate     Kind = "MESSAGE_UPDATE"
	KindMessageDelete     Kind = "MESSAGE_DELETE"
	KindMessageDeleteBulk Kind = "MESSAGE_DELETE_BULK"
	KindMemberAdd         Kind = "GUILD_MEMBER_ADD"
	KindMemberUpdate      Kind = "GUILD_MEMBER_UPDATE"
	KindMemberRemove      Kind = "GUILD_MEMBER_REMOVE"
	KindBanAdd            Kind = "GUILD_BAN_ADD"
	KindBanRemove         Kind = "GUILD_BAN_REMOVE"
	KindReactionAdd       Kind = "MESSAGE_REACTION_ADD"
	KindReactionRemove    Kind = "MESSAGE_REACTION_REMOVE"
	KindTypingStart       Kind = "TYPING_START"

	// internal event, emitted by the engine after a rule changes a counter
	KindCounter Kind = "COUNTER"

	KindUnrecognized Kind = "UNRECOGNIZED"
)

// Kinds which rules may trigger on, in a stable order.
var TriggerKinds = []Kind{
	KindMessageCreate,
	KindMessageUpdate,
	KindMessageDelete,
	KindMessageDeleteBulk,
	KindMemberAdd,
	KindMemberUpdate,
	KindMemberRemove,
	KindBanAdd,
	KindBanRemove,
	KindReactionAdd,
	KindReactionRemove,
	KindTypingStart,
	KindCounter,
}

func (k Kind) IsTrigger() bool {
	for _, t := range TriggerKinds {
		if k == t {
			return true
		}
	}
	return false
}

// Event is a normalized, immutable gateway event.
//
// The capability queries are pure projections: each variant maps them onto its own fields, and variants with no natural owner return None.
type Event interface {
	Kind() Kind
	GuildID() mo.Option[Snowflake]
	ChannelID() mo.Option[Snowflake]
	UserID() mo.Option[Snowflake]
	// Stable identity of the source payload, used to de-duplicate actions on re-delivery. Empty when the event was not decoded from a payload.
	Key() string
}

// Source carries the digest of the gateway body an event was decoded from.
type Source struct {
	Digest string
}

func (s Source) keyFor(k Kind) string {
	if s.Digest == "" {
		return ""
	}
	return string(k) + "/" + s.Digest
}

func messageAuthor(m *discordgo.Message) mo.Option[Snowflake] {
	if m == nil || m.Author == nil {
		return mo.None[Snowflake]()
	}
	return optionalID(m.Author.ID)
}

func memberUser(m *discordgo.Member) mo.Option[Snowflake] {
	if m == nil || m.User == nil {
		return mo.None[Snowflake]()
	}
	return optionalID(m.User.ID)
}

type MessageCreate struct {
	Source
	Message *discordgo.Message
}

func (e *MessageCreate) Kind() Kind                      { return KindMessageCreate }
func (e *MessageCreate) GuildID() mo.Option[Snowflake]   { return optionalID(e.Message.GuildID) }
func (e *MessageCreate) ChannelID() mo.Option[Snowflake] { return optionalID(e.Message.ChannelID) }
func (e *MessageCreate) UserID() mo.Option[Snowflake]    { return messageAuthor(e.Message) }
func (e *MessageCreate) Key() string                     { return e.keyFor(KindMessageCreate) }

// Message edit. The gateway sends a partial message; Old is the previous version when the producer supplied one.
type MessageUpdate struct {
	Source
	Message *discordgo.Message
	Old     *discordgo.Message
	// top-level keys present in the gateway body. nil means the message is complete.
	Fields map[string]bool
}

// HasField reports whether the update carried the given top-level message key. Absent keys decode to zero values and must not be read as data.
func (e *MessageUpdate) HasField(key string) bool {
	return e.Fields == nil || e.Fields[key]
}

func (e *MessageUpdate) Kind() Kind                      { return KindMessageUpdate }
func (e *MessageUpdate) GuildID() mo.Option[Snowflake]   { return optionalID(e.Message.GuildID) }
func (e *MessageUpdate) ChannelID() mo.Option[Snowflake] { return optionalID(e.Message.ChannelID) }
func (e *MessageUpdate) UserID() mo.Option[Snowflake]    { return messageAuthor(e.Message) }
func (e *MessageUpdate) Key() string                     { return e.keyFor(KindMessageUpdate) }

// Message deletion. Only id, channel and guild are present in Message; Old is the deleted message when known.
type MessageDelete struct {
	Source
	Message *discordgo.Message
	Old     *discordgo.Message
}

func (e *MessageDelete) Kind() Kind                      { return KindMessageDelete }
func (e *MessageDelete) GuildID() mo.Option[Snowflake]   { return optionalID(e.Message.GuildID) }
func (e *MessageDelete) ChannelID() mo.Option[Snowflake] { return optionalID(e.Message.ChannelID) }
func (e *MessageDelete) UserID() mo.Option[Snowflake] {
	if u := messageAuthor(e.Message); u.IsPresent() {
		return u
	}
	return messageAuthor(e.Old)
}
func (e *MessageDelete) Key() string { return e.keyFor(KindMessageDelete) }

type MessageDeleteBulk struct {
	Source
	Bulk *discordgo.MessageDeleteBulk
}

func (e *MessageDeleteBulk) Kind() Kind                      { return KindMessageDeleteBulk }
func (e *MessageDeleteBulk) GuildID() mo.Option[Snowflake]   { return optionalID(e.Bulk.GuildID) }
func (e *MessageDeleteBulk) ChannelID() mo.Option[Snowflake] { return optionalID(e.Bulk.ChannelID) }
func (e *MessageDeleteBulk) UserID() mo.Option[Snowflake]    { return mo.None[Snowflake]() }
func (e *MessageDeleteBulk) Key() string                     { return e.keyFor(KindMessageDeleteBulk) }

type MemberAdd struct {
	Source
	Member *discordgo.Member
}

func (e *MemberAdd) Kind() Kind                      { return KindMemberAdd }
func (e *MemberAdd) GuildID() mo.Option[Snowflake]   { return optionalID(e.Member.GuildID) }
func (e *MemberAdd) ChannelID() mo.Option[Snowflake] { return mo.None[Snowflake]() }
func (e *MemberAdd) UserID() mo.Option[Snowflake]    { return memberUser(e.Member) }
func (e *MemberAdd) Key() string                     { return e.keyFor(KindMemberAdd) }

type MemberUpdate struct {
	Source
	Member *discordgo.Member
	Old    *discordgo.Member
}

func (e *MemberUpdate) Kind() Kind                      { return KindMemberUpdate }
func (e *MemberUpdate) GuildID() mo.Option[Snowflake]   { return optionalID(e.Member.GuildID) }
func (e *MemberUpdate) ChannelID() mo.Option[Snowflake] { return mo.None[Snowflake]() }
func (e *MemberUpdate) UserID() mo.Option[Snowflake]    { return memberUser(e.Member) }
func (e *MemberUpdate) Key() string                     { return e.keyFor(KindMemberUpdate) }

// Member left or was removed. The gateway only sends the guild and user.
type MemberRemove struct {
	Source
	Member *discordgo.Member
}

func (e *MemberRemove) Kind() Kind                      { return KindMemberRemove }
func (e *MemberRemove) GuildID() mo.Option[Snowflake]   { return optionalID(e.Member.GuildID) }
func (e *MemberRemove) ChannelID() mo.Option[Snowflake] { return mo.None[Snowflake]() }
func (e *MemberRemove) UserID() mo.Option[Snowflake]    { return memberUser(e.Member) }
func (e *MemberRemove) Key() string                     { return e.keyFor(KindMemberRemove) }

type BanAdd struct {
	Source
	Ban *discordgo.GuildBanAdd
}

func (e *BanAdd) Kind() Kind                      { return KindBanAdd }
func (e *BanAdd) GuildID() mo.Option[Snowflake]   { return optionalID(e.Ban.GuildID) }
func (e *BanAdd) ChannelID() mo.Option[Snowflake] { return mo.None[Snowflake]() }
func (e *BanAdd) UserID() mo.Option[Snowflake] {
	if e.Ban.User == nil {
		return mo.None[Snowflake]()
	}
	return optionalID(e.Ban.User.ID)
}
func (e *BanAdd) Key() string { return e.keyFor(KindBanAdd) }

type BanRemove struct {
	Source
	Ban *discordgo.GuildBanRemove
}

func (e *BanRemove) Kind() Kind                      { return KindBanRemove }
func (e *BanRemove) GuildID() mo.Option[Snowflake]   { return optionalID(e.Ban.GuildID) }
func (e *BanRemove) ChannelID() mo.Option[Snowflake] { return mo.None[Snowflake]() }
func (e *BanRemove) UserID() mo.Option[Snowflake] {
	if e.Ban.User == nil {
		return mo.None[Snowflake]()
	}
	return optionalID(e.Ban.User.ID)
}
func (e *BanRemove) Key() string { return e.keyFor(KindBanRemove) }

type ReactionAdd struct {
	Source
	Reaction *discordgo.MessageReaction
	// only present for reactions in a guild
	Member *discordgo.Member
}

func (e *ReactionAdd) Kind() Kind                      { return KindReactionAdd }
func (e *ReactionAdd) GuildID() mo.Option[Snowflake]   { return optionalID(e.Reaction.GuildID) }
func (e *ReactionAdd) ChannelID() mo.Option[Snowflake] { return optionalID(e.Reaction.ChannelID) }
func (e *ReactionAdd) UserID() mo.Option[Snowflake]    { return optionalID(e.Reaction.UserID) }
func (e *ReactionAdd) Key() string                     { return e.keyFor(KindReactionAdd) }

type ReactionRemove struct {
	Source
	Reaction *discordgo.MessageReaction
}

func (e *ReactionRemove) Kind() Kind                      { return KindReactionRemove }
func (e *ReactionRemove) GuildID() mo.Option[Snowflake]   { return optionalID(e.Reaction.GuildID) }
func (e *ReactionRemove) ChannelID() mo.Option[Snowflake] { return optionalID(e.Reaction.ChannelID) }
func (e *ReactionRemove) UserID() mo.Option[Snowflake]    { return optionalID(e.Reaction.UserID) }
func (e *ReactionRemove) Key() string                     { return e.keyFor(KindReactionRemove) }

type TypingStart struct {
	Source
	Typing *discordgo.TypingStart
}

func (e *TypingStart) Kind() Kind                      { return KindTypingStart }
func (e *TypingStart) GuildID() mo.Option[Snowflake]   { return optionalID(e.Typing.GuildID) }
func (e *TypingStart) ChannelID() mo.Option[Snowflake] { return optionalID(e.Typing.ChannelID) }
func (e *TypingStart) UserID() mo.Option[Snowflake]    { return optionalID(e.Typing.UserID) }
func (e *TypingStart) Key() string                     { return e.keyFor(KindTypingStart) }

// Counter is emitted by the engine after a rule action changed a counter. Channel and user come from the event which caused the change.
type Counter struct {
	Guild   Snowflake
	Name    string
	Scope   string
	ScopeID Snowflake
	// counter value (total period) after the change
	Value  int
	Origin Event
}

func (e *Counter) Kind() Kind { return KindCounter }

func (e *Counter) GuildID() mo.Option[Snowflake] {
	if e.Guild == 0 {
		return mo.None[Snowflake]()
	}
	return mo.Some(e.Guild)
}

func (e *Counter) ChannelID() mo.Option[Snowflake] {
	if e.Origin == nil {
		return mo.None[Snowflake]()
	}
	return e.Origin.ChannelID()
}

func (e *Counter) UserID() mo.Option[Snowflake] {
	if e.Origin == nil {
		return mo.None[Snowflake]()
	}
	return e.Origin.UserID()
}

func (e *Counter) Key() string {
	if e.Origin == nil || e.Origin.Key() == "" {
		return ""
	}
	return e.Origin.Key() + "/counter/" + e.Name + "/" + e.Scope
}

// Unrecognized is a dispatch whose type tag has no decoder. The body is kept as-is; ids are read on a best-effort basis from top-level keys.
type Unrecognized struct {
	Source
	Type string
	Body json.RawMessage
}

type bestEffortIDs struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

func (e *Unrecognized) ids() bestEffortIDs {
	var ids bestEffortIDs
	// errors mean the body isn't an object, and none of the ids are present
	_ = json.Unmarshal(e.Body, &ids)
	return ids
}

func (e *Unrecognized) Kind() Kind                      { return KindUnrecognized }
func (e *Unrecognized) GuildID() mo.Option[Snowflake]   { return optionalID(e.ids().GuildID) }
func (e *Unrecognized) ChannelID() mo.Option[Snowflake] { return optionalID(e.ids().ChannelID) }
func (e *Unrecognized) UserID() mo.Option[Snowflake]    { return optionalID(e.ids().UserID) }
func (e *Unrecognized) Key() string                     { return e.keyFor(KindUnrecognized) }
