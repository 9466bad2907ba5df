package engine

import (
	"github.com/guildwarden/warden/automod/event"

	"github.com/bwmarrin/discordgo"
)

// messageOf returns the message body an event carries. Deletions only have a body when the producer supplied the old snapshot.
func messageOf(evt event.Event) *discordgo.Message {
	switch e := evt.(type) {
	case *event.MessageCreate:
		return e.Message
	case *event.MessageUpdate:
		return e.Message
	case *event.MessageDelete:
		return e.Old
	case *event.Counter:
		if e.Origin != nil {
			return messageOf(e.Origin)
		}
	}
	return nil
}

// messageHas reports whether the event's message body carries all the given keys. Only partial updates can lack them.
func messageHas(evt event.Event, keys ...string) bool {
	switch e := evt.(type) {
	case *event.MessageUpdate:
		for _, k := range keys {
			if !e.HasField(k) {
				return false
			}
		}
	case *event.Counter:
		if e.Origin != nil {
			return messageHas(e.Origin, keys...)
		}
	}
	return true
}

// userOf returns the acting user of an event.
func userOf(evt event.Event) *discordgo.User {
	switch e := evt.(type) {
	case *event.MessageCreate, *event.MessageUpdate, *event.MessageDelete:
		if m := messageOf(evt); m != nil {
			return m.Author
		}
	case *event.MemberAdd:
		return e.Member.User
	case *event.MemberUpdate:
		return e.Member.User
	case *event.MemberRemove:
		return e.Member.User
	case *event.BanAdd:
		return e.Ban.User
	case *event.BanRemove:
		return e.Ban.User
	case *event.ReactionAdd:
		if e.Member != nil {
			return e.Member.User
		}
	case *event.Counter:
		if e.Origin != nil {
			return userOf(e.Origin)
		}
	}
	return nil
}

// memberOf returns guild membership details of the acting user, when the event includes them.
func memberOf(evt event.Event) *discordgo.Member {
	switch e := evt.(type) {
	case *event.MessageCreate, *event.MessageUpdate, *event.MessageDelete:
		if m := messageOf(evt); m != nil {
			return m.Member
		}
	case *event.MemberAdd:
		return e.Member
	case *event.MemberUpdate:
		return e.Member
	case *event.MemberRemove:
		return e.Member
	case *event.ReactionAdd:
		return e.Member
	case *event.Counter:
		if e.Origin != nil {
			return memberOf(e.Origin)
		}
	}
	return nil
}

// messageIDOf returns the id of the message an event refers to, including reactions and deletions without a snapshot.
func messageIDOf(evt event.Event) (event.Snowflake, bool) {
	var raw string
	switch e := evt.(type) {
	case *event.MessageCreate:
		raw = e.Message.ID
	case *event.MessageUpdate:
		raw = e.Message.ID
	case *event.MessageDelete:
		raw = e.Message.ID
	case *event.ReactionAdd:
		raw = e.Reaction.MessageID
	case *event.ReactionRemove:
		raw = e.Reaction.MessageID
	case *event.Counter:
		if e.Origin != nil {
			return messageIDOf(e.Origin)
		}
	}
	return parseID(raw)
}

func parseID(raw string) (event.Snowflake, bool) {
	if raw == "" {
		return 0, false
	}
	id, err := event.ParseSnowflake(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseIDs(raw []string) []event.Snowflake {
	out := make([]event.Snowflake, 0, len(raw))
	for _, r := range raw {
		if id, ok := parseID(r); ok {
			out = append(out, id)
		}
	}
	return out
}
