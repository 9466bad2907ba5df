package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/guildwarden/warden/automod/helpers"

	"github.com/bwmarrin/discordgo"
)

// Gateway opcode for event dispatches. Every other opcode is connection control traffic.
const OpDispatch = 0

var ErrUnsupportedEvent = errors.New("unsupported event")

// DeserializeError indicates that a payload body did not match the schema implied by its type tag.
type DeserializeError struct {
	Type string
	Err  error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("failed to deserialize %s event: %v", e.Type, e.Err)
}

func (e *DeserializeError) Unwrap() error {
	return e.Err
}

// Envelope is the broker message wrapping a single gateway payload.
type Envelope struct {
	Op  int             `json:"op"`
	T   *string         `json:"t"`
	D   json.RawMessage `json:"d"`
	Old json.RawMessage `json:"old,omitempty"`
}

type decoderFunc func(src Source, body, old []byte) (Event, error)

var decoders = map[Kind]decoderFunc{
	KindMessageCreate: func(src Source, body, old []byte) (Event, error) {
		var m discordgo.Message
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, err
		}
		return &MessageCreate{Source: src, Message: &m}, nil
	},
	KindMessageUpdate: func(src Source, body, old []byte) (Event, error) {
		var m discordgo.Message
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, err
		}
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(body, &keys); err != nil {
			return nil, err
		}
		fields := make(map[string]bool, len(keys))
		for k := range keys {
			fields[k] = true
		}
		prev, err := decodeOld[discordgo.Message](old)
		if err != nil {
			return nil, err
		}
		return &MessageUpdate{Source: src, Message: &m, Old: prev, Fields: fields}, nil
	},
	KindMessageDelete: func(src Source, body, old []byte) (Event, error) {
		var m discordgo.Message
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, err
		}
		prev, err := decodeOld[discordgo.Message](old)
		if err != nil {
			return nil, err
		}
		return &MessageDelete{Source: src, Message: &m, Old: prev}, nil
	},
	KindMessageDeleteBulk: func(src Source, body, old []byte) (Event, error) {
		var b discordgo.MessageDeleteBulk
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return &MessageDeleteBulk{Source: src, Bulk: &b}, nil
	},
	KindMemberAdd: func(src Source, body, old []byte) (Event, error) {
		var m discordgo.Member
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, err
		}
		return &MemberAdd{Source: src, Member: &m}, nil
	},
	KindMemberUpdate: func(src Source, body, old []byte) (Event, error) {
		var m discordgo.Member
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, err
		}
		prev, err := decodeOld[discordgo.Member](old)
		if err != nil {
			return nil, err
		}
		return &MemberUpdate{Source: src, Member: &m, Old: prev}, nil
	},
	KindMemberRemove: func(src Source, body, old []byte) (Event, error) {
		var m discordgo.Member
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, err
		}
		return &MemberRemove{Source: src, Member: &m}, nil
	},
	KindBanAdd: func(src Source, body, old []byte) (Event, error) {
		var b discordgo.GuildBanAdd
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return &BanAdd{Source: src, Ban: &b}, nil
	},
	KindBanRemove: func(src Source, body, old []byte) (Event, error) {
		var b discordgo.GuildBanRemove
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return &BanRemove{Source: src, Ban: &b}, nil
	},
	KindReactionAdd: func(src Source, body, old []byte) (Event, error) {
		var r struct {
			discordgo.MessageReaction
			Member *discordgo.Member `json:"member,omitempty"`
		}
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, err
		}
		return &ReactionAdd{Source: src, Reaction: &r.MessageReaction, Member: r.Member}, nil
	},
	KindReactionRemove: func(src Source, body, old []byte) (Event, error) {
		var r discordgo.MessageReaction
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, err
		}
		return &ReactionRemove{Source: src, Reaction: &r}, nil
	},
	KindTypingStart: func(src Source, body, old []byte) (Event, error) {
		var t discordgo.TypingStart
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, err
		}
		return &TypingStart{Source: src, Typing: &t}, nil
	},
}

func isNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeOld[T any](raw []byte) (*T, error) {
	if isNull(raw) {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("old value: %w", err)
	}
	return &v, nil
}

// Decode parses a broker payload in to a typed event.
//
// Non-dispatch opcodes fail with ErrUnsupportedEvent, and malformed bodies with *DeserializeError. Dispatches with an unknown type tag are not an error: they decode to *Unrecognized, which callers are expected to skip.
func Decode(payload []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &DeserializeError{Type: "envelope", Err: err}
	}
	return DecodeEnvelope(&env)
}

func DecodeEnvelope(env *Envelope) (Event, error) {
	if env.Op != OpDispatch {
		return nil, fmt.Errorf("%w: opcode %d", ErrUnsupportedEvent, env.Op)
	}
	if env.T == nil || *env.T == "" {
		return nil, fmt.Errorf("%w: dispatch without event type", ErrUnsupportedEvent)
	}
	t := *env.T
	src := Source{Digest: helpers.HashOfString(string(env.D))}

	dec, ok := decoders[Kind(t)]
	if !ok {
		return &Unrecognized{Source: src, Type: t, Body: env.D}, nil
	}
	if isNull(env.D) {
		return nil, &DeserializeError{Type: t, Err: errors.New("missing event body")}
	}
	evt, err := dec(src, env.D, env.Old)
	if err != nil {
		return nil, &DeserializeError{Type: t, Err: err}
	}
	return evt, nil
}

// Known reports whether the event type tag has a decoder.
func Known(t string) bool {
	_, ok := decoders[Kind(t)]
	return ok
}
