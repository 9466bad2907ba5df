package event

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var messageCreateFixture = []byte(`{
	"op": 0,
	"t": "MESSAGE_CREATE",
	"d": {
		"id": "1100000000000000001",
		"channel_id": "222",
		"guild_id": "111",
		"content": "hello there",
		"timestamp": "2024-03-01T12:00:00.000000+00:00",
		"author": {"id": "333", "username": "someone", "bot": false},
		"member": {"roles": ["444"], "nick": "nick", "joined_at": "2023-01-01T00:00:00+00:00"},
		"mentions": []
	},
	"old": null
}`)

func TestDecodeMessageCreate(t *testing.T) {
	assert := assert.New(t)

	evt, err := Decode(messageCreateFixture)
	require.NoError(t, err)

	mc, ok := evt.(*MessageCreate)
	require.True(t, ok)
	assert.Equal(KindMessageCreate, evt.Kind())
	assert.Equal("hello there", mc.Message.Content)
	assert.Equal(Snowflake(333), evt.UserID().MustGet())
	assert.Equal(Snowflake(111), evt.GuildID().MustGet())
	assert.Equal(Snowflake(222), evt.ChannelID().MustGet())
	assert.NotEmpty(evt.Key())

	// same body, same key
	again, err := Decode(messageCreateFixture)
	require.NoError(t, err)
	assert.Equal(evt.Key(), again.Key())
}

func TestDecodeDirectMessage(t *testing.T) {
	assert := assert.New(t)

	evt, err := Decode([]byte(`{"op":0,"t":"MESSAGE_CREATE","d":{"id":"5","channel_id":"6","content":"hi","author":{"id":"7","username":"x"}}}`))
	require.NoError(t, err)
	assert.False(evt.GuildID().IsPresent())
	assert.Equal(Snowflake(6), evt.ChannelID().MustGet())
	assert.Equal(Snowflake(7), evt.UserID().MustGet())
}

func TestDecodeUnrecognized(t *testing.T) {
	assert := assert.New(t)

	evt, err := Decode([]byte(`{"op":0,"t":"SOME_FUTURE_EVENT","d":{"guild_id":"42","whatever":true}}`))
	assert.NoError(err)
	u, ok := evt.(*Unrecognized)
	require.True(t, ok)
	assert.Equal("SOME_FUTURE_EVENT", u.Type)
	assert.Equal(KindUnrecognized, evt.Kind())
	assert.Equal(Snowflake(42), evt.GuildID().MustGet())
	assert.False(evt.UserID().IsPresent())

	// bodies which are not objects still decode
	evt, err = Decode([]byte(`{"op":0,"t":"OTHER","d":[1,2,3]}`))
	assert.NoError(err)
	assert.False(evt.GuildID().IsPresent())
}

func TestDecodeErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := Decode([]byte(`{"op":11,"t":null,"d":null}`))
	assert.ErrorIs(err, ErrUnsupportedEvent)

	_, err = Decode([]byte(`{"op":0,"t":null,"d":{}}`))
	assert.ErrorIs(err, ErrUnsupportedEvent)

	_, err = Decode([]byte(`{"op":0,"t":"GUILD_MEMBER_ADD","d":{"guild_id": 12, "user": "nope"}}`))
	var de *DeserializeError
	assert.True(errors.As(err, &de))
	assert.Equal("GUILD_MEMBER_ADD", de.Type)

	_, err = Decode([]byte(`{"op":0,"t":"MESSAGE_CREATE","d":null}`))
	assert.True(errors.As(err, &de))
	assert.Equal("MESSAGE_CREATE", de.Type)

	_, err = Decode([]byte(`not json`))
	assert.True(errors.As(err, &de))
	assert.Equal("envelope", de.Type)
}

func TestDecodeCapabilities(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		payload string
		kind    Kind
		guild   Snowflake
		channel Snowflake
		user    Snowflake
	}{
		{
			payload: `{"op":0,"t":"GUILD_MEMBER_ADD","d":{"guild_id":"1","user":{"id":"3","username":"new"},"roles":[],"joined_at":"2024-01-01T00:00:00+00:00"}}`,
			kind:    KindMemberAdd,
			guild:   1,
			user:    3,
		},
		{
			payload: `{"op":0,"t":"GUILD_MEMBER_REMOVE","d":{"guild_id":"1","user":{"id":"3","username":"gone"}}}`,
			kind:    KindMemberRemove,
			guild:   1,
			user:    3,
		},
		{
			payload: `{"op":0,"t":"GUILD_BAN_ADD","d":{"guild_id":"1","user":{"id":"3","username":"banned"}}}`,
			kind:    KindBanAdd,
			guild:   1,
			user:    3,
		},
		{
			payload: `{"op":0,"t":"MESSAGE_REACTION_ADD","d":{"guild_id":"1","channel_id":"2","user_id":"3","message_id":"9","emoji":{"name":"x"},"member":{"nick":"n","roles":[]}}}`,
			kind:    KindReactionAdd,
			guild:   1,
			channel: 2,
			user:    3,
		},
		{
			payload: `{"op":0,"t":"TYPING_START","d":{"guild_id":"1","channel_id":"2","user_id":"3","timestamp":1700000000}}`,
			kind:    KindTypingStart,
			guild:   1,
			channel: 2,
			user:    3,
		},
		{
			payload: `{"op":0,"t":"MESSAGE_DELETE_BULK","d":{"guild_id":"1","channel_id":"2","ids":["8","9"]}}`,
			kind:    KindMessageDeleteBulk,
			guild:   1,
			channel: 2,
		},
	}

	for _, fix := range fixtures {
		evt, err := Decode([]byte(fix.payload))
		require.NoError(t, err, fix.payload)
		assert.Equal(fix.kind, evt.Kind())
		assert.Equal(fix.guild, evt.GuildID().OrEmpty(), fix.payload)
		assert.Equal(fix.channel, evt.ChannelID().OrEmpty(), fix.payload)
		assert.Equal(fix.user, evt.UserID().OrEmpty(), fix.payload)
	}
}

func TestDecodeOldValue(t *testing.T) {
	assert := assert.New(t)

	evt, err := Decode([]byte(`{"op":0,"t":"MESSAGE_UPDATE","d":{"id":"5","channel_id":"6","guild_id":"1","content":"edited","author":{"id":"7"}},"old":{"id":"5","channel_id":"6","content":"original"}}`))
	require.NoError(t, err)
	mu := evt.(*MessageUpdate)
	require.NotNil(t, mu.Old)
	assert.Equal("original", mu.Old.Content)
	assert.Equal("edited", mu.Message.Content)

	evt, err = Decode([]byte(`{"op":0,"t":"MESSAGE_DELETE","d":{"id":"5","channel_id":"6","guild_id":"1"}}`))
	require.NoError(t, err)
	md := evt.(*MessageDelete)
	assert.Nil(md.Old)
	assert.False(evt.UserID().IsPresent())
}

func TestDecodePartialUpdate(t *testing.T) {
	assert := assert.New(t)

	evt, err := Decode([]byte(`{"op":0,"t":"MESSAGE_UPDATE","d":{"id":"5","channel_id":"10","guild_id":"100","embeds":[]}}`))
	require.NoError(t, err)
	mu := evt.(*MessageUpdate)
	assert.True(mu.HasField("embeds"))
	assert.False(mu.HasField("content"))
	assert.False(mu.HasField("mentions"))

	evt, err = Decode([]byte(`{"op":0,"t":"MESSAGE_UPDATE","d":{"id":"5","channel_id":"10","content":""}}`))
	require.NoError(t, err)
	assert.True(evt.(*MessageUpdate).HasField("content"))

	assert.True((&MessageUpdate{}).HasField("content"))
}

func TestCounterEvent(t *testing.T) {
	assert := assert.New(t)

	origin, err := Decode(messageCreateFixture)
	require.NoError(t, err)
	c := &Counter{Guild: 111, Name: "spam", Scope: "user", ScopeID: 333, Value: 3, Origin: origin}
	assert.Equal(KindCounter, c.Kind())
	assert.Equal(Snowflake(222), c.ChannelID().MustGet())
	assert.Equal(Snowflake(333), c.UserID().MustGet())
	assert.Contains(c.Key(), origin.Key())

	assert.False((&Counter{}).GuildID().IsPresent())
	assert.Equal("", (&Counter{}).Key())
}

func TestSnowflakeJSON(t *testing.T) {
	assert := assert.New(t)

	var s Snowflake
	assert.NoError(json.Unmarshal([]byte(`"175928847299117063"`), &s))
	assert.Equal(Snowflake(175928847299117063), s)
	assert.NoError(json.Unmarshal([]byte(`42`), &s))
	assert.Equal(Snowflake(42), s)
	assert.Error(json.Unmarshal([]byte(`"abc"`), &s))

	out, err := json.Marshal(Snowflake(math.MaxUint64))
	assert.NoError(err)
	assert.Equal(`"18446744073709551615"`, string(out))

	// example from the Discord API reference
	assert.Equal(time.Date(2016, 4, 30, 11, 18, 25, 796000000, time.UTC), Snowflake(175928847299117063).Time())
}
