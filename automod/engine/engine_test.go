package engine

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/guildwarden/warden/automod/action"
	"github.com/guildwarden/warden/automod/event"

	"github.com/gammazero/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type obj = map[string]any

func messagePayload(guild, msgID, author, content string) obj {
	return obj{
		"id":         msgID,
		"channel_id": "10",
		"guild_id":   guild,
		"content":    content,
		"author":     obj{"id": author, "username": "someone"},
		"member":     obj{"roles": []string{}},
	}
}

// snowflakeAt builds an id whose embedded creation time is t
func snowflakeAt(t time.Time) string {
	return strconv.FormatUint(uint64(t.UnixMilli()-1420070400000)<<22, 10)
}

func TestEngineBanOnBannedPhrase(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture()
	require.NoError(t, f.Rules.LoadFromFileJSON("../rule/testdata/rule_sets.json"))

	assert.NoError(f.ProcessPayload(ctx, "MESSAGE_CREATE", messagePayload("100", "1001", "42", "get FREE Nítro here")))
	bans := action.Actions[action.Ban](f.Sink)
	require.Len(t, bans, 1)
	assert.Equal(action.Ban{GuildID: 100, UserID: 42, DeleteDays: 1, Reason: "banned phrase"}, bans[0])

	// same message in another guild
	assert.NoError(f.ProcessPayload(ctx, "MESSAGE_CREATE", messagePayload("200", "1002", "42", "get FREE Nítro here")))
	assert.Len(action.Actions[action.Ban](f.Sink), 1)

	// no match
	assert.NoError(f.ProcessPayload(ctx, "MESSAGE_CREATE", messagePayload("100", "1003", "42", "hello there")))
	assert.Len(f.Sink.Dispatches(), 1)
}

func TestEngineInviteSubCondition(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture()
	require.NoError(t, f.Rules.LoadFromFileJSON("../rule/testdata/rule_sets.json"))

	for i := 0; i < 3; i++ {
		id := strconv.Itoa(2000 + i)
		assert.NoError(f.ProcessPayload(ctx, "MESSAGE_CREATE", messagePayload("100", id, "43", "join discord.gg/abc"+id)))
	}

	assert.Len(action.Actions[action.DeleteMessage](f.Sink), 3)
	replies := action.Actions[action.Reply](f.Sink)
	require.Len(t, replies, 2)
	assert.Equal(event.Snowflake(2000), replies[0].MessageID)
	mutes := action.Actions[action.Mute](f.Sink)
	require.Len(t, mutes, 1)
	assert.Equal(time.Hour, mutes[0].Duration)
	assert.Equal(event.Snowflake(43), mutes[0].UserID)

	v, err := f.Counters.GetCount(ctx, "invites", "100/user/43", "total")
	assert.NoError(err)
	assert.Equal(3, v)

	// members with the exempt role are skipped
	exempt := messagePayload("100", "2100", "44", "discord.gg/xyz")
	exempt["member"] = obj{"roles": []string{"555"}}
	before := len(f.Sink.Dispatches())
	assert.NoError(f.ProcessPayload(ctx, "MESSAGE_CREATE", exempt))
	assert.Len(f.Sink.Dispatches(), before)
}

func TestEngineGlobalRules(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture()
	require.NoError(t, f.Rules.LoadFromFileJSON("../rule/testdata/rule_sets.json"))
	now := f.Engine.Now()

	fresh := obj{"guild_id": "300", "user": obj{"id": snowflakeAt(now.Add(-time.Hour))}}
	old := obj{"guild_id": "300", "user": obj{"id": snowflakeAt(now.Add(-72 * time.Hour))}}
	assert.NoError(f.ProcessPayload(ctx, "GUILD_MEMBER_ADD", fresh))
	assert.NoError(f.ProcessPayload(ctx, "GUILD_MEMBER_ADD", old))

	sends := action.Actions[action.SendMessage](f.Sink)
	require.Len(t, sends, 1)
	assert.Equal(action.SendMessage{GuildID: 300, ChannelID: 900, Content: "new account joined"}, sends[0])
}

func TestEngineConfigErrorRunsGlobalRules(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture(
		MustParseRuleSet(`{"name": "global", "enabled": true, "rules": [
			{"name": "kick all", "enabled": true, "trigger": "GUILD_MEMBER_ADD", "actions": [{"kick": {"reason": "global"}}]}
		]}`),
		MustParseRuleSet(`{"name": "guild", "guild_id": "100", "enabled": true, "rules": [
			{"name": "kick all", "enabled": true, "trigger": "GUILD_MEMBER_ADD", "actions": [{"kick": {"reason": "guild"}}]}
		]}`),
	)
	f.Configs.Err = errors.New("database unavailable")

	assert.NoError(f.ProcessPayload(ctx, "GUILD_MEMBER_ADD", obj{"guild_id": "100", "user": obj{"id": "7"}}))
	kicks := action.Actions[action.Kick](f.Sink)
	require.Len(t, kicks, 1)
	assert.Equal("global", kicks[0].Reason)

	// recovers once the store does, since errors aren't cached
	f.Configs.Err = nil
	assert.NoError(f.ProcessPayload(ctx, "GUILD_MEMBER_ADD", obj{"guild_id": "100", "user": obj{"id": "8"}}))
	kicks = action.Actions[action.Kick](f.Sink)
	require.Len(t, kicks, 3)
	assert.Equal("global", kicks[1].Reason)
	assert.Equal("guild", kicks[2].Reason)
}

func TestEngineRuleFlags(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture(MustParseRuleSet(`{"name": "flags", "guild_id": "100", "enabled": true, "rules": [
		{"name": "always", "enabled": true, "trigger": "GUILD_MEMBER_ADD", "actions": [{"kick": {"reason": "always"}}]},
		{"name": "disabled", "enabled": false, "trigger": "GUILD_MEMBER_ADD", "actions": [{"kick": {"reason": "disabled"}}]},
		{"name": "other trigger", "enabled": true, "trigger": "GUILD_BAN_ADD", "actions": [{"kick": {"reason": "other trigger"}}]},
		{"name": "unknown", "enabled": true, "trigger": "GUILD_MEMBER_ADD",
		 "conditions": {"message": {"content": {"equals": "x"}}}, "actions": [{"kick": {"reason": "unknown"}}]},
		{"name": "fire on unknown", "enabled": true, "trigger": "GUILD_MEMBER_ADD", "fire_on_unknown": true,
		 "conditions": {"message": {"content": {"equals": "x"}}}, "actions": [{"kick": {"reason": "fire on unknown"}}]},
		{"name": "missing list", "enabled": true, "trigger": "GUILD_MEMBER_ADD", "fire_on_unknown": true,
		 "conditions": {"user": {"username": {"matches_word_list": "nope"}}}, "actions": [{"kick": {"reason": "missing list"}}]},
		{"name": "last", "enabled": true, "trigger": "GUILD_MEMBER_ADD",
		 "conditions": {"or": [{"user": {"is_bot": {"equals": true}}}, {"guild": {"id": {"equals": 100}}}]},
		 "actions": [{"kick": {"reason": "last"}}]}
	]}`))

	assert.NoError(f.ProcessPayload(ctx, "GUILD_MEMBER_ADD", obj{"guild_id": "100", "user": obj{"id": "7", "username": "bob"}}))

	var reasons []string
	for _, k := range action.Actions[action.Kick](f.Sink) {
		reasons = append(reasons, k.Reason)
	}
	assert.Equal([]string{"always", "fire on unknown", "last"}, reasons)
}

func TestEngineCounters(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture(MustParseRuleSet(`{"name": "counters", "guild_id": "100", "enabled": true, "rules": [
		{"name": "count messages", "enabled": true, "trigger": "MESSAGE_CREATE",
		 "actions": [{"add_counter": {"name": "msgs", "scope": "user"}}]},
		{"name": "kick chatty", "enabled": true, "trigger": "COUNTER",
		 "conditions": {"counter": {"name": "msgs", "scope": "user", "value": {"greater_than_or_equal": 2}}},
		 "actions": [{"kick": {}}, {"add_counter": {"name": "kicks", "scope": "guild"}}]},
		{"name": "forgive on delete", "enabled": true, "trigger": "MESSAGE_DELETE",
		 "actions": [{"subtract_counter": {"name": "msgs", "scope": "user"}}]}
	]}`))

	for i := 0; i < 2; i++ {
		assert.NoError(f.ProcessPayload(ctx, "MESSAGE_CREATE", messagePayload("100", strconv.Itoa(3000+i), "50", "hi "+strconv.Itoa(i))))
	}

	kicks := action.Actions[action.Kick](f.Sink)
	require.Len(t, kicks, 1)
	assert.Equal("automod: kick chatty", kicks[0].Reason)

	msgs, err := f.Counters.GetCount(ctx, "msgs", "100/user/50", "total")
	assert.NoError(err)
	assert.Equal(2, msgs)
	// counter events don't cause further counter events
	kickCount, err := f.Counters.GetCount(ctx, "kicks", "100/guild/100", "total")
	assert.NoError(err)
	assert.Equal(1, kickCount)

	// deletions carry no author without a snapshot, so the user scope can't be resolved
	assert.NoError(f.ProcessPayload(ctx, "MESSAGE_DELETE", obj{"id": "3000", "channel_id": "10", "guild_id": "100"}))
	msgs, _ = f.Counters.GetCount(ctx, "msgs", "100/user/50", "total")
	assert.Equal(2, msgs)
}

func TestEngineDispatchKeys(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture()
	require.NoError(t, f.Rules.LoadFromFileJSON("../rule/testdata/rule_sets.json"))
	inner := f.Sink
	f.Engine.Sink = &action.DedupeSink{Inner: inner, Counts: f.Counters}

	payload := messagePayload("100", "1001", "42", "free nitro")
	assert.NoError(f.ProcessPayload(ctx, "MESSAGE_CREATE", payload))
	// redelivery of the same payload
	assert.NoError(f.ProcessPayload(ctx, "MESSAGE_CREATE", payload))

	dispatches := inner.Dispatches()
	require.Len(t, dispatches, 1)
	assert.NotEmpty(dispatches[0].Key)
	assert.Equal("ban on banned phrase", dispatches[0].RuleName)
	assert.Equal(event.Snowflake(100), dispatches[0].GuildID)
}

func TestEngineDispatchKeysSurviveReload(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	payload := messagePayload("100", "1001", "42", "discord.gg/abc")
	var keys [][]string
	for i := 0; i < 2; i++ {
		// a fresh process loading the same rule file
		f := EngineTestFixture()
		require.NoError(t, f.Rules.LoadFromFileJSON("../rule/testdata/rule_sets.json"))
		assert.NoError(f.ProcessPayload(ctx, "MESSAGE_CREATE", payload))
		var run []string
		for _, d := range f.Sink.Dispatches() {
			run = append(run, d.Key)
		}
		require.NotEmpty(t, run)
		keys = append(keys, run)
	}
	assert.Equal(keys[0], keys[1])
}

func TestEngineDispatcher(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture()
	require.NoError(t, f.Rules.LoadFromFileJSON("../rule/testdata/rule_sets.json"))
	f.Engine.Dispatcher = workerpool.New(2)

	cctx, cancel := context.WithCancel(ctx)
	for i := 0; i < 5; i++ {
		assert.NoError(f.ProcessPayload(cctx, "MESSAGE_CREATE", messagePayload("100", strconv.Itoa(4000+i), "42", "buy followers now")))
	}
	// dispatch tasks outlive the event's context
	cancel()
	f.Engine.Shutdown()

	assert.Len(action.Actions[action.Ban](f.Sink), 5)
}

func TestEngineSkipsUnrecognized(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture()
	evt, err := event.Decode([]byte(`{"op": 0, "t": "VOICE_STATE_UPDATE", "d": {"guild_id": "100"}}`))
	require.NoError(t, err)
	assert.NoError(f.Engine.ProcessEvent(ctx, evt))
	assert.Empty(f.Sink.Dispatches())
}

// panicSink blows up on every dispatch
type panicSink struct{}

func (panicSink) Execute(ctx context.Context, d *action.Dispatch) error {
	panic("boom")
}

func TestEngineRecoversFromPanics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture()
	require.NoError(t, f.Rules.LoadFromFileJSON("../rule/testdata/rule_sets.json"))
	f.Engine.Sink = panicSink{}

	assert.NoError(f.ProcessPayload(ctx, "MESSAGE_CREATE", messagePayload("100", "5000", "42", "free nitro")))
}

func TestEnginePartialMessageUpdate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture(MustParseRuleSet(`{"name": "edits", "guild_id": "100", "enabled": true, "rules": [
		{"name": "clean", "enabled": true, "trigger": "MESSAGE_UPDATE",
		 "conditions": {"message": {"content": {"does_not_match_word_list": "banned-phrases"}}},
		 "actions": [{"delete_message": {}}]},
		{"name": "quiet", "enabled": true, "trigger": "MESSAGE_UPDATE",
		 "conditions": {"message": {"mention_count": {"less_than": 1}}},
		 "actions": [{"delete_message": {}}]}
	]}`))

	// link unfurl edits carry no content
	assert.NoError(f.ProcessPayload(ctx, "MESSAGE_UPDATE", obj{"id": "5", "channel_id": "10", "guild_id": "100", "embeds": []obj{}}))
	assert.Empty(f.Sink.Dispatches())

	full := messagePayload("100", "6", "42", "hello")
	full["mentions"] = []obj{}
	assert.NoError(f.ProcessPayload(ctx, "MESSAGE_UPDATE", full))
	assert.Len(f.Sink.Dispatches(), 2)
}

func TestEngineMisconfigured(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := EngineTestFixture()
	f.Engine.Sink = nil
	f.Engine.Rules = nil
	err := f.ProcessPayload(ctx, "MESSAGE_CREATE", messagePayload("100", "6000", "42", "free nitro"))
	assert.ErrorIs(err, ErrEngineMisconfigured)
	assert.ErrorContains(err, "Rules, Sink")
}
