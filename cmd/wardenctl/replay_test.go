package main

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/guildwarden/warden/automod/action"
	"github.com/guildwarden/warden/automod/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayEvents(t *testing.T) {
	assert := assert.New(t)

	f := engine.EngineTestFixture()
	require.NoError(t, f.Rules.LoadFromFileJSON("../../automod/rule/testdata/rule_sets.json"))

	lines := strings.Join([]string{
		`{"op": 0, "t": "MESSAGE_CREATE", "d": {"id": "1001", "channel_id": "10", "guild_id": "100", "content": "free nitro", "author": {"id": "42"}, "member": {"roles": []}}}`,
		``,
		`{"op": 0, "t": "MESSAGE_CREATE", "d": {"id": "1002", "channel_id": "10", "guild_id": "100", "content": "hello", "author": {"id": "43"}, "member": {"roles": []}}}`,
		`{"op": 0, "t": "PRESENCE_UPDATE", "d": {}}`,
		`{"op": 11}`,
		`{"op": 0, "t": "MESSAGE_CREATE", "d": "not a message"}`,
		`not json`,
	}, "\n")

	stats, err := replayEvents(context.Background(), f.Engine, strings.NewReader(lines), slog.Default())
	require.NoError(t, err)
	assert.Equal(replayStats{Processed: 2, Skipped: 2, Failed: 2}, stats)

	bans := action.Actions[action.Ban](f.Sink)
	require.Len(t, bans, 1)
	assert.EqualValues(42, bans[0].UserID)
}
