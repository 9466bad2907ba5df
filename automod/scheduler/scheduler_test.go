package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/guildwarden/warden/automod/event"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func message(guild, channel, author, content string) event.Event {
	m := &discordgo.Message{GuildID: guild, ChannelID: channel, Content: content}
	if author != "" {
		m.Author = &discordgo.User{ID: author}
	}
	return &event.MessageCreate{Message: m}
}

func TestKeyFor(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("guild/1", KeyFor(message("1", "2", "3", "")))
	assert.Equal("channel/2", KeyFor(message("", "2", "3", "")))
	assert.Equal("user/3", KeyFor(message("", "", "3", "")))
	assert.Equal(GlobalKey, KeyFor(message("", "", "", "")))
}

func TestSchedulerOrdersPerKey(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[string][]string{}
	s := NewScheduler(4, "test-order", nil, func(ctx context.Context, evt event.Event) error {
		m := evt.(*event.MessageCreate)
		// slow down early events, so a reordering would show up
		if m.Message.Content == "0" {
			time.Sleep(5 * time.Millisecond)
		}
		mu.Lock()
		seen[m.Message.GuildID] = append(seen[m.Message.GuildID], m.Message.Content)
		mu.Unlock()
		return nil
	})

	want := []string{"0", "1", "2", "3", "4", "5", "6", "7"}
	for _, c := range want {
		for _, g := range []string{"10", "20", "30"} {
			assert.NoError(s.AddWork(ctx, message(g, "1", "1", c)))
		}
	}
	s.Shutdown()

	assert.Len(seen, 3)
	for g, got := range seen {
		assert.Equal(want, got, g)
	}
	assert.Equal(0, s.Active())
}

func TestSchedulerParallelAcrossKeys(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan string, 2)
	s := NewScheduler(2, "test-parallel", nil, func(ctx context.Context, evt event.Event) error {
		id, _ := evt.GuildID().Get()
		started <- id.String()
		<-release
		return nil
	})

	assert.NoError(s.AddWork(ctx, message("1", "", "", "")))
	assert.NoError(s.AddWork(ctx, message("2", "", "", "")))

	// both keys are running at once
	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case g := <-started:
			got[g] = true
		case <-time.After(time.Second):
			t.Fatal("second key did not start while the first was running")
		}
	}
	assert.Equal(map[string]bool{"1": true, "2": true}, got)

	// same key queues without blocking, even with every worker busy
	assert.NoError(s.AddWork(ctx, message("1", "", "", "")))

	// a new key blocks until ctx is done
	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(s.AddWork(cctx, message("3", "", "", "")), context.DeadlineExceeded)

	close(release)
	s.Shutdown()
}
