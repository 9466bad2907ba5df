package wordlist

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/guildwarden/warden/automod/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordListMatch(t *testing.T) {
	assert := assert.New(t)

	wl := NewWordList("basic", []string{"foo", "bar"})
	assert.True(wl.Match("xfooy"))
	assert.True(wl.Match("zbarw"))
	assert.False(wl.Match("baz"))
	assert.False(wl.Match(""))

	first, ok := wl.FindFirst("a bar then foo")
	assert.True(ok)
	assert.Equal("bar", first)
	_, ok = wl.FindFirst("nothing")
	assert.False(ok)
}

func TestWordListNormalization(t *testing.T) {
	assert := assert.New(t)

	wl := NewWordList("phrases", []string{"Crème Brûlée", "", "creme brulee"})
	// duplicates after normalization are dropped
	assert.Equal([]string{"creme brulee"}, wl.Patterns())
	assert.True(wl.Match("I love CREME BRULEE"))
	assert.True(wl.Match("crème brûlée!"))
	assert.True(wl.MatchNormalized(Normalize("CRÈME BRÛLÉE")))
	assert.False(wl.MatchNormalized("CREME BRULEE"), "input must already be normalized")

	assert.Equal("cafe", Normalize("Café"))
	assert.Equal("naive", Normalize("NAÏVE"))
}

func TestEmptyWordList(t *testing.T) {
	assert := assert.New(t)

	wl := NewWordList("empty", nil)
	assert.Equal(0, wl.Len())
	assert.False(wl.Match("anything"))
	_, ok := wl.FindFirst("anything")
	assert.False(ok)
}

func TestStoreResolution(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	_, err := s.GuildLists(1).Get("anything")
	assert.ErrorIs(err, ErrNoWordLists)

	s.SetGlobal(NewWordList("slurs", []string{"globalword"}))
	s.SetGuild(1, NewWordList("slurs", []string{"guildword"}))
	s.SetGuild(1, NewWordList("phrases", []string{"hello"}))

	wl, err := s.GuildLists(1).Get("slurs")
	require.NoError(t, err)
	assert.True(wl.Match("guildword"), "guild list shadows the global one")

	wl, err = s.GuildLists(2).Get("slurs")
	require.NoError(t, err)
	assert.True(wl.Match("globalword"))

	_, err = s.GuildLists(2).Get("phrases")
	assert.ErrorIs(err, ErrUnknownWordList)
	var uerr *UnknownWordListError
	assert.True(errors.As(err, &uerr))
	assert.Equal("phrases", uerr.Name)

	assert.Equal([]string{"phrases", "slurs"}, s.GuildLists(1).Names())
	assert.Equal([]string{"phrases", "slurs"}, s.GuildLists(1).GuildNames())
	assert.Equal([]string{"slurs"}, s.GlobalLists().Names())
	assert.Equal([]event.Snowflake{1}, s.Guilds())

	s.RemoveGuild(1, "phrases")
	s.RemoveGuild(1, "slurs")
	assert.Empty(s.Guilds())
	s.RemoveGlobal("slurs")
	_, err = s.GuildLists(1).Get("slurs")
	assert.ErrorIs(err, ErrNoWordLists)
}

func TestGuildIsolation(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	s.SetGuild(100, NewWordList("banned-phrases", []string{"forbidden"}))
	s.SetGuild(200, NewWordList("banned-phrases", []string{"other"}))

	wl, err := s.GuildLists(200).Get("banned-phrases")
	require.NoError(t, err)
	assert.False(wl.Match("forbidden"))

	_, err = s.GuildLists(300).Get("banned-phrases")
	assert.ErrorIs(err, ErrNoWordLists)
}

func TestSnapshotView(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	s.SetGlobal(NewWordList("a", []string{"x"}))
	view := s.GuildLists(1)

	s.SetGlobal(NewWordList("b", []string{"y"}))
	s.SetGuild(1, NewWordList("c", []string{"z"}))

	_, err := view.Get("b")
	assert.ErrorIs(err, ErrUnknownWordList)
	_, err = view.Get("c")
	assert.ErrorIs(err, ErrUnknownWordList)

	later := s.GuildLists(1)
	_, err = later.Get("b")
	assert.NoError(err)
	_, err = later.Get("c")
	assert.NoError(err)

	s.ReplaceGuild(1, nil)
	_, err = later.Get("c")
	assert.NoError(err, "earlier views are unaffected by removal")
}

func TestConcurrentWrites(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("list-%d", i)
			s.SetGuild(7, NewWordList(name, []string{name}))
			s.SetGlobal(NewWordList(name, []string{name}))
			_ = s.GuildLists(7).Names()
		}(i)
	}
	wg.Wait()
	assert.Len(s.GuildLists(7).GuildNames(), 50)
	assert.Len(s.GlobalLists().Names(), 50)
}

func TestLoadFromFile(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	require.NoError(t, s.LoadFromFileJSON("testdata/word_lists.json"))

	wl, err := s.GuildLists(100).Get("banned-phrases")
	require.NoError(t, err)
	assert.True(wl.Match("want to BUY FOLLOWERS cheap?"))
	assert.True(wl.Match("creme brulee"))

	wl, err = s.GuildLists(100).Get("scam-domains")
	require.NoError(t, err)
	assert.True(wl.Match("https://free-nitro.example/claim"))

	wl, err = s.GuildLists(200).Get("slurs")
	require.NoError(t, err)
	assert.False(wl.Match("badword"))

	assert.Error(s.LoadFromFileJSON("testdata/missing.json"))
}
