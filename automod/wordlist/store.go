package wordlist

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/guildwarden/warden/automod/event"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrNoWordLists is returned when a lookup is made and neither the guild nor the global tier has any lists.
var ErrNoWordLists = errors.New("no word lists configured")

// ErrUnknownWordList matches any *UnknownWordListError with errors.Is.
var ErrUnknownWordList = errors.New("unknown word list")

type UnknownWordListError struct {
	Name string
}

func (e *UnknownWordListError) Error() string {
	return fmt.Sprintf("unknown word list: %s", e.Name)
}

func (e *UnknownWordListError) Is(target error) bool {
	return target == ErrUnknownWordList
}

// listSet is never mutated after being published; writers build a new map.
type listSet map[string]*WordList

func (ls listSet) with(wl *WordList) listSet {
	out := make(listSet, len(ls)+1)
	maps.Copy(out, ls)
	out[wl.Name()] = wl
	return out
}

func (ls listSet) without(name string) listSet {
	out := maps.Clone(ls)
	delete(out, name)
	return out
}

// Store holds the compiled word lists: a process-wide global tier, and a tier per guild.
//
// Reads never take a lock. Writes swap whole maps, so views returned by GuildLists keep seeing the lists which existed when they were taken.
type Store struct {
	globalMu sync.Mutex
	global   atomic.Pointer[listSet]
	guilds   *xsync.MapOf[event.Snowflake, listSet]
}

func NewStore() *Store {
	s := &Store{
		guilds: xsync.NewMapOf[event.Snowflake, listSet](),
	}
	empty := listSet{}
	s.global.Store(&empty)
	return s
}

func (s *Store) globalSet() listSet {
	return *s.global.Load()
}

func (s *Store) SetGlobal(wl *WordList) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	next := s.globalSet().with(wl)
	s.global.Store(&next)
}

func (s *Store) RemoveGlobal(name string) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	next := s.globalSet().without(name)
	s.global.Store(&next)
}

func (s *Store) SetGuild(guildID event.Snowflake, wl *WordList) {
	s.guilds.Compute(guildID, func(old listSet, loaded bool) (listSet, bool) {
		return old.with(wl), false
	})
}

func (s *Store) RemoveGuild(guildID event.Snowflake, name string) {
	s.guilds.Compute(guildID, func(old listSet, loaded bool) (listSet, bool) {
		next := old.without(name)
		return next, len(next) == 0
	})
}

// ReplaceGuild swaps every list of a guild at once. An empty slice removes the guild's tier.
func (s *Store) ReplaceGuild(guildID event.Snowflake, lists []*WordList) {
	if len(lists) == 0 {
		s.guilds.Delete(guildID)
		return
	}
	next := make(listSet, len(lists))
	for _, wl := range lists {
		next[wl.Name()] = wl
	}
	s.guilds.Store(guildID, next)
}

// GuildLists returns a read-only view of a guild's lists together with the global lists, as of this call.
func (s *Store) GuildLists(guildID event.Snowflake) GuildWordLists {
	own, _ := s.guilds.Load(guildID)
	return GuildWordLists{guild: own, global: s.globalSet()}
}

// GlobalLists is the view for events which don't belong to a guild.
func (s *Store) GlobalLists() GuildWordLists {
	return GuildWordLists{global: s.globalSet()}
}

// Guilds returns the ids of guilds which have lists of their own.
func (s *Store) Guilds() []event.Snowflake {
	out := make([]event.Snowflake, 0, s.guilds.Size())
	s.guilds.Range(func(id event.Snowflake, _ listSet) bool {
		out = append(out, id)
		return true
	})
	slices.Sort(out)
	return out
}

// GuildWordLists is a snapshot of the lists visible to one guild. The zero value has no lists.
type GuildWordLists struct {
	guild  listSet
	global listSet
}

// Get resolves a list by name, preferring the guild's own list over a global list with the same name.
func (g GuildWordLists) Get(name string) (*WordList, error) {
	if len(g.guild) == 0 && len(g.global) == 0 {
		return nil, ErrNoWordLists
	}
	if wl, ok := g.guild[name]; ok {
		return wl, nil
	}
	if wl, ok := g.global[name]; ok {
		return wl, nil
	}
	return nil, &UnknownWordListError{Name: name}
}

// Names returns the sorted names of every visible list.
func (g GuildWordLists) Names() []string {
	out := make([]string, 0, len(g.guild)+len(g.global))
	for name := range g.guild {
		out = append(out, name)
	}
	for name := range g.global {
		if _, ok := g.guild[name]; !ok {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// GuildNames returns the names of the guild's own lists only.
func (g GuildWordLists) GuildNames() []string {
	return slices.Sorted(maps.Keys(g.guild))
}
