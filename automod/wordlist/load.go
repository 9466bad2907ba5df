package wordlist

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/guildwarden/warden/automod/event"
)

type fileLists struct {
	Global map[string][]string            `json:"global"`
	Guilds map[string]map[string][]string `json:"guilds"`
}

// LoadFromFileJSON reads word lists from a file of the form:
//
//	{"global": {"name": ["pattern", ...]}, "guilds": {"<guild id>": {"name": ["pattern", ...]}}}
//
// Lists in the file are added to (or replace same-named lists in) the store.
func (s *Store) LoadFromFileJSON(p string) error {

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var doc fileLists
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing word list file: %w", err)
	}

	// parse every guild id before changing anything
	guilds := make(map[event.Snowflake]map[string][]string, len(doc.Guilds))
	for raw, lists := range doc.Guilds {
		id, err := event.ParseSnowflake(raw)
		if err != nil {
			return fmt.Errorf("word list file: %w", err)
		}
		guilds[id] = lists
	}

	for name, patterns := range doc.Global {
		s.SetGlobal(NewWordList(name, patterns))
	}
	for id, lists := range guilds {
		for name, patterns := range lists {
			s.SetGuild(id, NewWordList(name, patterns))
		}
	}
	return nil
}
