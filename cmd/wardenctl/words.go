package main

import (
	"fmt"
	"strings"

	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/wordlist"

	"github.com/urfave/cli/v2"
)

var cmdMatch = &cli.Command{
	Name:      "match",
	Usage:     "test text against a word list",
	ArgsUsage: `<text>`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "word-lists-file",
			Usage:    "JSON file of global and guild word lists",
			Required: true,
			EnvVars:  []string{"WARDEN_WORD_LISTS_FILE"},
		},
		&cli.StringFlag{
			Name:     "list",
			Aliases:  []string{"l"},
			Required: true,
		},
		&cli.StringFlag{
			Name:  "guild",
			Usage: "resolve the list as seen by this guild",
		},
	},
	Action: func(cctx *cli.Context) error {
		text := strings.Join(cctx.Args().Slice(), " ")
		if text == "" {
			return fmt.Errorf("need text to match")
		}

		store := wordlist.NewStore()
		if err := store.LoadFromFileJSON(cctx.String("word-lists-file")); err != nil {
			return err
		}
		lists := store.GlobalLists()
		if raw := cctx.String("guild"); raw != "" {
			gid, err := event.ParseSnowflake(raw)
			if err != nil {
				return err
			}
			lists = store.GuildLists(gid)
		}
		wl, err := lists.Get(cctx.String("list"))
		if err != nil {
			return err
		}

		fmt.Printf("normalized: %s\n", wordlist.Normalize(text))
		if pattern, ok := wl.FindFirst(text); ok {
			fmt.Printf("match: %q\n", pattern)
		} else {
			fmt.Println("no match")
		}
		return nil
	},
}
