package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/guildwarden/warden/automod/action"
	"github.com/guildwarden/warden/automod/countstore"
	"github.com/guildwarden/warden/automod/engine"
	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/guildconfig"
	"github.com/guildwarden/warden/automod/rulestore"
	"github.com/guildwarden/warden/automod/wordlist"

	"github.com/urfave/cli/v2"
)

var cmdReplay = &cli.Command{
	Name:      "replay",
	Usage:     "run captured gateway payloads through the rule engine, printing the actions which would be dispatched",
	ArgsUsage: `<file>`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "rules-file",
			Required: true,
			EnvVars:  []string{"WARDEN_RULES_FILE"},
		},
		&cli.StringFlag{
			Name:    "word-lists-file",
			EnvVars: []string{"WARDEN_WORD_LISTS_FILE"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

		rules := rulestore.NewMemStore()
		if err := rules.LoadFromFileJSON(cctx.String("rules-file")); err != nil {
			return err
		}
		lists := wordlist.NewStore()
		if p := cctx.String("word-lists-file"); p != "" {
			if err := lists.LoadFromFileJSON(p); err != nil {
				return err
			}
		}

		in := os.Stdin
		if cctx.Args().Len() > 0 && cctx.Args().First() != "-" {
			f, err := os.Open(cctx.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		enc := json.NewEncoder(os.Stdout)
		eng := &engine.Engine{
			Logger:    logger,
			Configs:   guildconfig.NewCache(guildconfig.NewMemStore(), logger),
			WordLists: lists,
			Rules:     rules,
			Counters:  countstore.NewMemCountStore(),
			Sink: action.SinkFunc(func(ctx context.Context, d *action.Dispatch) error {
				return enc.Encode(dispatchLine{Kind: d.Action.Kind(), Dispatch: d})
			}),
		}

		stats, err := replayEvents(ctx, eng, in, logger)
		fmt.Fprintf(os.Stderr, "events: %d processed, %d skipped, %d failed\n", stats.Processed, stats.Skipped, stats.Failed)
		return err
	},
}

type dispatchLine struct {
	Kind string `json:"kind"`
	*action.Dispatch
}

type replayStats struct {
	Processed int
	Skipped   int
	Failed    int
}

// replayEvents processes one broker payload per line of r. Payloads which fail to decode or process are counted and skipped.
func replayEvents(ctx context.Context, eng *engine.Engine, r io.Reader, logger *slog.Logger) (replayStats, error) {
	var stats replayStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		evt, err := event.Decode(raw)
		if errors.Is(err, event.ErrUnsupportedEvent) {
			stats.Skipped++
			continue
		}
		if err != nil {
			logger.Warn("failed to decode payload", "line", line, "err", err)
			stats.Failed++
			continue
		}
		if _, ok := evt.(*event.Unrecognized); ok {
			stats.Skipped++
			continue
		}
		if err := eng.ProcessEvent(ctx, evt); err != nil {
			logger.Warn("failed to process event", "line", line, "err", err)
			stats.Failed++
			continue
		}
		stats.Processed++
	}
	return stats, scanner.Err()
}
