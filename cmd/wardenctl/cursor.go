package main

import (
	"fmt"
	"strconv"

	"github.com/guildwarden/warden/automod/util"

	"github.com/urfave/cli/v2"
)

var cmdCursor = &cli.Command{
	Name:  "cursor",
	Usage: "inspect admin API pagination cursors",
	Subcommands: []*cli.Command{
		{
			Name:      "decode",
			ArgsUsage: `<cursor>`,
			Action: func(cctx *cli.Context) error {
				offset, guild, err := util.DecodeCursor(cctx.Args().First())
				if err != nil {
					return err
				}
				fmt.Printf("offset=%d guild=%d\n", offset, guild)
				return nil
			},
		},
		{
			Name:      "encode",
			ArgsUsage: `<offset> <guild>`,
			Action: func(cctx *cli.Context) error {
				if cctx.Args().Len() != 2 {
					return fmt.Errorf("need offset and guild")
				}
				offset, err := strconv.ParseInt(cctx.Args().Get(0), 10, 64)
				if err != nil {
					return err
				}
				guild, err := strconv.ParseInt(cctx.Args().Get(1), 10, 64)
				if err != nil {
					return err
				}
				fmt.Println(util.EncodeCursor(offset, guild))
				return nil
			},
		},
	},
}
