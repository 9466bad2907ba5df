package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/guildwarden/warden/automod/rule"

	"github.com/urfave/cli/v2"
)

var cmdSchema = &cli.Command{
	Name:  "schema",
	Usage: "print the JSON schema of rule set documents",
	Action: func(cctx *cli.Context) error {
		raw, err := rule.SchemaJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

var cmdValidate = &cli.Command{
	Name:      "validate",
	Usage:     "check rule set documents against the schema and the rule set parser",
	ArgsUsage: `<file>...`,
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() < 1 {
			return fmt.Errorf("need at least one file to validate")
		}
		failed := 0
		for _, p := range cctx.Args().Slice() {
			raw, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			sets, err := rule.ValidateDocument(raw)
			if err != nil {
				failed++
				fmt.Printf("%s: invalid\n", p)
				var serr *rule.SchemaError
				if errors.As(err, &serr) {
					for _, v := range serr.Violations {
						fmt.Printf("  %s\n", v)
					}
				} else {
					fmt.Printf("  %s\n", err)
				}
				continue
			}
			for _, rs := range sets {
				scope := "global"
				if !rs.IsGlobal() {
					scope = "guild " + rs.GuildID.String()
				}
				fmt.Printf("%s: %q (%s) %d rules\n", p, rs.Name, scope, len(rs.Rules))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files invalid", failed, cctx.Args().Len())
		}
		return nil
	},
}
