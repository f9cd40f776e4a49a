package main

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/llamad-dev/llamad/internal/diag"
)

func aboutCmd() *cli.Command {
	return &cli.Command{
		Name:  "about",
		Usage: "Print environment diagnostics",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			report := diag.Collect(ctx)
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
