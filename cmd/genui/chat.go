package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hupe1980/genui"
	"github.com/hupe1980/genui/config"
	"github.com/hupe1980/genui/ui"
	"github.com/spf13/cobra"
)

var (
	sessionFlag string
	jsonFlag    bool
)

// chatCmd: genui chat <prompt...>
var chatCmd = &cobra.Command{
	Use:   "chat <prompt...>",
	Short: "Run one turn and print the UI updates",
	Long: `Chat runs a single turn against the configured model and prints every
sink update as it arrives. With --json each update is printed as one JSON line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg.Log, os.Stderr)
		if err != nil {
			return err
		}

		g, err := build(cfg, logger)
		if err != nil {
			return err
		}

		return runChat(cmd, g, sessionFlag, strings.Join(args, " "), cmd.OutOrStdout(), jsonFlag)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&sessionFlag, "session", "s", "cli", "Session id")
	chatCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print updates as JSON lines")
}

func runChat(cmd *cobra.Command, g *genui.GenUI, sessionID, input string, out io.Writer, asJSON bool) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	inv, err := g.Invoke(ctx, sessionID, input)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	for u := range inv.Sink.Updates(ctx) {
		if asJSON {
			if err := enc.Encode(u); err != nil {
				return err
			}
			continue
		}
		printUpdate(out, u)
	}

	value, err := inv.Result.Await(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return enc.Encode(map[string]any{"result": value})
	}
	if _, ok := value.(string); !ok && value != nil {
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nresult: %s\n", data)
	}
	return nil
}

func printUpdate(out io.Writer, u ui.Update) {
	switch u.Op {
	case ui.OpDelta:
		fmt.Fprint(out, u.Delta)
	case ui.OpClose:
		fmt.Fprintln(out)
	case ui.OpAppend, ui.OpReplace:
		if u.Fragment != nil {
			fmt.Fprintf(out, "[%s %s] %s\n", u.Op, u.NodeID, u.Fragment)
		}
	case ui.OpAbort:
		fmt.Fprintf(out, "[abort %s]\n", u.NodeID)
	}
}
