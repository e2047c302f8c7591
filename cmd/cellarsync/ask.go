// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cellarsync/internal/agent"
)

func newAskCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [TEXT...]",
		Short: "Run the action embedded in an assistant reply",
		Long: `Scan assistant reply text for an action token and execute it:

  ACTION:SWITCH_CLIENT <name>
  ACTION:CHECK_ALL_CLIENTS
  ACTION:SYNC_ALL
  ACTION:SYNC [SKU1, SKU2]

Without arguments the text is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(b)
			}

			reply, err := opts.App.Dispatcher.Handle(commandContext(cmd), text)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.Format == "json" {
				return printJSON(w, reply)
			}
			if reply.Action.Kind == agent.KindNone {
				fmt.Fprintln(w, "No action found")
				return nil
			}
			fmt.Fprintln(w, reply.Message)
			return nil
		},
	}
}
