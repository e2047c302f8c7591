// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/models"
)

func newAccountsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"clients"},
		Short:   "Manage winery accounts",
	}
	cmd.AddCommand(newAccountsListCommand(opts))
	cmd.AddCommand(newAccountsAddCommand(opts))
	cmd.AddCommand(newAccountsRemoveCommand(opts))
	cmd.AddCommand(newAccountsSelectCommand(opts))
	return cmd
}

func newAccountsListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := opts.App.Registry.List()
			if err != nil {
				return err
			}
			selectedID := ""
			if sel, err := opts.App.Registry.Selected(); err == nil {
				selectedID = sel.ID
			}

			w := cmd.OutOrStdout()
			if opts.Format == "json" {
				views := make([]models.AccountView, 0, len(list))
				for _, a := range list {
					views = append(views, a.Public())
				}
				return printJSON(w, map[string]any{"accounts": views, "selected_id": selectedID})
			}
			if len(list) == 0 {
				fmt.Fprintln(w, "No accounts. Add one with: cellarsync accounts add --name NAME --credential KEY:SECRET")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tNAME\tID\tFULFILLMENT\tCREDENTIAL")
			for _, a := range list {
				mark := ""
				if a.ID == selectedID {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, a.Name, a.ID, a.FulfillmentCenter, logging.RedactCredential(a.Credential))
			}
			return tw.Flush()
		},
	}
}

func newAccountsAddCommand(opts *RootOptions) *cobra.Command {
	var name, credential, fulfillment string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account",
		Long: `Add an account. The credential is "key:secret" as issued by the remote
service. Without --credential it is read from stdin so it stays out of the
shell history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if credential == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read credential from stdin: %w", err)
				}
				credential = strings.TrimSpace(line)
			}
			acct, err := opts.App.Registry.Add(name, credential, fulfillment)
			if err != nil {
				return err
			}
			opts.App.Activity.Info(acct.ID, "Added account "+acct.Name)

			w := cmd.OutOrStdout()
			if opts.Format == "json" {
				return printJSON(w, acct.Public())
			}
			fmt.Fprintf(w, "Added %s (%s, %s)\n", acct.Name, acct.ID, acct.FulfillmentCenter)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "winery name")
	cmd.Flags().StringVar(&credential, "credential", "", "API credential key:secret (default: read from stdin)")
	cmd.Flags().StringVar(&fulfillment, "fulfillment", models.FulfillmentHydraNY,
		fmt.Sprintf("fulfillment center (%s)", strings.Join(models.FulfillmentOptions, " | ")))
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAccountsRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME|ID",
		Short: "Remove an account and its cached data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := opts.App.Registry.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := opts.App.Registry.Remove(acct.ID); err != nil {
				return err
			}
			if err := opts.App.Manager.Forget(acct.ID); err != nil {
				logging.Warn().Err(err).Str("account", acct.Name).Msg("Failed to discard cached account data")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", acct.Name)
			return nil
		},
	}
}

func newAccountsSelectCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select NAME|ID",
		Short: "Make an account the default for other commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := opts.App.Registry.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := opts.App.Registry.Select(acct.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", acct.Name)
			return nil
		},
	}
}
