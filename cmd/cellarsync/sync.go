// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cellarsync/internal/csvsource"
	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/models"
	"github.com/tomtom215/cellarsync/internal/sync"
)

// accountFlags are shared by commands that act on one account.
type accountFlags struct {
	account string
	truth   string
}

func (f *accountFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.account, "account", "a", "", "account name or id (default: selected account)")
	cmd.Flags().StringVarP(&f.truth, "truth", "t", "", "CSV file to load as the truth inventory before running")
}

// prepare resolves the account and loads the truth file if one was given.
func (f *accountFlags) prepare(app *App) (models.Account, error) {
	acct, err := resolveAccount(app, f.account)
	if err != nil {
		return acct, err
	}
	if f.truth == "" {
		return acct, nil
	}
	items, err := loadTruthFile(f.truth)
	if err != nil {
		return acct, err
	}
	return acct, app.Manager.SetTruth(acct.ID, items)
}

func resolveAccount(app *App, ref string) (models.Account, error) {
	if ref == "" {
		return app.Registry.Selected()
	}
	return app.Registry.Resolve(ref)
}

func loadTruthFile(path string) ([]models.CanonicalItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open truth file: %w", err)
	}
	defer f.Close()

	items, err := csvsource.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// commandContext tags the command's context with a correlation ID.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.ContextWithNewCorrelationID(ctx)
}

func newSyncCommand(opts *RootOptions) *cobra.Command {
	var flags accountFlags
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push the whole truth inventory of an account",
		Long: `Push every truth item to the remote: missing products are created and
differing quantities overwritten. Products only present on the remote are
left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			acct, err := flags.prepare(opts.App)
			if err != nil {
				return err
			}
			result, err := opts.App.Manager.FullSync(commandContext(cmd), acct.ID)
			if err != nil {
				return err
			}
			return reportPass(opts, cmd.OutOrStdout(), acct, result)
		},
	}
	flags.register(cmd)
	return cmd
}

func newPartialSyncCommand(opts *RootOptions) *cobra.Command {
	var (
		flags accountFlags
		skus  []string
	)
	cmd := &cobra.Command{
		Use:   "partial-sync [SKU...]",
		Short: "Push selected SKUs of an account",
		Long: `Push only the listed SKUs, taking quantities from the truth inventory.
SKUs the truth does not contain are reported as skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			skus = append(skus, args...)
			if len(skus) == 0 {
				return fmt.Errorf("no SKUs given: pass --sku or positional SKUs")
			}
			acct, err := flags.prepare(opts.App)
			if err != nil {
				return err
			}
			result, err := opts.App.Manager.PartialSync(commandContext(cmd), acct.ID, skus)
			if err != nil {
				return err
			}
			return reportPass(opts, cmd.OutOrStdout(), acct, result)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&skus, "sku", nil, "SKU to sync (repeatable)")
	return cmd
}

// reportPass prints the pass and fails the command when any item failed.
func reportPass(opts *RootOptions, w io.Writer, acct models.Account, result sync.PassResult) error {
	if opts.Format == "json" {
		if err := printJSON(w, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "%s: %d created, %d updated, %d already in sync, %d skipped, %d failed\n",
			acct.Name,
			result.Count(models.OutcomeCreated),
			result.Count(models.OutcomeUpdated),
			result.Count(models.OutcomeAlreadyInSync),
			result.Count(models.OutcomeSkippedNotInTruth),
			result.Count(models.OutcomeFailed))
		for _, o := range result.Outcomes {
			if o.Kind == models.OutcomeFailed {
				fmt.Fprintf(w, "  %s\n", o.Message())
			}
		}
	}
	if n := result.Count(models.OutcomeFailed); n > 0 {
		return fmt.Errorf("%d items failed to sync", n)
	}
	return nil
}

func newCompareCommand(opts *RootOptions) *cobra.Command {
	var (
		flags  accountFlags
		cached bool
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Show how the remote differs from the truth inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			acct, err := flags.prepare(opts.App)
			if err != nil {
				return err
			}
			diffs, err := opts.App.Manager.Compare(commandContext(cmd), acct.ID, !cached)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.Format == "json" {
				if diffs == nil {
					diffs = []models.DiffEntry{}
				}
				return printJSON(w, diffs)
			}
			return printDiffs(w, acct, diffs)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&cached, "cached", false, "compare against the cached remote snapshot instead of fetching")
	return cmd
}

func printDiffs(w io.Writer, acct models.Account, diffs []models.DiffEntry) error {
	if len(diffs) == 0 {
		fmt.Fprintf(w, "%s is in sync\n", acct.Name)
		return nil
	}
	s := sync.Summarize(diffs)
	fmt.Fprintf(w, "%s: %d new, %d different, %d missing\n", acct.Name, s.New, s.Different, s.Missing)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tSKU\tNAME\tTRUTH\tREMOTE\tDELTA")
	for _, d := range diffs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", d.Kind, d.SKU, d.Name, qty(d.TruthQty), qty(d.RemoteQty), delta(d.Delta))
	}
	return tw.Flush()
}

func qty(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}

func delta(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%+d", *p)
}

func newCheckAllCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-all",
		Short: "Fetch every account's inventory and count low stock items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summaries, err := opts.App.Manager.CheckAllAccounts(commandContext(cmd))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.Format == "json" {
				return printJSON(w, summaries)
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACCOUNT\tITEMS\tLOW STOCK\tERROR")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Name, s.ItemCount, s.LowStockCount, s.Error)
			}
			return tw.Flush()
		},
	}
}

func newValidateCommand(opts *RootOptions) *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an account's stored credential against the remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			acct, err := resolveAccount(opts.App, account)
			if err != nil {
				return err
			}
			ok, err := opts.App.Manager.ValidateAccount(commandContext(cmd), acct.ID)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.Format == "json" {
				if err := printJSON(w, map[string]any{"account": acct.Public(), "valid": ok}); err != nil {
					return err
				}
			} else if ok {
				fmt.Fprintf(w, "Credentials for %s are valid\n", acct.Name)
			}
			if !ok {
				return fmt.Errorf("credentials for %s were rejected", acct.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&account, "account", "a", "", "account name or id (default: selected account)")
	return cmd
}
