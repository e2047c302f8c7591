// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/cellarsync/internal/activity"
	"github.com/tomtom215/cellarsync/internal/config"
	"github.com/tomtom215/cellarsync/internal/logging"
)

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the app shared by subcommands.
type RootOptions struct {
	ConfigPath string
	Format     string
	Quiet      bool

	// App is built in PersistentPreRunE unless already set.
	App *App

	ownsApp bool
	stopLog func()
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cellarsync",
		Short:         "Reconcile winery inventory with the remote fulfillment service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.App == nil {
				app, err := openApp(opts.ConfigPath)
				if err != nil {
					return err
				}
				opts.App = app
				opts.ownsApp = true
			}
			if !opts.Quiet && cmd.Name() != "serve" {
				opts.stopLog = streamActivity(opts.App.Activity, cmd.ErrOrStderr())
			}
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return opts.close()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config.yaml (default: $CONFIG_PATH or ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "do not print activity while commands run")

	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newPartialSyncCommand(opts))
	cmd.AddCommand(newCompareCommand(opts))
	cmd.AddCommand(newCheckAllCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newAccountsCommand(opts))
	cmd.AddCommand(newAskCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	return cmd
}

func openApp(configPath string) (*App, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	return NewApp(cfg)
}

// close stops the activity printer and releases an app this command opened.
func (o *RootOptions) close() error {
	if o.stopLog != nil {
		o.stopLog()
		o.stopLog = nil
	}
	if o.ownsApp && o.App != nil {
		err := o.App.Close()
		o.App = nil
		o.ownsApp = false
		return err
	}
	return nil
}

// streamActivity prints entries as they are added until the returned
// function is called. The function waits for the printer to drain.
func streamActivity(log *activity.Log, w io.Writer) func() {
	entries, cancel := log.Subscribe(256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			fmt.Fprintf(w, "%s %-7s %s\n", e.Timestamp.Format("15:04:05"), e.Level, e.Message)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
