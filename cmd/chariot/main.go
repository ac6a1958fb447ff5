// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Command chariot runs IxChariot throughput sweeps and reports their results.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Query-farm/vgi-chariot/chariot"
	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/runner"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	config   string
	address  string
	encoding string
	logLevel string

	// session is appended to the options every command connects with.
	session []chariot.Option
}

func newRootCmd(session ...chariot.Option) *cobra.Command {
	o := &rootOptions{session: session}
	rootCmd := &cobra.Command{
		Use:   "chariot",
		Short: "IxChariot throughput measurement",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&o.config, "config", "c", "chariot.toml", "measurement plan")
	pf.StringVar(&o.address, "address", "", "IxChariot console address (overrides the plan)")
	pf.StringVar(&o.encoding, "encoding", "", "ChrApi.dll string encoding (overrides the plan)")
	pf.StringVar(&o.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		newRunCmd(o),
		newVersionCmd(o),
		newFunctionsCmd(o),
		newResultsCmd(o),
	)
	return rootCmd
}

func (o *rootOptions) logger(w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", o.logLevel, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// plan loads the config file. Commands that need no pairs tolerate a
// missing default file.
func (o *rootOptions) plan(cmd *cobra.Command, needPairs bool) (*runner.Config, error) {
	cfg, err := runner.Load(o.config)
	if err != nil {
		if needPairs || cmd.Flags().Changed("config") || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = &runner.Config{Address: runner.DefaultAddress, ResultFile: runner.DefaultResultFile}
	}
	if o.address != "" {
		cfg.Address = o.address
	}
	if o.encoding != "" {
		cfg.Encoding = o.encoding
	}
	return cfg, nil
}

// connect opens a session to cfg.Address.
func (o *rootOptions) connect(cmd *cobra.Command, cfg *runner.Config, logger *slog.Logger) (*chariot.Session, error) {
	opts := []chariot.Option{chariot.WithLogger(logger)}
	if cfg.Encoding != "" {
		codec, err := chrapi.NewCodec(cfg.Encoding)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chariot.WithCodec(codec))
	}
	opts = append(opts, o.session...)
	s := chariot.New(opts...)
	if err := s.Connect(cmd.Context(), cfg.Address); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
