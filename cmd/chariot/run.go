// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Query-farm/vgi-chariot/results"
	"github.com/Query-farm/vgi-chariot/runner"
)

func newRunCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Measure TX and RX throughput at every rotation angle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := o.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg, err := o.plan(cmd, true)
			if err != nil {
				return err
			}
			store, err := results.Open(cfg.ResultFile)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := o.connect(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := runner.New(s, cfg, store, runner.WithLogger(logger)).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s at %s saved to %s\n", run.ID, run.At, cfg.ResultFile)
			return nil
		},
	}
}
