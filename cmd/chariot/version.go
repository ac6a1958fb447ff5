// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ChrApi version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := o.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg, err := o.plan(cmd, false)
			if err != nil {
				return err
			}
			s, err := o.connect(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			version, err := s.APIGetVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chrapi version: %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "gating version: %s\n", s.Version())
			return nil
		},
	}
}
