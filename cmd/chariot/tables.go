// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Query-farm/vgi-chariot/results"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func newFunctionsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the ChrApi functions and whether the DLL provides them",
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

			var data [][]string
			for _, f := range s.Table().Functions() {
				constraint := ""
				if f.Constraint != nil {
					constraint = f.Constraint.String()
				}
				available := "no"
				if s.Has(f.Name) {
					available = "yes"
				}
				data = append(data, []string{f.Name, available, constraint})
			}
			table := newTable(cmd.OutOrStdout(), []string{"NAME", "AVAILABLE", "VERSION"})
			table.AppendBulk(data)
			table.Render()
			return nil
		},
	}
}

func newResultsCmd(o *rootOptions) *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show recorded TX and RX throughput per angle and run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if db == "" {
				cfg, err := o.plan(cmd, false)
				if err != nil {
					return err
				}
				db = cfg.ResultFile
			}
			store, err := results.Open(db)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, dir := range []results.Direction{results.TX, results.RX} {
				series, err := store.Series(dir)
				if err != nil {
					return err
				}
				renderSeries(cmd.OutOrStdout(), series)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "results database (default: result_file from the plan)")
	return cmd
}

// renderSeries prints one direction as an angle by run grid in Mbps.
func renderSeries(w io.Writer, series *results.Series) {
	fmt.Fprintf(w, "%s (Mbps)\n", series.Direction)
	header := []string{string(series.Direction)}
	for _, run := range series.Runs {
		header = append(header, run.At)
	}
	table := newTable(w, header)
	for i, angle := range series.Angles {
		row := []string{strconv.FormatFloat(angle, 'f', -1, 64)}
		for _, cell := range series.Cells[i] {
			if cell == nil {
				row = append(row, "-")
				continue
			}
			row = append(row, strconv.FormatFloat(*cell, 'f', 3, 64))
		}
		table.Append(row)
	}
	table.Render()
	fmt.Fprintln(w)
}
