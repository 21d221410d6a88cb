// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.


package cmd

import (
	"fmt"
	"io"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/we-are-mono/kernsync/daemon"
	"github.com/we-are-mono/kernsync/history"
)

var (
	historyKind    string
	historyNetwork string
	historyLimit   int
	historyGraph   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent scans and route exports",
	Long: `Shows the scan passes and route exports recorded by the daemon, newest first.

Examples:
  kernsync history                       # Last scans and exports
  kernsync history --kind krt --graph    # Route scan durations as a graph
  kernsync history --network 0.0.0.0/0   # Exports of the default route`,
	Run: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "Only scans of this kind (kif or krt)")
	historyCmd.Flags().StringVar(&historyNetwork, "network", "", "Only exports of this network")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", daemon.DefaultHistoryLimit, "Number of entries to show")
	historyCmd.Flags().BoolVarP(&historyGraph, "graph", "g", false, "Plot scan durations")
}

func runHistory(cmd *cobra.Command, args []string) {
	if err := executeHistory(cmd.OutOrStdout(), defaultClient, historyKind, historyNetwork, historyLimit, historyGraph); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeHistory executes the history command with the given client.
func executeHistory(w io.Writer, client ClientInterface, kind, network string, limit int, graph bool) error {
	var data daemon.HistoryData
	req := daemon.Request{Command: "history", Kind: kind, Network: network, Limit: limit}
	if _, err := request(client, req, &data); err != nil {
		return err
	}

	if graph {
		fmt.Fprintln(w, plotScanDurations(data.Scans))
		return nil
	}

	fmt.Fprintln(w, "SCANS")
	fmt.Fprintln(w, "-----")
	if len(data.Scans) == 0 {
		fmt.Fprintln(w, "(none)")
	}
	for _, s := range data.Scans {
		status := "[OK]"
		if s.Error != "" {
			status = "[ERROR]"
		}
		fmt.Fprintf(w, "%s %s %-3s %8s  observed %d, withdrawn %d, skipped %d\n",
			status, s.Started.Local().Format("2006-01-02 15:04:05"), s.Kind,
			formatDuration(s.Duration), s.Observed, s.Withdrawn, s.Skipped)
		if s.Error != "" {
			fmt.Fprintf(w, "        %s\n", s.Error)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXPORTS")
	fmt.Fprintln(w, "-------")
	if len(data.Exports) == 0 {
		fmt.Fprintln(w, "(none)")
	}
	for _, e := range data.Exports {
		status := "[OK]"
		if e.Error != "" {
			status = "[ERROR]"
		}
		fmt.Fprintf(w, "%s %s %-7s %s via %s (table %d)\n",
			status, e.Time.Local().Format("2006-01-02 15:04:05"), e.Op,
			e.Network, e.Gateway, e.Table)
		if e.Error != "" {
			fmt.Fprintf(w, "        %s\n", e.Error)
		}
	}
	return nil
}

// plotScanDurations graphs scan durations in milliseconds, oldest first
func plotScanDurations(scans []history.ScanRecord) string {
	if len(scans) == 0 {
		return "No scans recorded"
	}

	durations := make([]float64, len(scans))
	for i, s := range scans {
		durations[len(scans)-1-i] = float64(s.Duration.Microseconds()) / 1000
	}

	return asciigraph.Plot(durations,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Precision(2),
		asciigraph.Caption(fmt.Sprintf("Scan duration (ms), last %d scans", len(scans))))
}
