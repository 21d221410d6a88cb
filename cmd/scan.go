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

	"github.com/spf13/cobra"

	"github.com/we-are-mono/kernsync/daemon"
)

var scanTable string

var scanCmd = &cobra.Command{
	Use:   "scan [kif|krt|all]",
	Short: "Run a scan now",
	Long: `Asks the daemon to scan the kernel immediately instead of waiting for
the next periodic scan.

Examples:
  kernsync scan                  # Interfaces, then all route tables
  kernsync scan kif              # Interfaces and addresses only
  kernsync scan krt -t kernel1   # Routes of one protocol`,
	Args: cobra.MaximumNArgs(1),
	Run:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&scanTable, "table", "t", "", "Protocol to scan (krt only)")
}

func runScan(cmd *cobra.Command, args []string) {
	kind := ""
	if len(args) > 0 {
		kind = args[0]
	}
	if err := executeScan(cmd.OutOrStdout(), defaultClient, kind, scanTable); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeScan executes the scan command with the given client.
func executeScan(w io.Writer, client ClientInterface, kind, table string) error {
	if table != "" && kind == "" {
		kind = "krt"
	}

	var results []daemon.ScanResult
	resp, err := request(client, daemon.Request{Command: "scan", Kind: kind, Table: table}, &results)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		switch {
		case r.Error != "":
			failed++
			fmt.Fprintf(w, "[ERROR] %s: %s\n", scanLabel(r), r.Error)
		case r.Interfaces != nil:
			fmt.Fprintf(w, "[OK] %s: %d links, %d addresses updated, %d deleted (%s)\n",
				scanLabel(r), r.Interfaces.Links, r.Interfaces.AddrsUpdated,
				r.Interfaces.AddrsDeleted, formatDuration(r.Interfaces.Duration))
		case r.Routes != nil:
			fmt.Fprintf(w, "[OK] %s: %d observed, %d withdrawn, %d ignored (%s)\n",
				scanLabel(r), r.Routes.Observed, r.Routes.Withdrawn,
				r.Routes.Ignored, formatDuration(r.Routes.Duration))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%s", resp.Message)
	}
	fmt.Fprintf(w, "[OK] %s\n", resp.Message)
	return nil
}

func scanLabel(r daemon.ScanResult) string {
	if r.Protocol != "" {
		return r.Kind + " " + r.Protocol
	}
	return r.Kind
}
