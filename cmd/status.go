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
	"time"

	"github.com/spf13/cobra"

	"github.com/we-are-mono/kernsync/daemon"
	"github.com/we-are-mono/kernsync/kernel"
)

var (
	verboseStatus bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and synchronization status",
	Long:  `Displays the daemon status: interface layer size, kernel protocols with their tables and the last scan results.`,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&verboseStatus, "verbose", "v", false, "Show detailed status")
}

func runStatus(cmd *cobra.Command, args []string) {
	if err := executeStatus(cmd.OutOrStdout(), defaultClient, verboseStatus); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeStatus executes the status command with the given client.
func executeStatus(w io.Writer, client ClientInterface, verbose bool) error {
	var st daemon.StatusInfo
	if _, err := request(client, daemon.Request{Command: "status"}, &st); err != nil {
		return err
	}

	fmt.Fprintln(w, "kernsync Routing Table Synchronizer")
	fmt.Fprintln(w, "===================================")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "[OK] Daemon:     Running (uptime %s)\n", st.Uptime)
	fmt.Fprintf(w, "  Interfaces: %d (%d addresses)\n", st.Interfaces, st.Addresses)
	fmt.Fprintf(w, "  Static:     %d route(s)\n", st.StaticRoutes)
	fmt.Fprintf(w, "  Observer:   %s\n", boolToStatus(st.Observer))
	fmt.Fprintf(w, "  History:    %s\n", boolToStatus(st.History))
	if st.Metrics != "" {
		fmt.Fprintf(w, "  Metrics:    %s\n", st.Metrics)
	}
	fmt.Fprintln(w)

	if st.LastInterfaceErr != "" {
		fmt.Fprintf(w, "[WARN] Interface scan: %s\n", st.LastInterfaceErr)
	} else if st.LastInterfaceScan != nil {
		fmt.Fprintf(w, "[OK] Interface scan: %d links, %d addresses in %s\n",
			st.LastInterfaceScan.Links, st.LastInterfaceScan.AddrsUpdated,
			formatDuration(st.LastInterfaceScan.Duration))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Protocols:")
	for _, p := range st.Protocols {
		printProtocol(w, p, verbose)
	}

	if !verbose {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Use 'kernsync status -v' for scan details")
	}
	return nil
}

func printProtocol(w io.Writer, p daemon.ProtocolStatus, verbose bool) {
	state := "[UP]"
	if !p.Running {
		state = "[DOWN]"
	}

	fmt.Fprintf(w, "  %s %-12s table %-6d %d network(s)", state, p.Name, p.Table, p.Networks)
	if p.OutOfSync > 0 {
		fmt.Fprintf(w, ", %d out of sync", p.OutOfSync)
	}
	fmt.Fprintln(w)

	if p.LastError != "" {
		fmt.Fprintf(w, "      Last error: %s\n", p.LastError)
	}
	if verbose {
		fmt.Fprintf(w, "      Tag:        %d\n", p.Tag)
		if p.LastScan != nil {
			printKrtStats(w, "      ", p.LastScan)
		}
	}
}

func printKrtStats(w io.Writer, indent string, s *kernel.KrtStats) {
	fmt.Fprintf(w, "%sLast scan:  %s (%s)\n", indent, s.Pass, formatDuration(s.Duration))
	fmt.Fprintf(w, "%sObserved:   %d, withdrawn %d, ignored %d, skipped %d\n",
		indent, s.Observed, s.Withdrawn, s.Ignored, s.Skipped)
}

func boolToStatus(b bool) string {
	if b {
		return "Active"
	}
	return "Inactive"
}

func boolToYesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// formatDuration rounds d for display
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.String()
	}
}
