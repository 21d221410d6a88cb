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
	"github.com/we-are-mono/kernsync/rib"
)

var routesCmd = &cobra.Command{
	Use:   "routes [protocol]",
	Short: "Show the daemon's routing tables",
	Long: `Lists every network of the daemon's routing tables with all routes
attached to it. The best route is marked with '*'.

Examples:
  kernsync routes            # All tables
  kernsync routes kernel1    # Only the table of protocol kernel1`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRoutes,
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Show kernel table bindings and static routes",
	Long:  `Lists which kernel table each protocol owns and the configured static routes.`,
	Run:   runTables,
}

var lookupTable string

var lookupCmd = &cobra.Command{
	Use:   "lookup <address>",
	Short: "Find the best route for an address",
	Long:  `Looks up the longest matching network for an IPv4 address and shows its best route.`,
	Args:  cobra.ExactArgs(1),
	Run:   runLookup,
}

func init() {
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().StringVarP(&lookupTable, "table", "t", "", "Protocol whose table to search (default: first)")
}

func runRoutes(cmd *cobra.Command, args []string) {
	table := ""
	if len(args) > 0 {
		table = args[0]
	}
	if err := executeRoutes(cmd.OutOrStdout(), defaultClient, table); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

func runTables(cmd *cobra.Command, args []string) {
	if err := executeTables(cmd.OutOrStdout(), defaultClient); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

func runLookup(cmd *cobra.Command, args []string) {
	if err := executeLookup(cmd.OutOrStdout(), defaultClient, lookupTable, args[0]); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeRoutes executes the routes command with the given client.
func executeRoutes(w io.Writer, client ClientInterface, table string) error {
	var tables []daemon.TableStatus
	if _, err := request(client, daemon.Request{Command: "routes", Table: table}, &tables); err != nil {
		return err
	}

	for i, t := range tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Table %s (kernel table %d)\n", t.Name, t.KernelTable)
		if len(t.Networks) == 0 {
			fmt.Fprintln(w, "  (empty)")
			continue
		}
		for _, n := range t.Networks {
			printNetwork(w, n)
		}
	}
	return nil
}

func printNetwork(w io.Writer, n rib.NetworkStatus) {
	fmt.Fprintf(w, "  %s", n.Prefix)
	if n.SyncError {
		fmt.Fprint(w, " [OUT OF SYNC]")
	}
	fmt.Fprintln(w)
	for _, r := range n.Routes {
		fmt.Fprintf(w, "    %s\n", formatRoute(r))
	}
}

func formatRoute(r rib.RouteStatus) string {
	mark := " "
	if r.Best {
		mark = "*"
	}

	s := fmt.Sprintf("%s %-8s", mark, r.Proto)
	if r.Gateway != "" {
		s += " via " + r.Gateway
	}
	if r.Iface != "" {
		s += " dev " + r.Iface
	}
	s += fmt.Sprintf(" [%s, pref %d", r.Source, r.Preference)
	if r.Origin != "" {
		s += ", " + r.Origin
	}
	if r.KernelTag != 0 {
		s += fmt.Sprintf(", proto %d", r.KernelTag)
	}
	return s + "]"
}

// executeTables executes the tables command with the given client.
func executeTables(w io.Writer, client ClientInterface) error {
	var info daemon.TablesInfo
	if _, err := request(client, daemon.Request{Command: "tables"}, &info); err != nil {
		return err
	}

	fmt.Fprintln(w, "Kernel tables:")
	for _, b := range info.Bindings {
		fmt.Fprintf(w, "  %-6d %-12s proto %d\n", b.KernelTable, b.Protocol, b.Tag)
	}

	fmt.Fprintln(w)
	if len(info.StaticRoutes) == 0 {
		fmt.Fprintln(w, "Static routes: (none)")
		return nil
	}

	fmt.Fprintln(w, "Static routes:")
	for _, r := range info.StaticRoutes {
		fmt.Fprintf(w, "  %-12s %s via %s", r.Name, r.Destination, r.Gateway)
		if r.Interface != "" {
			fmt.Fprintf(w, " dev %s", r.Interface)
		} else {
			fmt.Fprint(w, " (unresolved)")
		}
		fmt.Fprintf(w, " table %s", r.Table)
		if r.Comment != "" {
			fmt.Fprintf(w, "  # %s", r.Comment)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// executeLookup executes the lookup command with the given client.
func executeLookup(w io.Writer, client ClientInterface, table, address string) error {
	var res daemon.LookupResult
	resp, err := request(client, daemon.Request{Command: "lookup", Table: table, Address: address}, &res)
	if err != nil {
		return err
	}

	if res.Route == nil {
		fmt.Fprintf(w, "[INFO] %s\n", resp.Message)
		return nil
	}

	fmt.Fprintf(w, "%s -> %s (table %s)\n", res.Address, res.Network, res.Table)
	fmt.Fprintf(w, "  %s\n", formatRoute(*res.Route))
	return nil
}
