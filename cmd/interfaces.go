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
	"strings"

	"github.com/spf13/cobra"

	"github.com/we-are-mono/kernsync/daemon"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "Show interfaces known to the daemon",
	Long:  `Lists the interfaces and addresses imported by the last interface scan.`,
	Run:   runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) {
	if err := executeInterfaces(cmd.OutOrStdout(), defaultClient); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeInterfaces executes the interfaces command with the given client.
func executeInterfaces(w io.Writer, client ClientInterface) error {
	var ifaces []daemon.InterfaceStatus
	if _, err := request(client, daemon.Request{Command: "interfaces"}, &ifaces); err != nil {
		return err
	}

	if len(ifaces) == 0 {
		fmt.Fprintln(w, "No interfaces")
		return nil
	}

	for _, iface := range ifaces {
		printInterface(w, iface)
	}
	return nil
}

func printInterface(w io.Writer, iface daemon.InterfaceStatus) {
	stateSymbol := "[DOWN]"
	if strings.Contains(iface.Flags, "link-up") {
		stateSymbol = "[UP]"
	}

	fmt.Fprintf(w, "%s %s (index %d)\n", stateSymbol, iface.Name, iface.Index)
	fmt.Fprintf(w, "    Flags:      %s\n", iface.Flags)
	if iface.MTU > 0 {
		fmt.Fprintf(w, "    MTU:        %d\n", iface.MTU)
	}

	if len(iface.Addresses) == 0 {
		fmt.Fprintln(w, "    IP Address: (none)")
	}
	for _, a := range iface.Addresses {
		fmt.Fprintf(w, "    IP Address: %s (network %s, broadcast %s, scope %s)\n",
			a.Address, a.Network, a.Broadcast, a.Scope)
	}
	fmt.Fprintln(w)
}
