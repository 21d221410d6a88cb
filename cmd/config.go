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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/we-are-mono/kernsync/state"
	"github.com/we-are-mono/kernsync/types"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the kernsync configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Long:  `Writes the default configuration to $KERNSYNC_CONFIG_DIR/kernsync.json (default /etc/kernsync).`,
	Run:   runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Prints the configuration the daemon would run with, after defaults and KERNSYNC_* environment overrides.`,
	Run:   runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file (a backup is kept)")
}

func runConfigInit(cmd *cobra.Command, args []string) {
	if err := executeConfigInit(cmd.OutOrStdout(), configForce); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

func runConfigShow(cmd *cobra.Command, args []string) {
	if err := executeConfigShow(cmd.OutOrStdout()); err != nil {
		cmd.PrintErrln(fmt.Sprintf("[ERROR] %v", err))
		exitWithError()
	}
}

// executeConfigInit writes the default configuration
func executeConfigInit(w io.Writer, force bool) error {
	path := state.ConfigPath()
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := state.SaveConfig(types.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(w, "[OK] Wrote %s\n", path)
	return nil
}

// executeConfigShow prints the effective configuration as JSON
func executeConfigShow(w io.Writer) error {
	cfg, err := state.LoadConfig()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
