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
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRootCmdExists tests that root command is properly initialized
func TestRootCmdExists(t *testing.T) {
	assert.NotNil(t, rootCmd, "root command should exist")
	assert.Equal(t, "kernsync", rootCmd.Use)
	assert.Contains(t, rootCmd.Short, "kernsync")
}

// TestRootCmdHasCommands tests that subcommands are registered
func TestRootCmdHasCommands(t *testing.T) {
	expectedCommands := []string{
		"daemon",
		"status",
		"interfaces",
		"routes",
		"tables",
		"lookup",
		"scan",
		"history",
		"logs",
		"validate",
		"config",
	}

	commands := rootCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	for _, expected := range expectedCommands {
		assert.Contains(t, commandNames, expected, "command %s should be registered", expected)
	}
}

func TestSetVersion(t *testing.T) {
	prevVersion, prevBuild := Version, BuildTime
	defer SetVersion(prevVersion, prevBuild)

	SetVersion("1.2.3", "2025-01-01")
	assert.Equal(t, "1.2.3", rootCmd.Version)
	assert.Equal(t, "2025-01-01", BuildTime)
}
