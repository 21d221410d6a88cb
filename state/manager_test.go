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

package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/we-are-mono/kernsync/types"
)

// tempConfigDir points KERNSYNC_CONFIG_DIR at a fresh directory
func tempConfigDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("KERNSYNC_CONFIG_DIR", dir)
	return dir
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kernsync.json"), []byte(content), 0644))
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("KERNSYNC_CONFIG_DIR", "")
	assert.Equal(t, "/etc/kernsync", GetConfigDir())

	t.Setenv("KERNSYNC_CONFIG_DIR", "/tmp/ks")
	assert.Equal(t, "/tmp/ks", GetConfigDir())
	assert.Equal(t, "/tmp/ks/kernsync.json", ConfigPath())
}

func TestLoadConfigMissingFile(t *testing.T) {
	tempConfigDir(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	dir := tempConfigDir(t)
	writeConfig(t, dir, `{
  "kernel": [
    {"name": "main", "scan_interval_ms": 5000},
    {"name": "vpn", "table": 100, "protocol": 99}
  ],
  "static_routes": [
    {"name": "lan", "destination": "10.0.0.0/8", "gateway": "192.168.1.1", "enabled": true}
  ],
  "interface_scan_ms": 20000,
  "logging": {"level": "debug"},
  "metrics": {"listen": "127.0.0.1:9108"}
}`)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Len(t, cfg.Kernel, 2)
	assert.Equal(t, types.KernelConfig{Name: "main", ScanIntervalMS: 5000}, cfg.Kernel[0])
	assert.Equal(t, types.KernelConfig{Name: "vpn", Table: 100, Protocol: 99}, cfg.Kernel[1])

	require.Len(t, cfg.StaticRoutes, 1)
	assert.Equal(t, "192.168.1.1", cfg.StaticRoutes[0].Gateway)
	assert.True(t, cfg.StaticRoutes[0].Enabled)

	assert.Equal(t, 20000, cfg.InterfaceScanMS)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:9108", cfg.Metrics.Listen)

	// Unset keys keep their defaults
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Observer.Enabled)
	assert.Equal(t, types.DefaultHistoryPath, cfg.History.Path)
}

func TestLoadConfigEmptyKernelList(t *testing.T) {
	dir := tempConfigDir(t)
	writeConfig(t, dir, `{"kernel": []}`)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Kernel)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := tempConfigDir(t)
	writeConfig(t, dir, `{"logging": {"level": "warn"}}`)
	t.Setenv("KERNSYNC_LOGGING_LEVEL", "debug")
	t.Setenv("KERNSYNC_INTERFACE_SCAN_MS", "1500")
	t.Setenv("KERNSYNC_OBSERVER_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 1500, cfg.InterfaceScanMS)
	assert.False(t, cfg.Observer.Enabled)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	dir := tempConfigDir(t)
	writeConfig(t, dir, "{\n  \"kernel\": [\n    {\"name\": \"main\",}\n  ]\n}")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestSaveConfig(t *testing.T) {
	dir := tempConfigDir(t)

	cfg := types.DefaultConfig()
	cfg.Kernel = append(cfg.Kernel, types.KernelConfig{Name: "vpn", Table: 100})
	require.NoError(t, SaveConfig(cfg))

	_, err := os.Stat(filepath.Join(dir, "kernsync.json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveConfigAutoBackup(t *testing.T) {
	dir := tempConfigDir(t)
	writeConfig(t, dir, `{"version": "0.9"}`)

	require.NoError(t, SaveConfig(types.DefaultConfig()))

	matches, err := filepath.Glob(filepath.Join(dir, "kernsync.json.backup.*"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"version": "0.9"}`, string(data))
}

func TestGetLineCol(t *testing.T) {
	data := []byte("ab\ncd\nef")

	line, col := getLineCol(data, 0)
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)

	line, col = getLineCol(data, 4)
	assert.Equal(t, 2, line)
	assert.Equal(t, 2, col)
}
