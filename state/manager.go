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

// Package state loads and stores the kernsync configuration.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/we-are-mono/kernsync/types"
)

const (
	defaultConfigBasePath = "/etc/kernsync"
	configName            = "kernsync"
	envPrefix             = "KERNSYNC"
)

// GetConfigDir returns the configuration directory path.
// Checks KERNSYNC_CONFIG_DIR environment variable, falls back to /etc/kernsync
func GetConfigDir() string {
	if dir := os.Getenv("KERNSYNC_CONFIG_DIR"); dir != "" {
		return dir
	}
	return defaultConfigBasePath
}

// ConfigPath returns the path of the main config file
func ConfigPath() string {
	return filepath.Join(GetConfigDir(), configName+".json")
}

// LoadConfig loads kernsync.json. A missing file yields the default
// configuration. Scalar settings can be overridden from the environment,
// e.g. KERNSYNC_LOGGING_LEVEL=debug or KERNSYNC_METRICS_LISTEN=:9108.
func LoadConfig() (*types.Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile is LoadConfig for an explicit path
func LoadConfigFile(path string) (*types.Config, error) {
	v := newViper()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, parseError(path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	// Lists have no viper defaults
	if !v.IsSet("kernel") {
		cfg.Kernel = types.DefaultConfig().Kernel
	}
	if cfg.StaticRoutes == nil {
		cfg.StaticRoutes = []types.Route{}
	}
	return &cfg, nil
}

// newViper sets up defaults and environment overrides for every scalar key
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := types.DefaultConfig()
	v.SetDefault("version", def.Version)
	v.SetDefault("interface_scan_ms", def.InterfaceScanMS)
	v.SetDefault("observer.enabled", def.Observer.Enabled)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("metrics.listen", def.Metrics.Listen)
	v.SetDefault("history.enabled", def.History.Enabled)
	v.SetDefault("history.path", def.History.Path)
	return v
}

// parseError points at the offending line of a broken JSON file
func parseError(path string, err error) error {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	var raw interface{}
	var syntaxErr *json.SyntaxError
	if errors.As(json.Unmarshal(data, &raw), &syntaxErr) {
		line, col := getLineCol(data, syntaxErr.Offset)
		return fmt.Errorf("failed to parse config at %s line %d, column %d: %w", path, line, col, err)
	}
	return fmt.Errorf("failed to parse config %s: %w", path, err)
}

// getLineCol calculates the line and column number for a byte offset in JSON data
func getLineCol(data []byte, offset int64) (line, col int) {
	line = 1
	col = 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return
}

// SaveConfig writes kernsync.json atomically. An existing file is kept as a
// timestamped backup.
func SaveConfig(config *types.Config) error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create backup if file exists
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
		if err := copyFile(path, backupPath); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically (temp file + rename)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0600)
}
