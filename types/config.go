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

package types

// KernelConfig configures one kernel protocol instance, i.e. the sync of one
// kernel routing table.
type KernelConfig struct {
	Name           string `json:"name" mapstructure:"name"`
	Table          int    `json:"table" mapstructure:"table"`                       // Kernel table ID (default: main)
	Protocol       int    `json:"protocol" mapstructure:"protocol"`                 // Origin tag put on exported routes
	ScanIntervalMS int    `json:"scan_interval_ms" mapstructure:"scan_interval_ms"` // Route scan period
}

// Route represents a static route configuration
type Route struct {
	Name        string `json:"name" mapstructure:"name"`
	Destination string `json:"destination" mapstructure:"destination"` // CIDR notation (e.g., "10.0.0.0/8", "default" for 0.0.0.0/0)
	Gateway     string `json:"gateway,omitempty" mapstructure:"gateway"`
	Interface   string `json:"interface,omitempty" mapstructure:"interface"` // Optional: interface name
	Comment     string `json:"comment,omitempty" mapstructure:"comment"`
	Table       int    `json:"table,omitempty" mapstructure:"table"` // Routing table ID (default: main)
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
}

// ObserverConfig represents configuration for the netlink observer
type ObserverConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig represents configuration for the logging system
type LoggingConfig struct {
	Level   string   `json:"level" mapstructure:"level"`     // debug, info, warn, error (default: info)
	Format  string   `json:"format" mapstructure:"format"`   // text, json (default: json)
	Outputs []string `json:"outputs" mapstructure:"outputs"` // ["file", "journald"] (default: auto-detect)
	File    string   `json:"file" mapstructure:"file"`       // Log file path (default: /var/log/kernsync/kernsync.log)
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Listen string `json:"listen" mapstructure:"listen"` // empty disables the endpoint
}

// HistoryConfig controls the scan/export history database
type HistoryConfig struct {
	Path    string `json:"path" mapstructure:"path"`
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
}

// Config is the main kernsync configuration (/etc/kernsync/kernsync.json)
type Config struct {
	Kernel          []KernelConfig `json:"kernel" mapstructure:"kernel"`
	StaticRoutes    []Route        `json:"static_routes" mapstructure:"static_routes"`
	InterfaceScanMS int            `json:"interface_scan_ms" mapstructure:"interface_scan_ms"`
	Observer        ObserverConfig `json:"observer" mapstructure:"observer"`
	Logging         LoggingConfig  `json:"logging" mapstructure:"logging"`
	Metrics         MetricsConfig  `json:"metrics" mapstructure:"metrics"`
	History         HistoryConfig  `json:"history" mapstructure:"history"`
	Version         string         `json:"version" mapstructure:"version"`
}

const (
	DefaultInterfaceScanMS = 60000
	DefaultLogFile         = "/var/log/kernsync/kernsync.log"
	DefaultHistoryPath     = "/var/lib/kernsync/history.db"
)

// DefaultConfig returns the configuration used when no config file exists:
// one kernel protocol syncing the main table.
func DefaultConfig() *Config {
	return &Config{
		Version:         "1.0",
		Kernel:          []KernelConfig{{Name: "kernel1"}},
		StaticRoutes:    []Route{},
		InterfaceScanMS: DefaultInterfaceScanMS,
		Observer:        ObserverConfig{Enabled: true},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   DefaultLogFile,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath,
		},
	}
}
