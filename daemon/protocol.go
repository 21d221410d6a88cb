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

// Package daemon implements the kernsync daemon: the event loop driving
// kernel scans and exports, and the unix socket server and IPC protocol.
package daemon

// LogFilter defines filtering criteria for log streaming
type LogFilter struct {
	Level     string `json:"level,omitempty"`     // Filter by log level (debug, info, warn, error)
	Component string `json:"component,omitempty"` // Filter by component name
}

// Request represents a command sent to the daemon
type Request struct {
	Command   string     `json:"command"`             // status, interfaces, routes, tables, scan, history, lookup, logs-subscribe
	Table     string     `json:"table,omitempty"`     // Routing table name for routes and lookup
	Kind      string     `json:"kind,omitempty"`      // kif, krt or all for scan and history
	Address   string     `json:"address,omitempty"`   // Address for lookup
	Network   string     `json:"network,omitempty"`   // Network filter for history exports
	Limit     int        `json:"limit,omitempty"`     // Max history entries
	LogFilter *LogFilter `json:"log_filter,omitempty"` // Log filter for logs-subscribe command
}

// Response represents the daemon's response
type Response struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Success bool        `json:"success"`
}
