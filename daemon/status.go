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

package daemon

import (
	"github.com/we-are-mono/kernsync/history"
	"github.com/we-are-mono/kernsync/kernel"
	"github.com/we-are-mono/kernsync/rib"
)

// ScanResult is the outcome of one scan run on request
type ScanResult struct {
	Kind       string           `json:"kind"`
	Protocol   string           `json:"protocol,omitempty"`
	Interfaces *kernel.KifStats `json:"interfaces,omitempty"`
	Routes     *kernel.KrtStats `json:"routes,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// ProtocolStatus describes one kernel protocol
type ProtocolStatus struct {
	Name      string           `json:"name"`
	Table     int              `json:"table"`
	Tag       int              `json:"tag"`
	Running   bool             `json:"running"`
	Networks  int              `json:"networks"`
	OutOfSync int              `json:"out_of_sync"`
	LastScan  *kernel.KrtStats `json:"last_scan,omitempty"`
	LastError string           `json:"last_error,omitempty"`
}

// StatusInfo is the answer to the status command
type StatusInfo struct {
	Uptime            string           `json:"uptime"`
	Interfaces        int              `json:"interfaces"`
	Addresses         int              `json:"addresses"`
	LastInterfaceScan *kernel.KifStats `json:"last_interface_scan,omitempty"`
	LastInterfaceErr  string           `json:"last_interface_error,omitempty"`
	Protocols         []ProtocolStatus `json:"protocols"`
	StaticRoutes      int              `json:"static_routes"`
	Observer          bool             `json:"observer"`
	Metrics           string           `json:"metrics,omitempty"`
	History           bool             `json:"history"`
}

// AddressStatus is one interface address
type AddressStatus struct {
	Address   string `json:"address"`
	Network   string `json:"network"`
	Broadcast string `json:"broadcast"`
	Scope     string `json:"scope"`
}

// InterfaceStatus is one interface of the interface layer
type InterfaceStatus struct {
	Name      string          `json:"name"`
	Index     int             `json:"index"`
	MTU       int             `json:"mtu"`
	Flags     string          `json:"flags"`
	Addresses []AddressStatus `json:"addresses"`
}

// TableStatus is the content of one routing table
type TableStatus struct {
	Name        string              `json:"name"`
	KernelTable int                 `json:"kernel_table"`
	Networks    []rib.NetworkStatus `json:"networks"`
}

// TableBinding is one kernel table owned by a protocol
type TableBinding struct {
	KernelTable int    `json:"kernel_table"`
	Protocol    string `json:"protocol"`
	Tag         int    `json:"tag"`
}

// StaticRouteStatus is one configured static route
type StaticRouteStatus struct {
	Name        string `json:"name"`
	Destination string `json:"destination"`
	Gateway     string `json:"gateway"`
	Interface   string `json:"interface,omitempty"`
	Table       string `json:"table"`
	Comment     string `json:"comment,omitempty"`
}

// TablesInfo is the answer to the tables command
type TablesInfo struct {
	Bindings     []TableBinding      `json:"bindings"`
	StaticRoutes []StaticRouteStatus `json:"static_routes"`
}

// LookupResult is the best route for an address
type LookupResult struct {
	Table   string           `json:"table"`
	Address string           `json:"address"`
	Network string           `json:"network,omitempty"`
	Route   *rib.RouteStatus `json:"route,omitempty"`
}

// HistoryData holds recent history records, newest first
type HistoryData struct {
	Scans   []history.ScanRecord   `json:"scans"`
	Exports []history.ExportRecord `json:"exports"`
}
