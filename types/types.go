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

// Package types defines the core data structures shared by the kernel
// synchronization layer, the interface layer and the routing tables.
// It includes the daemon's view of interfaces and addresses, route
// source categories, and the configuration types.
package types

import (
	"net/netip"
	"strings"
)

// MaxIfaceNameLen bounds interface names (IFNAMSIZ).
const MaxIfaceNameLen = 16

// IfaceFlags is the daemon-side flag set of an interface
type IfaceFlags uint32

const (
	IfAdminUp IfaceFlags = 1 << iota
	IfLinkUp
	IfMultiAccess
	IfBroadcast
	IfMulticast
)

// DefaultIfaceFlags is the flag set every synced interface gets. The kernel
// link flags are not consulted.
const DefaultIfaceFlags = IfAdminUp | IfLinkUp | IfMultiAccess | IfBroadcast | IfMulticast

// Has reports whether all bits of f are set.
func (fl IfaceFlags) Has(f IfaceFlags) bool {
	return fl&f == f
}

// String returns a space separated list of set flags
func (fl IfaceFlags) String() string {
	names := []struct {
		flag IfaceFlags
		name string
	}{
		{IfAdminUp, "admin-up"},
		{IfLinkUp, "link-up"},
		{IfMultiAccess, "multi-access"},
		{IfBroadcast, "broadcast"},
		{IfMulticast, "multicast"},
	}

	var parts []string
	for _, n := range names {
		if fl.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// Interface is the daemon's model of a network interface
type Interface struct {
	Name  string     `json:"name"`
	Index int        `json:"index"`
	MTU   int        `json:"mtu"`
	Flags IfaceFlags `json:"flags"`
}

// Scope is a coarse reachability classification of an address.
type Scope uint8

const (
	ScopeUndefined Scope = iota
	ScopeHost
	ScopeLink
	ScopeSite
	ScopeOrganization
	ScopeUniverse
)

func (s Scope) String() string {
	switch s {
	case ScopeHost:
		return "host"
	case ScopeLink:
		return "link"
	case ScopeSite:
		return "site"
	case ScopeOrganization:
		return "organization"
	case ScopeUniverse:
		return "universe"
	default:
		return "undefined"
	}
}

// InterfaceAddress is an address attached to an interface. Prefix and
// Broadcast are always derived from IP and PrefixLen.
type InterfaceAddress struct {
	IfIndex   int        `json:"if_index"`
	IfName    string     `json:"if_name"`
	IP        netip.Addr `json:"ip"`
	PrefixLen int        `json:"prefix_len"`
	Prefix    netip.Addr `json:"prefix"`
	Broadcast netip.Addr `json:"broadcast"`
	Opposite  netip.Addr `json:"opposite"` // never set, no point-to-point peers
	Scope     Scope      `json:"scope"`
}

// Status selects one of the two views the external store offers.
type Status int

const (
	StatusActive Status = iota
	StatusDeleted
)

// Views lists the status views in scan order.
var Views = []Status{StatusActive, StatusDeleted}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// RouteSource is the category assigned to a route learned from the kernel
type RouteSource int

const (
	SourceUnspec RouteSource = iota
	SourceKernel
	SourceDaemon
	SourceAlien
)

func (s RouteSource) String() string {
	switch s {
	case SourceKernel:
		return "kernel"
	case SourceDaemon:
		return "daemon"
	case SourceAlien:
		return "alien"
	default:
		return "unspec"
	}
}
