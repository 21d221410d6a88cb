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

// Package rib is the daemon's routing information base: per destination
// networks with the routes different protocols attached to them, and the
// selection of the best one.
package rib

import (
	"net/netip"
	"sync/atomic"

	"github.com/we-are-mono/kernsync/types"
)

// Route preferences, higher wins
const (
	PreferenceStatic    = 200
	PreferenceInherited = 10
)

// Source is the administrative source of a route
type Source int

const (
	SourceDummy Source = iota
	SourceStatic
	SourceInherit
	SourceDevice
)

func (s Source) String() string {
	switch s {
	case SourceStatic:
		return "static"
	case SourceInherit:
		return "inherit"
	case SourceDevice:
		return "device"
	default:
		return "dummy"
	}
}

// Cast is the cast type of a route
type Cast int

const (
	CastUnicast Cast = iota
	CastBroadcast
	CastMulticast
	CastAnycast
)

func (c Cast) String() string {
	switch c {
	case CastUnicast:
		return "unicast"
	case CastBroadcast:
		return "broadcast"
	case CastMulticast:
		return "multicast"
	case CastAnycast:
		return "anycast"
	default:
		return "unknown"
	}
}

// Dest is the forwarding mode of a route
type Dest int

const (
	DestNone Dest = iota
	DestRouter
	DestDevice
	DestBlackhole
	DestUnreachable
	DestProhibit
	DestMultipath
)

func (d Dest) String() string {
	switch d {
	case DestRouter:
		return "router"
	case DestDevice:
		return "device"
	case DestBlackhole:
		return "blackhole"
	case DestUnreachable:
		return "unreachable"
	case DestProhibit:
		return "prohibit"
	case DestMultipath:
		return "multipath"
	default:
		return "none"
	}
}

// Attributes describe how a route forwards. They are never modified after
// the route is created; a change is a new route with new attributes.
type Attributes struct {
	Proto      string // owning protocol instance
	Source     Source
	Scope      types.Scope
	Cast       Cast
	Dest       Dest
	Gateway    netip.Addr
	Iface      *types.Interface // resolved outgoing interface, may be nil
	Preference int
}

// KernelInfo is attached to routes learned from a kernel table
type KernelInfo struct {
	Src   types.RouteSource
	Proto int // origin tag as seen in the kernel
	Type  int
}

// Route is one protocol's route to a network
type Route struct {
	Net    *Network
	Attrs  *Attributes
	Kernel KernelInfo
}

// Network is a destination prefix with every route attached to it
type Network struct {
	Prefix netip.Prefix

	routes  []*Route
	best    *Route
	syncErr atomic.Bool
}

// SetSyncError flags whether the last export of this network failed
func (n *Network) SetSyncError(failed bool) {
	n.syncErr.Store(failed)
}

// SyncError reports whether the last export of this network failed
func (n *Network) SyncError() bool {
	return n.syncErr.Load()
}

// Routes returns the routes attached to the network
func (n *Network) Routes() []*Route {
	out := make([]*Route, len(n.routes))
	copy(out, n.routes)
	return out
}

// Best returns the selected route or nil
func (n *Network) Best() *Route {
	return n.best
}

// selectBest picks the route with the highest preference. Ties keep the
// route attached first.
func (n *Network) selectBest() *Route {
	var best *Route
	for _, r := range n.routes {
		if best == nil || r.Attrs.Preference > best.Attrs.Preference {
			best = r
		}
	}
	return best
}
