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

package system

import (
	"errors"
	"net/netip"

	"github.com/we-are-mono/kernsync/types"
)

// MainTable is the kernel's main routing table (RT_TABLE_MAIN).
const MainTable = 254

// ErrNotFound is returned when an identifier is unknown to the store.
var ErrNotFound = errors.New("record not found")

// LinkInfo is the per-link record the store returns
type LinkInfo struct {
	Index int
	Name  string
	MTU   int
}

// AddrInfo is the per-address record the store returns
type AddrInfo struct {
	LinkIndex int
	Addr      netip.Addr
	PrefixLen int
	Family    int // netlink.FAMILY_V4 or netlink.FAMILY_V6
}

// RouteInfo is the per-route record the store returns and accepts
type RouteInfo struct {
	Table     int
	Dest      netip.Prefix
	Gateway   netip.Addr
	Protocol  int // origin tag (rtm_protocol)
	LinkIndex int // 0 lets the kernel pick the device
}

// Store enumerates and mutates the host's network state. Listing returns
// identifiers; records are fetched one by one. Addresses and routes come in
// two views: active records and records deleted since the last time the
// deleted view was listed.
type Store interface {
	LinkList() ([]int, error)
	LinkGet(id int) (LinkInfo, error)

	AddrList(view types.Status) ([]int, error)
	AddrGet(id int, view types.Status) (AddrInfo, error)

	RouteList(table int, view types.Status) ([]int, error)
	RouteGet(id int, view types.Status) (RouteInfo, error)
	RouteCreate(table int, info RouteInfo) (int, error)
	RouteDelete(id int) error
}

// IndexResolver maps an interface name to its stable index
type IndexResolver interface {
	IndexByName(name string) (int, error)
}
