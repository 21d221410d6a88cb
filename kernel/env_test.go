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

package kernel

import (
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/vishvananda/netlink"

	"github.com/we-are-mono/kernsync/iface"
	"github.com/we-are-mono/kernsync/rib"
	"github.com/we-are-mono/kernsync/system"
	"github.com/we-are-mono/kernsync/types"
)

// testEnv wires a syncer to the mock netlink client through the real store
type testEnv struct {
	mock     *system.MockNetlinkClient
	store    *system.NetlinkStore
	ifaces   *iface.Table
	table    *rib.Table
	registry *Registry
	proto    *Protocol
	syncer   *Syncer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		mock:     system.NewMockNetlinkClient(),
		ifaces:   iface.NewTable(nil),
		table:    rib.NewTable("master", nil),
		registry: NewRegistry(),
	}
	env.store = system.NewNetlinkStore(env.mock)
	env.proto = NewProtocol(types.KernelConfig{Name: "kernel1"}, env.registry, env.table, nil)
	env.proto.Start()
	env.syncer = NewSyncer(env.store, env.store, env.ifaces, env.registry, nil)
	return env
}

func (e *testEnv) addKernelRoute(dst, gw string, proto int) {
	_, ipnet, err := net.ParseCIDR(dst)
	if err != nil {
		panic(err)
	}
	e.mock.Routes = append(e.mock.Routes, netlink.Route{
		Dst:      ipnet,
		Gw:       net.ParseIP(gw),
		Protocol: netlink.RouteProtocol(proto),
		Table:    system.MainTable,
	})
}

func (e *testEnv) staticRoute(prefix, gw string) *rib.Route {
	return &rib.Route{
		Net: e.table.Get(netip.MustParsePrefix(prefix)),
		Attrs: &rib.Attributes{
			Proto:      "static1",
			Source:     rib.SourceStatic,
			Scope:      types.ScopeUniverse,
			Cast:       rib.CastUnicast,
			Dest:       rib.DestRouter,
			Gateway:    netip.MustParseAddr(gw),
			Iface:      &types.Interface{Name: "eth0", Index: 2},
			Preference: rib.PreferenceStatic,
		},
	}
}

// flakyStore fails fetches of selected identifiers
type flakyStore struct {
	system.Store
	badLinks map[int]bool
	badAddrs map[int]bool
	badRoute map[int]bool
}

var errGone = errors.New("record vanished")

func (f *flakyStore) LinkGet(id int) (system.LinkInfo, error) {
	if f.badLinks[id] {
		return system.LinkInfo{}, errGone
	}
	return f.Store.LinkGet(id)
}

func (f *flakyStore) AddrGet(id int, view types.Status) (system.AddrInfo, error) {
	if f.badAddrs[id] {
		return system.AddrInfo{}, errGone
	}
	return f.Store.AddrGet(id, view)
}

func (f *flakyStore) RouteGet(id int, view types.Status) (system.RouteInfo, error) {
	if f.badRoute[id] {
		return system.RouteInfo{}, errGone
	}
	return f.Store.RouteGet(id, view)
}

// recordingLayer counts address deletions on top of the real table
type recordingLayer struct {
	*iface.Table
	deleted []types.InterfaceAddress
}

func (r *recordingLayer) DeleteAddr(a types.InterfaceAddress) bool {
	r.deleted = append(r.deleted, a)
	return r.Table.DeleteAddr(a)
}
