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
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/we-are-mono/kernsync/types"
)

func newTestStore(t *testing.T) (*NetlinkStore, *MockNetlinkClient) {
	t.Helper()
	mock := NewMockNetlinkClient()
	mock.AddLink("lo", 1, 65536)
	mock.AddLink("eth0", 2, 1500)
	return NewNetlinkStore(mock), mock
}

func TestNetlinkStoreLinks(t *testing.T) {
	store, _ := newTestStore(t)

	ids, err := store.LinkList()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, ids)

	info, err := store.LinkGet(2)
	require.NoError(t, err)
	assert.Equal(t, LinkInfo{Index: 2, Name: "eth0", MTU: 1500}, info)

	_, err = store.LinkGet(42)
	assert.Error(t, err)

	idx, err := store.IndexByName("eth0")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
}

func TestNetlinkStoreLinkListError(t *testing.T) {
	store, mock := newTestStore(t)
	mock.LinkListError = errors.New("netlink socket closed")

	_, err := store.LinkList()
	assert.Error(t, err)
}

func TestNetlinkStoreAddrViews(t *testing.T) {
	store, mock := newTestStore(t)
	require.NoError(t, mock.AddAddr("eth0", "192.168.1.10/24"))
	require.NoError(t, mock.AddAddr("eth0", "10.1.0.1/16"))

	ids, err := store.AddrList(types.StatusActive)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	var found bool
	for _, id := range ids {
		info, err := store.AddrGet(id, types.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, 2, info.LinkIndex)
		assert.Equal(t, netlink.FAMILY_V4, info.Family)
		if info.Addr == netip.MustParseAddr("192.168.1.10") {
			found = true
			assert.Equal(t, 24, info.PrefixLen)
		}
	}
	assert.True(t, found)

	deleted, err := store.AddrList(types.StatusDeleted)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	mock.RemoveAddr("eth0", "10.1.0.1/16")
	_, err = store.AddrList(types.StatusActive)
	require.NoError(t, err)

	deleted, err = store.AddrList(types.StatusDeleted)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	info, err := store.AddrGet(deleted[0], types.StatusDeleted)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.1.0.1"), info.Addr)
}

func TestNetlinkStoreAddrGetUnknown(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.AddrGet(99, types.StatusActive)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNetlinkStoreRouteList(t *testing.T) {
	store, mock := newTestStore(t)
	mock.Routes = []netlink.Route{
		{Dst: mustParseCIDR("10.0.0.0/8"), Gw: net.ParseIP("192.168.1.1"), Protocol: unix.RTPROT_STATIC, Table: 254},
		{Dst: mustParseCIDR("192.168.1.0/24"), LinkIndex: 2, Protocol: unix.RTPROT_KERNEL, Table: 254},
		{Dst: mustParseCIDR("172.16.0.0/12"), Gw: net.ParseIP("192.168.1.1"), Table: 100},
	}

	ids, err := store.RouteList(0, types.StatusActive)
	require.NoError(t, err)
	require.Len(t, ids, 1, "device routes and other tables are not listed")

	info, err := store.RouteGet(ids[0], types.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/8"), info.Dest)
	assert.Equal(t, unix.RTPROT_STATIC, info.Protocol)

	other, err := store.RouteList(100, types.StatusActive)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestNetlinkStoreRouteListError(t *testing.T) {
	store, mock := newTestStore(t)
	mock.RouteListFilteredError = errors.New("dump interrupted")

	_, err := store.RouteList(MainTable, types.StatusActive)
	assert.Error(t, err)

	// The deleted view does not touch the kernel
	_, err = store.RouteList(MainTable, types.StatusDeleted)
	assert.NoError(t, err)
}

func TestNetlinkStoreRouteCreateDelete(t *testing.T) {
	store, mock := newTestStore(t)

	id, err := store.RouteCreate(0, RouteInfo{
		Dest:      netip.MustParsePrefix("10.0.0.0/8"),
		Gateway:   netip.MustParseAddr("192.168.1.1"),
		Protocol:  unix.RTPROT_BIRD,
		LinkIndex: 2,
	})
	require.NoError(t, err)
	require.Len(t, mock.Routes, 1)
	assert.Equal(t, MainTable, mock.Routes[0].Table)

	info, err := store.RouteGet(id, types.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, MainTable, info.Table)

	require.NoError(t, store.RouteDelete(id))
	assert.Empty(t, mock.Routes)

	deleted, err := store.RouteList(MainTable, types.StatusDeleted)
	require.NoError(t, err)
	assert.Equal(t, []int{id}, deleted)

	assert.ErrorIs(t, store.RouteDelete(id), ErrNotFound)
}

func TestNetlinkStoreRouteCreateError(t *testing.T) {
	store, mock := newTestStore(t)
	mock.RouteAddError = errors.New("network unreachable")

	_, err := store.RouteCreate(MainTable, RouteInfo{
		Dest:    netip.MustParsePrefix("10.0.0.0/8"),
		Gateway: netip.MustParseAddr("192.168.1.1"),
	})
	assert.Error(t, err)

	ids, err := store.RouteList(MainTable, types.StatusActive)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNetlinkStoreRouteDeleteError(t *testing.T) {
	store, mock := newTestStore(t)
	mock.Routes = []netlink.Route{
		{Dst: mustParseCIDR("10.0.0.0/8"), Gw: net.ParseIP("192.168.1.1"), Table: 254},
	}

	ids, err := store.RouteList(MainTable, types.StatusActive)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	mock.RouteDelError = errors.New("operation not permitted")
	assert.Error(t, store.RouteDelete(ids[0]))

	_, err = store.RouteGet(ids[0], types.StatusActive)
	assert.NoError(t, err, "a failed delete leaves the route active")
}
