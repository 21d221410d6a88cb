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
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/iface"
	"github.com/we-are-mono/kernsync/rib"
	"github.com/we-are-mono/kernsync/system"
	"github.com/we-are-mono/kernsync/types"
)

func TestParseDestination(t *testing.T) {
	tests := []struct {
		name    string
		dest    string
		want    string
		wantErr bool
	}{
		{"default", "default", "0.0.0.0/0", false},
		{"network", "10.0.0.0/8", "10.0.0.0/8", false},
		{"host bits masked", "10.1.2.3/16", "10.1.0.0/16", false},
		{"host route", "192.168.1.1/32", "192.168.1.1/32", false},
		{"ipv6", "2001:db8::/32", "", true},
		{"garbage", "not-a-cidr", "", true},
		{"bare address", "10.0.0.1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDestination(tt.dest)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

type staticFixture struct {
	ifaces *iface.Table
	main   *rib.Table
	vpn    *rib.Table
}

func newStaticFixture() *staticFixture {
	f := &staticFixture{
		ifaces: iface.NewTable(nil),
		main:   rib.NewTable("kernel1", nil),
		vpn:    rib.NewTable("vpn", nil),
	}
	f.ifaces.StartUpdate()
	eth0 := f.ifaces.Update(types.Interface{Name: "eth0", Index: 2, MTU: 1500, Flags: types.DefaultIfaceFlags})
	f.ifaces.Update(types.Interface{Name: "wg0", Index: 5, MTU: 1420, Flags: types.DefaultIfaceFlags})
	f.ifaces.UpdateAddr(types.InterfaceAddress{
		IfIndex:   eth0.Index,
		IfName:    eth0.Name,
		IP:        netip.MustParseAddr("192.168.1.10"),
		PrefixLen: 24,
	})
	f.ifaces.EndUpdate()
	return f
}

func (f *staticFixture) tableFor(id int) *rib.Table {
	switch id {
	case system.MainTable:
		return f.main
	case 100:
		return f.vpn
	}
	return nil
}

func TestStaticRoutesSkipInvalid(t *testing.T) {
	f := newStaticFixture()
	cfgs := []types.Route{
		{Name: "ok", Destination: "10.0.0.0/8", Gateway: "192.168.1.1", Enabled: true},
		{Name: "off", Destination: "10.1.0.0/16", Gateway: "192.168.1.1", Enabled: false},
		{Name: "bad-dest", Destination: "nope", Gateway: "192.168.1.1", Enabled: true},
		{Name: "no-gw", Destination: "10.2.0.0/16", Enabled: true},
		{Name: "v6-gw", Destination: "10.3.0.0/16", Gateway: "fe80::1", Enabled: true},
		{Name: "unsynced", Destination: "10.4.0.0/16", Gateway: "192.168.1.1", Table: 200, Enabled: true},
		{Name: "vpn", Destination: "10.8.0.0/16", Gateway: "10.8.0.1", Interface: "wg0", Table: 100, Enabled: true},
	}

	s := newStaticRoutes(cfgs, f.tableFor, f.ifaces, logger.Nop())
	require.Equal(t, 2, s.Len())

	desc := s.describe()
	assert.Equal(t, "ok", desc[0].Name)
	assert.Equal(t, "kernel1", desc[0].Table)
	assert.Equal(t, "vpn", desc[1].Name)
	assert.Equal(t, "vpn", desc[1].Table)
}

func TestStaticRoutesSyncResolvesInterface(t *testing.T) {
	f := newStaticFixture()
	cfgs := []types.Route{
		{Name: "via-gateway", Destination: "10.0.0.0/8", Gateway: "192.168.1.1", Enabled: true},
		{Name: "via-name", Destination: "10.8.0.0/16", Gateway: "10.8.0.1", Interface: "wg0", Table: 100, Enabled: true},
		{Name: "unreachable", Destination: "172.16.0.0/12", Gateway: "172.31.0.1", Enabled: true},
	}

	s := newStaticRoutes(cfgs, f.tableFor, f.ifaces, logger.Nop())
	s.sync()

	best := f.main.Find(netip.MustParsePrefix("10.0.0.0/8")).Best()
	require.NotNil(t, best)
	assert.Equal(t, StaticProto, best.Attrs.Proto)
	assert.Equal(t, rib.SourceStatic, best.Attrs.Source)
	assert.Equal(t, rib.PreferenceStatic, best.Attrs.Preference)
	require.NotNil(t, best.Attrs.Iface)
	assert.Equal(t, "eth0", best.Attrs.Iface.Name)

	vpn := f.vpn.Find(netip.MustParsePrefix("10.8.0.0/16")).Best()
	require.NotNil(t, vpn)
	require.NotNil(t, vpn.Attrs.Iface)
	assert.Equal(t, "wg0", vpn.Attrs.Iface.Name)

	// Attached without an interface, so never exported
	far := f.main.Find(netip.MustParsePrefix("172.16.0.0/12")).Best()
	require.NotNil(t, far)
	assert.Nil(t, far.Attrs.Iface)
}

func TestStaticRoutesSyncIsQuietWhenUnchanged(t *testing.T) {
	f := newStaticFixture()
	s := newStaticRoutes([]types.Route{
		{Name: "a", Destination: "10.0.0.0/8", Gateway: "192.168.1.1", Enabled: true},
	}, f.tableFor, f.ifaces, logger.Nop())

	changes := 0
	f.main.OnBestChange(func(n *rib.Network, newBest, oldBest *rib.Route) { changes++ })

	s.sync()
	s.sync()
	assert.Equal(t, 1, changes)
}

func TestStaticRoutesLaterDuplicateWins(t *testing.T) {
	f := newStaticFixture()
	s := newStaticRoutes([]types.Route{
		{Name: "first", Destination: "10.0.0.0/8", Gateway: "192.168.1.1", Enabled: true},
		{Name: "second", Destination: "10.0.0.0/8", Gateway: "192.168.1.2", Enabled: true},
	}, f.tableFor, f.ifaces, logger.Nop())

	require.Equal(t, 1, s.Len())
	s.sync()

	best := f.main.Find(netip.MustParsePrefix("10.0.0.0/8")).Best()
	require.NotNil(t, best)
	assert.Equal(t, "192.168.1.2", best.Attrs.Gateway.String())
}

func TestStaticRoutesWithdraw(t *testing.T) {
	f := newStaticFixture()
	s := newStaticRoutes([]types.Route{
		{Name: "a", Destination: "10.0.0.0/8", Gateway: "192.168.1.1", Enabled: true},
	}, f.tableFor, f.ifaces, logger.Nop())

	s.sync()
	require.NotNil(t, f.main.Find(netip.MustParsePrefix("10.0.0.0/8")))

	s.withdraw()
	assert.Nil(t, f.main.Find(netip.MustParsePrefix("10.0.0.0/8")))
	assert.Empty(t, s.describe()[0].Interface)
}
