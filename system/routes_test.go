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
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// TestRoutesMatch tests route comparison logic
func TestRoutesMatch(t *testing.T) {
	tests := []struct {
		name     string
		routeA   netlink.Route
		routeB   netlink.Route
		expected bool
	}{
		{
			name: "identical routes",
			routeA: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			routeB: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			expected: true,
		},
		{
			name: "different destinations",
			routeA: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			routeB: netlink.Route{
				Dst:       mustParseCIDR("192.168.2.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			expected: false,
		},
		{
			name: "different gateways",
			routeA: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			routeB: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.254"),
				LinkIndex: 2,
				Table:     254,
			},
			expected: false,
		},
		{
			name: "different link indexes (both non-zero)",
			routeA: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			routeB: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 3,
				Table:     254,
			},
			expected: false,
		},
		{
			name: "link index zero vs non-zero (match)",
			routeA: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 0,
				Table:     254,
			},
			routeB: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			expected: true, // Zero link index ignored in comparison
		},
		{
			name: "different tables",
			routeA: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			routeB: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     255,
			},
			expected: false,
		},
		{
			name: "default routes (nil dst)",
			routeA: netlink.Route{
				Dst:       nil, // Default route
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			routeB: netlink.Route{
				Dst:       nil, // Default route
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			expected: true,
		},
		{
			name: "one nil dst one not",
			routeA: netlink.Route{
				Dst:       nil,
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			routeB: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			expected: false,
		},
		{
			name: "nil dst matches explicit default",
			routeA: netlink.Route{
				Dst: nil,
				Gw:  net.ParseIP("192.168.1.1"),
			},
			routeB: netlink.Route{
				Dst:   mustParseCIDR("0.0.0.0/0"),
				Gw:    net.ParseIP("192.168.1.1"),
				Table: 254,
			},
			expected: true, // Table 0 is the main table
		},
		{
			name: "nil gateways",
			routeA: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        nil,
				LinkIndex: 2,
				Table:     254,
			},
			routeB: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        nil,
				LinkIndex: 2,
				Table:     254,
			},
			expected: true,
		},
		{
			name: "one nil gateway one not",
			routeA: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        nil,
				LinkIndex: 2,
				Table:     254,
			},
			routeB: netlink.Route{
				Dst:       mustParseCIDR("192.168.1.0/24"),
				Gw:        net.ParseIP("192.168.1.1"),
				LinkIndex: 2,
				Table:     254,
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := routesMatch(tt.routeA, tt.routeB)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRouteInfoFromNetlink(t *testing.T) {
	tests := []struct {
		name  string
		route netlink.Route
		ok    bool
		want  RouteInfo
	}{
		{
			name: "gateway route",
			route: netlink.Route{
				Dst:       mustParseCIDR("10.0.0.0/8"),
				Gw:        net.ParseIP("192.168.1.1"),
				Protocol:  unix.RTPROT_BOOT,
				LinkIndex: 2,
			},
			ok: true,
			want: RouteInfo{
				Table:     MainTable,
				Dest:      netip.MustParsePrefix("10.0.0.0/8"),
				Gateway:   netip.MustParseAddr("192.168.1.1"),
				Protocol:  unix.RTPROT_BOOT,
				LinkIndex: 2,
			},
		},
		{
			name: "default route",
			route: netlink.Route{
				Gw:    net.ParseIP("192.168.1.1"),
				Table: 100,
			},
			ok: true,
			want: RouteInfo{
				Table:   100,
				Dest:    netip.MustParsePrefix("0.0.0.0/0"),
				Gateway: netip.MustParseAddr("192.168.1.1"),
			},
		},
		{
			name:  "device route has no gateway",
			route: netlink.Route{Dst: mustParseCIDR("192.168.1.0/24"), LinkIndex: 2},
		},
		{
			name: "local route is skipped",
			route: netlink.Route{
				Dst:  mustParseCIDR("192.168.1.10/32"),
				Gw:   net.ParseIP("192.168.1.1"),
				Type: unix.RTN_LOCAL,
			},
		},
		{
			name: "ipv6 gateway is skipped",
			route: netlink.Route{
				Dst: mustParseCIDR("2001:db8::/32"),
				Gw:  net.ParseIP("fe80::1"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := routeInfoFromNetlink(tt.route, MainTable)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, info)
			}
		})
	}
}

func TestRouteToNetlink(t *testing.T) {
	nl, err := routeToNetlink(RouteInfo{
		Dest:     netip.MustParsePrefix("10.0.0.0/8"),
		Gateway:  netip.MustParseAddr("192.168.1.1"),
		Protocol: unix.RTPROT_BIRD,
	})
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.0/8", nl.Dst.String())
	assert.True(t, nl.Gw.Equal(net.ParseIP("192.168.1.1")))
	assert.Equal(t, netlink.RouteProtocol(unix.RTPROT_BIRD), nl.Protocol)
	assert.Equal(t, MainTable, nl.Table)

	_, err = routeToNetlink(RouteInfo{Dest: netip.MustParsePrefix("10.0.0.0/8")})
	assert.Error(t, err, "a route without gateway cannot be installed")
}

// Benchmark tests

func BenchmarkRoutesMatch(b *testing.B) {
	routeA := netlink.Route{
		Dst:       mustParseCIDR("192.168.1.0/24"),
		Gw:        net.ParseIP("192.168.1.1"),
		LinkIndex: 2,
		Table:     254,
	}
	routeB := netlink.Route{
		Dst:       mustParseCIDR("192.168.1.0/24"),
		Gw:        net.ParseIP("192.168.1.1"),
		LinkIndex: 2,
		Table:     254,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = routesMatch(routeA, routeB)
	}
}

// Helper functions

func mustParseCIDR(cidr string) *net.IPNet {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return ipnet
}
