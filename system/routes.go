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
	"fmt"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// routeInfoFromNetlink converts a kernel route. Only IPv4 unicast routes via
// a gateway are representable; everything else reports false.
func routeInfoFromNetlink(r netlink.Route, table int) (RouteInfo, bool) {
	// Local, broadcast and other non-unicast entries are not static routes
	if r.Type != 0 && r.Type != unix.RTN_UNICAST {
		return RouteInfo{}, false
	}
	if r.Gw == nil {
		return RouteInfo{}, false
	}

	gw, ok := netip.AddrFromSlice(r.Gw)
	if !ok {
		return RouteInfo{}, false
	}
	gw = gw.Unmap()
	if !gw.Is4() {
		return RouteInfo{}, false
	}

	// A nil destination is the default route
	dest := netip.PrefixFrom(netip.IPv4Unspecified(), 0)
	if r.Dst != nil {
		ip, ok := netip.AddrFromSlice(r.Dst.IP)
		if !ok {
			return RouteInfo{}, false
		}
		ones, _ := r.Dst.Mask.Size()
		dest = netip.PrefixFrom(ip.Unmap(), ones).Masked()
	}

	if r.Table != 0 {
		table = r.Table
	}

	return RouteInfo{
		Table:     table,
		Dest:      dest,
		Gateway:   gw,
		Protocol:  int(r.Protocol),
		LinkIndex: r.LinkIndex,
	}, true
}

// routeToNetlink builds the kernel representation of a route
func routeToNetlink(info RouteInfo) (*netlink.Route, error) {
	if !info.Dest.IsValid() {
		return nil, fmt.Errorf("invalid route destination")
	}
	if !info.Gateway.IsValid() {
		return nil, fmt.Errorf("route %s has no gateway", info.Dest)
	}

	dst := &net.IPNet{
		IP:   net.IP(info.Dest.Masked().Addr().AsSlice()),
		Mask: net.CIDRMask(info.Dest.Bits(), info.Dest.Addr().BitLen()),
	}

	return &netlink.Route{
		Dst:       dst,
		Gw:        net.IP(info.Gateway.AsSlice()),
		Protocol:  netlink.RouteProtocol(info.Protocol),
		Table:     normalizeTable(info.Table),
		LinkIndex: info.LinkIndex,
	}, nil
}

// routesMatch checks if two routes are equivalent
func routesMatch(a, b netlink.Route) bool {
	// Compare destination, nil and 0.0.0.0/0 both mean default
	if dstString(a.Dst) != dstString(b.Dst) {
		return false
	}

	// Compare gateway
	if !a.Gw.Equal(b.Gw) {
		return false
	}

	// Compare link index
	if a.LinkIndex != b.LinkIndex && a.LinkIndex != 0 && b.LinkIndex != 0 {
		return false
	}

	// Compare table
	if normalizeTable(a.Table) != normalizeTable(b.Table) {
		return false
	}

	return true
}

func normalizeTable(table int) int {
	if table == 0 {
		return MainTable
	}
	return table
}

func dstString(dst *net.IPNet) string {
	if dst == nil {
		return "0.0.0.0/0"
	}
	return dst.String()
}
