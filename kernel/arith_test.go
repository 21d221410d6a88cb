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
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/we-are-mono/kernsync/types"
)

func toUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func TestNetworkPrefixAndBroadcast(t *testing.T) {
	tests := []struct {
		addr      string
		plen      int
		prefix    string
		broadcast string
	}{
		{"192.168.1.10", 24, "192.168.1.0", "192.168.1.255"},
		{"10.1.2.3", 8, "10.0.0.0", "10.255.255.255"},
		{"172.16.5.4", 12, "172.16.0.0", "172.31.255.255"},
		{"192.168.1.10", 32, "192.168.1.10", "192.168.1.10"},
		{"192.168.1.10", 31, "192.168.1.10", "192.168.1.11"},
		{"192.168.1.10", 0, "0.0.0.0", "255.255.255.255"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			addr := netip.MustParseAddr(tt.addr)

			prefix, err := NetworkPrefix(addr, tt.plen)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix, prefix.String())

			bcast, err := Broadcast(addr, tt.plen)
			require.NoError(t, err)
			assert.Equal(t, tt.broadcast, bcast.String())
		})
	}
}

// TestPrefixBitProperties checks that the high bits are kept and the low
// bits are cleared or set, for every prefix length.
func TestPrefixBitProperties(t *testing.T) {
	addrs := []string{"0.0.0.0", "255.255.255.255", "192.168.1.10", "10.20.30.40", "128.0.0.1", "1.2.3.4"}

	for _, s := range addrs {
		addr := netip.MustParseAddr(s)
		a := toUint32(addr)

		for plen := 1; plen <= 32; plen++ {
			prefix, err := NetworkPrefix(addr, plen)
			require.NoError(t, err)
			bcast, err := Broadcast(addr, plen)
			require.NoError(t, err)

			low := uint32(uint64(1)<<(32-plen) - 1)
			p, b := toUint32(prefix), toUint32(bcast)

			assert.Zero(t, p&low, "%s/%d prefix low bits", s, plen)
			assert.Equal(t, a&^low, p&^low, "%s/%d prefix high bits", s, plen)
			assert.Equal(t, low, b&low, "%s/%d broadcast low bits", s, plen)
			assert.Equal(t, a&^low, b&^low, "%s/%d broadcast high bits", s, plen)
		}

		prefix, _ := NetworkPrefix(addr, 32)
		bcast, _ := Broadcast(addr, 32)
		assert.Equal(t, addr, prefix)
		assert.Equal(t, addr, bcast)
	}
}

func TestPrefixErrors(t *testing.T) {
	v4 := netip.MustParseAddr("192.168.1.10")

	_, err := NetworkPrefix(v4, 33)
	assert.ErrorIs(t, err, ErrBadPrefixLen)
	_, err = Broadcast(v4, -1)
	assert.ErrorIs(t, err, ErrBadPrefixLen)

	_, err = NetworkPrefix(netip.MustParseAddr("2001:db8::1"), 64)
	assert.ErrorIs(t, err, ErrUnsupportedFamily)
}

func TestClassifyScope(t *testing.T) {
	tests := []struct {
		addr string
		want types.Scope
	}{
		{"127.0.0.1", types.ScopeHost},
		{"10.1.2.3", types.ScopeSite},
		{"172.16.0.1", types.ScopeSite},
		{"172.31.255.254", types.ScopeSite},
		{"172.32.0.1", types.ScopeUniverse},
		{"192.168.1.10", types.ScopeSite},
		{"169.254.10.1", types.ScopeLink},
		{"8.8.8.8", types.ScopeUniverse},
		{"224.0.0.5", types.ScopeUniverse},
		{"255.255.255.255", types.ScopeLink},
		{"0.0.0.0", types.ScopeUndefined},
		{"240.0.0.1", types.ScopeUndefined},
		{"2001:db8::1", types.ScopeUndefined},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyScope(netip.MustParseAddr(tt.addr)))
		})
	}
}
