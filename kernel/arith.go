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
	"fmt"
	"net/netip"

	"github.com/we-are-mono/kernsync/types"
)

const addrBits = 32

// hostMask has the low 32-plen bits set. plen 0 gives all ones.
func hostMask(plen int) uint32 {
	shift := addrBits - plen
	return uint32(uint64(1)<<shift - 1)
}

func checkPrefix(addr netip.Addr, plen int) (uint32, error) {
	if !addr.Is4() {
		return 0, fmt.Errorf("%s: %w", addr, ErrUnsupportedFamily)
	}
	if plen < 0 || plen > addrBits {
		return 0, fmt.Errorf("prefix length %d: %w", plen, ErrBadPrefixLen)
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), nil
}

func fromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

// NetworkPrefix keeps the high plen bits of addr and zeroes the rest.
func NetworkPrefix(addr netip.Addr, plen int) (netip.Addr, error) {
	v, err := checkPrefix(addr, plen)
	if err != nil {
		return netip.Addr{}, err
	}
	return fromUint32(v &^ hostMask(plen)), nil
}

// Broadcast keeps the high plen bits of addr and sets the rest.
func Broadcast(addr netip.Addr, plen int) (netip.Addr, error) {
	v, err := checkPrefix(addr, plen)
	if err != nil {
		return netip.Addr{}, err
	}
	return fromUint32(v | hostMask(plen)), nil
}

// ClassifyScope derives the scope of an IPv4 address from its value.
func ClassifyScope(addr netip.Addr) types.Scope {
	if !addr.Is4() {
		return types.ScopeUndefined
	}

	b := addr.As4()
	a := binary.BigEndian.Uint32(b[:])
	top := a >> 24

	switch {
	case top != 0 && top <= 0xdf:
		switch {
		case top == 0x7f:
			return types.ScopeHost
		case top == 0x0a,
			a&0xffff0000 == 0xc0a80000,
			a&0xfff00000 == 0xac100000:
			return types.ScopeSite
		case a&0xffff0000 == 0xa9fe0000:
			return types.ScopeLink
		default:
			return types.ScopeUniverse
		}
	case top >= 0xe0 && top <= 0xef:
		return types.ScopeUniverse
	case a == 0xffffffff:
		return types.ScopeLink
	default:
		return types.ScopeUndefined
	}
}
