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

// Package iface holds the daemon's canonical interfaces and interface
// addresses. Scans update it inside a StartUpdate/EndUpdate bracket; entries
// not touched during a bracket are retired when it closes.
package iface

import (
	"net/netip"
	"sort"
	"sync"

	"github.com/we-are-mono/kernsync/daemon/logger"
	"github.com/we-are-mono/kernsync/types"
)

type addrKey struct {
	ifIndex   int
	ip        netip.Addr
	prefixLen int
}

type ifaceEntry struct {
	iface *types.Interface
	gen   uint64
}

type addrEntry struct {
	addr types.InterfaceAddress
	gen  uint64
}

// Table is the interface layer.
type Table struct {
	mu       sync.RWMutex
	log      logger.Logger
	gen      uint64
	updating bool

	ifaces map[int]*ifaceEntry
	addrs  map[addrKey]*addrEntry
}

// NewTable creates an empty interface table
func NewTable(log logger.Logger) *Table {
	if log == nil {
		log = logger.Nop()
	}
	return &Table{
		log:    log,
		ifaces: make(map[int]*ifaceEntry),
		addrs:  make(map[addrKey]*addrEntry),
	}
}

// StartUpdate opens a new update generation.
func (t *Table) StartUpdate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	t.updating = true
}

// EndUpdate closes the generation opened by StartUpdate and retires every
// interface and address that was not updated since.
func (t *Table) EndUpdate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.updating {
		return
	}
	t.updating = false

	for idx, e := range t.ifaces {
		if e.gen != t.gen {
			t.log.Info("Interface gone",
				logger.Field{Key: "interface", Value: e.iface.Name},
				logger.Field{Key: "index", Value: idx})
			t.deleteIfaceLocked(idx)
		}
	}

	for key, e := range t.addrs {
		if e.gen != t.gen {
			t.log.Info("Address gone",
				logger.Field{Key: "interface", Value: e.addr.IfName},
				logger.Field{Key: "address", Value: e.addr.IP.String()})
			delete(t.addrs, key)
		}
	}
}

// Update inserts or refreshes an interface and returns the stored object.
// The stored pointer stays the same across updates of the same index.
func (t *Table) Update(ifc types.Interface) *types.Interface {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A name moving to another index replaces the old interface
	for idx, e := range t.ifaces {
		if idx != ifc.Index && e.iface.Name == ifc.Name {
			t.deleteIfaceLocked(idx)
		}
	}

	e, ok := t.ifaces[ifc.Index]
	if !ok {
		stored := ifc
		e = &ifaceEntry{iface: &stored}
		t.ifaces[ifc.Index] = e
		t.log.Info("Interface added",
			logger.Field{Key: "interface", Value: ifc.Name},
			logger.Field{Key: "index", Value: ifc.Index},
			logger.Field{Key: "mtu", Value: ifc.MTU})
	} else if *e.iface != ifc {
		*e.iface = ifc
		t.log.Info("Interface changed",
			logger.Field{Key: "interface", Value: ifc.Name},
			logger.Field{Key: "index", Value: ifc.Index},
			logger.Field{Key: "mtu", Value: ifc.MTU})
	}
	e.gen = t.gen
	return e.iface
}

// FindByIndex returns the interface with the given index or nil
func (t *Table) FindByIndex(index int) *types.Interface {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if e, ok := t.ifaces[index]; ok {
		return e.iface
	}
	return nil
}

// FindByName returns the interface with the given name or nil
func (t *Table) FindByName(name string) *types.Interface {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range t.ifaces {
		if e.iface.Name == name {
			return e.iface
		}
	}
	return nil
}

// UpdateAddr inserts or refreshes an address of a known interface. It
// reports false when the owning interface is unknown.
func (t *Table) UpdateAddr(a types.InterfaceAddress) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.ifaces[a.IfIndex]; !ok {
		return false
	}

	key := addrKey{ifIndex: a.IfIndex, ip: a.IP, prefixLen: a.PrefixLen}
	e, ok := t.addrs[key]
	if !ok {
		e = &addrEntry{}
		t.addrs[key] = e
		t.log.Info("Address added",
			logger.Field{Key: "interface", Value: a.IfName},
			logger.Field{Key: "address", Value: a.IP.String()},
			logger.Field{Key: "prefix_len", Value: a.PrefixLen})
	}
	e.addr = a
	e.gen = t.gen
	return true
}

// DeleteAddr removes an address. It reports whether the address was known.
func (t *Table) DeleteAddr(a types.InterfaceAddress) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := addrKey{ifIndex: a.IfIndex, ip: a.IP, prefixLen: a.PrefixLen}
	if _, ok := t.addrs[key]; !ok {
		return false
	}
	delete(t.addrs, key)
	t.log.Info("Address removed",
		logger.Field{Key: "interface", Value: a.IfName},
		logger.Field{Key: "address", Value: a.IP.String()})
	return true
}

// Interfaces returns a copy of all interfaces ordered by index
func (t *Table) Interfaces() []types.Interface {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.Interface, 0, len(t.ifaces))
	for _, e := range t.ifaces {
		out = append(out, *e.iface)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Addrs returns a copy of all addresses ordered by interface and address
func (t *Table) Addrs() []types.InterfaceAddress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.InterfaceAddress, 0, len(t.addrs))
	for _, e := range t.addrs {
		out = append(out, e.addr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IfIndex != out[j].IfIndex {
			return out[i].IfIndex < out[j].IfIndex
		}
		return out[i].IP.Less(out[j].IP)
	})
	return out
}

// FindByGateway finds the interface that can reach the given gateway
// by checking which interface has an address on the same subnet.
func (t *Table) FindByGateway(gw netip.Addr) *types.Interface {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var best *types.Interface
	bestLen := -1
	for _, e := range t.addrs {
		prefix := netip.PrefixFrom(e.addr.IP, e.addr.PrefixLen)
		if !prefix.Contains(gw) || e.addr.PrefixLen <= bestLen {
			continue
		}
		if ifc, ok := t.ifaces[e.addr.IfIndex]; ok {
			best = ifc.iface
			bestLen = e.addr.PrefixLen
		}
	}
	return best
}

func (t *Table) deleteIfaceLocked(index int) {
	delete(t.ifaces, index)
	for key := range t.addrs {
		if key.ifIndex == index {
			delete(t.addrs, key)
		}
	}
}
