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

package rib

import (
	"net/netip"
	"sort"
	"sync"

	"github.com/we-are-mono/kernsync/daemon/logger"
)

// BestChangeFunc is called after the best route of a network changed.
// Either route may be nil.
type BestChangeFunc func(n *Network, newBest, oldBest *Route)

type withdrawal struct {
	route       *Route
	replacement *Route
}

type change struct {
	net              *Network
	newBest, oldBest *Route
}

// Table is one routing table of the daemon
type Table struct {
	name string
	log  logger.Logger

	mu      sync.RWMutex
	nets    map[netip.Prefix]*Network
	pending []withdrawal
	hooks   []BestChangeFunc
}

// NewTable creates an empty routing table
func NewTable(name string, log logger.Logger) *Table {
	if log == nil {
		log = logger.Nop()
	}
	return &Table{
		name: name,
		log:  log.With(logger.Field{Key: "table", Value: name}),
		nets: make(map[netip.Prefix]*Network),
	}
}

// Name returns the table name
func (t *Table) Name() string {
	return t.name
}

// OnBestChange registers a hook run after every best route change
func (t *Table) OnBestChange(fn BestChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// Get returns the network for prefix, creating it if needed
func (t *Table) Get(prefix netip.Prefix) *Network {
	prefix = prefix.Masked()

	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nets[prefix]
	if !ok {
		n = &Network{Prefix: prefix}
		t.nets[prefix] = n
	}
	return n
}

// Find returns the network for prefix or nil
func (t *Table) Find(prefix netip.Prefix) *Network {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nets[prefix.Masked()]
}

// Attach adds a route to its network. A route from the same protocol
// already attached to the network is replaced.
func (t *Table) Attach(r *Route) {
	if r == nil || r.Net == nil || r.Attrs == nil {
		t.log.Warn("Ignoring incomplete route")
		return
	}

	t.mu.Lock()
	n := t.adopt(r.Net)
	r.Net = n

	replaced := false
	for i, old := range n.routes {
		if old.Attrs.Proto == r.Attrs.Proto {
			n.routes[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		n.routes = append(n.routes, r)
	}
	ch, changed := t.reselect(n)
	hooks := t.hooks
	t.mu.Unlock()

	t.log.Debug("Route attached",
		logger.Field{Key: "network", Value: n.Prefix.String()},
		logger.Field{Key: "proto", Value: r.Attrs.Proto},
		logger.Field{Key: "gateway", Value: r.Attrs.Gateway.String()},
		logger.Field{Key: "replaced", Value: replaced})

	if changed {
		notify(hooks, ch)
	}
}

// Detach removes the route of the given protocol from a network. It reports
// whether a route was removed.
func (t *Table) Detach(net *Network, proto string) bool {
	return t.detach(net, proto, func(*Route) bool { return true })
}

// DetachRoute removes the route attached for r's protocol, but only while
// it still forwards via r's gateway with r's kernel origin. A protocol that
// moved on to another route to the network keeps it.
func (t *Table) DetachRoute(r *Route) bool {
	if r == nil || r.Net == nil || r.Attrs == nil {
		return false
	}
	return t.detach(r.Net, r.Attrs.Proto, func(held *Route) bool {
		return held.Attrs.Gateway == r.Attrs.Gateway && held.Kernel.Proto == r.Kernel.Proto
	})
}

func (t *Table) detach(net *Network, proto string, match func(*Route) bool) bool {
	if net == nil {
		return false
	}

	t.mu.Lock()
	n, ok := t.nets[net.Prefix]
	if !ok {
		t.mu.Unlock()
		return false
	}

	idx := -1
	for i, r := range n.routes {
		if r.Attrs.Proto == proto {
			idx = i
			break
		}
	}
	if idx < 0 || !match(n.routes[idx]) {
		if len(n.routes) == 0 {
			delete(t.nets, n.Prefix)
		}
		t.mu.Unlock()
		if idx >= 0 {
			t.log.Debug("Withdrawn route no longer attached",
				logger.Field{Key: "network", Value: n.Prefix.String()},
				logger.Field{Key: "proto", Value: proto})
		}
		return false
	}

	n.routes = append(n.routes[:idx], n.routes[idx+1:]...)
	ch, changed := t.reselect(n)
	if len(n.routes) == 0 {
		delete(t.nets, n.Prefix)
	}
	hooks := t.hooks
	t.mu.Unlock()

	t.log.Debug("Route detached",
		logger.Field{Key: "network", Value: n.Prefix.String()},
		logger.Field{Key: "proto", Value: proto})

	if changed {
		notify(hooks, ch)
	}
	return true
}

// RouteObserved takes a route seen in an external source and attaches it
// right away.
func (t *Table) RouteObserved(r *Route) {
	t.Attach(r)
}

// RouteWithdrawn queues the withdrawal of a route. With a nil replacement
// the route's protocol loses its route to the network if it is still the
// withdrawn one; otherwise the replacement is attached. Queued withdrawals
// are applied by Flush.
func (t *Table) RouteWithdrawn(r *Route, replacement *Route) {
	if r == nil || r.Net == nil || r.Attrs == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, withdrawal{route: r, replacement: replacement})
}

// Pending returns the number of queued withdrawals
func (t *Table) Pending() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pending)
}

// Flush applies the queued withdrawals and returns how many were applied
func (t *Table) Flush() int {
	t.mu.Lock()
	queue := t.pending
	t.pending = nil
	t.mu.Unlock()

	for _, w := range queue {
		if w.replacement != nil {
			t.Attach(w.replacement)
			continue
		}
		t.DetachRoute(w.route)
	}
	return len(queue)
}

// RemoveProto detaches every route owned by proto, as when the protocol
// stops. It returns the number of routes removed.
func (t *Table) RemoveProto(proto string) int {
	removed := 0
	for _, n := range t.Networks() {
		if t.Detach(n, proto) {
			removed++
		}
	}
	return removed
}

// Networks returns all networks ordered by prefix
func (t *Table) Networks() []*Network {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Network, 0, len(t.nets))
	for _, n := range t.nets {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Prefix, out[j].Prefix
		if a.Addr() != b.Addr() {
			return a.Addr().Less(b.Addr())
		}
		return a.Bits() < b.Bits()
	})
	return out
}

// Lookup returns the best route of the longest prefix containing addr
func (t *Table) Lookup(addr netip.Addr) *Route {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var candidate *Network
	for _, n := range t.nets {
		if n.best == nil || !n.Prefix.Contains(addr) {
			continue
		}
		if candidate == nil || candidate.Prefix.Bits() < n.Prefix.Bits() {
			candidate = n
		}
	}

	if candidate == nil {
		return nil
	}
	return candidate.best
}

// adopt maps a network object onto the one the table holds for its prefix
func (t *Table) adopt(n *Network) *Network {
	prefix := n.Prefix.Masked()
	if held, ok := t.nets[prefix]; ok {
		return held
	}
	n.Prefix = prefix
	t.nets[prefix] = n
	return n
}

func (t *Table) reselect(n *Network) (change, bool) {
	old := n.best
	n.best = n.selectBest()
	if sameRoute(n.best, old) {
		return change{}, false
	}
	return change{net: n, newBest: n.best, oldBest: old}, true
}

// sameRoute reports whether two routes forward identically
func sameRoute(a, b *Route) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a.Attrs == *b.Attrs && a.Kernel == b.Kernel
}

func notify(hooks []BestChangeFunc, ch change) {
	for _, fn := range hooks {
		fn(ch.net, ch.newBest, ch.oldBest)
	}
}
