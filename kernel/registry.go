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
	"sort"
	"sync"
)

// Registry maps kernel table ids to the protocol instance that syncs them.
// Bind does not arbitrate: the last writer wins. Duplicate table ids are
// rejected when the configuration is validated.
type Registry struct {
	mu     sync.RWMutex
	tables map[int]*Protocol
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tables: make(map[int]*Protocol)}
}

// Bind makes p the owner of table id
func (r *Registry) Bind(id int, p *Protocol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[id] = p
}

// Unbind clears table id if p still owns it
func (r *Registry) Unbind(id int, p *Protocol) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tables[id] != p {
		return false
	}
	delete(r.tables, id)
	return true
}

// Lookup returns the owner of table id or nil
func (r *Registry) Lookup(id int) *Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[id]
}

// Tables returns the bound table ids in ascending order
func (r *Registry) Tables() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
