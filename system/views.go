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
	"sort"

	"github.com/we-are-mono/kernsync/types"
)

// idAllocator hands out identifiers that stay unique for the store lifetime
type idAllocator struct {
	next int
}

func (a *idAllocator) alloc() int {
	a.next++
	return a.next
}

// recordView keeps stable identifiers for kernel records and tracks which of
// them disappeared. Netlink only reports what exists now, so the deleted view
// is synthesized: a record that was active at one refresh and is missing at
// a later one becomes a tombstone. Tombstones accumulate until the deleted
// view is listed, and the listed set stays readable until the next listing.
type recordView[K comparable, V any] struct {
	ids     *idAllocator
	byKey   map[K]int
	keys    map[int]K
	active  map[int]V
	pending map[int]V
	deleted map[int]V
}

func newRecordView[K comparable, V any](ids *idAllocator) *recordView[K, V] {
	return &recordView[K, V]{
		ids:     ids,
		byKey:   make(map[K]int),
		keys:    make(map[int]K),
		active:  make(map[int]V),
		pending: make(map[int]V),
		deleted: make(map[int]V),
	}
}

func (v *recordView[K, V]) idFor(key K) int {
	if id, ok := v.byKey[key]; ok {
		return id
	}
	id := v.ids.alloc()
	v.byKey[key] = id
	v.keys[id] = key
	return id
}

// refresh replaces the active set and returns its identifiers in ascending order
func (v *recordView[K, V]) refresh(current map[K]V) []int {
	next := make(map[int]V, len(current))
	for key, rec := range current {
		id := v.idFor(key)
		next[id] = rec
		// Came back before anyone noticed it was gone
		delete(v.pending, id)
	}

	for id, rec := range v.active {
		if _, ok := next[id]; !ok {
			v.pending[id] = rec
		}
	}

	v.active = next
	return sortedIDs(next)
}

// add inserts a record into the active set, as after a successful create
func (v *recordView[K, V]) add(key K, rec V) int {
	id := v.idFor(key)
	v.active[id] = rec
	delete(v.pending, id)
	return id
}

// remove moves an active record to the tombstones
func (v *recordView[K, V]) remove(id int) bool {
	rec, ok := v.active[id]
	if !ok {
		return false
	}
	delete(v.active, id)
	v.pending[id] = rec
	return true
}

// takeDeleted publishes the accumulated tombstones as the deleted view
func (v *recordView[K, V]) takeDeleted() []int {
	for id := range v.deleted {
		if _, live := v.active[id]; live {
			continue
		}
		if _, again := v.pending[id]; again {
			continue
		}
		delete(v.byKey, v.keys[id])
		delete(v.keys, id)
	}

	v.deleted = v.pending
	v.pending = make(map[int]V)
	return sortedIDs(v.deleted)
}

func (v *recordView[K, V]) get(id int, view types.Status) (V, bool) {
	var rec V
	var ok bool
	switch view {
	case types.StatusActive:
		rec, ok = v.active[id]
	case types.StatusDeleted:
		rec, ok = v.deleted[id]
	}
	return rec, ok
}

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
