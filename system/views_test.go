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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/we-are-mono/kernsync/types"
)

func TestRecordViewStableIDs(t *testing.T) {
	var ids idAllocator
	v := newRecordView[string, int](&ids)

	first := v.refresh(map[string]int{"a": 1, "b": 2})
	second := v.refresh(map[string]int{"a": 10, "b": 20})
	assert.Equal(t, first, second, "same keys keep their identifiers")

	rec, ok := v.get(first[0], types.StatusActive)
	require.True(t, ok)
	assert.Contains(t, []int{10, 20}, rec)
}

func TestRecordViewTombstones(t *testing.T) {
	var ids idAllocator
	v := newRecordView[string, int](&ids)

	active := v.refresh(map[string]int{"a": 1, "b": 2})
	require.Len(t, active, 2)
	idA := v.byKey["a"]

	v.refresh(map[string]int{"b": 2})
	// A second refresh must not lose the tombstone
	v.refresh(map[string]int{"b": 2})

	deleted := v.takeDeleted()
	assert.Equal(t, []int{idA}, deleted)

	rec, ok := v.get(idA, types.StatusDeleted)
	require.True(t, ok)
	assert.Equal(t, 1, rec)
	_, ok = v.get(idA, types.StatusActive)
	assert.False(t, ok)

	// Published tombstones are gone after the next listing
	assert.Empty(t, v.takeDeleted())
	_, ok = v.get(idA, types.StatusDeleted)
	assert.False(t, ok)
}

func TestRecordViewReappearing(t *testing.T) {
	var ids idAllocator
	v := newRecordView[string, int](&ids)

	v.refresh(map[string]int{"a": 1})
	idA := v.byKey["a"]

	v.refresh(map[string]int{})
	v.refresh(map[string]int{"a": 1})

	assert.Empty(t, v.takeDeleted(), "a record that came back is not deleted")
	assert.Equal(t, idA, v.byKey["a"])
}

func TestRecordViewAddRemove(t *testing.T) {
	var ids idAllocator
	v := newRecordView[string, int](&ids)

	id := v.add("a", 1)
	_, ok := v.get(id, types.StatusActive)
	assert.True(t, ok)

	assert.True(t, v.remove(id))
	assert.False(t, v.remove(id), "already removed")

	assert.Equal(t, []int{id}, v.takeDeleted())
}

func TestRecordViewSharedAllocator(t *testing.T) {
	var ids idAllocator
	a := newRecordView[string, int](&ids)
	b := newRecordView[string, int](&ids)

	idA := a.add("x", 1)
	idB := b.add("x", 1)
	assert.NotEqual(t, idA, idB, "identifiers are unique across views")
}
