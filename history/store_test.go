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

package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := setupTestStore(t)

	for _, table := range []string{"scans", "exports"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "%s table should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestOpenTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordScan(ScanRecord{Pass: "a", Kind: "krt", Started: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	scans, err := s.Scans("", 0)
	require.NoError(t, err)
	assert.Len(t, scans, 1)
}

func TestRecordScan(t *testing.T) {
	s := setupTestStore(t)
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordScan(ScanRecord{
		Pass: "p1", Kind: "kif", Started: started, Duration: 3 * time.Millisecond, Observed: 4,
	}))
	require.NoError(t, s.RecordScan(ScanRecord{
		Pass: "p2", Kind: "krt", Started: started.Add(time.Minute), Duration: time.Second,
		Observed: 2, Withdrawn: 1, Skipped: 1, Error: "list failed",
	}))

	all, err := s.Scans("", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "p2", all[0].Pass, "newest first")

	krt, err := s.Scans("krt", 10)
	require.NoError(t, err)
	require.Len(t, krt, 1)
	r := krt[0]
	assert.Equal(t, started.Add(time.Minute), r.Started)
	assert.Equal(t, time.Second, r.Duration)
	assert.Equal(t, 2, r.Observed)
	assert.Equal(t, 1, r.Withdrawn)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, "list failed", r.Error)

	kif, err := s.Scans("kif", 10)
	require.NoError(t, err)
	require.Len(t, kif, 1)
	assert.Empty(t, kif[0].Error)
}

func TestRecordExport(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now()

	require.NoError(t, s.RecordExport(ExportRecord{
		Time: now, Table: 254, Network: "10.0.0.0/8", Op: "install", Gateway: "192.168.1.1",
	}))
	require.NoError(t, s.RecordExport(ExportRecord{
		Time: now, Table: 254, Network: "172.16.0.0/12", Op: "remove", Gateway: "192.168.1.1",
		Error: "duplicate route",
	}))

	all, err := s.Exports("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := s.Exports("10.0.0.0/8", 0)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "install", one[0].Op)
	assert.Equal(t, 254, one[0].Table)
	assert.True(t, now.Equal(one[0].Time))
}

func TestLimit(t *testing.T) {
	s := setupTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordScan(ScanRecord{Pass: fmt.Sprint(i), Kind: "krt", Started: time.Now()}))
	}

	scans, err := s.Scans("krt", 2)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "4", scans[0].Pass)
	assert.Equal(t, "3", scans[1].Pass)
}

func TestPrune(t *testing.T) {
	s := setupTestStore(t)
	s.SetMaxEntries(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordScan(ScanRecord{Pass: fmt.Sprint(i), Kind: "krt", Started: time.Now()}))
	}

	scans, err := s.Scans("", 0)
	require.NoError(t, err)
	require.Len(t, scans, 3)
	assert.Equal(t, "2", scans[2].Pass, "oldest rows are dropped")
}

func TestStatsAndVacuum(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.RecordScan(ScanRecord{Pass: "p", Kind: "kif", Started: time.Now()}))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats["scans_count"])
	assert.Equal(t, 0, stats["exports_count"])
	assert.Equal(t, s.path, stats["database_path"])

	assert.NoError(t, s.Vacuum())
}

func TestCloseNil(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}
