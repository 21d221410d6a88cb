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

// Package history keeps a record of scan passes and kernel exports in a
// SQLite database so that the CLI can show what the daemon did recently.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite3 driver
)

// DefaultMaxEntries bounds each history table
const DefaultMaxEntries = 10000

const timeLayout = time.RFC3339Nano

// ScanRecord is one finished scan pass
type ScanRecord struct {
	ID        int64         `json:"id"`
	Pass      string        `json:"pass"`
	Kind      string        `json:"kind"` // kif or krt
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Observed  int           `json:"observed"`
	Withdrawn int           `json:"withdrawn"`
	Skipped   int           `json:"skipped"`
	Error     string        `json:"error,omitempty"`
}

// ExportRecord is one attempt to change a kernel table
type ExportRecord struct {
	ID      int64     `json:"id"`
	Time    time.Time `json:"time"`
	Table   int       `json:"table"`
	Network string    `json:"network"`
	Op      string    `json:"op"` // install or remove
	Gateway string    `json:"gateway"`
	Error   string    `json:"error,omitempty"`
}

// Store manages the history database
type Store struct {
	path       string
	db         *sql.DB
	maxEntries int
}

// Open opens or creates the history database at path
func Open(path string) (*Store, error) {
	s := &Store{path: path, maxEntries: DefaultMaxEntries}

	if err := s.connect(); err != nil {
		return nil, err
	}

	if err := s.initializeSchema(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// SetMaxEntries changes how many rows each table keeps. Zero keeps everything.
func (s *Store) SetMaxEntries(n int) {
	s.maxEntries = n
}

func (s *Store) connect() error {
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}

	// One writer; the daemon loop is the only one anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping history database: %w", err)
	}

	s.db = db
	return nil
}

func (s *Store) initializeSchema() error {
	scansSQL := `
		CREATE TABLE IF NOT EXISTS scans (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			pass        TEXT NOT NULL,
			kind        TEXT NOT NULL,
			started     TEXT NOT NULL,
			duration_ns INTEGER NOT NULL,
			observed    INTEGER NOT NULL,
			withdrawn   INTEGER NOT NULL,
			skipped     INTEGER NOT NULL,
			error       TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_scans_kind ON scans(kind);
	`
	if _, err := s.db.Exec(scansSQL); err != nil {
		return fmt.Errorf("failed to create scans table: %w", err)
	}

	exportsSQL := `
		CREATE TABLE IF NOT EXISTS exports (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			time      TEXT NOT NULL,
			tbl       INTEGER NOT NULL,
			network   TEXT NOT NULL,
			op        TEXT NOT NULL,
			gateway   TEXT NOT NULL,
			error     TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_exports_network ON exports(network);
	`
	if _, err := s.db.Exec(exportsSQL); err != nil {
		return fmt.Errorf("failed to create exports table: %w", err)
	}

	return nil
}

// RecordScan stores a finished scan pass
func (s *Store) RecordScan(r ScanRecord) error {
	insertSQL := `INSERT INTO scans (pass, kind, started, duration_ns, observed, withdrawn, skipped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(insertSQL, r.Pass, r.Kind, r.Started.UTC().Format(timeLayout),
		int64(r.Duration), r.Observed, r.Withdrawn, r.Skipped, nullString(r.Error))
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return s.prune("scans")
}

// RecordExport stores one kernel table change attempt
func (s *Store) RecordExport(r ExportRecord) error {
	insertSQL := `INSERT INTO exports (time, tbl, network, op, gateway, error) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(insertSQL, r.Time.UTC().Format(timeLayout), r.Table, r.Network,
		r.Op, r.Gateway, nullString(r.Error))
	if err != nil {
		return fmt.Errorf("failed to insert export: %w", err)
	}
	return s.prune("exports")
}

// Scans returns recent scan passes, newest first. An empty kind matches all.
func (s *Store) Scans(kind string, limit int) ([]ScanRecord, error) {
	query := "SELECT id, pass, kind, started, duration_ns, observed, withdrawn, skipped, error FROM scans WHERE 1=1"
	args := []interface{}{}

	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		var r ScanRecord
		var started string
		var duration int64
		var errText sql.NullString
		if err := rows.Scan(&r.ID, &r.Pass, &r.Kind, &started, &duration,
			&r.Observed, &r.Withdrawn, &r.Skipped, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.Started, _ = time.Parse(timeLayout, started)
		r.Duration = time.Duration(duration)
		r.Error = errText.String
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scans: %w", err)
	}
	return records, nil
}

// Exports returns recent export attempts, newest first. An empty network
// matches all.
func (s *Store) Exports(network string, limit int) ([]ExportRecord, error) {
	query := "SELECT id, time, tbl, network, op, gateway, error FROM exports WHERE 1=1"
	args := []interface{}{}

	if network != "" {
		query += " AND network = ?"
		args = append(args, network)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	var records []ExportRecord
	for rows.Next() {
		var r ExportRecord
		var when string
		var errText sql.NullString
		if err := rows.Scan(&r.ID, &when, &r.Table, &r.Network, &r.Op, &r.Gateway, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.Time, _ = time.Parse(timeLayout, when)
		r.Error = errText.String
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exports: %w", err)
	}
	return records, nil
}

// Stats returns row counts and the database size
func (s *Store) Stats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	for _, table := range []string{"scans", "exports"} {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table+"_count"] = count
	}

	fileInfo, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat database file: %w", err)
	}
	stats["database_size_bytes"] = fileInfo.Size()
	stats["database_path"] = s.path

	return stats, nil
}

// Vacuum compacts the database to reclaim unused space
func (s *Store) Vacuum() error {
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// prune drops the oldest rows of table beyond maxEntries
func (s *Store) prune(table string) error {
	if s.maxEntries <= 0 {
		return nil
	}
	pruneSQL := "DELETE FROM " + table + " WHERE id <= (SELECT id FROM " + table +
		" ORDER BY id DESC LIMIT 1 OFFSET ?)"
	if _, err := s.db.Exec(pruneSQL, s.maxEntries); err != nil {
		return fmt.Errorf("failed to prune %s: %w", table, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
