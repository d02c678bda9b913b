// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package track persists accepted fused locations and heading samples in a
// local SQLite file so a session can be replayed or inspected later.
package track

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relabs-tech/geo_anchor/internal/geo"
	"github.com/relabs-tech/geo_anchor/internal/monitoring"
)

// schema.sql creates the fused_locations and headings tables.
//
//go:embed schema.sql
var schemaSQL string

// Store wraps the track database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Entry is one recorded fused location.
type Entry struct {
	ID       int64     `json:"id"`
	Recorded time.Time `json:"recorded"`
	Point    geo.Point `json:"point"`
	Source   string    `json:"source"`
}

// Heading is one recorded azimuth sample.
type Heading struct {
	Recorded    time.Time `json:"recorded"`
	Azimuth     float64   `json:"azimuth"`
	TrueAzimuth float64   `json:"true_azimuth"`
	Accuracy    int       `json:"accuracy"`
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("track: open %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("track: apply schema: %w", err)
	}

	monitoring.Logf("track: initialized database %s", path)
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordLocation stores an accepted fix. source names the producer (for
// example "gps" or "manual").
func (s *Store) RecordLocation(ctx context.Context, p geo.Point, source string) (int64, error) {
	fixTime := p.Time
	if fixTime.IsZero() {
		fixTime = s.now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO fused_locations (recorded_ns, fix_ns, latitude, longitude, altitude, accuracy_m, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.now().UnixNano(), fixTime.UnixNano(), p.Latitude, p.Longitude, p.Altitude, p.Accuracy, source)
	if err != nil {
		return 0, fmt.Errorf("track: insert location: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("track: location id: %w", err)
	}
	return id, nil
}

// RecentLocations returns up to limit entries, newest first.
func (s *Store) RecentLocations(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recorded_ns, fix_ns, latitude, longitude, altitude, accuracy_m, source
		FROM fused_locations
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("track: query locations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var recordedNs, fixNs int64
		if err := rows.Scan(&e.ID, &recordedNs, &fixNs,
			&e.Point.Latitude, &e.Point.Longitude, &e.Point.Altitude, &e.Point.Accuracy, &e.Source); err != nil {
			return nil, fmt.Errorf("track: scan location: %w", err)
		}
		e.Recorded = time.Unix(0, recordedNs).UTC()
		e.Point.Time = time.Unix(0, fixNs).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("track: iterate locations: %w", err)
	}
	return out, nil
}

// RecordHeading stores a smoothed azimuth sample.
func (s *Store) RecordHeading(ctx context.Context, h Heading) error {
	recorded := h.Recorded
	if recorded.IsZero() {
		recorded = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO headings (recorded_ns, azimuth, true_azimuth, accuracy)
		VALUES (?, ?, ?, ?)
	`, recorded.UnixNano(), h.Azimuth, h.TrueAzimuth, h.Accuracy)
	if err != nil {
		return fmt.Errorf("track: insert heading: %w", err)
	}
	return nil
}

// LatestHeading returns the most recent heading; ok is false when none has
// been recorded.
func (s *Store) LatestHeading(ctx context.Context) (h Heading, ok bool, err error) {
	var recordedNs int64
	err = s.db.QueryRowContext(ctx, `
		SELECT recorded_ns, azimuth, true_azimuth, accuracy
		FROM headings
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&recordedNs, &h.Azimuth, &h.TrueAzimuth, &h.Accuracy)
	if err == sql.ErrNoRows {
		return Heading{}, false, nil
	}
	if err != nil {
		return Heading{}, false, fmt.Errorf("track: latest heading: %w", err)
	}
	h.Recorded = time.Unix(0, recordedNs).UTC()
	return h, true, nil
}
