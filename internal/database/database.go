// Package database persists confirmed accident events in SQLite.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"trafficwatch/internal/pipeline"
)

// Store handles SQLite database operations.
type Store struct {
	db *sql.DB
}

// AccidentEventRecord represents an accident event stored in the database.
type AccidentEventRecord struct {
	ID          string    `json:"id"`
	StreamID    string    `json:"stream_id"`
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}

// Open creates a new database connection and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accident_events (
			id TEXT PRIMARY KEY,
			stream_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			location TEXT,
			description TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accidents_stream_time ON accident_events(stream_id, timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_accidents_time ON accident_events(timestamp DESC)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// RecordAccident inserts one confirmed accident event.
func (s *Store) RecordAccident(ev *pipeline.AlertEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO accident_events (id, stream_id, timestamp, location, description) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.StreamID, ev.Timestamp.UTC(), ev.Location, ev.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to insert accident event: %w", err)
	}
	return nil
}

// RecentAccidents returns the most recent accident events, newest first.
func (s *Store) RecentAccidents(limit int) ([]AccidentEventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, stream_id, timestamp, location, description
		 FROM accident_events ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query accident events: %w", err)
	}
	defer rows.Close()

	events := make([]AccidentEventRecord, 0)
	for rows.Next() {
		var rec AccidentEventRecord
		if err := rows.Scan(&rec.ID, &rec.StreamID, &rec.Timestamp, &rec.Location, &rec.Description); err != nil {
			return nil, fmt.Errorf("failed to scan accident event: %w", err)
		}
		events = append(events, rec)
	}
	return events, rows.Err()
}
