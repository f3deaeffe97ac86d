// Package storage keeps a local archive of fetched conversation history so
// past exchanges stay readable without a network round-trip.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"micli/conversation"
)

// HistoryArchive is a sqlite-backed archive of conversation records, keyed
// by the server-assigned request ID so repeated fetches upsert instead of
// duplicating.
type HistoryArchive struct {
	db *sql.DB
}

// OpenHistoryArchive opens (and if needed creates) the archive database in
// the data directory.
func OpenHistoryArchive(dataDir string) (*HistoryArchive, error) {
	dbPath := filepath.Join(dataDir, "history.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	archive := &HistoryArchive{db: db}

	if err := archive.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return archive, nil
}

func (h *HistoryArchive) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		request_id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		query TEXT NOT NULL,
		answers TEXT NOT NULL,
		time_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_device_time ON records(device_id, time_ms);
	`

	_, err := h.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (h *HistoryArchive) Close() error {
	return h.db.Close()
}

// Save upserts the given records for a device. Answers are stored in their
// flattened wire encoding, so unknown payload kinds survive archiving
// unchanged.
func (h *HistoryArchive) Save(deviceID string, records []conversation.Record) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO records (request_id, device_id, query, answers, time_ms)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		answers, err := json.Marshal(record.Answers)
		if err != nil {
			return fmt.Errorf("failed to encode answers for %s: %w", record.RequestID, err)
		}
		if _, err := stmt.Exec(
			record.RequestID,
			deviceID,
			record.Query,
			string(answers),
			record.Time.Time().UnixMilli(),
		); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", record.RequestID, err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit archived records for a device, newest first.
func (h *HistoryArchive) Recent(deviceID string, limit int) ([]conversation.Record, error) {
	rows, err := h.db.Query(`
		SELECT request_id, query, answers, time_ms
		FROM records
		WHERE device_id = ?
		ORDER BY time_ms DESC
		LIMIT ?
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []conversation.Record
	for rows.Next() {
		var (
			record  conversation.Record
			answers string
			timeMS  int64
		)
		if err := rows.Scan(&record.RequestID, &record.Query, &answers, &timeMS); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(answers), &record.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers for %s: %w", record.RequestID, err)
		}
		record.Time = conversation.Millis(time.UnixMilli(timeMS))
		records = append(records, record)
	}
	return records, rows.Err()
}

// Count returns the number of archived records for a device.
func (h *HistoryArchive) Count(deviceID string) (int, error) {
	var n int
	err := h.db.QueryRow(`SELECT COUNT(*) FROM records WHERE device_id = ?`, deviceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}
