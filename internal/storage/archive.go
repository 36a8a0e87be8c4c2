// Package storage persists bus events to a SQLite archive so activity
// survives daemon restarts. The in-memory bus history is the hot path; the
// archive is the durable record behind `driftwatch activity` and `tail`.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"driftwatch/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    timestamp   INTEGER NOT NULL,
    source      TEXT NOT NULL,
    severity    TEXT NOT NULL,
    message     TEXT NOT NULL,
    data        TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type, timestamp);
`

// Archive is the SQLite-backed event store.
type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive database at path and applies the schema.
func Open(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Record persists one event. Event data is stored as JSON.
func (a *Archive) Record(e *events.Event) error {
	var data []byte
	if e.Data != nil {
		var err error
		data, err = json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
	}

	_, err := a.db.Exec(`
		INSERT OR IGNORE INTO events (id, type, timestamp, source, severity, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Timestamp.UnixNano(), e.Source, string(e.Severity), e.Message, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Attach subscribes the archive to the bus so every published event is
// persisted. Write failures are reported to stderr and never propagate to
// publishers.
func (a *Archive) Attach(bus *events.Bus) events.Subscription {
	return bus.SubscribeAll(func(e *events.Event) {
		if err := a.Record(e); err != nil {
			fmt.Fprintf(os.Stderr, "driftwatch: archive write failed: %v\n", err)
		}
	})
}

// Recent returns the most recent archived events, newest first. A zero or
// negative limit means no limit; an empty typeFilter matches every type.
func (a *Archive) Recent(limit int, typeFilter events.EventType) ([]*events.Event, error) {
	query := `
		SELECT id, type, timestamp, source, severity, message, data
		FROM events`
	args := []interface{}{}
	if typeFilter != "" {
		query += ` WHERE type = ?`
		args = append(args, string(typeFilter))
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Since returns all archived events at or after t, oldest first.
func (a *Archive) Since(t time.Time) ([]*events.Event, error) {
	rows, err := a.db.Query(`
		SELECT id, type, timestamp, source, severity, message, data
		FROM events
		WHERE timestamp >= ?
		ORDER BY timestamp ASC`, t.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query events since: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// CountByType returns how many archived events exist per event type.
func (a *Archive) CountByType() (map[events.EventType]int, error) {
	rows, err := a.db.Query(`SELECT type, COUNT(*) FROM events GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[events.EventType]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		counts[events.EventType(typ)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event counts: %w", err)
	}
	return counts, nil
}

// Prune deletes archived events older than cutoff and returns how many rows
// were removed.
func (a *Archive) Prune(cutoff time.Time) (int64, error) {
	res, err := a.db.Exec(`DELETE FROM events WHERE timestamp < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return deleted, nil
}

func scanEvents(rows *sql.Rows) ([]*events.Event, error) {
	var out []*events.Event
	for rows.Next() {
		var (
			e         events.Event
			typ, sev  string
			timestamp int64
			data      sql.NullString
		)
		if err := rows.Scan(&e.ID, &typ, &timestamp, &e.Source, &sev, &e.Message, &data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = events.EventType(typ)
		e.Severity = events.EventSeverity(sev)
		e.Timestamp = time.Unix(0, timestamp)
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				return nil, fmt.Errorf("unmarshal event data: %w", err)
			}
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
