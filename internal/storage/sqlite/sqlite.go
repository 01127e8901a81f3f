// Package sqlite stores the event log and node records in a single local file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AaronLay10/SignalGrid/internal/events"
	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
	event_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         DATETIME NOT NULL,
	level      TEXT NOT NULL,
	event      TEXT NOT NULL,
	msg        TEXT,
	fields     TEXT,
	grid_id    TEXT NOT NULL,
	session_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);

CREATE TABLE IF NOT EXISTS node_states (
	grid_id    TEXT NOT NULL,
	x          INTEGER NOT NULL,
	y          INTEGER NOT NULL,
	z          INTEGER NOT NULL,
	type       TEXT NOT NULL,
	facing     TEXT NOT NULL,
	powered    INTEGER NOT NULL,
	scd        INTEGER NOT NULL,
	svd        INTEGER NOT NULL,
	links      TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (grid_id, x, y, z)
);
`

// Store wraps a sql.DB holding one or more grids.
type Store struct {
	conn   *sql.DB
	gridID string
}

// Open opens (or creates) the database file and applies the schema.
func Open(path, gridID string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{conn: conn, gridID: gridID}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Append inserts one event.
func (s *Store) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON sql.NullString
	if fields != nil {
		b, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("sqlite: marshal fields: %w", err)
		}
		fieldsJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.conn.Exec(
		`INSERT INTO events (ts, level, event, msg, fields, grid_id, session_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts, level, event, nullable(msg), fieldsJSON, s.gridID, nullable(sessionID))
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CountEvents returns the number of stored events of the grid.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE grid_id = ?`, s.gridID).Scan(&n)
	return n, err
}

// History returns the newest limit events of the grid, oldest first.
func (s *Store) History(ctx context.Context, limit int) ([]events.Event, error) {
	limit = min(max(limit, 1), 10000)
	rows, err := s.conn.QueryContext(ctx,
		`SELECT ts, level, event, msg, fields FROM events WHERE grid_id = ? ORDER BY event_id DESC LIMIT ?`,
		s.gridID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var ts time.Time
		var msg, fields sql.NullString
		if err := rows.Scan(&ts, &e.Level, &e.Name, &msg, &fields); err != nil {
			return nil, fmt.Errorf("sqlite: scan event: %w", err)
		}
		e.Timestamp = ts.UTC().Format(time.RFC3339Nano)
		e.Message = msg.String
		if fields.Valid {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				return nil, fmt.Errorf("sqlite: decode fields: %w", err)
			}
		}
		out = append(out, e)
	}
	slices.Reverse(out)
	return out, rows.Err()
}

// SaveNodes upserts the given records in one transaction.
func (s *Store) SaveNodes(ctx context.Context, recs []node.Record) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO node_states (grid_id, x, y, z, type, facing, powered, scd, svd, links, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (grid_id, x, y, z) DO UPDATE SET
			type = excluded.type,
			facing = excluded.facing,
			powered = excluded.powered,
			scd = excluded.scd,
			svd = excluded.svd,
			links = excluded.links,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		links, err := json.Marshal(r.Links)
		if err != nil {
			return fmt.Errorf("sqlite: marshal links of %s: %w", r.Pos, err)
		}
		if _, err := stmt.ExecContext(ctx, s.gridID, r.Pos.X, r.Pos.Y, r.Pos.Z,
			r.Type, r.Facing.String(), r.Powered, int64(r.SCD), int64(r.SVD), string(links)); err != nil {
			return fmt.Errorf("sqlite: upsert node %s: %w", r.Pos, err)
		}
	}
	return tx.Commit()
}

// LoadNodes returns every stored record of the grid.
func (s *Store) LoadNodes(ctx context.Context) ([]node.Record, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT x, y, z, type, facing, powered, scd, svd, links
		FROM node_states WHERE grid_id = ? ORDER BY x, y, z`, s.gridID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load nodes: %w", err)
	}
	defer rows.Close()

	var out []node.Record
	for rows.Next() {
		var r node.Record
		var facing, links string
		var scd, svd int64
		if err := rows.Scan(&r.Pos.X, &r.Pos.Y, &r.Pos.Z, &r.Type, &facing, &r.Powered, &scd, &svd, &links); err != nil {
			return nil, fmt.Errorf("sqlite: scan node: %w", err)
		}
		if r.Facing, err = geom.ParseDirection(facing); err != nil {
			return nil, fmt.Errorf("sqlite: node %s: %w", r.Pos, err)
		}
		r.SCD, r.SVD = uint32(scd), uint32(svd)
		if err := json.Unmarshal([]byte(links), &r.Links); err != nil {
			return nil, fmt.Errorf("sqlite: links of %s: %w", r.Pos, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteNode removes the record at p.
func (s *Store) DeleteNode(ctx context.Context, p geom.Pos) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM node_states WHERE grid_id = ? AND x = ? AND y = ? AND z = ?`,
		s.gridID, p.X, p.Y, p.Z)
	return err
}
