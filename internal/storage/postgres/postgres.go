package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/SignalGrid/internal/config"
	"github.com/AaronLay10/SignalGrid/internal/events"
	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

// maxHistory caps one History read.
const maxHistory = 10000

// Client stores the event log and node records of one grid.
type Client struct {
	db     *sql.DB
	gridID string
}

// New connects using the libpq environment variables.
func New(gridID string) (*Client, error) {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "signalgrid")
	dbname := getEnv("PGDATABASE", "signalgrid")
	password, err := config.ResolveSecret("PGPASSWORD")
	if err != nil {
		return nil, err
	}

	var connStr string
	if password != "" {
		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	} else {
		connStr = fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
			host, port, user, dbname)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:     db,
		gridID: gridID,
	}

	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			grid_id    TEXT NOT NULL,
			session_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_grid_id ON events(grid_id);

		CREATE TABLE IF NOT EXISTS node_states (
			grid_id    TEXT NOT NULL,
			x          INTEGER NOT NULL,
			y          INTEGER NOT NULL,
			z          INTEGER NOT NULL,
			type       TEXT NOT NULL,
			facing     TEXT NOT NULL,
			powered    BOOLEAN NOT NULL,
			scd        BIGINT NOT NULL,
			svd        BIGINT NOT NULL,
			links      JSONB,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (grid_id, x, y, z)
		);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event into the database.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	var sessionPtr *string
	if sessionID != "" {
		sessionPtr = &sessionID
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, grid_id, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, c.gridID, sessionPtr)
	return err
}

// History returns the newest limit events of the grid, oldest first.
func (c *Client) History(ctx context.Context, limit int) ([]events.Event, error) {
	limit = min(max(limit, 1), maxHistory)
	rows, err := c.db.QueryContext(ctx, `
		SELECT ts, level, event, msg, fields
		FROM events
		WHERE grid_id = $1
		ORDER BY event_id DESC
		LIMIT $2
	`, c.gridID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var ts time.Time
		var msg sql.NullString
		var fieldsJSON []byte
		if err := rows.Scan(&ts, &e.Level, &e.Name, &msg, &fieldsJSON); err != nil {
			return nil, err
		}
		e.Timestamp = ts.UTC().Format(time.RFC3339Nano)
		e.Message = msg.String
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}
		out = append(out, e)
	}
	slices.Reverse(out)
	return out, rows.Err()
}

// SaveNodes upserts the given records in one transaction.
func (c *Client) SaveNodes(ctx context.Context, recs []node.Record) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO node_states (grid_id, x, y, z, type, facing, powered, scd, svd, links, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (grid_id, x, y, z) DO UPDATE SET
			type = EXCLUDED.type,
			facing = EXCLUDED.facing,
			powered = EXCLUDED.powered,
			scd = EXCLUDED.scd,
			svd = EXCLUDED.svd,
			links = EXCLUDED.links,
			updated_at = now()
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		links, err := json.Marshal(r.Links)
		if err != nil {
			return fmt.Errorf("marshal links of %s: %w", r.Pos, err)
		}
		if _, err := stmt.ExecContext(ctx, c.gridID, r.Pos.X, r.Pos.Y, r.Pos.Z,
			r.Type, r.Facing.String(), r.Powered, int64(r.SCD), int64(r.SVD), links); err != nil {
			return fmt.Errorf("upsert node %s: %w", r.Pos, err)
		}
	}
	return tx.Commit()
}

// LoadNodes returns every stored record of the grid.
func (c *Client) LoadNodes(ctx context.Context) ([]node.Record, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT x, y, z, type, facing, powered, scd, svd, links
		FROM node_states
		WHERE grid_id = $1
		ORDER BY x, y, z
	`, c.gridID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []node.Record
	for rows.Next() {
		var r node.Record
		var facing string
		var scd, svd int64
		var links []byte
		if err := rows.Scan(&r.Pos.X, &r.Pos.Y, &r.Pos.Z, &r.Type, &facing, &r.Powered, &scd, &svd, &links); err != nil {
			return nil, err
		}
		if r.Facing, err = geom.ParseDirection(facing); err != nil {
			return nil, fmt.Errorf("node %s: %w", r.Pos, err)
		}
		r.SCD, r.SVD = uint32(scd), uint32(svd)
		if len(links) > 0 {
			if err := json.Unmarshal(links, &r.Links); err != nil {
				return nil, fmt.Errorf("failed to unmarshal links of %s: %w", r.Pos, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteNode removes the record at p.
func (c *Client) DeleteNode(ctx context.Context, p geom.Pos) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM node_states WHERE grid_id = $1 AND x = $2 AND y = $3 AND z = $4`,
		c.gridID, p.X, p.Y, p.Z)
	return err
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
