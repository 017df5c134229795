// Package store persists accepted records in SQLite. One row per
// accepted snapshot or reading; queries return most-recent-first.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS device_performance_snapshot (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	device_name   TEXT NOT NULL,
	timestamp     INTEGER NOT NULL,
	num_threads   INTEGER NOT NULL,
	num_processes INTEGER NOT NULL,
	ram_usage_mb  REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshot_device_ts
	ON device_performance_snapshot (device_name, timestamp DESC);

CREATE TABLE IF NOT EXISTS sensor_reading (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	device_name TEXT NOT NULL,
	timestamp   INTEGER NOT NULL,
	temperature REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reading_device_ts
	ON sensor_reading (device_name, timestamp DESC);
`

// Snapshot is one accepted PC metrics row.
type Snapshot struct {
	ID           int64   `json:"id"`
	DeviceName   string  `json:"device_name"`
	Timestamp    int64   `json:"timestamp"`
	NumThreads   int64   `json:"num_threads"`
	NumProcesses int64   `json:"num_processes"`
	RAMUsageMB   float64 `json:"ram_usage_mb"`
}

// Reading is one accepted sensor temperature row.
type Reading struct {
	ID          int64   `json:"id"`
	DeviceName  string  `json:"device_name"`
	Timestamp   int64   `json:"timestamp"`
	Temperature float64 `json:"temperature"`
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the SQLite database file; ":memory:" works for tests
	// with PoolSize 1.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	// Logger receives operational messages. Required.
	Logger *zap.Logger
}

// Store is safe for concurrent use; each call borrows its own
// connection from the pool.
type Store struct {
	pool   *sqlitex.Pool
	logger *zap.Logger
	path   string
}

// Open creates the database file if needed, applies pragmas, and
// ensures the schema on every connection.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("store: Logger is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	cfg.Logger.Info("store opened", zap.String("path", cfg.Path), zap.Int("pool_size", poolSize))
	return &Store{pool: pool, logger: cfg.Logger, path: cfg.Path}, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("store: creating schema: %w", err)
	}
	return nil
}

// Close closes the pool, blocking until borrowed connections return.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", s.path, err)
	}
	s.logger.Info("store closed", zap.String("path", s.path))
	return nil
}

// InsertSnapshot persists a PC snapshot and fills in its row ID.
func (s *Store) InsertSnapshot(ctx context.Context, snap *Snapshot) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: insert snapshot: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO device_performance_snapshot
			(device_name, timestamp, num_threads, num_processes, ram_usage_mb)
			VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{snap.DeviceName, snap.Timestamp, snap.NumThreads, snap.NumProcesses, snap.RAMUsageMB},
		})
	if err != nil {
		return fmt.Errorf("store: insert snapshot: %w", err)
	}
	snap.ID = conn.LastInsertRowID()
	return nil
}

// InsertReading persists a sensor reading and fills in its row ID.
func (s *Store) InsertReading(ctx context.Context, reading *Reading) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: insert reading: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO sensor_reading (device_name, timestamp, temperature)
			VALUES (?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{reading.DeviceName, reading.Timestamp, reading.Temperature},
		})
	if err != nil {
		return fmt.Errorf("store: insert reading: %w", err)
	}
	reading.ID = conn.LastInsertRowID()
	return nil
}

// RecentSnapshots returns up to limit snapshots, newest first,
// optionally filtered by device name.
func (s *Store) RecentSnapshots(ctx context.Context, deviceName string, limit int) ([]Snapshot, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: query snapshots: %w", err)
	}
	defer s.pool.Put(conn)

	query := `SELECT id, device_name, timestamp, num_threads, num_processes, ram_usage_mb
		FROM device_performance_snapshot`
	args := []any{}
	if deviceName != "" {
		query += ` WHERE device_name = ?`
		args = append(args, deviceName)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var out []Snapshot
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, Snapshot{
				ID:           stmt.ColumnInt64(0),
				DeviceName:   stmt.ColumnText(1),
				Timestamp:    stmt.ColumnInt64(2),
				NumThreads:   stmt.ColumnInt64(3),
				NumProcesses: stmt.ColumnInt64(4),
				RAMUsageMB:   stmt.ColumnFloat(5),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: query snapshots: %w", err)
	}
	return out, nil
}

// RecentReadings returns up to limit readings, newest first, optionally
// filtered by device name.
func (s *Store) RecentReadings(ctx context.Context, deviceName string, limit int) ([]Reading, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: query readings: %w", err)
	}
	defer s.pool.Put(conn)

	query := `SELECT id, device_name, timestamp, temperature FROM sensor_reading`
	args := []any{}
	if deviceName != "" {
		query += ` WHERE device_name = ?`
		args = append(args, deviceName)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var out []Reading
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, Reading{
				ID:          stmt.ColumnInt64(0),
				DeviceName:  stmt.ColumnText(1),
				Timestamp:   stmt.ColumnInt64(2),
				Temperature: stmt.ColumnFloat(3),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: query readings: %w", err)
	}
	return out, nil
}
