package cache

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SQLiteStore keeps blobs in a single SQLite database file.
type SQLiteStore struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS blobs (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	updated INTEGER NOT NULL
)`

// NewSQLiteStore opens (creating if necessary) database at path, use
// ":memory:" for transient store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	flags := []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL}
	if path == ":memory:" {
		flags = []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenMemory}
	}
	conn, err := sqlite.OpenConn(path, flags...)
	if err != nil {
		return nil, fmt.Errorf("unable to open cache database '%s': %w", path, err)
	}
	if err := sqlitex.ExecuteTransient(conn, sqliteSchema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare cache database: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetInterrupt(ctx.Done())
	defer s.conn.SetInterrupt(nil)

	var (
		data  []byte
		found bool
	)
	err := sqlitex.Execute(s.conn, `SELECT value FROM blobs WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				var err error
				data, err = io.ReadAll(stmt.ColumnReader(0))
				return err
			},
		})
	if err != nil {
		return nil, fmt.Errorf("unable to read '%s' from cache: %w", key, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetInterrupt(ctx.Done())
	defer s.conn.SetInterrupt(nil)

	err := sqlitex.Execute(s.conn,
		`INSERT INTO blobs (key, value, updated) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated = excluded.updated`,
		&sqlitex.ExecOptions{Args: []any{key, data, time.Now().Unix()}})
	if err != nil {
		return fmt.Errorf("unable to write '%s' to cache: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
