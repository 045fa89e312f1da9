// Package sqlite implements the KeyValueStore port on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// pragmas applied to every connection.
var pragmas = []string{
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// DB holds a single-connection writer and a small reader pool over the same
// file. WAL mode lets readers proceed while the writer holds its lock.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
}

// NewDB opens path in WAL mode and verifies both pools.
func NewDB(ctx context.Context, path string) (*DB, error) {
	return open(ctx, dsn(path, append([]string{"journal_mode(WAL)"}, pragmas...)))
}

func dsn(name string, pragmaList []string, params ...string) string {
	q := make([]string, 0, len(pragmaList)+len(params))
	q = append(q, params...)
	for _, p := range pragmaList {
		q = append(q, "_pragma="+p)
	}
	return "file:" + name + "?" + strings.Join(q, "&")
}

func open(ctx context.Context, dataSource string) (*DB, error) {
	writer, err := sql.Open("sqlite", dataSource)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open("sqlite", dataSource)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader}, nil
}

// Close closes both pools and returns the first error.
func (db *DB) Close() error {
	var firstErr error
	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}
	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}
	return firstErr
}
