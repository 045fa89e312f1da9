package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.KeyValueStore = (*KVStore)(nil)

// KVStore is the SQLite implementation of the KeyValueStore port. Every row
// is scoped to one document. With a key configured, values are sealed with
// AES-256-GCM before they are written.
type KVStore struct {
	db         *DB
	documentID string
	aead       cipher.AEAD
}

// NewKVStore creates a KVStore for documentID. key must be nil (values stored
// in clear) or 32 bytes.
func NewKVStore(db *DB, documentID string, key []byte) (*KVStore, error) {
	s := &KVStore{db: db, documentID: documentID}
	if key == nil {
		return s, nil
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	s.aead = aead
	return s, nil
}

// Get returns the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM kv_entries WHERE document_id = ? AND key = ?`
	var stored string
	err := s.db.Reader.QueryRowContext(ctx, query, s.documentID, key).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}

	value, err := s.open(stored)
	if err != nil {
		return "", false, fmt.Errorf("decrypt %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores or replaces the value under key.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	stored, err := s.seal(value)
	if err != nil {
		return err
	}

	const query = `INSERT INTO kv_entries (document_id, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (document_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.Writer.ExecContext(ctx, query, s.documentID, key, stored); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. A missing key is not an error.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_entries WHERE document_id = ? AND key = ?`
	if _, err := s.db.Writer.ExecContext(ctx, query, s.documentID, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// List returns every entry whose key starts with prefix. The prefix is
// compared literally, so LIKE wildcards in it have no effect.
func (s *KVStore) List(ctx context.Context, prefix string) (map[string]string, error) {
	const query = `SELECT key, value FROM kv_entries
		WHERE document_id = ? AND substr(key, 1, length(?)) = ?
		ORDER BY key`
	rows, err := s.db.Reader.QueryContext(ctx, query, s.documentID, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, stored string
		if err := rows.Scan(&key, &stored); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		value, err := s.open(stored)
		if err != nil {
			return nil, fmt.Errorf("decrypt %q: %w", key, err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// seal returns base64(nonce || ciphertext || tag), or value unchanged when
// encryption is off.
func (s *KVStore) seal(value string) (string, error) {
	if s.aead == nil {
		return value, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(s.aead.Seal(nonce, nonce, []byte(value), nil)), nil
}

func (s *KVStore) open(stored string) (string, error) {
	if s.aead == nil {
		return stored, nil
	}
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	plaintext, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}
