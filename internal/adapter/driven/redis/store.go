// Package redis implements the KeyValueStore port on a Redis hash per document.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.KeyValueStore = (*Store)(nil)

const scanCount = 100

// Store keeps one document's entries as fields of the hash
// "zotoksheets:doc:{documentID}".
type Store struct {
	client goredis.UniversalClient
	hash   string
}

// NewStore creates a Store for documentID on client.
func NewStore(client goredis.UniversalClient, documentID string) *Store {
	return &Store{client: client, hash: "zotoksheets:doc:" + documentID}
}

// Connect parses a redis:// URL, opens a client and pings it.
func Connect(ctx context.Context, rawURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores or replaces the value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.hash, key).Err(); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// List returns every entry whose key starts with prefix.
func (s *Store) List(ctx context.Context, prefix string) (map[string]string, error) {
	out := make(map[string]string)
	iter := s.client.HScan(ctx, s.hash, 0, escapeGlob(prefix)+"*", scanCount).Iterator()

	// HSCAN yields field and value alternately.
	var field string
	isValue := false
	for iter.Next(ctx) {
		if isValue {
			out[field] = iter.Val()
		} else {
			field = iter.Val()
		}
		isValue = !isValue
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	return out, nil
}

// escapeGlob quotes the characters Redis MATCH patterns treat specially.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^', '-':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
