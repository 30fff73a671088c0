// Package db defines the key-value facade the embedding cache is stored behind.
package db

import (
	"context"
	"time"
)

// Store is a key-value store holding cached embedding vectors.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore reads and writes opaque values. A non-positive ttl keeps the key forever.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// GetMulti returns one slot per key in order, nil where the key is missing.
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetMultiWithTTL writes every entry in one pipelined round-trip.
	SetMultiWithTTL(ctx context.Context, entries []Entry, ttl time.Duration) error
}

// Entry is one key-value pair for batch writes.
type Entry struct {
	Key   string
	Value []byte
}
