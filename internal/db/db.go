package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	KVStore
	HashStore
	ListStore
	StreamStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX sets the key only if absent. Returns true when the key was set.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// HashStore provides hash-based key-value operations, including a
// compare-and-swap write keyed on a numeric "version" field.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HSetVersioned writes fields only if the hash's "version" field equals
	// expectedVersion (0 means the key must not exist yet). On mismatch it
	// returns the version found in the store and ErrVersionMismatch.
	HSetVersioned(ctx context.Context, key string, fields map[string]string, expectedVersion int) (int, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ListStore provides list operations, used for the dead-letter queue.
type ListStore interface {
	LPush(ctx context.Context, key string, value []byte) error
	LLen(ctx context.Context, key string) (int64, error)
}

// StreamEntry is a single message read from a stream.
type StreamEntry struct {
	ID     string
	Fields map[string]string
}

// StreamStore provides consumer-group stream operations.
type StreamStore interface {
	StreamAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
	// StreamGroupCreate creates the consumer group, creating the stream if
	// needed. Creating an already-existing group is not an error.
	StreamGroupCreate(ctx context.Context, stream, group string) error
	StreamRead(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]StreamEntry, error)
	StreamAck(ctx context.Context, stream, group string, ids ...string) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides KNN search over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
