// Package catalog reads link catalog snapshots for planning passes. The
// snapshot is loaded once per call and handed down explicitly; there is no
// module-level shared state.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"interlink/api/internal/store"

	"github.com/redis/go-redis/v9"
)

// Store is the subset of the persistence layer the reader needs.
type Store interface {
	GetCatalogEntry(ctx context.Context, linkID string) (store.LinkCatalogEntry, error)
}

// Reader resolves candidate link ids to catalog entries, optionally through a
// Redis read-through cache. A cache failure degrades to a direct store read.
type Reader struct {
	store  Store
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New creates a Reader. redisURL may be empty, in which case every read goes
// straight to the store.
func New(catalogStore Store, redisURL string, ttl time.Duration) (*Reader, error) {
	reader := &Reader{store: catalogStore, ttl: ttl, prefix: "catalog:"}
	if redisURL == "" {
		return reader, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	reader.client = client
	return reader, nil
}

// NewWithClient creates a Reader from an existing Redis client.
func NewWithClient(catalogStore Store, client *redis.Client, ttl time.Duration) *Reader {
	return &Reader{store: catalogStore, client: client, ttl: ttl, prefix: "catalog:"}
}

func (r *Reader) key(linkID string) string {
	return r.prefix + linkID
}

// Snapshot resolves the given link ids to catalog entries. Unknown ids are
// simply absent from the result; candidate generators are untrusted and stale
// ids are a normal input.
func (r *Reader) Snapshot(ctx context.Context, linkIDs []string) (map[string]store.LinkCatalogEntry, error) {
	snapshot := make(map[string]store.LinkCatalogEntry, len(linkIDs))
	for _, linkID := range linkIDs {
		if linkID == "" {
			continue
		}
		if _, seen := snapshot[linkID]; seen {
			continue
		}

		if entry, ok := r.cached(ctx, linkID); ok {
			snapshot[linkID] = entry
			continue
		}

		entry, err := r.store.GetCatalogEntry(ctx, linkID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog entry %s: %w", linkID, err)
		}
		snapshot[linkID] = entry
		r.fill(ctx, entry)
	}
	return snapshot, nil
}

// Invalidate drops cached entries, e.g. after a page verification flips
// page_exists.
func (r *Reader) Invalidate(ctx context.Context, linkIDs ...string) {
	if r.client == nil {
		return
	}
	for _, linkID := range linkIDs {
		if err := r.client.Del(ctx, r.key(linkID)).Err(); err != nil {
			log.Printf("catalog: invalidate %s: %v", linkID, err)
		}
	}
}

// Close releases the Redis connection if one was opened.
func (r *Reader) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Reader) cached(ctx context.Context, linkID string) (store.LinkCatalogEntry, bool) {
	if r.client == nil {
		return store.LinkCatalogEntry{}, false
	}
	payload, err := r.client.Get(ctx, r.key(linkID)).Result()
	if err == redis.Nil {
		return store.LinkCatalogEntry{}, false
	}
	if err != nil {
		log.Printf("catalog: cache read %s: %v", linkID, err)
		return store.LinkCatalogEntry{}, false
	}
	var entry store.LinkCatalogEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		log.Printf("catalog: cache decode %s: %v", linkID, err)
		return store.LinkCatalogEntry{}, false
	}
	return entry, true
}

func (r *Reader) fill(ctx context.Context, entry store.LinkCatalogEntry) {
	if r.client == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.key(entry.ID), payload, r.ttl).Err(); err != nil {
		log.Printf("catalog: cache write %s: %v", entry.ID, err)
	}
}
