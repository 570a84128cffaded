// Package store implements the shared record store on Redis. Every
// collection lives under its own key prefix as JSON values; writers publish
// a change notice so other processes see mutations without polling.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comanda-pos/comanda-pos/internal/shared"
)

// ChangeChannel carries change notices for every collection write.
const ChangeChannel = "comanda:changes"

// Change describes a single record mutation.
type Change struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Op         string    `json:"op"` // put|delete
	At         time.Time `json:"at"`
}

// New creates a Redis client for the record store.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/store: ping: %w", err)
	}

	return client, nil
}

// Store provides typed JSON access over collections of records.
type Store struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewStore constructs a Store.
func NewStore(rdb *redis.Client, logger *slog.Logger) *Store {
	return &Store{rdb: rdb, logger: logger}
}

func key(collection, id string) string {
	return collection + ":" + id
}

// Put marshals v and stores it under collection/id, then publishes a change
// notice. The in-memory caller state is not rolled back on publish failure.
func (s *Store) Put(ctx context.Context, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal %s/%s: %w", collection, id, err)
	}
	if err := s.rdb.Set(ctx, key(collection, id), data, 0).Err(); err != nil {
		return fmt.Errorf("store: put %s/%s: %w", collection, id, err)
	}
	s.notify(ctx, Change{Collection: collection, ID: id, Op: "put", At: time.Now().UTC()})
	return nil
}

// Get loads the record under collection/id into dest.
func (s *Store) Get(ctx context.Context, collection, id string, dest any) error {
	data, err := s.rdb.Get(ctx, key(collection, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.ErrNotFound
		}
		return fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("store: decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the record under collection/id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.rdb.Del(ctx, key(collection, id)).Err(); err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", collection, id, err)
	}
	s.notify(ctx, Change{Collection: collection, ID: id, Op: "delete", At: time.Now().UTC()})
	return nil
}

// List returns the raw JSON of every record in the collection. Decoding and
// sanitizing is left to the repository that owns the collection.
func (s *Store) List(ctx context.Context, collection string) ([][]byte, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, collection+":*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", collection, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("store: mget %s: %w", collection, err)
	}
	records := make([][]byte, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // expired between scan and mget
		}
		records = append(records, []byte(raw))
	}
	return records, nil
}

// NextSeq atomically increments the named counter and returns the new value.
// A corrupt counter key falls back to a wall-clock derived value so order
// intake keeps working; uniqueness is then best effort until the key is
// repaired.
func (s *Store) NextSeq(ctx context.Context, counter string) (int64, error) {
	seq, err := s.rdb.Incr(ctx, counter).Result()
	if err == nil {
		return seq, nil
	}
	if s.logger != nil {
		s.logger.Warn("sequence counter unreadable, falling back to clock",
			slog.String("counter", counter), slog.Any("error", err))
	}
	return time.Now().UnixMilli(), nil
}

// SetMarker records a processed marker, returning false when the marker was
// already present. Used as the idempotency guard for fan-out side effects.
func (s *Store) SetMarker(ctx context.Context, marker string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, marker, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("store: marker %s: %w", marker, err)
	}
	return ok, nil
}

// ClearMarker releases a marker, typically to roll back a claim whose
// processing failed.
func (s *Store) ClearMarker(ctx context.Context, marker string) error {
	if err := s.rdb.Del(ctx, marker).Err(); err != nil {
		return fmt.Errorf("store: clear marker %s: %w", marker, err)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, ch Change) {
	payload, err := json.Marshal(ch)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, ChangeChannel, payload).Err(); err != nil && s.logger != nil {
		s.logger.Warn("change notify failed",
			slog.String("collection", ch.Collection), slog.Any("error", err))
	}
}
