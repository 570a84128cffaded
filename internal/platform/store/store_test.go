package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comanda-pos/comanda-pos/internal/platform/store"
	"github.com/comanda-pos/comanda-pos/internal/shared"
)

type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return store.NewStore(client, nil)
}

func TestPutGetDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "widgets", "w1", record{ID: "w1", Name: "widget"}))

	var got record
	require.NoError(t, s.Get(ctx, "widgets", "w1", &got))
	assert.Equal(t, "widget", got.Name)

	require.NoError(t, s.Delete(ctx, "widgets", "w1"))
	err := s.Get(ctx, "widgets", "w1", &got)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListReturnsAllRecords(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "widgets", "w1", record{ID: "w1"}))
	require.NoError(t, s.Put(ctx, "widgets", "w2", record{ID: "w2"}))
	require.NoError(t, s.Put(ctx, "gadgets", "g1", record{ID: "g1"}))

	records, err := s.List(ctx, "widgets")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestNextSeqStrictlyIncreasing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	seen := make(map[int64]bool)
	var prev int64
	for i := 0; i < 50; i++ {
		seq, err := s.NextSeq(ctx, "seq:orders")
		require.NoError(t, err)
		assert.Greater(t, seq, prev)
		assert.False(t, seen[seq], "sequence %d reused", seq)
		seen[seq] = true
		prev = seq
	}
}

func TestSetMarkerOnlyOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first, err := s.SetMarker(ctx, "markers:orders:o1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.SetMarker(ctx, "markers:orders:o1", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestListSkipsCounterAndMarkerKeys(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "widgets", "w1", record{ID: "w1"}))
	_, err := s.NextSeq(ctx, "seq:widgets")
	require.NoError(t, err)
	_, err = s.SetMarker(ctx, "markers:widgets:w1", 0)
	require.NoError(t, err)

	records, err := s.List(ctx, "widgets")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
