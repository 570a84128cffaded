package orders_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comanda-pos/comanda-pos/internal/events"
	"github.com/comanda-pos/comanda-pos/internal/orders"
	"github.com/comanda-pos/comanda-pos/internal/platform/store"
	"github.com/comanda-pos/comanda-pos/internal/shared"
)

func newService(t *testing.T) (*orders.Service, *store.Store, *events.Bus) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewStore(client, nil)
	bus := events.NewBus(nil, nil)
	repo := orders.NewRepository(st, nil)
	return orders.NewService(repo, bus, testLogger()), st, bus
}

func draft(channel orders.Channel) orders.CreateOrderRequest {
	req := orders.CreateOrderRequest{
		Channel:  channel,
		Customer: "Carlos",
		Items: []orders.CreateOrderItemReq{
			{Product: "marmita", Qty: 2, UnitPrice: 18.5},
		},
	}
	if channel == orders.ChannelDelivery {
		req.Address = "Rua das Flores 123"
	}
	return req
}

func TestCreateAllocatesIncreasingSequences(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	var prev int64
	seen := make(map[int64]bool)
	for i := 0; i < 20; i++ {
		o, err := svc.Create(ctx, draft(orders.ChannelLocal))
		require.NoError(t, err)
		assert.Greater(t, o.Seq, prev)
		assert.False(t, seen[o.Seq])
		seen[o.Seq] = true
		prev = o.Seq
	}
}

func TestListUnaffectedBySequenceCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewStore(client, nil)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	svc := orders.NewService(orders.NewRepository(st, logger), events.NewBus(nil, nil), logger)
	ctx := context.Background()

	_, err := svc.Create(ctx, draft(orders.ChannelLocal))
	require.NoError(t, err)
	_, err = svc.Create(ctx, draft(orders.ChannelLocal))
	require.NoError(t, err)

	// the sequence counter shares the store but never surfaces as a record
	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.NotContains(t, logs.String(), "malformed")
}

func TestCreateComputesTotalServerSide(t *testing.T) {
	svc, _, _ := newService(t)

	req := draft(orders.ChannelLocal)
	req.Items = []orders.CreateOrderItemReq{
		{Product: "pizza", Qty: 2, UnitPrice: 30},
		{Product: "suco", Qty: 1, UnitPrice: 8},
	}
	o, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 68.0, o.Total)
	assert.Equal(t, orders.StatusPending, o.Status)
}

func TestCreatePublishesOrderCreated(t *testing.T) {
	svc, _, bus := newService(t)

	var got events.OrderCreatedData
	bus.Subscribe(events.OrderCreated, func(ctx context.Context, evt events.Event) error {
		return evt.Decode(&got)
	})

	o, err := svc.Create(context.Background(), draft(orders.ChannelDelivery))
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.OrderID)
	assert.Equal(t, "delivery", got.Channel)
}

func TestUpdateStatusWalksLifecycle(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, draft(orders.ChannelDelivery))
	require.NoError(t, err)

	for _, next := range []orders.Status{
		orders.StatusAccepted, orders.StatusPreparing, orders.StatusReady, orders.StatusDelivered,
	} {
		o, err = svc.UpdateStatus(ctx, o.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, o.Status)
	}
	require.NotNil(t, o.CompletedAt)

	_, err = svc.UpdateStatus(ctx, o.ID, orders.StatusPreparing)
	assert.ErrorIs(t, err, orders.ErrBadTransition)
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.UpdateStatus(context.Background(), "nope", orders.StatusAccepted)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateItemsLockedAfterAdvance(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, draft(orders.ChannelLocal))
	require.NoError(t, err)

	newItems := []orders.CreateOrderItemReq{{Product: "feijoada", Qty: 1, UnitPrice: 42}}
	o2, err := svc.UpdateItems(ctx, o.ID, newItems)
	require.NoError(t, err)
	assert.Equal(t, 42.0, o2.Total)

	_, err = svc.UpdateStatus(ctx, o.ID, orders.StatusAccepted)
	require.NoError(t, err)

	_, err = svc.UpdateItems(ctx, o.ID, newItems)
	assert.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestListDropsMalformedRecords(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, draft(orders.ChannelLocal))
	require.NoError(t, err)

	// a record written by a buggy writer: negative quantity
	bad := map[string]any{
		"id": "bad1", "seq": 99, "channel": "local", "status": "pendente",
		"customer": "x", "items": []map[string]any{{"product": "p", "qty": -4, "unit_price": 1}},
	}
	require.NoError(t, st.Put(ctx, orders.Collection, "bad1", bad))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEqual(t, "bad1", list[0].ID)
}

func TestListActiveExcludesTerminals(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, draft(orders.ChannelLocal))
	require.NoError(t, err)
	b, err := svc.Create(ctx, draft(orders.ChannelLocal))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, b.ID, orders.StatusCancelled)
	require.NoError(t, err)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
}
