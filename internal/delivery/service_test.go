package delivery_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comanda-pos/comanda-pos/internal/delivery"
	"github.com/comanda-pos/comanda-pos/internal/events"
	"github.com/comanda-pos/comanda-pos/internal/orders"
	"github.com/comanda-pos/comanda-pos/internal/platform/store"
	"github.com/comanda-pos/comanda-pos/internal/shared"
)

type mirrorCall struct {
	orderID string
	to      orders.Status
}

func newService(t *testing.T) (*delivery.Service, *[]mirrorCall) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewStore(client, nil)
	repo := delivery.NewRepository(st, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var calls []mirrorCall
	mirror := func(ctx context.Context, orderID string, to orders.Status) error {
		calls = append(calls, mirrorCall{orderID, to})
		return nil
	}
	return delivery.NewService(repo, events.NewBus(nil, nil), logger, mirror), &calls
}

func deliveryOrder(id string) *orders.Order {
	return &orders.Order{
		ID:       id,
		Seq:      1,
		Channel:  orders.ChannelDelivery,
		Status:   orders.StatusPending,
		Customer: "Joana",
		Address:  "Av. Brasil 500",
		Items:    []orders.OrderItem{{Product: "pizza", Qty: 1, UnitPrice: 40}},
	}
}

func TestDispatchCreatesTrackingRecordOnce(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	o := deliveryOrder("o1")
	require.NoError(t, svc.Dispatch(ctx, o))
	require.NoError(t, svc.Dispatch(ctx, o)) // replayed order.created

	d, err := svc.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusPreparing, d.Status)

	list, err := svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDispatchIgnoresNonDeliveryOrders(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	o := deliveryOrder("o1")
	o.Channel = orders.ChannelLocal
	require.NoError(t, svc.Dispatch(ctx, o))

	_, err := svc.GetOrder(ctx, "o1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignCompleteRoundTrip(t *testing.T) {
	svc, mirrored := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Dispatch(ctx, deliveryOrder("o1")))
	drv, err := svc.CreateDriver(ctx, delivery.CreateDriverRequest{
		Name: "Pedro", Phone: "11999990000", Vehicle: "moto",
	})
	require.NoError(t, err)
	require.True(t, drv.Available)

	d, err := svc.AssignDriver(ctx, "o1", drv.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusOutForDelivery, d.Status)

	drv2, err := svc.GetDriver(ctx, drv.ID)
	require.NoError(t, err)
	assert.False(t, drv2.Available)
	assert.Equal(t, 1, drv2.CurrentOrders)

	d, err = svc.CompleteDelivery(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, d.Status)

	drv3, err := svc.GetDriver(ctx, drv.ID)
	require.NoError(t, err)
	assert.True(t, drv3.Available)
	assert.Equal(t, 0, drv3.CurrentOrders)

	require.Len(t, *mirrored, 1)
	assert.Equal(t, orders.StatusDelivered, (*mirrored)[0].to)
}

func TestAssignRejectsBusyDriver(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Dispatch(ctx, deliveryOrder("o1")))
	require.NoError(t, svc.Dispatch(ctx, deliveryOrder("o2")))
	drv, err := svc.CreateDriver(ctx, delivery.CreateDriverRequest{
		Name: "Rita", Phone: "11888887777", Vehicle: "bike",
	})
	require.NoError(t, err)

	_, err = svc.AssignDriver(ctx, "o1", drv.ID)
	require.NoError(t, err)

	_, err = svc.AssignDriver(ctx, "o2", drv.ID)
	assert.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestAssignMissingDriver(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Dispatch(ctx, deliveryOrder("o1")))
	_, err := svc.AssignDriver(ctx, "o1", "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCompleteWithoutDriverRejected(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Dispatch(ctx, deliveryOrder("o1")))
	_, err := svc.CompleteDelivery(ctx, "o1")
	assert.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestCancelFreesAssignedDriver(t *testing.T) {
	svc, mirrored := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Dispatch(ctx, deliveryOrder("o1")))
	drv, err := svc.CreateDriver(ctx, delivery.CreateDriverRequest{
		Name: "Luis", Phone: "11777776666", Vehicle: "carro",
	})
	require.NoError(t, err)

	_, err = svc.AssignDriver(ctx, "o1", drv.ID)
	require.NoError(t, err)

	d, err := svc.CancelDelivery(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusCancelled, d.Status)

	drv2, err := svc.GetDriver(ctx, drv.ID)
	require.NoError(t, err)
	assert.True(t, drv2.Available)
	assert.Equal(t, 0, drv2.CurrentOrders)

	require.Len(t, *mirrored, 1)
	assert.Equal(t, orders.StatusCancelled, (*mirrored)[0].to)
}

func TestDeleteDriverGuard(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Dispatch(ctx, deliveryOrder("o1")))
	drv, err := svc.CreateDriver(ctx, delivery.CreateDriverRequest{
		Name: "Bia", Phone: "11666665555", Vehicle: "moto",
	})
	require.NoError(t, err)

	_, err = svc.AssignDriver(ctx, "o1", drv.ID)
	require.NoError(t, err)

	err = svc.DeleteDriver(ctx, drv.ID)
	assert.ErrorIs(t, err, shared.ErrPrecondition)

	_, err = svc.CompleteDelivery(ctx, "o1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDriver(ctx, drv.ID))
	_, err = svc.GetDriver(ctx, drv.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
