package weborders_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comanda-pos/comanda-pos/internal/events"
	"github.com/comanda-pos/comanda-pos/internal/orders"
	"github.com/comanda-pos/comanda-pos/internal/platform/store"
	"github.com/comanda-pos/comanda-pos/internal/shared"
	"github.com/comanda-pos/comanda-pos/internal/weborders"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newServices wires a real order service behind the bridge so acceptance
// exercises the same minting path production uses.
func newServices(t *testing.T) (*weborders.Service, *orders.Service, *events.Bus) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewStore(client, nil)
	bus := events.NewBus(nil, nil)

	orderSvc := orders.NewService(orders.NewRepository(st, nil), bus, testLogger())
	webSvc := weborders.NewService(weborders.NewRepository(st, nil), orderSvc, bus, testLogger())
	return webSvc, orderSvc, bus
}

func submission() weborders.SubmitRequest {
	return weborders.SubmitRequest{
		Customer: "Paula",
		Phone:    "11955554444",
		Address:  "Rua Augusta 900",
		Items: []weborders.SubmitItemReq{
			{Product: "esfiha", Qty: 4, UnitPrice: 7.5},
		},
	}
}

func TestSubmitEnqueuesPending(t *testing.T) {
	webSvc, _, _ := newServices(t)
	ctx := context.Background()

	wo, err := webSvc.Submit(ctx, submission())
	require.NoError(t, err)
	assert.Equal(t, weborders.StatusPending, wo.Status)

	pending, err := webSvc.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestAcceptMintsInternalOrderOnce(t *testing.T) {
	webSvc, orderSvc, _ := newServices(t)
	ctx := context.Background()

	wo, err := webSvc.Submit(ctx, submission())
	require.NoError(t, err)

	first, err := webSvc.Accept(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, weborders.StatusAccepted, first.Status)
	assert.Greater(t, first.AcceptedSeq, int64(0))

	second, err := webSvc.Accept(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, weborders.StatusAccepted, second.Status)
	assert.Equal(t, first.AcceptedSeq, second.AcceptedSeq)

	all, err := orderSvc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, first.AcceptedSeq, all[0].Seq)
	assert.Equal(t, orders.ChannelDelivery, all[0].Channel)
	assert.Equal(t, 30.0, all[0].Total)
}

func TestAcceptPublishesEventsForDownstream(t *testing.T) {
	webSvc, _, bus := newServices(t)
	ctx := context.Background()

	var created int
	var accepted events.WebOrderAcceptedData
	bus.Subscribe(events.OrderCreated, func(ctx context.Context, evt events.Event) error {
		created++
		return nil
	})
	bus.Subscribe(events.WebOrderAccepted, func(ctx context.Context, evt events.Event) error {
		return evt.Decode(&accepted)
	})

	wo, err := webSvc.Submit(ctx, submission())
	require.NoError(t, err)
	_, err = webSvc.Accept(ctx, wo.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, created)
	assert.Equal(t, wo.ID, accepted.WebOrderID)
}

func TestRejectNeverMints(t *testing.T) {
	webSvc, orderSvc, _ := newServices(t)
	ctx := context.Background()

	wo, err := webSvc.Submit(ctx, submission())
	require.NoError(t, err)

	rejected, err := webSvc.Reject(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, weborders.StatusRejected, rejected.Status)

	_, err = webSvc.Accept(ctx, wo.ID)
	assert.ErrorIs(t, err, shared.ErrPrecondition)

	all, err := orderSvc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAcceptMissingWebOrder(t *testing.T) {
	webSvc, _, _ := newServices(t)
	_, err := webSvc.Accept(context.Background(), "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

type failingMinter struct{ calls int }

func (m *failingMinter) Create(ctx context.Context, req orders.CreateOrderRequest) (*orders.Order, error) {
	m.calls++
	return nil, errors.New("store unavailable")
}

func TestAcceptReleasesClaimWhenMintingFails(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewStore(client, nil)
	bus := events.NewBus(nil, nil)
	minter := &failingMinter{}
	webSvc := weborders.NewService(weborders.NewRepository(st, nil), minter, bus, testLogger())
	ctx := context.Background()

	wo, err := webSvc.Submit(ctx, submission())
	require.NoError(t, err)

	_, err = webSvc.Accept(ctx, wo.ID)
	require.Error(t, err)

	// the claim was rolled back, so a retry attempts the mint again
	_, err = webSvc.Accept(ctx, wo.ID)
	require.Error(t, err)
	assert.Equal(t, 2, minter.calls)
}

func TestAcceptRecoversAfterCrashedClaimant(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewStore(client, nil)
	bus := events.NewBus(nil, nil)
	repo := weborders.NewRepository(st, nil)
	orderSvc := orders.NewService(orders.NewRepository(st, nil), bus, testLogger())
	webSvc := weborders.NewService(repo, orderSvc, bus, testLogger())
	ctx := context.Background()

	wo, err := webSvc.Submit(ctx, submission())
	require.NoError(t, err)

	// a claimant that died between claiming and writing the cross-reference
	claimed, err := repo.MarkAccepting(ctx, wo.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	blocked, err := webSvc.Accept(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, weborders.StatusPending, blocked.Status)

	// the stale claim expires on its own; a later retry finishes the promotion
	mr.FastForward(time.Minute)

	got, err := webSvc.Accept(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, weborders.StatusAccepted, got.Status)
	assert.Greater(t, got.AcceptedSeq, int64(0))

	all, err := orderSvc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestExpirePendingOnlyTouchesOldPending(t *testing.T) {
	webSvc, _, _ := newServices(t)
	ctx := context.Background()

	oldWO, err := webSvc.Submit(ctx, submission())
	require.NoError(t, err)
	fresh, err := webSvc.Submit(ctx, submission())
	require.NoError(t, err)
	accepted, err := webSvc.Submit(ctx, submission())
	require.NoError(t, err)
	_, err = webSvc.Accept(ctx, accepted.ID)
	require.NoError(t, err)

	// let both pending entries age past the cutoff
	time.Sleep(10 * time.Millisecond)

	expired, err := webSvc.ExpirePending(ctx, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	got, err := webSvc.Get(ctx, oldWO.ID)
	require.NoError(t, err)
	assert.Equal(t, weborders.StatusRejected, got.Status)
	got, err = webSvc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, weborders.StatusRejected, got.Status)

	acceptedGot, err := webSvc.Get(ctx, accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, weborders.StatusAccepted, acceptedGot.Status)
}
