package weborders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/comanda-pos/comanda-pos/internal/events"
	"github.com/comanda-pos/comanda-pos/internal/orders"
	"github.com/comanda-pos/comanda-pos/internal/shared"
)

// ErrAlreadyDecided rejects accepting a rejected web order and vice versa.
var ErrAlreadyDecided = fmt.Errorf("web order already decided: %w", shared.ErrPrecondition)

// Minter mints the internal order an accepted web order promotes into.
// Satisfied by the orders service.
type Minter interface {
	Create(ctx context.Context, req orders.CreateOrderRequest) (*orders.Order, error)
}

// Service maintains the pending queue and the at-most-once promotion of
// accepted web orders into internal orders.
type Service struct {
	repo   *Repository
	minter Minter
	bus    *events.Bus
	logger *slog.Logger
}

// NewService constructs a web-order service.
func NewService(repo *Repository, minter Minter, bus *events.Bus, logger *slog.Logger) *Service {
	return &Service{repo: repo, minter: minter, bus: bus, logger: logger}
}

// Submit enqueues an externally submitted order.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*WebOrder, error) {
	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, Item{Product: it.Product, Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	wo := &WebOrder{
		ID:        uuid.NewString(),
		Customer:  req.Customer,
		Phone:     req.Phone,
		Address:   req.Address,
		Notes:     req.Notes,
		Items:     items,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Put(ctx, wo); err != nil {
		return nil, err
	}
	return wo, nil
}

// Accept promotes a pending web order into an internal delivery order,
// exactly once. The cross-reference is the idempotency guard: an already
// accepted web order is returned unchanged, and the accept claim is
// released if any intermediate step fails. The irreversible step, marking
// the web order accepted, happens last so a partial failure leaves a
// re-acceptable queue entry instead of a double promotion.
func (s *Service) Accept(ctx context.Context, id string) (*WebOrder, error) {
	wo, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if wo.Status == StatusAccepted && wo.AcceptedSeq > 0 {
		return wo, nil // retried by the ingesting UI, safe no-op
	}
	if wo.Status == StatusRejected {
		return nil, ErrAlreadyDecided
	}

	claimed, err := s.repo.MarkAccepting(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// another instance won the claim; report current state
		return s.repo.Get(ctx, id)
	}

	o, err := s.minter.Create(ctx, orders.CreateOrderRequest{
		Channel:  orders.ChannelDelivery,
		Customer: wo.Customer,
		Phone:    wo.Phone,
		Address:  wo.Address,
		Notes:    wo.Notes,
		Items:    mintItems(wo.Items),
	})
	if err != nil {
		s.release(ctx, id)
		return nil, fmt.Errorf("weborders: mint internal order: %w", err)
	}

	now := time.Now().UTC()
	wo.Status = StatusAccepted
	wo.AcceptedSeq = o.Seq
	wo.DecidedAt = &now
	if err := s.repo.Put(ctx, wo); err != nil {
		// the internal order exists but the cross-reference write failed;
		// release the claim so a retry can finish the promotion
		s.release(ctx, id)
		return nil, fmt.Errorf("weborders: store cross-reference: %w", err)
	}

	if err := s.bus.Publish(ctx, events.WebOrderAccepted, events.WebOrderAcceptedData{
		WebOrderID: wo.ID, OrderSeq: o.Seq,
	}); err != nil {
		s.logger.Warn("weborder accepted event not published",
			slog.String("weborder_id", wo.ID), slog.Any("error", err))
	}
	return wo, nil
}

// Reject marks a pending web order rejected; no internal order is created.
func (s *Service) Reject(ctx context.Context, id string) (*WebOrder, error) {
	wo, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if wo.Status == StatusRejected {
		return wo, nil
	}
	if wo.Status == StatusAccepted {
		return nil, ErrAlreadyDecided
	}
	now := time.Now().UTC()
	wo.Status = StatusRejected
	wo.DecidedAt = &now
	if err := s.repo.Put(ctx, wo); err != nil {
		return nil, err
	}
	return wo, nil
}

// Get returns one web order.
func (s *Service) Get(ctx context.Context, id string) (*WebOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns the whole queue, oldest first.
func (s *Service) List(ctx context.Context) ([]WebOrder, error) {
	return s.repo.List(ctx)
}

// ListPending returns web orders still awaiting a decision.
func (s *Service) ListPending(ctx context.Context) ([]WebOrder, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := all[:0]
	for _, wo := range all {
		if wo.Status == StatusPending {
			pending = append(pending, wo)
		}
	}
	return pending, nil
}

// ExpirePending rejects pending web orders older than maxAge so the queue
// stays bounded. Returns how many were expired.
func (s *Service) ExpirePending(ctx context.Context, maxAge time.Duration) (int, error) {
	pending, err := s.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	expired := 0
	for i := range pending {
		if pending[i].CreatedAt.After(cutoff) {
			continue
		}
		if _, err := s.Reject(ctx, pending[i].ID); err != nil {
			s.logger.Warn("expire web order failed",
				slog.String("weborder_id", pending[i].ID), slog.Any("error", err))
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) release(ctx context.Context, id string) {
	if err := s.repo.ReleaseAccepting(ctx, id); err != nil {
		s.logger.Warn("release accept claim failed",
			slog.String("weborder_id", id), slog.Any("error", err))
	}
}

func mintItems(items []Item) []orders.CreateOrderItemReq {
	reqs := make([]orders.CreateOrderItemReq, 0, len(items))
	for _, it := range items {
		reqs = append(reqs, orders.CreateOrderItemReq{
			Product:   it.Product,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
		})
	}
	return reqs
}
