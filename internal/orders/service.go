package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/comanda-pos/comanda-pos/internal/events"
	"github.com/comanda-pos/comanda-pos/internal/shared"
)

var (
	// ErrCorruptRecord marks a stored order that failed validation on read.
	ErrCorruptRecord = fmt.Errorf("corrupt order record: %w", shared.ErrNotFound)
	// ErrOrderLocked rejects line edits after the first status advance.
	ErrOrderLocked = fmt.Errorf("order already advanced: %w", shared.ErrPrecondition)
)

// Service owns order creation and lifecycle transitions, publishing the
// events the side-effect modules subscribe to.
type Service struct {
	repo   *Repository
	bus    *events.Bus
	logger *slog.Logger
}

// NewService constructs an order service.
func NewService(repo *Repository, bus *events.Bus, logger *slog.Logger) *Service {
	return &Service{repo: repo, bus: bus, logger: logger}
}

// Create allocates an id and sequence number, computes totals server-side
// and stores the order in its initial state before announcing it.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	seq, err := s.repo.NextSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("orders: allocate sequence: %w", err)
	}

	now := time.Now().UTC()
	o := &Order{
		ID:        uuid.NewString(),
		Seq:       seq,
		Channel:   req.Channel,
		Status:    StatusPending,
		Customer:  req.Customer,
		Phone:     req.Phone,
		Address:   req.Address,
		Table:     req.Table,
		Notes:     req.Notes,
		PayMethod: req.PayMethod,
		Items:     itemsFromRequest(req.Items),
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.Recalculate()
	if !o.Valid() {
		return nil, fmt.Errorf("orders: %w: rejected draft", shared.ErrValidation)
	}

	if err := s.repo.Put(ctx, o); err != nil {
		return nil, fmt.Errorf("orders: store order %d: %w", seq, err)
	}

	if err := s.bus.Publish(ctx, events.OrderCreated, events.OrderCreatedData{
		OrderID: o.ID, Seq: o.Seq, Channel: string(o.Channel),
	}); err != nil {
		s.logger.Warn("order created event not published",
			slog.String("order_id", o.ID), slog.Any("error", err))
	}
	return o, nil
}

// UpdateStatus moves the order through the state machine and publishes the
// transition. Re-delivery of the same transition downstream is expected;
// subscribers carry their own idempotency guards.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Channel, o.Status, to) {
		return nil, fmt.Errorf("orders: %s -> %s: %w", o.Status, to, ErrBadTransition)
	}

	from := o.Status
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	if Settled(to) {
		done := o.UpdatedAt
		o.CompletedAt = &done
	}
	if err := s.repo.Put(ctx, o); err != nil {
		return nil, fmt.Errorf("orders: store status %s: %w", to, err)
	}

	if err := s.bus.Publish(ctx, events.OrderStatusChanged, events.StatusChangedData{
		OrderID: o.ID, From: string(from), To: string(to),
	}); err != nil {
		s.logger.Warn("status change event not published",
			slog.String("order_id", o.ID), slog.Any("error", err))
	}
	return o, nil
}

// UpdateItems replaces the line items while the order is still pending.
func (s *Service) UpdateItems(ctx context.Context, id string, items []CreateOrderItemReq) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, ErrOrderLocked
	}
	o.Items = itemsFromRequest(items)
	o.Recalculate()
	o.UpdatedAt = time.Now().UTC()
	if !o.Valid() {
		return nil, fmt.Errorf("orders: %w: rejected items", shared.ErrValidation)
	}
	if err := s.repo.Put(ctx, o); err != nil {
		return nil, fmt.Errorf("orders: store items: %w", err)
	}
	return o, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns all valid orders.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.repo.List(ctx)
}

// ListActive returns non-terminal orders.
func (s *Service) ListActive(ctx context.Context) ([]Order, error) {
	return s.repo.ListActive(ctx)
}

// ListSettled returns orders awaiting or past financial sync.
func (s *Service) ListSettled(ctx context.Context) ([]Order, error) {
	return s.repo.ListSettled(ctx)
}

// Delete is the administrative purge; orders are never deleted as part of
// the normal lifecycle.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func itemsFromRequest(reqs []CreateOrderItemReq) []OrderItem {
	items := make([]OrderItem, 0, len(reqs))
	for _, it := range reqs {
		items = append(items, OrderItem{
			Product:   it.Product,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
		})
	}
	return items
}
