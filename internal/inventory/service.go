package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/comanda-pos/comanda-pos/internal/events"
	"github.com/comanda-pos/comanda-pos/internal/orders"
	"github.com/comanda-pos/comanda-pos/internal/shared"
)

// Service adjusts stock as orders come in and keeps status bands
// consistent with their inputs.
type Service struct {
	repo          *Repository
	bus           *events.Bus
	logger        *slog.Logger
	allowNegative bool
}

// NewService constructs an inventory service. allowNegative keeps the
// source system's oversell behavior; when false, stock is floored at zero
// and the clamp logged.
func NewService(repo *Repository, bus *events.Bus, logger *slog.Logger, allowNegative bool) *Service {
	return &Service{repo: repo, bus: bus, logger: logger, allowNegative: allowNegative}
}

// RegisterSubscriptions wires the service to order-created events. lookup
// resolves the freshly created order; replays are absorbed by ApplyOrder.
func (s *Service) RegisterSubscriptions(lookup func(ctx context.Context, id string) (*orders.Order, error)) {
	s.bus.Subscribe(events.OrderCreated, func(ctx context.Context, evt events.Event) error {
		var data events.OrderCreatedData
		if err := evt.Decode(&data); err != nil {
			return err
		}
		o, err := lookup(ctx, data.OrderID)
		if err != nil {
			return fmt.Errorf("inventory: load order %s: %w", data.OrderID, err)
		}
		return s.ApplyOrder(ctx, o.ID, o.Items)
	})
}

// ApplyOrder decrements stock for each order line, exactly once per order.
// The per-order marker makes replays of order.created no-ops; idempotency
// cannot be derived from the stock level itself.
func (s *Service) ApplyOrder(ctx context.Context, orderID string, lines []orders.OrderItem) error {
	first, err := s.repo.MarkOrderApplied(ctx, orderID)
	if err != nil {
		return fmt.Errorf("inventory: mark order %s: %w", orderID, err)
	}
	if !first {
		return nil
	}

	for _, line := range lines {
		if err := s.adjust(ctx, line.Product, -float64(line.Qty)); err != nil {
			// isolate per line so one unknown product does not block the rest
			s.logger.Warn("stock adjustment skipped",
				slog.String("order_id", orderID),
				slog.String("product", line.Product),
				slog.Any("error", err))
		}
	}
	return nil
}

// Restock adds stock to an item.
func (s *Service) Restock(ctx context.Context, id string, qty float64) (*Item, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyDelta(ctx, it, qty); err != nil {
		return nil, err
	}
	return it, nil
}

// Upsert creates or replaces an item, recomputing its band.
func (s *Service) Upsert(ctx context.Context, id string, req UpsertItemRequest) (*Item, error) {
	it := &Item{
		ID:        id,
		Name:      req.Name,
		Current:   req.Current,
		Min:       req.Min,
		Max:       req.Max,
		Unit:      req.Unit,
		CostPrice: req.CostPrice,
		UpdatedAt: time.Now().UTC(),
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.Band = BandFor(it.Current, it.Min, it.Max)
	if err := s.repo.Put(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	return s.repo.Get(ctx, id)
}

// List returns all items.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	return s.repo.List(ctx)
}

// ListAtOrBelowLow returns items in the low or critical band.
func (s *Service) ListAtOrBelowLow(ctx context.Context) ([]Item, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	flagged := items[:0]
	for _, it := range items {
		if it.Band == BandLow || it.Band == BandCritical {
			flagged = append(flagged, it)
		}
	}
	return flagged, nil
}

// Delete removes an item.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) adjust(ctx context.Context, product string, delta float64) error {
	it, err := s.repo.GetByName(ctx, product)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// untracked product, nothing to decrement
			return nil
		}
		return err
	}
	return s.applyDelta(ctx, it, delta)
}

func (s *Service) applyDelta(ctx context.Context, it *Item, delta float64) error {
	next := it.Current + delta
	if next < 0 && !s.allowNegative {
		s.logger.Warn("stock clamped at zero",
			slog.String("item", it.Name), slog.Float64("requested", next))
		next = 0
	}
	it.Current = next
	it.Band = BandFor(it.Current, it.Min, it.Max)
	it.UpdatedAt = time.Now().UTC()
	if err := s.repo.Put(ctx, it); err != nil {
		return fmt.Errorf("inventory: store %s: %w", it.Name, err)
	}

	if err := s.bus.Publish(ctx, events.InventoryAdjusted, events.InventoryAdjustedData{
		ItemID: it.ID, Delta: delta, Band: string(it.Band),
	}); err != nil {
		s.logger.Warn("inventory event not published", slog.Any("error", err))
	}
	return nil
}
