package delivery

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

var (
	// ErrDriverBusy rejects assigning an unavailable driver.
	ErrDriverBusy = fmt.Errorf("driver not available: %w", shared.ErrPrecondition)
	// ErrDriverHasOrders rejects deleting a driver with active orders.
	ErrDriverHasOrders = fmt.Errorf("driver has active orders: %w", shared.ErrPrecondition)
	// ErrNoDriverAssigned rejects completing a delivery without a driver.
	ErrNoDriverAssigned = fmt.Errorf("no driver assigned: %w", shared.ErrPrecondition)
)

// StatusMirror pushes a delivery outcome back onto the owning order.
type StatusMirror func(ctx context.Context, orderID string, to orders.Status) error

// Service dispatches delivery-channel orders and manages driver capacity.
type Service struct {
	repo   *Repository
	bus    *events.Bus
	logger *slog.Logger
	mirror StatusMirror
}

// NewService constructs a delivery service. mirror may be nil when order
// mirroring is handled elsewhere (tests).
func NewService(repo *Repository, bus *events.Bus, logger *slog.Logger, mirror StatusMirror) *Service {
	return &Service{repo: repo, bus: bus, logger: logger, mirror: mirror}
}

// RegisterSubscriptions dispatches a tracking record for every created
// delivery-channel order. Replays are no-ops: the record is keyed by order.
func (s *Service) RegisterSubscriptions(lookup func(ctx context.Context, id string) (*orders.Order, error)) {
	s.bus.Subscribe(events.OrderCreated, func(ctx context.Context, evt events.Event) error {
		var data events.OrderCreatedData
		if err := evt.Decode(&data); err != nil {
			return err
		}
		if orders.Channel(data.Channel) != orders.ChannelDelivery {
			return nil
		}
		o, err := lookup(ctx, data.OrderID)
		if err != nil {
			return fmt.Errorf("delivery: load order %s: %w", data.OrderID, err)
		}
		return s.Dispatch(ctx, o)
	})
}

// Dispatch creates the tracking record for a delivery order. Calling it
// again for the same order leaves the existing record untouched.
func (s *Service) Dispatch(ctx context.Context, o *orders.Order) error {
	if o.Channel != orders.ChannelDelivery {
		return nil
	}
	if _, err := s.repo.GetOrder(ctx, o.ID); err == nil {
		return nil // already dispatched
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	now := time.Now().UTC()
	d := &Order{
		OrderID:       o.ID,
		OrderSeq:      o.Seq,
		Customer:      o.Customer,
		Address:       o.Address,
		Phone:         o.Phone,
		Status:        StatusPreparing,
		EstimatedTime: "40-55 min",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return s.repo.PutOrder(ctx, d)
}

// AssignDriver puts an available driver on the delivery and flips both
// records. The availability check is advisory across instances; the
// single-slot driver flag keeps accidental double assignment visible.
func (s *Service) AssignDriver(ctx context.Context, orderID, driverID string) (*Order, error) {
	d, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusDelivered || d.Status == StatusCancelled {
		return nil, fmt.Errorf("delivery already closed: %w", shared.ErrPrecondition)
	}
	drv, err := s.repo.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !drv.Available {
		return nil, ErrDriverBusy
	}

	drv.Available = false
	drv.CurrentOrders++
	if err := s.repo.PutDriver(ctx, drv); err != nil {
		return nil, err
	}

	d.DriverID = drv.ID
	d.Status = StatusOutForDelivery
	d.UpdatedAt = time.Now().UTC()
	if err := s.repo.PutOrder(ctx, d); err != nil {
		return nil, err
	}

	if err := s.bus.Publish(ctx, events.DeliveryAssigned, events.DeliveryAssignedData{
		OrderID: orderID, DriverID: driverID,
	}); err != nil {
		s.logger.Warn("delivery assigned event not published", slog.Any("error", err))
	}
	return d, nil
}

// CompleteDelivery closes the delivery, frees the driver and mirrors the
// owning order into its settled terminal.
func (s *Service) CompleteDelivery(ctx context.Context, orderID string) (*Order, error) {
	d, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusDelivered {
		return d, nil
	}
	if d.DriverID == "" {
		return nil, ErrNoDriverAssigned
	}

	if err := s.freeDriver(ctx, d.DriverID); err != nil {
		return nil, err
	}

	d.Status = StatusDelivered
	d.UpdatedAt = time.Now().UTC()
	if err := s.repo.PutOrder(ctx, d); err != nil {
		return nil, err
	}

	if err := s.bus.Publish(ctx, events.DeliveryCompleted, events.DeliveryCompletedData{
		OrderID: orderID,
	}); err != nil {
		s.logger.Warn("delivery completed event not published", slog.Any("error", err))
	}
	s.mirrorOrder(ctx, orderID, orders.StatusDelivered)
	return d, nil
}

// CancelDelivery closes the delivery as cancelled, freeing the driver if
// one was assigned, and mirrors the cancellation onto the order.
func (s *Service) CancelDelivery(ctx context.Context, orderID string) (*Order, error) {
	d, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusCancelled {
		return d, nil
	}
	if d.Status == StatusDelivered {
		return nil, fmt.Errorf("delivery already completed: %w", shared.ErrPrecondition)
	}
	if d.DriverID != "" {
		if err := s.freeDriver(ctx, d.DriverID); err != nil {
			return nil, err
		}
	}

	d.Status = StatusCancelled
	d.UpdatedAt = time.Now().UTC()
	if err := s.repo.PutOrder(ctx, d); err != nil {
		return nil, err
	}
	s.mirrorOrder(ctx, orderID, orders.StatusCancelled)
	return d, nil
}

// GetOrder returns the tracking record for an order.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// ListOrders returns all tracking records.
func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	return s.repo.ListOrders(ctx)
}

// CreateDriver registers a new driver, available by default.
func (s *Service) CreateDriver(ctx context.Context, req CreateDriverRequest) (*Driver, error) {
	d := &Driver{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Phone:     req.Phone,
		Vehicle:   req.Vehicle,
		Available: true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.PutDriver(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDriver returns one driver.
func (s *Service) GetDriver(ctx context.Context, id string) (*Driver, error) {
	return s.repo.GetDriver(ctx, id)
}

// ListDrivers returns all drivers.
func (s *Service) ListDrivers(ctx context.Context) ([]Driver, error) {
	return s.repo.ListDrivers(ctx)
}

// DeleteDriver removes a driver without active orders.
func (s *Service) DeleteDriver(ctx context.Context, id string) error {
	d, err := s.repo.GetDriver(ctx, id)
	if err != nil {
		return err
	}
	if d.CurrentOrders > 0 {
		return ErrDriverHasOrders
	}
	return s.repo.DeleteDriver(ctx, id)
}

func (s *Service) freeDriver(ctx context.Context, driverID string) error {
	drv, err := s.repo.GetDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil // driver purged mid-flight, nothing to free
		}
		return err
	}
	drv.Available = true
	if drv.CurrentOrders > 0 {
		drv.CurrentOrders--
	}
	return s.repo.PutDriver(ctx, drv)
}

func (s *Service) mirrorOrder(ctx context.Context, orderID string, to orders.Status) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror(ctx, orderID, to); err != nil {
		// order may already be there; mirroring is best effort
		s.logger.Warn("order status mirror failed",
			slog.String("order_id", orderID), slog.String("to", string(to)), slog.Any("error", err))
	}
}
