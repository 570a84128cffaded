package delivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/comanda-pos/comanda-pos/internal/platform/store"
)

// Record-store collections.
const (
	Collection        = "deliveries"
	DriversCollection = "drivers"
)

// Repository persists delivery records and drivers in the shared record
// store.
type Repository struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRepository constructs a delivery repository.
func NewRepository(s *store.Store, logger *slog.Logger) *Repository {
	return &Repository{store: s, logger: logger}
}

// PutOrder stores a delivery record under its order id.
func (r *Repository) PutOrder(ctx context.Context, d *Order) error {
	return r.store.Put(ctx, Collection, d.OrderID, d)
}

// GetOrder loads the delivery record for an order.
func (r *Repository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var d Order
	if err := r.store.Get(ctx, Collection, orderID, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListOrders returns all delivery records, newest first.
func (r *Repository) ListOrders(ctx context.Context) ([]Order, error) {
	raw, err := r.store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(raw))
	for _, data := range raw {
		var d Order
		if err := json.Unmarshal(data, &d); err != nil {
			if r.logger != nil {
				r.logger.Warn("dropping malformed delivery record", slog.Any("error", err))
			}
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderSeq > out[j].OrderSeq })
	return out, nil
}

// PutDriver stores a driver.
func (r *Repository) PutDriver(ctx context.Context, d *Driver) error {
	return r.store.Put(ctx, DriversCollection, d.ID, d)
}

// GetDriver loads one driver.
func (r *Repository) GetDriver(ctx context.Context, id string) (*Driver, error) {
	var d Driver
	if err := r.store.Get(ctx, DriversCollection, id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDrivers returns all drivers sorted by name.
func (r *Repository) ListDrivers(ctx context.Context) ([]Driver, error) {
	raw, err := r.store.List(ctx, DriversCollection)
	if err != nil {
		return nil, err
	}
	out := make([]Driver, 0, len(raw))
	for _, data := range raw {
		var d Driver
		if err := json.Unmarshal(data, &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteDriver removes a driver record.
func (r *Repository) DeleteDriver(ctx context.Context, id string) error {
	return r.store.Delete(ctx, DriversCollection, id)
}
