package inventory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/comanda-pos/comanda-pos/internal/platform/store"
	"github.com/comanda-pos/comanda-pos/internal/shared"
)

// Collection is the record-store collection holding inventory items.
const Collection = "inventory"

// Repository persists inventory items in the shared record store.
type Repository struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRepository constructs an inventory repository.
func NewRepository(s *store.Store, logger *slog.Logger) *Repository {
	return &Repository{store: s, logger: logger}
}

// Put stores an item.
func (r *Repository) Put(ctx context.Context, it *Item) error {
	return r.store.Put(ctx, Collection, it.ID, it)
}

// Get loads one item.
func (r *Repository) Get(ctx context.Context, id string) (*Item, error) {
	var it Item
	if err := r.store.Get(ctx, Collection, id, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// GetByName finds an item by its (case-insensitive) product name. Order
// lines reference products by name, as the source system did.
func (r *Repository) GetByName(ctx context.Context, name string) (*Item, error) {
	items, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if strings.EqualFold(items[i].Name, name) {
			return &items[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

// List returns every item sorted by name.
func (r *Repository) List(ctx context.Context) ([]Item, error) {
	raw, err := r.store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(raw))
	for _, data := range raw {
		var it Item
		if err := json.Unmarshal(data, &it); err != nil {
			if r.logger != nil {
				r.logger.Warn("dropping malformed inventory record", slog.Any("error", err))
			}
			continue
		}
		if it.ID == "" || it.Name == "" {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes an item.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, Collection, id)
}

// MarkOrderApplied records that an order's lines hit the stock, returning
// false when the order was already applied.
func (r *Repository) MarkOrderApplied(ctx context.Context, orderID string) (bool, error) {
	return r.store.SetMarker(ctx, "markers:inventory:applied:"+orderID, 0)
}
