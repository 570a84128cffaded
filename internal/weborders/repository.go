package weborders

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/comanda-pos/comanda-pos/internal/platform/store"
)

// Collection is the record-store collection holding the pending queue.
const Collection = "weborders"

// acceptClaimTTL bounds how long a crashed claimant can block acceptance.
// The cross-reference check in Accept is the durable at-most-once guard;
// the claim only narrows the concurrent window, so it must expire.
const acceptClaimTTL = 30 * time.Second

// Repository persists web orders in the shared record store.
type Repository struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRepository constructs a web-order repository.
func NewRepository(s *store.Store, logger *slog.Logger) *Repository {
	return &Repository{store: s, logger: logger}
}

// Put stores a web order.
func (r *Repository) Put(ctx context.Context, wo *WebOrder) error {
	return r.store.Put(ctx, Collection, wo.ID, wo)
}

// Get loads one web order.
func (r *Repository) Get(ctx context.Context, id string) (*WebOrder, error) {
	var wo WebOrder
	if err := r.store.Get(ctx, Collection, id, &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

// List returns all web orders, oldest first (queue order).
func (r *Repository) List(ctx context.Context) ([]WebOrder, error) {
	raw, err := r.store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	out := make([]WebOrder, 0, len(raw))
	for _, data := range raw {
		var wo WebOrder
		if err := json.Unmarshal(data, &wo); err != nil {
			if r.logger != nil {
				r.logger.Warn("dropping malformed web order", slog.Any("error", err))
			}
			continue
		}
		out = append(out, wo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MarkAccepting claims the right to promote a web order, returning false
// when another caller already claimed it. The claim expires on its own so
// a claimant that dies mid-promotion never wedges the web order.
func (r *Repository) MarkAccepting(ctx context.Context, id string) (bool, error) {
	return r.store.SetMarker(ctx, "markers:weborders:accepting:"+id, acceptClaimTTL)
}

// ReleaseAccepting rolls back a promotion claim whose processing failed so
// the web order can be accepted again.
func (r *Repository) ReleaseAccepting(ctx context.Context, id string) error {
	return r.store.ClearMarker(ctx, "markers:weborders:accepting:"+id)
}
