package orders

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/comanda-pos/comanda-pos/internal/platform/store"
)

// Collection is the record-store collection holding orders.
const Collection = "orders"

// SeqCounter is the counter key behind order sequence numbers. It lives
// outside the "orders:*" key space so collection scans never pick it up.
const SeqCounter = "seq:orders"

// Repository persists orders in the shared record store. Reads sanitize
// every record: malformed entries are dropped with a warning instead of
// failing the whole listing.
type Repository struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRepository constructs an order repository.
func NewRepository(s *store.Store, logger *slog.Logger) *Repository {
	return &Repository{store: s, logger: logger}
}

// Put stores an order.
func (r *Repository) Put(ctx context.Context, o *Order) error {
	return r.store.Put(ctx, Collection, o.ID, o)
}

// Get loads one order. Corrupt records are reported as not found.
func (r *Repository) Get(ctx context.Context, id string) (*Order, error) {
	var o Order
	if err := r.store.Get(ctx, Collection, id, &o); err != nil {
		return nil, err
	}
	if !o.Valid() {
		r.warnDropped(id)
		return nil, ErrCorruptRecord
	}
	return &o, nil
}

// List returns every valid order, newest sequence first.
func (r *Repository) List(ctx context.Context) ([]Order, error) {
	raw, err := r.store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(raw))
	for _, data := range raw {
		var o Order
		if err := json.Unmarshal(data, &o); err != nil {
			r.warnDropped("?")
			continue
		}
		if !o.Valid() {
			r.warnDropped(o.ID)
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out, nil
}

// ListActive returns valid orders that have not reached a terminal state.
func (r *Repository) ListActive(ctx context.Context) ([]Order, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, o := range all {
		if !IsTerminal(o.Status) {
			active = append(active, o)
		}
	}
	return active, nil
}

// ListSettled returns valid orders in the delivered/picked-up terminal.
func (r *Repository) ListSettled(ctx context.Context) ([]Order, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	settled := all[:0]
	for _, o := range all {
		if Settled(o.Status) {
			settled = append(settled, o)
		}
	}
	return settled, nil
}

// Delete removes an order record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, Collection, id)
}

// NextSeq allocates the next order sequence number.
func (r *Repository) NextSeq(ctx context.Context) (int64, error) {
	return r.store.NextSeq(ctx, SeqCounter)
}

func (r *Repository) warnDropped(id string) {
	if r.logger != nil {
		r.logger.Warn("dropping malformed order record", slog.String("order_id", id))
	}
}
