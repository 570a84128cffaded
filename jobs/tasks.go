package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/comanda-pos/comanda-pos/internal/finance"
	"github.com/comanda-pos/comanda-pos/internal/inventory"
	"github.com/comanda-pos/comanda-pos/internal/orders"
	"github.com/comanda-pos/comanda-pos/internal/weborders"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFinanceSyncSettled sweeps settled orders into the ledger.
	TaskFinanceSyncSettled = "finance:sync_settled"
	// TaskWebOrderExpiry rejects pending web orders past their TTL.
	TaskWebOrderExpiry = "weborders:expire"
	// TaskLowStockReport logs inventory items at or below their minimum.
	TaskLowStockReport = "inventory:lowstock_report"
)

// WebOrderExpiryPayload carries the cutoff for the expiry sweep.
type WebOrderExpiryPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

// NewFinanceSyncTask constructs the settlement sweep task.
func NewFinanceSyncTask() *asynq.Task {
	return asynq.NewTask(TaskFinanceSyncSettled, nil)
}

// NewWebOrderExpiryTask constructs the web-order expiry task.
func NewWebOrderExpiryTask(maxAge time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(WebOrderExpiryPayload{MaxAge: maxAge})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWebOrderExpiry, data), nil
}

// NewLowStockReportTask constructs the low-stock report task.
func NewLowStockReportTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockReport, nil)
}

// Tasks bundles the services the background handlers act on.
type Tasks struct {
	Orders    *orders.Service
	Finance   *finance.Service
	Inventory *inventory.Service
	WebOrders *weborders.Service
	Logger    *slog.Logger
}

// HandleFinanceSync re-runs settlement for every settled order. The sweep is
// safe to repeat: already synced orders are skipped by the payment guard.
func (t *Tasks) HandleFinanceSync(ctx context.Context, _ *asynq.Task) error {
	settled, err := t.Orders.ListSettled(ctx)
	if err != nil {
		return err
	}
	synced, err := t.Finance.SyncAllSettled(ctx, settled)
	if err != nil {
		return err
	}
	t.Logger.Info("settlement sweep finished",
		slog.Int("settled", len(settled)), slog.Int("synced", synced))
	return nil
}

// HandleWebOrderExpiry rejects pending web orders older than the payload TTL.
func (t *Tasks) HandleWebOrderExpiry(ctx context.Context, task *asynq.Task) error {
	var payload WebOrderExpiryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MaxAge <= 0 {
		return asynq.SkipRetry
	}
	expired, err := t.WebOrders.ExpirePending(ctx, payload.MaxAge)
	if err != nil {
		return err
	}
	if expired > 0 {
		t.Logger.Info("expired stale web orders", slog.Int("count", expired))
	}
	return nil
}

// HandleLowStockReport logs every item at or below its minimum level.
func (t *Tasks) HandleLowStockReport(ctx context.Context, _ *asynq.Task) error {
	items, err := t.Inventory.ListAtOrBelowLow(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		t.Logger.Warn("item needs restocking",
			slog.String("item", item.Name),
			slog.String("band", string(item.Band)),
			slog.Float64("current", item.Current),
			slog.Float64("min", item.Min))
	}
	return nil
}
