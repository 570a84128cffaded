package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/comanda-pos/comanda-pos/internal/delivery"
	"github.com/comanda-pos/comanda-pos/internal/finance"
	"github.com/comanda-pos/comanda-pos/internal/inventory"
	"github.com/comanda-pos/comanda-pos/internal/observability"
	"github.com/comanda-pos/comanda-pos/internal/orders"
	"github.com/comanda-pos/comanda-pos/internal/weborders"
	"github.com/comanda-pos/comanda-pos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	OrdersHandler    *orders.Handler
	InventoryHandler *inventory.Handler
	FinanceHandler   *finance.Handler
	DeliveryHandler  *delivery.Handler
	WebOrdersHandler *weborders.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.OrdersHandler.MountRoutes(r)
	params.InventoryHandler.MountRoutes(r)
	params.FinanceHandler.MountRoutes(r)
	params.DeliveryHandler.MountRoutes(r)
	params.WebOrdersHandler.MountRoutes(r)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
