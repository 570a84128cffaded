package finance

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/comanda-pos/comanda-pos/internal/platform/httpx"
)

// Handler exposes the finance API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	sweep   func(r *http.Request) (int, error)
}

// NewHandler constructs a finance handler. sweep runs the settled-order
// sweep on demand, mirroring what the cron job does in the background.
func NewHandler(logger *slog.Logger, service *Service, sweep func(r *http.Request) (int, error)) *Handler {
	return &Handler{logger: logger, service: service, sweep: sweep}
}

// MountRoutes attaches finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/finance/payments", h.ListPayments)
	r.Get("/finance/records", h.ListRecords)
	r.Get("/finance/payments/order/{orderID}", h.PaymentForOrder)
	r.Post("/finance/sync", h.Sync)
	r.Post("/finance/payments/order/{orderID}/refund", h.Refund)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(r.Context())
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListRecords(r.Context())
	if err != nil {
		h.logger.Error("list records", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) PaymentForOrder(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.PaymentForOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	synced, err := h.sweep(r)
	if err != nil {
		h.logger.Error("settlement sweep", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"synced": synced})
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Refund(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
