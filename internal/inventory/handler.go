package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/comanda-pos/comanda-pos/internal/platform/httpx"
)

// Handler exposes the inventory API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs an inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory", h.List)
	r.Get("/inventory/low", h.ListLow)
	r.Get("/inventory/{id}", h.Show)
	r.Post("/inventory", h.Create)
	r.Put("/inventory/{id}", h.Update)
	r.Post("/inventory/{id}/restock", h.Restock)
	r.Delete("/inventory/{id}", h.Delete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list inventory", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) ListLow(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAtOrBelowLow(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	it, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, it)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, "")
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request, id string) {
	var req UpsertItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	it, err := h.service.Upsert(r.Context(), id, req)
	if err != nil {
		h.logger.Error("upsert inventory item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, it)
}

func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	it, err := h.service.Restock(r.Context(), chi.URLParam(r, "id"), req.Qty)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, it)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
