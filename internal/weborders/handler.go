package weborders

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/comanda-pos/comanda-pos/internal/platform/httpx"
)

// Handler exposes the web-order intake and decision API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a web-order handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches web-order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/weborders", h.Submit)
	r.Get("/weborders", h.List)
	r.Get("/weborders/pending", h.ListPending)
	r.Get("/weborders/{id}", h.Show)
	r.Post("/weborders/{id}/accept", h.Accept)
	r.Post("/weborders/{id}/reject", h.Reject)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	wo, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.logger.Error("submit web order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, wo)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPending(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	wo, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, wo)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	wo, err := h.service.Accept(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("accept web order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, wo)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	wo, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, wo)
}
