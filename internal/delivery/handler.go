package delivery

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/comanda-pos/comanda-pos/internal/platform/httpx"
)

// Handler exposes the delivery API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a delivery handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/deliveries", h.List)
	r.Get("/deliveries/{orderID}", h.Show)
	r.Post("/deliveries/{orderID}/assign", h.Assign)
	r.Post("/deliveries/{orderID}/complete", h.Complete)
	r.Post("/deliveries/{orderID}/cancel", h.Cancel)

	r.Get("/drivers", h.ListDrivers)
	r.Post("/drivers", h.CreateDriver)
	r.Get("/drivers/{id}", h.ShowDriver)
	r.Delete("/drivers/{id}", h.DeleteDriver)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.logger.Error("list deliveries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	d, err := h.service.AssignDriver(r.Context(), chi.URLParam(r, "orderID"), req.DriverID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.CompleteDelivery(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.CancelDelivery(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.service.ListDrivers(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, drivers)
}

func (h *Handler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req CreateDriverRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	d, err := h.service.CreateDriver(r.Context(), req)
	if err != nil {
		h.logger.Error("create driver", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) ShowDriver(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetDriver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) DeleteDriver(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDriver(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
