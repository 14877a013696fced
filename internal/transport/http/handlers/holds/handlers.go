package holdshandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cdms/internal/domain/auth"
	"cdms/internal/domain/holds"
	"cdms/internal/transport/http/api"
	"cdms/internal/transport/http/middleware"
	"cdms/internal/transport/http/shared"
)

type Handler struct {
	Service *holds.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *holds.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/holds", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermHoldsManage, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermHoldsRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermHoldsRead, h.Perms)).Get("/check", h.handleCheck)
		r.With(middleware.RequirePermission(auth.PermHoldsRead, h.Perms)).Get("/statistics", h.handleStatistics)
		r.With(middleware.RequirePermission(auth.PermHoldsRead, h.Perms)).Get("/{holdID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermHoldsManage, h.Perms)).Post("/{holdID}/release", h.handleRelease)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var input holds.CreateHoldInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	hold, err := h.Service.Create(r.Context(), input, user.UserID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Created(w, hold, reqID)
}

type releaseRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var payload releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	hold, err := h.Service.Release(r.Context(), chi.URLParam(r, "holdID"), user.UserID, payload.Reason)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, hold, reqID)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	result, err := h.Service.Check(r.Context(), r.URL.Query().Get("subject"), r.URL.Query().Get("category"))
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, result, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	hold, err := h.Service.Get(r.Context(), chi.URLParam(r, "holdID"))
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, hold, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)
	activeOnly := r.URL.Query().Get("active") == "true"

	list, total, err := h.Service.List(r.Context(), activeOnly, page.Limit, page.Offset)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"holds": list, "total": total}, reqID)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	stats, err := h.Service.Statistics(r.Context())
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, stats, reqID)
}

func respondError(w http.ResponseWriter, reqID string, err error) {
	switch {
	case errors.Is(err, holds.ErrHoldNotFound):
		api.Fail(w, http.StatusNotFound, "hold_not_found", err.Error(), reqID)
	case errors.Is(err, holds.ErrHoldAlreadyReleased):
		api.Fail(w, http.StatusConflict, "hold_already_released", err.Error(), reqID)
	case errors.Is(err, holds.ErrInvalidHoldType),
		errors.Is(err, holds.ErrReasonTooShort),
		errors.Is(err, holds.ErrScopeConflict),
		errors.Is(err, holds.ErrScopeMissing):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "internal_error", "operation failed", reqID)
	}
}
