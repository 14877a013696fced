package reportshandler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cdms/internal/domain/auth"
	"cdms/internal/domain/reports"
	"cdms/internal/transport/http/api"
	"cdms/internal/transport/http/middleware"
)

type Handler struct {
	Service *reports.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *reports.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/retention", h.handleRetentionSummary)
	})
}

func (h *Handler) handleRetentionSummary(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.Fail(w, http.StatusBadRequest, "validation_error", "days must be a positive integer", reqID)
			return
		}
		days = parsed
	}

	pdf, err := h.Service.RetentionSummary(r.Context(), days)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to generate report", reqID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=retention-summary.pdf")
	_, _ = w.Write(pdf)
}
