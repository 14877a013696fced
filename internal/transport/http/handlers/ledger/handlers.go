package ledgerhandler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cdms/internal/domain/auth"
	"cdms/internal/domain/ledger"
	"cdms/internal/transport/http/api"
	"cdms/internal/transport/http/middleware"
	"cdms/internal/transport/http/shared"
)

type Handler struct {
	Service *ledger.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *ledger.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

// RegisterRoutes exposes the ledger read-side. There is no write endpoint:
// entries only ever come from domain transactions.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLedgerRead, h.Perms)).Get("/scopes", h.handleScopes)
		r.With(middleware.RequirePermission(auth.PermLedgerVerify, h.Perms)).Get("/{scope}/verify", h.handleVerify)
		r.With(middleware.RequirePermission(auth.PermLedgerRead, h.Perms)).Get("/{scope}", h.handleHistory)
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	result, err := h.Service.Verify(r.Context(), chi.URLParam(r, "scope"))
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, result, reqID)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 100, 500)

	entries, total, err := h.Service.History(r.Context(), chi.URLParam(r, "scope"), page.Limit, page.Offset)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"entries": entries, "total": total}, reqID)
}

func (h *Handler) handleScopes(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	scopes, err := h.Service.Scopes(r.Context(), r.URL.Query().Get("prefix"), limit)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"scopes": scopes, "total": len(scopes)}, reqID)
}

func respondError(w http.ResponseWriter, reqID string, err error) {
	switch {
	case err == ledger.ErrScopeRequired:
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
	case ledger.IsIntegrityError(err):
		api.Fail(w, http.StatusInternalServerError, "integrity_error", err.Error(), reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "internal_error", "operation failed", reqID)
	}
}
