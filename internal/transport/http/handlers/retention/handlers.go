package retentionhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cdms/internal/domain/auth"
	"cdms/internal/domain/ledger"
	"cdms/internal/domain/retention"
	"cdms/internal/transport/http/api"
	"cdms/internal/transport/http/middleware"
	"cdms/internal/transport/http/shared"
)

type Handler struct {
	Service *retention.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *retention.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/retention", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRetentionManage, h.Perms)).Post("/policies", h.handleCreatePolicy)
		r.With(middleware.RequirePermission(auth.PermRetentionRead, h.Perms)).Get("/policies", h.handleListPolicies)

		r.With(middleware.RequirePermission(auth.PermRetentionManage, h.Perms)).Post("/records", h.handleRegister)
		r.With(middleware.RequirePermission(auth.PermRetentionRead, h.Perms)).Get("/records", h.handleListRecords)
		r.With(middleware.RequirePermission(auth.PermRetentionRead, h.Perms)).Get("/records/{recordID}", h.handleGetRecord)

		r.With(middleware.RequirePermission(auth.PermRetentionManage, h.Perms)).Post("/records/{recordID}/extend", h.handleExtend)
		r.With(middleware.RequirePermission(auth.PermRetentionManage, h.Perms)).Post("/records/{recordID}/hold", h.handleApplyHold)
		r.With(middleware.RequirePermission(auth.PermRetentionManage, h.Perms)).Post("/records/{recordID}/release-hold", h.handleReleaseHold)
		r.With(middleware.RequirePermission(auth.PermRetentionEnforce, h.Perms)).Post("/records/{recordID}/delete", h.handleDelete)
		r.With(middleware.RequirePermission(auth.PermRetentionEnforce, h.Perms)).Post("/records/{recordID}/anonymize", h.handleAnonymize)
		r.With(middleware.RequirePermission(auth.PermRetentionManage, h.Perms)).Post("/records/{recordID}/lock", h.handleLock)
		r.With(middleware.RequirePermission(auth.PermRetentionManage, h.Perms)).Post("/records/{recordID}/unlock", h.handleUnlock)

		r.With(middleware.RequirePermission(auth.PermRetentionEnforce, h.Perms)).Post("/scan", h.handleScan)
		r.With(middleware.RequirePermission(auth.PermRetentionRead, h.Perms)).Get("/expiring", h.handleExpiring)
		r.With(middleware.RequirePermission(auth.PermRetentionRead, h.Perms)).Get("/statistics", h.handleStatistics)
	})
}

func actor(w http.ResponseWriter, r *http.Request, reqID string) (string, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return "", false
	}
	return user.UserID, true
}

func (h *Handler) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var input retention.CreatePolicyInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	policy, err := h.Service.CreatePolicy(r.Context(), input)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Created(w, policy, reqID)
}

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	policies, err := h.Service.ListPolicies(r.Context())
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"policies": policies, "total": len(policies)}, reqID)
}

type registerPayload struct {
	PolicyID    string `json:"policyId"`
	Category    string `json:"category"`
	RecordTable string `json:"recordTable"`
	RecordKey   string `json:"recordKey"`
	SubjectID   string `json:"subjectId"`
	CreatedDate string `json:"createdDate"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	createdDate := time.Now().UTC()
	if payload.CreatedDate != "" {
		if parsed, ok := v.Date("createdDate", payload.CreatedDate); ok {
			createdDate = parsed
		}
	}
	if v.Reject(w, reqID) {
		return
	}

	record, err := h.Service.Register(r.Context(), retention.RegisterInput{
		PolicyID:    payload.PolicyID,
		Category:    payload.Category,
		RecordTable: payload.RecordTable,
		RecordKey:   payload.RecordKey,
		SubjectID:   payload.SubjectID,
		CreatedDate: createdDate,
	}, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Created(w, record, reqID)
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)

	records, total, err := h.Service.List(r.Context(), r.URL.Query().Get("status"), page.Limit, page.Offset)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"records": records, "total": total}, reqID)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	record, err := h.Service.Get(r.Context(), chi.URLParam(r, "recordID"))
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, record, reqID)
}

type extendPayload struct {
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

func (h *Handler) handleExtend(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	var payload extendPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	record, err := h.Service.Extend(r.Context(), chi.URLParam(r, "recordID"), payload.Days, payload.Reason, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, record, reqID)
}

type holdPayload struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleApplyHold(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	var payload holdPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	record, err := h.Service.ApplyHold(r.Context(), chi.URLParam(r, "recordID"), payload.Reason, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, record, reqID)
}

func (h *Handler) handleReleaseHold(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	record, err := h.Service.ReleaseHold(r.Context(), chi.URLParam(r, "recordID"), actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, record, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	record, err := h.Service.Delete(r.Context(), chi.URLParam(r, "recordID"), actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, record, reqID)
}

func (h *Handler) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	record, err := h.Service.Anonymize(r.Context(), chi.URLParam(r, "recordID"), actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, record, reqID)
}

func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	record, err := h.Service.Get(r.Context(), chi.URLParam(r, "recordID"))
	if err != nil {
		respondError(w, reqID, err)
		return
	}

	lock, err := h.Service.Lock(r.Context(), record.RecordTable, record.RecordKey, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, lock, reqID)
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	record, err := h.Service.Get(r.Context(), chi.URLParam(r, "recordID"))
	if err != nil {
		respondError(w, reqID, err)
		return
	}

	if err := h.Service.Unlock(r.Context(), record.RecordTable, record.RecordKey, actorID); err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"released": true}, reqID)
}

type scanPayload struct {
	AsOf    string `json:"asOf"`
	Enforce bool   `json:"enforce"`
}

// handleScan is the pull entry point for the external scheduler: flag
// expired records, optionally applying each policy's expiry action.
func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	payload := scanPayload{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
			return
		}
	}

	asOf := time.Now().UTC()
	if payload.AsOf != "" {
		parsed, err := shared.ParseDate(payload.AsOf)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "validation_error", "asOf must be a valid date in YYYY-MM-DD format", reqID)
			return
		}
		asOf = parsed
	}

	if payload.Enforce {
		result, err := h.Service.EnforceExpired(r.Context(), asOf, actorID)
		if err != nil {
			respondError(w, reqID, err)
			return
		}
		api.Success(w, result, reqID)
		return
	}

	expired, err := h.Service.ScanExpired(r.Context(), asOf, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"expired": expired, "total": len(expired)}, reqID)
}

func (h *Handler) handleExpiring(w http.ResponseWriter, r *http.Request) {
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

	records, err := h.Service.ExpiringSoon(r.Context(), days)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"records": records, "total": len(records), "daysAhead": days}, reqID)
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
	var integrity *ledger.IntegrityError
	switch {
	case errors.Is(err, retention.ErrPolicyNotFound):
		api.Fail(w, http.StatusNotFound, "policy_not_found", err.Error(), reqID)
	case errors.Is(err, retention.ErrRecordNotFound):
		api.Fail(w, http.StatusNotFound, "record_not_found", err.Error(), reqID)
	case errors.Is(err, retention.ErrLockNotFound):
		api.Fail(w, http.StatusNotFound, "lock_not_found", err.Error(), reqID)

	case errors.Is(err, retention.ErrPolicyExists),
		errors.Is(err, retention.ErrDuplicateRecord):
		api.Fail(w, http.StatusConflict, "duplicate", err.Error(), reqID)

	case errors.Is(err, retention.ErrCategoryRequired),
		errors.Is(err, retention.ErrRecordRequired),
		errors.Is(err, retention.ErrInvalidAction),
		errors.Is(err, retention.ErrInvalidDays),
		errors.Is(err, retention.ErrReasonRequired),
		errors.Is(err, retention.ErrHolderRequired):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)

	case errors.Is(err, retention.ErrRecordHeld):
		api.Fail(w, http.StatusConflict, "legal_hold_active", err.Error(), reqID)
	case errors.Is(err, retention.ErrRecordTerminal),
		errors.Is(err, retention.ErrAlreadyHeld),
		errors.Is(err, retention.ErrNotHeld):
		api.Fail(w, http.StatusConflict, "state_error", err.Error(), reqID)
	case errors.Is(err, retention.ErrLockHeld),
		errors.Is(err, retention.ErrLockHolderMismatch):
		api.Fail(w, http.StatusConflict, "lock_conflict", err.Error(), reqID)

	case errors.As(err, &integrity):
		api.Fail(w, http.StatusInternalServerError, "integrity_error", integrity.Error(), reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "internal_error", "operation failed", reqID)
	}
}
