package rightshandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cdms/internal/domain/auth"
	"cdms/internal/domain/ledger"
	"cdms/internal/domain/reports"
	"cdms/internal/domain/rights"
	"cdms/internal/transport/http/api"
	"cdms/internal/transport/http/middleware"
	"cdms/internal/transport/http/shared"
)

type Handler struct {
	Service *rights.Service
	Reports *reports.Service
	Perms   middleware.PermissionStore
	Idem    *middleware.IdempotencyStore
}

func NewHandler(service *rights.Service, reportsSvc *reports.Service, perms middleware.PermissionStore, idem *middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Reports: reportsSvc, Perms: perms, Idem: idem}
}

// RegisterRoutes mounts one handler set for all four request kinds; {kind}
// is parsed into the tagged type before anything else runs.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/requests/{kind}", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRightsManage, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermRightsRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermRightsRead, h.Perms)).Get("/pending", h.handlePending)
		r.With(middleware.RequirePermission(auth.PermRightsRead, h.Perms)).Get("/statistics", h.handleStatistics)

		r.Route("/{requestID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermRightsRead, h.Perms)).Get("/", h.handleGet)
			r.With(middleware.RequirePermission(auth.PermRightsRead, h.Perms)).Get("/items", h.handleItems)
			r.With(middleware.RequirePermission(auth.PermRightsRead, h.Perms)).Get("/history", h.handleHistory)
			r.With(middleware.RequirePermission(auth.PermRightsRead, h.Perms)).Get("/recipients", h.handleRecipients)
			r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/report", h.handleReport)

			r.With(middleware.RequirePermission(auth.PermRightsManage, h.Perms)).Post("/items", h.handleAddItem)
			r.With(middleware.RequirePermission(auth.PermRightsReview, h.Perms)).Post("/items/{itemID}/review", h.handleReviewItem)
			r.With(middleware.RequirePermission(auth.PermRightsReview, h.Perms)).Post("/items/{itemID}/apply", h.handleApplyItem)
			r.With(middleware.RequirePermission(auth.PermRightsReview, h.Perms)).Post("/items/{itemID}/lift", h.handleLiftItem)

			r.With(middleware.RequirePermission(auth.PermRightsManage, h.Perms)).Post("/extend", h.handleExtend)
			r.With(middleware.RequirePermission(auth.PermRightsReview, h.Perms)).Post("/complete", h.handleComplete)
			r.With(middleware.RequirePermission(auth.PermRightsReview, h.Perms)).Post("/reject", h.handleReject)
			r.With(middleware.RequirePermission(auth.PermRightsReview, h.Perms)).Post("/override", h.handleOverride)

			r.With(middleware.RequirePermission(auth.PermRightsManage, h.Perms)).Post("/recipients", h.handleAddRecipient)
			r.With(middleware.RequirePermission(auth.PermRightsManage, h.Perms)).Post("/recipients/{recipientID}/notify", h.handleNotify)
			r.With(middleware.RequirePermission(auth.PermRightsManage, h.Perms)).Post("/recipients/{recipientID}/confirm", h.handleConfirm)
		})
	})
}

func requestKind(w http.ResponseWriter, r *http.Request, reqID string) (rights.Kind, bool) {
	kind := rights.Kind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		api.Fail(w, http.StatusNotFound, "unknown_kind", "request kind must be erasure, rectification, restriction or objection", reqID)
		return "", false
	}
	return kind, true
}

func actor(w http.ResponseWriter, r *http.Request, reqID string) (string, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return "", false
	}
	return user.UserID, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	var input rights.CreateRequestInput
	if err := json.Unmarshal(body, &input); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	input.Kind = kind

	// Upstream retries carry an Idempotency-Key so a resubmitted request
	// does not open a second statutory clock.
	idemKey := r.Header.Get("Idempotency-Key")
	endpoint := "requests.create." + string(kind)
	requestHash := middleware.RequestHash(body)
	if idemKey != "" {
		stored, found, err := h.Idem.Check(r.Context(), actorID, endpoint, idemKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", reqID)
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if found {
			api.Success(w, json.RawMessage(stored), reqID)
			return
		}
	}

	request, err := h.Service.CreateRequest(r.Context(), input, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}

	if idemKey != "" {
		raw, err := json.Marshal(request)
		if err == nil {
			err = h.Idem.Save(r.Context(), actorID, endpoint, idemKey, requestHash, raw)
		}
		if err != nil {
			slog.Warn("idempotency save failed", "err", err)
		}
	}
	api.Created(w, request, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	request, err := h.Service.GetRequest(r.Context(), kind, chi.URLParam(r, "requestID"))
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, request, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 50, 200)

	list, total, err := h.Service.ListRequests(r.Context(), kind, r.URL.Query().Get("status"), page.Limit, page.Offset)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"requests": list, "total": total}, reqID)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	list, err := h.Service.PendingRequests(r.Context(), kind)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"requests": list, "total": len(list)}, reqID)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	stats, err := h.Service.Statistics(r.Context(), kind)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, stats, reqID)
}

func (h *Handler) handleItems(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	items, err := h.Service.Items(r.Context(), kind, chi.URLParam(r, "requestID"))
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"items": items, "total": len(items)}, reqID)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 100, 500)

	entries, total, err := h.Service.History(r.Context(), kind, chi.URLParam(r, "requestID"), page.Limit, page.Offset)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"entries": entries, "total": total}, reqID)
}

func (h *Handler) handleRecipients(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	recipients, err := h.Service.Recipients(r.Context(), kind, chi.URLParam(r, "requestID"))
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"recipients": recipients, "total": len(recipients)}, reqID)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")

	pdf, err := h.Reports.RequestCertificate(r.Context(), kind, requestID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-request-%s.pdf", kind, requestID))
	_, _ = w.Write(pdf)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	var input rights.AddItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	item, err := h.Service.AddItem(r.Context(), kind, chi.URLParam(r, "requestID"), input, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Created(w, item, reqID)
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

func (h *Handler) handleReviewItem(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	var payload reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	item, err := h.Service.ReviewItem(r.Context(), kind, chi.URLParam(r, "requestID"),
		chi.URLParam(r, "itemID"), payload.Decision, payload.Reason, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, item, reqID)
}

// handleApplyItem finalizes an approved item. Erasure requests execute the
// chosen method; the other kinds apply the change.
func (h *Handler) handleApplyItem(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	requestID := chi.URLParam(r, "requestID")
	itemID := chi.URLParam(r, "itemID")

	var item *rights.Item
	var err error
	if kind == rights.KindErasure {
		item, err = h.Service.ExecuteItem(r.Context(), kind, requestID, itemID, actorID)
	} else {
		item, err = h.Service.ApplyItem(r.Context(), kind, requestID, itemID, actorID)
	}
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, item, reqID)
}

type liftRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleLiftItem(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	var payload liftRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	item, err := h.Service.LiftRestriction(r.Context(), kind, chi.URLParam(r, "requestID"),
		chi.URLParam(r, "itemID"), payload.Reason, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, item, reqID)
}

type extendRequest struct {
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

func (h *Handler) handleExtend(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	var payload extendRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	request, err := h.Service.ExtendDueDate(r.Context(), kind, chi.URLParam(r, "requestID"),
		payload.Days, payload.Reason, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, request, reqID)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	request, summary, err := h.Service.Complete(r.Context(), kind, chi.URLParam(r, "requestID"), actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, map[string]any{"request": request, "items": summary}, reqID)
}

type closeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleClose(w, r, (*rights.Service).Reject)
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	h.handleClose(w, r, (*rights.Service).Override)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request,
	close func(*rights.Service, context.Context, rights.Kind, string, string, string) (*rights.Request, error)) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	var payload closeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	request, err := close(h.Service, r.Context(), kind, chi.URLParam(r, "requestID"), payload.Reason, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, request, reqID)
}

func (h *Handler) handleAddRecipient(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	var input rights.AddRecipientInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	recipient, err := h.Service.AddRecipient(r.Context(), kind, chi.URLParam(r, "requestID"), input, actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Created(w, recipient, reqID)
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	recipient, err := h.Service.MarkNotified(r.Context(), kind, chi.URLParam(r, "requestID"),
		chi.URLParam(r, "recipientID"), actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, recipient, reqID)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := requestKind(w, r, reqID)
	if !ok {
		return
	}
	actorID, ok := actor(w, r, reqID)
	if !ok {
		return
	}

	recipient, err := h.Service.ConfirmReceipt(r.Context(), kind, chi.URLParam(r, "requestID"),
		chi.URLParam(r, "recipientID"), actorID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	api.Success(w, recipient, reqID)
}

func respondError(w http.ResponseWriter, reqID string, err error) {
	var integrity *ledger.IntegrityError
	switch {
	case errors.Is(err, rights.ErrRequestNotFound):
		api.Fail(w, http.StatusNotFound, "request_not_found", err.Error(), reqID)
	case errors.Is(err, rights.ErrItemNotFound):
		api.Fail(w, http.StatusNotFound, "item_not_found", err.Error(), reqID)
	case errors.Is(err, rights.ErrRecipientNotFound):
		api.Fail(w, http.StatusNotFound, "recipient_not_found", err.Error(), reqID)

	case errors.Is(err, rights.ErrInvalidKind),
		errors.Is(err, rights.ErrSubjectRequired),
		errors.Is(err, rights.ErrInvalidGrounds),
		errors.Is(err, rights.ErrRecordRequired),
		errors.Is(err, rights.ErrValuesRequired),
		errors.Is(err, rights.ErrInvalidMethod),
		errors.Is(err, rights.ErrInvalidDecision),
		errors.Is(err, rights.ErrRecipientName),
		errors.Is(err, rights.ErrInvalidExtension),
		errors.Is(err, rights.ErrReviewReasonTooShort),
		errors.Is(err, rights.ErrCloseReasonTooShort):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)

	case errors.Is(err, rights.ErrItemOnHold):
		api.Fail(w, http.StatusConflict, "legal_hold_active", err.Error(), reqID)
	case errors.Is(err, rights.ErrAbsoluteRight):
		api.Fail(w, http.StatusConflict, "absolute_right", err.Error(), reqID)
	case errors.Is(err, rights.ErrRequestClosed),
		errors.Is(err, rights.ErrItemAlreadyReviewed),
		errors.Is(err, rights.ErrItemNotApproved),
		errors.Is(err, rights.ErrItemNotApplied),
		errors.Is(err, rights.ErrNotRestriction),
		errors.Is(err, rights.ErrWrongKindVerb),
		errors.Is(err, rights.ErrItemsUnresolved),
		errors.Is(err, rights.ErrItemsUnapplied),
		errors.Is(err, rights.ErrNotificationsOutstanding),
		errors.Is(err, rights.ErrAlreadyNotified),
		errors.Is(err, rights.ErrNotNotified),
		errors.Is(err, rights.ErrAlreadyConfirmed),
		errors.Is(err, rights.ErrAlreadyExtended):
		api.Fail(w, http.StatusConflict, "state_error", err.Error(), reqID)

	case errors.As(err, &integrity):
		api.Fail(w, http.StatusInternalServerError, "integrity_error", integrity.Error(), reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "internal_error", "operation failed", reqID)
	}
}
