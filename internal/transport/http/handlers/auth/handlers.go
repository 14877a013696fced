package authhandler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cdms/internal/domain/auth"
	"cdms/internal/transport/http/api"
	"cdms/internal/transport/http/middleware"
)

// UserStatusActive is the only status allowed to log in.
const UserStatusActive = "active"

type Handler struct {
	Service *auth.Service
	Secret  string
	TTL     time.Duration
}

func NewHandler(service *auth.Service, secret string, ttl time.Duration) *Handler {
	return &Handler{Service: service, Secret: secret, TTL: ttl}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	payload.Email = strings.TrimSpace(strings.ToLower(payload.Email))
	if payload.Email == "" || payload.Password == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "email and password are required", reqID)
		return
	}

	user, err := h.Service.FindActiveUserByEmail(r.Context(), payload.Email, UserStatusActive)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}
	if err := auth.CheckPassword(user.Password, payload.Password); err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}

	token, err := auth.GenerateToken(h.Secret, auth.Claims{
		UserID:   user.ID,
		RoleID:   user.RoleID,
		RoleName: user.RoleName,
	}, h.TTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", reqID)
		return
	}

	_ = h.Service.UpdateLastLogin(r.Context(), user.ID)

	api.Success(w, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.TTL),
		UserID:    user.ID,
		Name:      user.Name,
		Role:      user.RoleName,
	}, reqID)
}
