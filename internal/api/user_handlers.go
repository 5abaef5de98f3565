package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/middleware"
	"github.com/technosupport/campus-presence/internal/users"
)

type UserHandler struct {
	Service *users.Service
}

type CreateUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type UpdateUserRequest struct {
	DisplayName string `json:"display_name"`
}

type ResetPasswordRequest struct {
	// For the public completion endpoint: Token + NewPassword.
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// CreateUser POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	actorID, err := uuid.Parse(ac.UserID)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid_json", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "missing_fields", http.StatusBadRequest)
		return
	}

	user := &data.User{
		Email:       req.Email,
		DisplayName: req.DisplayName,
	}

	if err := h.Service.CreateUser(r.Context(), user, req.Password, actorID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"id": user.ID})
}

// GetUser GET /api/v1/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid_id", http.StatusBadRequest)
		return
	}

	u, err := h.Service.Repo.GetByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "not_found", http.StatusNotFound)
		return
	}

	u.PasswordHash = ""
	json.NewEncoder(w).Encode(u)
}

// DisableUser POST /api/v1/users/{id}/disable
func (h *UserHandler) DisableUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid_id", http.StatusBadRequest)
		return
	}
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	acUserID, err := uuid.Parse(ac.UserID)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if userID == acUserID {
		http.Error(w, "cannot_disable_self", http.StatusForbidden)
		return
	}

	if _, err := h.Service.Repo.GetByID(r.Context(), userID); err != nil {
		http.Error(w, "not_found", http.StatusNotFound)
		return
	}

	if err := h.Service.DisableUser(r.Context(), userID, acUserID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ResetPassword (Admin-initiated) POST /api/v1/users/{id}/reset-password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid_id", http.StatusBadRequest)
		return
	}
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	acUserID, err := uuid.Parse(ac.UserID)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if _, err := h.Service.Repo.GetByID(r.Context(), userID); err != nil {
		http.Error(w, "not_found", http.StatusNotFound)
		return
	}

	token, err := h.Service.InitiateReset(r.Context(), userID, acUserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Returned once; the caller is responsible for delivering it out of band.
	json.NewEncoder(w).Encode(map[string]string{
		"reset_token": token,
		"expires_in":  "15m",
	})
}

// CompleteReset (Public) POST /api/v1/auth/complete-reset
func (h *UserHandler) CompleteReset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid_json", http.StatusBadRequest)
		return
	}

	if err := h.Service.CompleteReset(r.Context(), req.Token, req.NewPassword); err != nil {
		http.Error(w, "reset_failed", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}
