package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/auth"
	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/session"
	"github.com/technosupport/campus-presence/internal/tokens"
)

type AuthHandler struct {
	DB      *sql.DB
	Tokens  *tokens.Manager
	Session *session.Manager
	Hasher  *auth.Params
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"` // Seconds
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	locked, err := h.Session.CheckLockout(r.Context(), req.Email)
	if err != nil {
		h.genericError(w)
		return
	}
	if locked {
		h.genericError(w)
		return
	}

	tx, err := h.DB.BeginTx(r.Context(), nil)
	if err != nil {
		h.genericError(w)
		return
	}
	defer tx.Rollback()

	usersRepo := data.UserModel{DB: tx}

	user, err := usersRepo.GetByEmail(r.Context(), req.Email)
	if err == data.ErrUserNotFound {
		// Dummy verify keeps this path the same shape as a wrong-password
		// failure so timing can't be used to enumerate accounts.
		auth.CheckPassword("dummy", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHQ$hashhashhashhashhashhashhashhashhash")
		h.failWithLockout(w, r, req.Email)
		return
	} else if err != nil {
		h.genericError(w)
		return
	}

	match, err := auth.CheckPassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		h.failWithLockout(w, r, req.Email)
		return
	}

	if user.IsDisabled {
		h.failWithLockout(w, r, req.Email)
		return
	}

	sessionID := uuid.New().String()

	accessToken, err := h.Tokens.GenerateAccessToken(user.ID.String())
	if err != nil {
		h.genericError(w)
		return
	}

	tokensRepo := data.TokenModel{DB: tx}
	refreshToken, _, err := tokensRepo.New(r.Context(), user.ID.String(), sessionID, 7*24*time.Hour)
	if err != nil {
		h.genericError(w)
		return
	}

	if err := h.Session.CreateSession(r.Context(), user.ID.String(), sessionID); err != nil {
		h.genericError(w)
		return
	}

	if err := tx.Commit(); err != nil {
		h.genericError(w)
		return
	}

	json.NewEncoder(w).Encode(TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    900, // 15 min
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.genericError(w)
		return
	}

	claims, err := h.Tokens.ValidateToken(req.RefreshToken)
	if err != nil || claims.TokenType != tokens.Refresh {
		h.genericError(w)
		return
	}

	tx, err := h.DB.BeginTx(r.Context(), nil)
	if err != nil {
		h.genericError(w)
		return
	}
	defer tx.Rollback()

	tokensRepo := data.TokenModel{DB: tx}

	dbToken, err := tokensRepo.GetByHash(r.Context(), req.RefreshToken)
	if err != nil {
		h.genericError(w)
		return
	}

	if !dbToken.RevokedAt.IsZero() || dbToken.ReplacedByTokenID != nil {
		// Reuse of an already-rotated refresh token means it was stolen;
		// burn every token for the user, not just this one.
		tokensRepo.RevokeAllForUser(r.Context(), dbToken.UserID)
		h.Session.RevokeAllUserSessions(r.Context(), dbToken.UserID)
		tx.Commit()
		h.genericError(w)
		return
	}

	newSessionID := dbToken.SessionID
	newRefreshToken, newID, err := tokensRepo.New(r.Context(), dbToken.UserID, newSessionID, 7*24*time.Hour)
	if err != nil {
		h.genericError(w)
		return
	}

	if err := tokensRepo.Rotate(r.Context(), dbToken.ID, newID); err != nil {
		h.genericError(w)
		return
	}

	newAccess, _ := h.Tokens.GenerateAccessToken(dbToken.UserID)

	if err := tx.Commit(); err != nil {
		h.genericError(w)
		return
	}

	json.NewEncoder(w).Encode(TokenResponse{
		AccessToken:  newAccess,
		RefreshToken: newRefreshToken,
		ExpiresIn:    900,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.genericError(w)
		return
	}

	tokensRepo := data.TokenModel{DB: h.DB}
	dbToken, err := tokensRepo.GetByHash(r.Context(), req.RefreshToken)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	tokensRepo.Rotate(r.Context(), dbToken.ID, dbToken.ID)
	h.Session.RevokeSession(r.Context(), dbToken.SessionID)

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) genericError(w http.ResponseWriter) {
	http.Error(w, "Invalid credential or request", http.StatusUnauthorized)
}

func (h *AuthHandler) failWithLockout(w http.ResponseWriter, r *http.Request, email string) {
	h.Session.RecordFailedAttempt(r.Context(), email)
	h.genericError(w)
}
