package users

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/audit"
	"github.com/technosupport/campus-presence/internal/auth"
	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/session"
	"github.com/technosupport/campus-presence/internal/tokens"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Service struct {
	Repo       data.UserModel
	Audit      *audit.Service
	SessionMgr *session.Manager
	TokenMgr   *tokens.Manager
}

func NewService(db *data.UserModel, audit *audit.Service, sm *session.Manager, tm *tokens.Manager) *Service {
	return &Service{
		Repo:       *db,
		Audit:      audit,
		SessionMgr: sm,
		TokenMgr:   tm,
	}
}

func (s *Service) CreateUser(ctx context.Context, u *data.User, password string, actorID uuid.UUID) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash

	if err := s.Repo.Create(ctx, u); err != nil {
		return err
	}

	s.audit(ctx, "user.create", u.ID, actorID, nil)
	return nil
}

func (s *Service) UpdateUser(ctx context.Context, u *data.User, actorID uuid.UUID) error {
	err := s.Repo.Update(ctx, u)
	s.audit(ctx, "user.update", u.ID, actorID, err)
	return err
}

// DisableUser revokes the account. Active tokens are left to expire
// naturally via short JWT TTLs; we don't maintain a revocation list keyed
// by user beyond the existing blacklist-by-token-jti.
func (s *Service) DisableUser(ctx context.Context, userID, actorID uuid.UUID) error {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	u.IsDisabled = true
	if err := s.Repo.Update(ctx, u); err != nil {
		return err
	}
	s.audit(ctx, "user.disable", userID, actorID, nil)
	return nil
}

func (s *Service) EnableUser(ctx context.Context, userID, actorID uuid.UUID) error {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	u.IsDisabled = false
	err = s.Repo.Update(ctx, u)
	s.audit(ctx, "user.enable", userID, actorID, err)
	return err
}

func (s *Service) InitiateReset(ctx context.Context, userID, actorID uuid.UUID) (string, error) {
	rawToken := make([]byte, 32)
	if _, err := rand.Read(rawToken); err != nil {
		return "", err
	}
	tokenStr := hex.EncodeToString(rawToken)

	hash := sha256.Sum256([]byte(tokenStr))
	hashStr := hex.EncodeToString(hash[:])

	token := &data.PasswordResetToken{
		UserID:          userID,
		TokenHash:       hashStr,
		ExpiresAt:       time.Now().Add(15 * time.Minute),
		CreatedByUserID: &actorID,
	}

	if err := s.Repo.CreateResetToken(ctx, token); err != nil {
		return "", err
	}

	s.audit(ctx, "user.password.reset", userID, actorID, nil)
	return tokenStr, nil
}

func (s *Service) CompleteReset(ctx context.Context, rawToken, newPassword string) error {
	hash := sha256.Sum256([]byte(rawToken))
	hashStr := hex.EncodeToString(hash[:])

	token, err := s.Repo.GetResetToken(ctx, hashStr)
	if err != nil {
		return ErrInvalidToken // generic error, hides existence
	}
	if time.Now().After(token.ExpiresAt) {
		return ErrInvalidToken
	}
	if token.UsedAt != nil {
		return ErrInvalidToken
	}

	newHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user, err := s.Repo.GetByID(ctx, token.UserID)
	if err != nil {
		return err
	}
	user.PasswordHash = newHash
	if err := s.Repo.Update(ctx, user); err != nil {
		return err
	}

	if err := s.Repo.MarkTokenUsed(ctx, token.ID); err != nil {
		return err
	}

	s.audit(ctx, "user.password.reset_complete", user.ID, uuid.Nil, nil)
	return nil
}

func (s *Service) audit(ctx context.Context, action string, targetID, actorID uuid.UUID, err error) {
	result := "success"
	reason := ""
	if err != nil {
		result = "failure"
		reason = err.Error()
	}

	var actorPtr *uuid.UUID
	if actorID != uuid.Nil {
		actorPtr = &actorID
	}

	event := audit.AuditEvent{
		EventID:     uuid.New(),
		Action:      action,
		ActorUserID: actorPtr,
		TargetID:    targetID.String(),
		TargetType:  "user",
		Result:      result,
		ReasonCode:  reason,
		CreatedAt:   time.Now(),
	}

	if s.Audit != nil {
		go s.Audit.WriteEvent(context.Background(), event)
	}
}
