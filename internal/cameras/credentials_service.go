package cameras

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/audit"
	"github.com/technosupport/campus-presence/internal/crypto"
	"github.com/technosupport/campus-presence/internal/data"
)

var (
	ErrCredentialTooLarge = errors.New("credential payload exceeds 4KB limit")
	ErrCredentialInvalid  = errors.New("invalid credential format")
	ErrCredentialCrypto   = errors.New("credential encryption/decryption failed")
)

const (
	MaxCredentialSize = 4096
	AADPurpose        = "camera_credential_v1"
)

type CredentialUpdater interface {
	Upsert(ctx context.Context, c *data.CameraCredential) error
	Get(ctx context.Context, cameraID uuid.UUID) (*data.CameraCredential, error)
	Delete(ctx context.Context, cameraID uuid.UUID) error
}

type CredentialService struct {
	repo    CredentialUpdater
	keyring *crypto.Keyring
	auditor Auditor
}

func NewCredentialService(repo CredentialUpdater, keyring *crypto.Keyring, aud Auditor) *CredentialService {
	return &CredentialService{repo: repo, keyring: keyring, auditor: aud}
}

// CredentialInput is the plaintext RTSP username/password pair.
type CredentialInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CredentialOutput struct {
	Exists    bool             `json:"exists"`
	Data      *CredentialInput `json:"data,omitempty"`
	CreatedAt time.Time        `json:"created_at,omitempty"`
}

// SetCredentials envelope-encrypts an RTSP username/password for a camera:
// a fresh data-encryption-key wraps the plaintext, and the active master
// key wraps the DEK. Both wraps are bound to the camera via AAD so a
// ciphertext stolen from one row can't be replayed against another.
func (s *CredentialService) SetCredentials(ctx context.Context, cameraID uuid.UUID, input CredentialInput) error {
	plaintext, err := json.Marshal(input)
	if err != nil {
		return ErrCredentialInvalid
	}
	if len(plaintext) > MaxCredentialSize {
		return ErrCredentialTooLarge
	}

	aad := []byte(fmt.Sprintf("%s:%s", cameraID.String(), AADPurpose))

	dek, err := crypto.GenerateDEK()
	if err != nil {
		return fmt.Errorf("dek gen failed: %w", err)
	}

	dNonce, dCipher, dTag, err := crypto.EncryptGCM(dek, plaintext, aad)
	if err != nil {
		return fmt.Errorf("data encrypt failed: %w", err)
	}

	kid, kNonce, kCipher, kTag, err := s.keyring.WrapDEK(dek, aad)
	if err != nil {
		return fmt.Errorf("key wrap failed: %w", err)
	}

	cred := &data.CameraCredential{
		CameraID:       cameraID,
		MasterKID:      kid,
		DEKNonce:       kNonce,
		DEKCiphertext:  kCipher,
		DEKTag:         kTag,
		DataNonce:      dNonce,
		DataCiphertext: dCipher,
		DataTag:        dTag,
	}

	if err := s.repo.Upsert(ctx, cred); err != nil {
		return err
	}

	s.auditor.WriteEvent(ctx, audit.AuditEvent{
		EventID:    uuid.New(),
		Action:     "camera.credential.write",
		Result:     "success",
		TargetID:   cameraID.String(),
		TargetType: "camera",
		CreatedAt:  time.Now(),
		Metadata:   toMeta(map[string]any{"kid": kid}),
	})

	return nil
}

// GetCredentials retrieves credentials, decrypting only when reveal is true
// (ingest.Controller calls with reveal=true to build a dialable RTSP URL;
// admin list views call with reveal=false to show only "configured: yes/no").
func (s *CredentialService) GetCredentials(ctx context.Context, cameraID uuid.UUID, reveal bool) (*CredentialOutput, bool, error) {
	c, err := s.repo.Get(ctx, cameraID)
	if err != nil {
		if errors.Is(err, data.ErrCredentialNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	out := &CredentialOutput{Exists: true, CreatedAt: c.CreatedAt}

	if reveal {
		aad := []byte(fmt.Sprintf("%s:%s", cameraID.String(), AADPurpose))

		dek, err := s.keyring.UnwrapDEK(c.MasterKID, c.DEKNonce, c.DEKCiphertext, c.DEKTag, aad)
		if err != nil {
			s.logCryptoError("unwrap", c.MasterKID, err)
			return nil, true, ErrCredentialCrypto
		}

		plaintext, err := crypto.DecryptGCM(dek, c.DataNonce, c.DataCiphertext, c.DataTag, aad)
		if err != nil {
			s.logCryptoError("decrypt_data", c.MasterKID, err)
			return nil, true, ErrCredentialCrypto
		}

		var input CredentialInput
		if err := json.Unmarshal(plaintext, &input); err != nil {
			return nil, true, ErrCredentialCrypto
		}
		out.Data = &input
	}

	s.auditor.WriteEvent(ctx, audit.AuditEvent{
		EventID:    uuid.New(),
		Action:     "camera.credential.read",
		Result:     "success",
		TargetID:   cameraID.String(),
		TargetType: "camera",
		CreatedAt:  time.Now(),
		Metadata:   toMeta(map[string]any{"revealed": reveal}),
	})

	return out, true, nil
}

func (s *CredentialService) DeleteCredentials(ctx context.Context, cameraID uuid.UUID) error {
	err := s.repo.Delete(ctx, cameraID)
	found := true
	if err != nil {
		if errors.Is(err, data.ErrCredentialNotFound) {
			found = false
			err = nil
		} else {
			return err
		}
	}

	if found {
		s.auditor.WriteEvent(ctx, audit.AuditEvent{
			EventID:    uuid.New(),
			Action:     "camera.credential.delete",
			Result:     "success",
			TargetID:   cameraID.String(),
			TargetType: "camera",
			CreatedAt:  time.Now(),
		})
	}

	return nil
}

func (s *CredentialService) logCryptoError(stage, kid string, err error) {
	log.Printf("[cameras] credential crypto error stage=%s kid=%s: %v", stage, kid, err)
}
