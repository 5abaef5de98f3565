package cameras_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/cameras"
	"github.com/technosupport/campus-presence/internal/crypto"
	"github.com/technosupport/campus-presence/internal/data"
)

func newTestKeyring(t *testing.T) *crypto.Keyring {
	t.Helper()
	key, _ := crypto.GenerateDEK()
	keyStr := base64.StdEncoding.EncodeToString(key)
	t.Setenv("MASTER_KEYS", `[{"kid":"test-v1","material":"`+keyStr+`"}]`)
	t.Setenv("ACTIVE_MASTER_KID", "test-v1")
	kr := crypto.NewKeyring()
	if err := kr.LoadFromEnv(); err != nil {
		t.Fatalf("keyring load failed: %v", err)
	}
	return kr
}

func TestSetCredentials(t *testing.T) {
	repo := cameras.NewMockCredentialUpdater()
	aud := &cameras.MockAuditor{}
	kr := newTestKeyring(t)
	svc := cameras.NewCredentialService(repo, kr, aud)

	camID := uuid.New()
	input := cameras.CredentialInput{Username: "admin", Password: "secretPassword"}

	if err := svc.SetCredentials(context.Background(), camID, input); err != nil {
		t.Fatalf("SetCredentials failed: %v", err)
	}

	stored, err := repo.Get(context.Background(), camID)
	if err != nil {
		t.Fatalf("credential not stored: %v", err)
	}
	if stored.MasterKID != "test-v1" {
		t.Errorf("wrong master kid used: %s", stored.MasterKID)
	}

	longInput := cameras.CredentialInput{Password: string(make([]byte, 5000))}
	if err := svc.SetCredentials(context.Background(), camID, longInput); err != cameras.ErrCredentialTooLarge {
		t.Errorf("expected too-large error, got %v", err)
	}
}

func TestGetCredentials(t *testing.T) {
	repo := cameras.NewMockCredentialUpdater()
	aud := &cameras.MockAuditor{}
	kr := newTestKeyring(t)
	svc := cameras.NewCredentialService(repo, kr, aud)

	camID := uuid.New()
	if err := svc.SetCredentials(context.Background(), camID, cameras.CredentialInput{Username: "u", Password: "p"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	out, found, err := svc.GetCredentials(context.Background(), camID, false)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found || out.Data != nil {
		t.Error("should be found but redacted")
	}
	if !out.Exists {
		t.Error("should report exists")
	}

	out, found, err = svc.GetCredentials(context.Background(), camID, true)
	if err != nil {
		t.Fatalf("get reveal failed: %v", err)
	}
	if !found || out.Data == nil || out.Data.Username != "u" {
		t.Error("reveal failed to decrypt")
	}
}

func TestGetCredentials_NotFound(t *testing.T) {
	repo := cameras.NewMockCredentialUpdater()
	kr := newTestKeyring(t)
	svc := cameras.NewCredentialService(repo, kr, &cameras.MockAuditor{})

	out, found, err := svc.GetCredentials(context.Background(), uuid.New(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found || out != nil {
		t.Error("expected not found for unknown camera")
	}
}

func TestDeleteCredentials(t *testing.T) {
	repo := cameras.NewMockCredentialUpdater()
	kr := newTestKeyring(t)
	svc := cameras.NewCredentialService(repo, kr, &cameras.MockAuditor{})

	camID := uuid.New()
	if err := svc.SetCredentials(context.Background(), camID, cameras.CredentialInput{Username: "u", Password: "p"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := svc.DeleteCredentials(context.Background(), camID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.Get(context.Background(), camID); err != data.ErrCredentialNotFound {
		t.Errorf("expected not found after delete, got %v", err)
	}
}
