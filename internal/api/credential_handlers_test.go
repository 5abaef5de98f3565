package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/audit"
	"github.com/technosupport/campus-presence/internal/cameras"
	"github.com/technosupport/campus-presence/internal/crypto"
	"github.com/technosupport/campus-presence/internal/data"
)

type MockCamProvider struct {
	Camera *data.Camera
	Err    error
}

func (m *MockCamProvider) GetByID(ctx context.Context, id uuid.UUID) (*data.Camera, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Camera == nil {
		return nil, data.ErrRecordNotFound
	}
	return m.Camera, nil
}

type MockCredUpdater struct {
	Store map[string]*data.CameraCredential
}

func (m *MockCredUpdater) Upsert(ctx context.Context, c *data.CameraCredential) error {
	m.Store[c.CameraID.String()] = c
	return nil
}
func (m *MockCredUpdater) Get(ctx context.Context, id uuid.UUID) (*data.CameraCredential, error) {
	if c, ok := m.Store[id.String()]; ok {
		return c, nil
	}
	return nil, data.ErrCredentialNotFound
}
func (m *MockCredUpdater) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.Store, id.String())
	return nil
}

type MockAuditor struct{}

func (m *MockAuditor) WriteEvent(ctx context.Context, evt audit.AuditEvent) error { return nil }

func TestCredentialHandler(t *testing.T) {
	repo := &MockCredUpdater{Store: make(map[string]*data.CameraCredential)}
	aud := &MockAuditor{}

	key, _ := crypto.GenerateDEK()
	keyStr := base64.StdEncoding.EncodeToString(key)
	t.Setenv("MASTER_KEYS", `[{"kid":"test","material":"`+keyStr+`"}]`)
	t.Setenv("ACTIVE_MASTER_KID", "test")
	kr := crypto.NewKeyring()
	kr.LoadFromEnv()
	credSvc := cameras.NewCredentialService(repo, kr, aud)

	camID := uuid.New()
	camProvider := &MockCamProvider{Camera: &data.Camera{ID: camID, RoomID: uuid.New()}}

	h := NewCredentialHandler(credSvc, camProvider)

	// 1. PUT (Success)
	body := `{"username":"admin", "password":"password"}`
	req := httptest.NewRequest("PUT", "/api/v1/cameras/"+camID.String()+"/credentials", bytes.NewBufferString(body))
	req.SetPathValue("id", camID.String())

	rr := httptest.NewRecorder()
	h.Update(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("PUT Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	// 2. GET (Reveal)
	req2 := httptest.NewRequest("GET", "/api/v1/cameras/"+camID.String()+"/credentials?reveal=true", nil)
	req2.SetPathValue("id", camID.String())
	rr2 := httptest.NewRecorder()

	h.Get(rr2, req2)
	if rr2.Code != http.StatusOK {
		t.Errorf("GET Expected 200, got %d", rr2.Code)
	}
	var out cameras.CredentialOutput
	json.NewDecoder(rr2.Body).Decode(&out)
	if out.Data == nil || out.Data.Username != "admin" {
		t.Error("GET Reveal failed")
	}

	// 3. Unknown camera -> 404, non-enumerating
	unknownProvider := &MockCamProvider{}
	hUnknown := NewCredentialHandler(credSvc, unknownProvider)
	req3 := httptest.NewRequest("GET", "/api/v1/cameras/"+uuid.New().String()+"/credentials", nil)
	req3.SetPathValue("id", uuid.New().String())
	rr3 := httptest.NewRecorder()

	hUnknown.Get(rr3, req3)
	if rr3.Code != http.StatusNotFound {
		t.Errorf("GET Unknown camera Expected 404, got %d", rr3.Code)
	}

	// 4. DELETE
	req4 := httptest.NewRequest("DELETE", "/api/v1/cameras/"+camID.String()+"/credentials", nil)
	req4.SetPathValue("id", camID.String())
	rr4 := httptest.NewRecorder()

	h.Delete(rr4, req4)
	if rr4.Code != http.StatusOK {
		t.Errorf("DELETE Expected 200, got %d", rr4.Code)
	}

	stored, _ := repo.Get(context.Background(), camID)
	if stored != nil {
		t.Error("Failed to delete from repo")
	}
}
