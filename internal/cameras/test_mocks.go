package cameras

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/audit"
	"github.com/technosupport/campus-presence/internal/data"
)

type MockAuditor struct {
	Events []audit.AuditEvent
}

func (m *MockAuditor) WriteEvent(ctx context.Context, evt audit.AuditEvent) error {
	m.Events = append(m.Events, evt)
	return nil
}

type MockStreamController struct {
	Started []uuid.UUID
	Stopped []uuid.UUID
	StartErr error
}

func (m *MockStreamController) StartCamera(ctx context.Context, cameraID uuid.UUID) error {
	m.Started = append(m.Started, cameraID)
	return m.StartErr
}

func (m *MockStreamController) StopCamera(cameraID uuid.UUID) {
	m.Stopped = append(m.Stopped, cameraID)
}

// MockCameraRepo is a hand-rolled fake implementing Repository, tracking
// call counts the way this codebase's other service tests do.
type MockCameraRepo struct {
	Calls map[string]int

	Cameras map[uuid.UUID]*data.Camera

	CreateFunc func(ctx context.Context, c *data.Camera) error
}

func NewMockCameraRepo() *MockCameraRepo {
	return &MockCameraRepo{
		Calls:   map[string]int{},
		Cameras: map[uuid.UUID]*data.Camera{},
	}
}

func (m *MockCameraRepo) Create(ctx context.Context, c *data.Camera) error {
	m.Calls["Create"]++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.Cameras[c.ID] = c
	return nil
}

func (m *MockCameraRepo) GetByID(ctx context.Context, id uuid.UUID) (*data.Camera, error) {
	m.Calls["GetByID"]++
	c, ok := m.Cameras[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	return c, nil
}

func (m *MockCameraRepo) Update(ctx context.Context, c *data.Camera) error {
	m.Calls["Update"]++
	if _, ok := m.Cameras[c.ID]; !ok {
		return data.ErrRecordNotFound
	}
	m.Cameras[c.ID] = c
	return nil
}

func (m *MockCameraRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	m.Calls["SetEnabled"]++
	c, ok := m.Cameras[id]
	if !ok {
		return data.ErrRecordNotFound
	}
	c.IsEnabled = enabled
	return nil
}

func (m *MockCameraRepo) SetStatus(ctx context.Context, id uuid.UUID, status string, seenAt time.Time) error {
	m.Calls["SetStatus"]++
	c, ok := m.Cameras[id]
	if !ok {
		return data.ErrRecordNotFound
	}
	c.LastStatus = status
	c.LastSeenAt = &seenAt
	return nil
}

func (m *MockCameraRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	m.Calls["SoftDelete"]++
	if _, ok := m.Cameras[id]; !ok {
		return data.ErrRecordNotFound
	}
	delete(m.Cameras, id)
	return nil
}

func (m *MockCameraRepo) CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error) {
	m.Calls["CountByRoom"]++
	count := 0
	for _, c := range m.Cameras {
		if c.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

func (m *MockCameraRepo) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*data.Camera, error) {
	m.Calls["ListByRoom"]++
	var out []*data.Camera
	for _, c := range m.Cameras {
		if c.RoomID == roomID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockCameraRepo) ListEnabled(ctx context.Context) ([]*data.Camera, error) {
	m.Calls["ListEnabled"]++
	var out []*data.Camera
	for _, c := range m.Cameras {
		if c.IsEnabled {
			out = append(out, c)
		}
	}
	return out, nil
}

type MockCredentialUpdater struct {
	Calls       map[string]int
	Credentials map[uuid.UUID]*data.CameraCredential
}

func NewMockCredentialUpdater() *MockCredentialUpdater {
	return &MockCredentialUpdater{Calls: map[string]int{}, Credentials: map[uuid.UUID]*data.CameraCredential{}}
}

func (m *MockCredentialUpdater) Upsert(ctx context.Context, c *data.CameraCredential) error {
	m.Calls["Upsert"]++
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.Credentials[c.CameraID] = c
	return nil
}

func (m *MockCredentialUpdater) Get(ctx context.Context, cameraID uuid.UUID) (*data.CameraCredential, error) {
	m.Calls["Get"]++
	c, ok := m.Credentials[cameraID]
	if !ok {
		return nil, data.ErrCredentialNotFound
	}
	return c, nil
}

func (m *MockCredentialUpdater) Delete(ctx context.Context, cameraID uuid.UUID) error {
	m.Calls["Delete"]++
	if _, ok := m.Credentials[cameraID]; !ok {
		return data.ErrCredentialNotFound
	}
	delete(m.Credentials, cameraID)
	return nil
}
