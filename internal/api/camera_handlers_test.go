package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/api"
	"github.com/technosupport/campus-presence/internal/cameras"
	"github.com/technosupport/campus-presence/internal/data"
)

func newTestCameraHandler() (*api.CameraHandler, *cameras.MockCameraRepo, *cameras.MockStreamController) {
	repo := cameras.NewMockCameraRepo()
	streams := &cameras.MockStreamController{}
	aud := &cameras.MockAuditor{}
	svc := cameras.NewService(repo, nil, streams, aud, 0)
	return api.NewCameraHandler(svc), repo, streams
}

func TestHandler_CreateCamera(t *testing.T) {
	h, repo, _ := newTestCameraHandler()

	roomID := uuid.New()
	body, _ := json.Marshal(map[string]string{
		"room_id":  roomID.String(),
		"name":     "Front Door",
		"rtsp_url": "rtsp://10.0.0.5/stream",
	})
	req := httptest.NewRequest("POST", "/api/v1/cameras", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if repo.Calls["Create"] != 1 {
		t.Errorf("expected Create to be called once, got %d", repo.Calls["Create"])
	}
}

func TestHandler_CreateCamera_BadJSON(t *testing.T) {
	h, _, _ := newTestCameraHandler()

	req := httptest.NewRequest("POST", "/api/v1/cameras", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_CreateCamera_InvalidRTSPURL(t *testing.T) {
	h, _, _ := newTestCameraHandler()

	body, _ := json.Marshal(map[string]string{
		"room_id":  uuid.New().String(),
		"name":     "Lobby",
		"rtsp_url": "http://not-rtsp",
	})
	req := httptest.NewRequest("POST", "/api/v1/cameras", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_ListByRoom(t *testing.T) {
	h, repo, _ := newTestCameraHandler()

	roomID := uuid.New()
	repo.Cameras[uuid.New()] = &data.Camera{ID: uuid.New(), RoomID: roomID, Name: "Cam A"}
	repo.Cameras[uuid.New()] = &data.Camera{ID: uuid.New(), RoomID: uuid.New(), Name: "Other Room"}

	req := httptest.NewRequest("GET", "/api/v1/rooms/"+roomID.String()+"/cameras", nil)
	req.SetPathValue("id", roomID.String())
	w := httptest.NewRecorder()

	h.ListByRoom(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data []*data.Camera `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Errorf("expected 1 camera in room, got %d", len(resp.Data))
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _, _ := newTestCameraHandler()

	req := httptest.NewRequest("GET", "/api/v1/cameras/"+uuid.New().String(), nil)
	req.SetPathValue("id", uuid.New().String())
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandler_StartCamera(t *testing.T) {
	h, repo, streams := newTestCameraHandler()

	cam := &data.Camera{ID: uuid.New(), RoomID: uuid.New(), Name: "Cam", IsEnabled: false}
	repo.Cameras[cam.ID] = cam

	req := httptest.NewRequest("POST", "/api/v1/cameras/"+cam.ID.String()+"/start", nil)
	req.SetPathValue("id", cam.ID.String())
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(streams.Started) != 1 || streams.Started[0] != cam.ID {
		t.Errorf("expected stream controller to start camera %s", cam.ID)
	}
}

func TestHandler_StopCamera(t *testing.T) {
	h, repo, streams := newTestCameraHandler()

	cam := &data.Camera{ID: uuid.New(), RoomID: uuid.New(), Name: "Cam", IsEnabled: true}
	repo.Cameras[cam.ID] = cam

	req := httptest.NewRequest("POST", "/api/v1/cameras/"+cam.ID.String()+"/stop", nil)
	req.SetPathValue("id", cam.ID.String())
	w := httptest.NewRecorder()

	h.Stop(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(streams.Stopped) != 1 || streams.Stopped[0] != cam.ID {
		t.Errorf("expected stream controller to stop camera %s", cam.ID)
	}
}

func TestHandler_DeleteCamera(t *testing.T) {
	h, repo, _ := newTestCameraHandler()

	cam := &data.Camera{ID: uuid.New(), RoomID: uuid.New(), Name: "Cam"}
	repo.Cameras[cam.ID] = cam

	req := httptest.NewRequest("DELETE", "/api/v1/cameras/"+cam.ID.String(), nil)
	req.SetPathValue("id", cam.ID.String())
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, ok := repo.Cameras[cam.ID]; ok {
		t.Error("expected camera removed from repo")
	}
}
