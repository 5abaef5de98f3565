package cameras_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/technosupport/campus-presence/internal/cameras"
	"github.com/technosupport/campus-presence/internal/data"
)

func TestCreateCamera_Success(t *testing.T) {
	repo := cameras.NewMockCameraRepo()
	aud := &cameras.MockAuditor{}
	svc := cameras.NewService(repo, nil, nil, aud, 0)

	cam := &data.Camera{
		RoomID:  uuid.New(),
		Name:    "Lecture Hall A",
		RTSPURL: "rtsp://10.0.0.5:554/stream1",
	}

	if err := svc.CreateCamera(context.Background(), cam, nil); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if repo.Calls["Create"] != 1 {
		t.Errorf("expected Create call, got %d", repo.Calls["Create"])
	}
	if len(aud.Events) != 1 || aud.Events[0].Action != "camera.create" {
		t.Error("audit event missing or incorrect")
	}
}

func TestCreateCamera_RoomLimitExceeded(t *testing.T) {
	repo := cameras.NewMockCameraRepo()
	roomID := uuid.New()
	for i := 0; i < cameras.MaxCamerasPerRoom; i++ {
		repo.Cameras[uuid.New()] = &data.Camera{ID: uuid.New(), RoomID: roomID}
	}
	svc := cameras.NewService(repo, nil, nil, &cameras.MockAuditor{}, 0)

	cam := &data.Camera{RoomID: roomID, Name: "One Too Many", RTSPURL: "rtsp://10.0.0.6:554/stream1"}
	err := svc.CreateCamera(context.Background(), cam, nil)
	if !errors.Is(err, cameras.ErrRoomCameraLimitExceeded) {
		t.Errorf("expected ErrRoomCameraLimitExceeded, got %v", err)
	}
}

func TestCreateCamera_NameTooLong(t *testing.T) {
	svc := cameras.NewService(cameras.NewMockCameraRepo(), nil, nil, &cameras.MockAuditor{}, 0)
	cam := &data.Camera{RoomID: uuid.New(), Name: strings.Repeat("a", 121), RTSPURL: "rtsp://x/1"}
	err := svc.CreateCamera(context.Background(), cam, nil)
	if !errors.Is(err, cameras.ErrNameTooLong) {
		t.Errorf("expected ErrNameTooLong, got %v", err)
	}
}

func TestCreateCamera_InvalidRTSPURL(t *testing.T) {
	svc := cameras.NewService(cameras.NewMockCameraRepo(), nil, nil, &cameras.MockAuditor{}, 0)
	cam := &data.Camera{RoomID: uuid.New(), Name: "Valid", RTSPURL: "http://not-rtsp/1"}
	err := svc.CreateCamera(context.Background(), cam, nil)
	if !errors.Is(err, cameras.ErrInvalidRTSPURL) {
		t.Errorf("expected ErrInvalidRTSPURL, got %v", err)
	}
}

func TestUpdateCamera(t *testing.T) {
	repo := cameras.NewMockCameraRepo()
	cam := &data.Camera{ID: uuid.New(), RoomID: uuid.New(), Name: "Room A Cam", RTSPURL: "rtsp://x/1"}
	repo.Cameras[cam.ID] = cam
	aud := &cameras.MockAuditor{}
	svc := cameras.NewService(repo, nil, nil, aud, 0)

	cam.Name = "Room A Cam Renamed"
	if err := svc.UpdateCamera(context.Background(), cam); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aud.Events) != 1 || aud.Events[0].Action != "camera.update" {
		t.Error("audit mismatch")
	}
}

func TestEnableCamera_StartsStream(t *testing.T) {
	repo := cameras.NewMockCameraRepo()
	cam := &data.Camera{ID: uuid.New(), RoomID: uuid.New(), Name: "Cam", RTSPURL: "rtsp://x/1"}
	repo.Cameras[cam.ID] = cam
	streams := &cameras.MockStreamController{}
	svc := cameras.NewService(repo, nil, streams, &cameras.MockAuditor{}, 0)

	if err := svc.EnableCamera(context.Background(), cam.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(streams.Started) != 1 || streams.Started[0] != cam.ID {
		t.Error("expected StartCamera to be called with camera id")
	}
}

func TestDisableCamera_StopsStream(t *testing.T) {
	repo := cameras.NewMockCameraRepo()
	cam := &data.Camera{ID: uuid.New(), RoomID: uuid.New(), Name: "Cam", RTSPURL: "rtsp://x/1", IsEnabled: true}
	repo.Cameras[cam.ID] = cam
	streams := &cameras.MockStreamController{}
	svc := cameras.NewService(repo, nil, streams, &cameras.MockAuditor{}, 0)

	if err := svc.DisableCamera(context.Background(), cam.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(streams.Stopped) != 1 || streams.Stopped[0] != cam.ID {
		t.Error("expected StopCamera to be called with camera id")
	}
}

func TestDeleteCamera(t *testing.T) {
	repo := cameras.NewMockCameraRepo()
	cam := &data.Camera{ID: uuid.New(), RoomID: uuid.New(), Name: "Cam", RTSPURL: "rtsp://x/1"}
	repo.Cameras[cam.ID] = cam
	streams := &cameras.MockStreamController{}
	aud := &cameras.MockAuditor{}
	svc := cameras.NewService(repo, nil, streams, aud, 0)

	if err := svc.DeleteCamera(context.Background(), cam.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(streams.Stopped) != 1 {
		t.Error("expected stream to be stopped on delete")
	}
	if len(aud.Events) != 1 || aud.Events[0].Action != "camera.delete" {
		t.Error("audit mismatch")
	}
}

func TestListByRoom(t *testing.T) {
	repo := cameras.NewMockCameraRepo()
	roomID := uuid.New()
	repo.Cameras[uuid.New()] = &data.Camera{ID: uuid.New(), RoomID: roomID}
	repo.Cameras[uuid.New()] = &data.Camera{ID: uuid.New(), RoomID: uuid.New()}
	svc := cameras.NewService(repo, nil, nil, &cameras.MockAuditor{}, 0)

	got, err := svc.ListByRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 camera for room, got %d", len(got))
	}
}
