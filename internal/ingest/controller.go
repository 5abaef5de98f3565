// Package ingest glues the camera administration layer to the streaming
// layer: it implements cameras.StreamController by resolving a camera id
// to a room id and a dialable, credentials-injected RTSP URL before
// delegating to stream.Manager. It exists as its own package (rather than
// living in internal/stream) because it imports both internal/stream and
// internal/media, and internal/media already imports internal/stream for
// the Decoder contract — folding this glue into internal/stream would
// create an import cycle.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/technosupport/campus-presence/internal/cameras"
	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/media"
	"github.com/technosupport/campus-presence/internal/stream"
)

type Controller struct {
	Manager *stream.Manager
	Cameras *data.CameraModel
	Creds   *cameras.CredentialService
}

func NewController(m *stream.Manager, camModel *data.CameraModel, creds *cameras.CredentialService) *Controller {
	return &Controller{Manager: m, Cameras: camModel, Creds: creds}
}

func (c *Controller) StartCamera(ctx context.Context, cameraID uuid.UUID) error {
	cam, err := c.Cameras.GetByID(ctx, cameraID)
	if err != nil {
		return fmt.Errorf("ingest: resolve camera %s: %w", cameraID, err)
	}

	dialURL := cam.RTSPURL
	if c.Creds != nil {
		out, _, err := c.Creds.GetCredentials(ctx, cameraID, true)
		if err != nil {
			return fmt.Errorf("ingest: reveal credentials for %s: %w", cameraID, err)
		}
		if out != nil && out.Exists && out.Data != nil {
			dialURL = media.InjectCredentials(cam.RTSPURL, out.Data.Username, out.Data.Password)
		}
	}

	if err := probeRTSP(ctx, dialURL); err != nil {
		return fmt.Errorf("ingest: rtsp probe failed for camera %s: %w", cameraID, err)
	}

	if !c.Manager.StartCamera(ctx, cameraID, cam.RoomID, dialURL) {
		return fmt.Errorf("ingest: manager rejected start for camera %s", cameraID)
	}
	return nil
}

func (c *Controller) StopCamera(cameraID uuid.UUID) {
	c.Manager.StopCamera(cameraID)
}
