package recognition

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/campus-presence/internal/broadcast"
	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/faceengine"
	"github.com/technosupport/campus-presence/internal/presence"
	"github.com/technosupport/campus-presence/internal/stream"
)

const minDetectionScore = 0.5

// recognize runs off the Stream Worker's goroutine: detect, filter, match
// against the Vector Index, gate on cooldown, persist, and publish.
func (d *Dispatcher) recognize(ctx context.Context, frame stream.Frame, capturedAt time.Time, roomID, cameraID uuid.UUID) {
	start := time.Now()
	faces, err := d.engine.DetectAndEmbed(frame.Data)
	if err != nil {
		if d.metrics != nil {
			d.metrics.ObserveRecognition(false, "decode_error", time.Since(start))
		}
		return
	}

	faces = filterFaces(faces, d.cfg.MinFaceSize)
	sortBySizeDescending(faces)
	if len(faces) > d.cfg.MaxFacesPerFrame {
		faces = faces[:d.cfg.MaxFacesPerFrame]
	}

	overlay := make([]broadcast.Face, 0, len(faces))
	var newRecognitions []broadcast.Occupant
	anyNew := false

	for _, f := range faces {
		result, matched := d.index.SearchWithThreshold(f.Embedding)
		if !matched {
			d.trackGuest(roomID, f.BBox)
			overlay = append(overlay, broadcast.Face{
				Type:       "guest",
				Label:      "Guest",
				BBox:       [4]float64(f.BBox),
				Confidence: 0,
			})
			if d.metrics != nil {
				d.metrics.ObserveRecognition(false, "", time.Since(start))
			}
			continue
		}

		student, err := d.students.GetByInternalID(ctx, result.StudentID)
		if err != nil {
			d.trackGuest(roomID, f.BBox)
			overlay = append(overlay, broadcast.Face{
				Type:       "guest",
				Label:      "Guest",
				BBox:       [4]float64(f.BBox),
				Confidence: 0,
			})
			continue
		}

		label := student.FirstName + " " + student.LastName
		sid := student.ID
		overlay = append(overlay, broadcast.Face{
			Type:       "student",
			Label:      label,
			StudentID:  &sid,
			BBox:       [4]float64(f.BBox),
			Confidence: result.Score,
		})

		wrote, err := d.store.Observe(ctx, roomID, cameraID, student.ID, capturedAt, result.Score)
		if err != nil {
			log.Printf("recognition: presence upsert failed for student %s: %v", student.ID, err)
		}
		if wrote {
			anyNew = true
			newRecognitions = append(newRecognitions, broadcast.Occupant{
				StudentID:  student.ID,
				StudentNo:  student.StudentNo,
				FirstName:  student.FirstName,
				LastName:   student.LastName,
				LastSeen:   capturedAt.UTC().Format(time.RFC3339),
				Confidence: result.Score,
			})
		}
		if d.metrics != nil {
			d.metrics.ObserveRecognition(true, "", time.Since(start))
		}
	}

	if anyNew {
		d.publishPresenceUpdate(ctx, roomID, newRecognitions)
	}
	d.publishFaceDetection(cameraID, overlay)

	if d.cooldown.Len() > 100 {
		d.cooldown.Sweep()
	}
}

func (d *Dispatcher) trackGuest(roomID uuid.UUID, bbox faceengine.BBox) {
	key := presence.SpatialKey([4]float64(bbox))
	d.guests.Update(roomID, key)
}

func filterFaces(faces []faceengine.Face, minFaceSize int) []faceengine.Face {
	out := faces[:0]
	for _, f := range faces {
		if f.BBox.Width() < float64(minFaceSize) || f.BBox.Height() < float64(minFaceSize) {
			continue
		}
		if f.Score < minDetectionScore {
			continue
		}
		out = append(out, f)
	}
	return out
}

func sortBySizeDescending(faces []faceengine.Face) {
	sort.Slice(faces, func(i, j int) bool {
		return faces[i].BBox.Width()*faces[i].BBox.Height() > faces[j].BBox.Width()*faces[j].BBox.Height()
	})
}

func (d *Dispatcher) publishFaceDetection(cameraID uuid.UUID, overlay []broadcast.Face) {
	if d.hub == nil {
		return
	}
	d.hub.PublishJSON(broadcast.NSCameraStream, cameraID.String(), broadcast.FaceDetectionEvent{
		Type:       "face_detection",
		CameraID:   cameraID,
		Faces:      overlay,
		TotalFaces: len(overlay),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (d *Dispatcher) publishPresenceUpdate(ctx context.Context, roomID uuid.UUID, newRecognitions []broadcast.Occupant) {
	if d.hub == nil {
		return
	}
	rows, err := d.store.RoomRoster(ctx, roomID, time.Duration(d.cfg.PresenceTimeoutSeconds)*time.Second)
	if err != nil {
		log.Printf("recognition: room roster lookup failed for room %s: %v", roomID, err)
		return
	}

	occupants := make([]broadcast.Occupant, 0, len(rows))
	for _, r := range rows {
		occupants = append(occupants, broadcast.Occupant{
			StudentID:  r.StudentID,
			StudentNo:  r.StudentNo,
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			LastSeen:   r.LastSeenAt.UTC().Format(time.RFC3339),
			Confidence: r.LastConfidence,
		})
	}

	guestCount := d.guests.ActiveCount(roomID)
	roomName := ""
	if room, err := d.rooms.GetByID(ctx, roomID); err == nil {
		roomName = room.Name
	} else if err != data.ErrRecordNotFound {
		log.Printf("recognition: room lookup failed for %s: %v", roomID, err)
	}

	evt := broadcast.PresenceEvent{
		Type:            "presence_update",
		RoomID:          roomID,
		RoomName:        roomName,
		Occupants:       occupants,
		TotalCount:      len(occupants),
		GuestCount:      guestCount,
		TotalPeople:     len(occupants) + guestCount,
		NewRecognitions: newRecognitions,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	d.hub.PublishJSON(broadcast.NSRoomPresence, roomID.String(), evt)
	d.hub.PublishJSON(broadcast.NSGlobalPresence, "", evt)
}
