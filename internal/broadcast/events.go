package broadcast

import "github.com/google/uuid"

// Occupant is one entry in a presence_update/initial_presence occupants list.
type Occupant struct {
	StudentID  uuid.UUID `json:"student_id"`
	StudentNo  string    `json:"student_number"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	LastSeen   string    `json:"last_seen_at"`
	Confidence float64   `json:"confidence"`
}

type PresenceEvent struct {
	Type           string     `json:"type"` // "initial_presence" | "presence_update"
	RoomID         uuid.UUID  `json:"room_id,omitempty"`
	RoomName       string     `json:"room_name,omitempty"`
	Occupants      []Occupant `json:"occupants"`
	TotalCount     int        `json:"total_count"`
	GuestCount     int        `json:"guest_count"`
	TotalPeople    int        `json:"total_people"`
	NewRecognitions []Occupant `json:"new_recognitions,omitempty"`
	Timestamp      string     `json:"timestamp"`
}

// Face is one overlay entry in a face_detection event.
type Face struct {
	Type       string    `json:"type"` // "student" | "guest"
	Label      string    `json:"label"`
	StudentID  *uuid.UUID `json:"student_id,omitempty"`
	BBox       [4]float64 `json:"bbox"`
	Confidence float64   `json:"confidence"`
}

type FaceDetectionEvent struct {
	Type       string    `json:"type"` // "face_detection"
	CameraID   uuid.UUID `json:"camera_id"`
	Faces      []Face    `json:"faces"`
	TotalFaces int       `json:"total_faces"`
	Timestamp  string    `json:"timestamp"`
}

type StatusEvent struct {
	Type      string    `json:"type"` // "status"
	CameraID  uuid.UUID `json:"camera_id"`
	Connected bool      `json:"connected"`
	Running   bool      `json:"running"`
	FPS       float64   `json:"fps"`
}

type PingEvent struct {
	Type string `json:"type"` // "ping" | "pong"
}

func nowISO() string {
	return now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
