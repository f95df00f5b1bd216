package ws

import (
	"encoding/base64"
	"time"

	"trafficwatch/internal/pipeline"
	"trafficwatch/internal/source"
)

// FrameMessage carries one raw frame to frame-channel subscribers.
type FrameMessage struct {
	Type      string    `json:"type"` // "frame"
	StreamID  string    `json:"stream_id"`
	Frame     string    `json:"frame"` // base64 encoded JPEG
	Timestamp time.Time `json:"timestamp"`
}

// NewFrameMessage builds a frame message from a snapshot.
func NewFrameMessage(streamID string, snap *source.FrameSnapshot) *FrameMessage {
	return &FrameMessage{
		Type:      "frame",
		StreamID:  streamID,
		Frame:     base64.StdEncoding.EncodeToString(snap.Data),
		Timestamp: snap.CapturedAt,
	}
}

// AlertMessage carries one confirmed accident to alert-channel
// subscribers.
type AlertMessage struct {
	Type        string    `json:"type"` // "accident_alert"
	StreamID    string    `json:"stream_id"`
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Frame       string    `json:"frame"` // base64 encoded JPEG
}

// NewAlertMessage builds an alert message from an alert event.
func NewAlertMessage(ev *pipeline.AlertEvent) *AlertMessage {
	return &AlertMessage{
		Type:        "accident_alert",
		StreamID:    ev.StreamID,
		Timestamp:   ev.Timestamp,
		Location:    ev.Location,
		Description: ev.Description,
		Frame:       base64.StdEncoding.EncodeToString(ev.Frame),
	}
}

// DetectionStatusMessage is the initial snapshot sent to a new
// alert-channel subscriber so it is never left without data between
// accidents.
type DetectionStatusMessage struct {
	Type        string          `json:"type"` // "detection_status"
	StreamID    string          `json:"stream_id"`
	Status      pipeline.Status `json:"status"`
	Result      string          `json:"result"`
	Description string          `json:"description,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Location    string          `json:"location"`
}

// NewDetectionStatusMessage builds a status snapshot message.
func NewDetectionStatusMessage(streamID string, res *pipeline.DetectionResult) *DetectionStatusMessage {
	return &DetectionStatusMessage{
		Type:        "detection_status",
		StreamID:    streamID,
		Status:      res.Status,
		Result:      string(res.Label),
		Description: res.Description,
		Timestamp:   res.Timestamp,
		Location:    res.Location,
	}
}
