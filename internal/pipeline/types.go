package pipeline

import (
	"time"

	"trafficwatch/internal/vision"
)

// Status reports the state of the latest detection attempt.
type Status string

const (
	// StatusInitializing - no analysis attempt has completed yet
	StatusInitializing Status = "initializing"
	// StatusSuccess - the last classification call succeeded
	StatusSuccess Status = "success"
	// StatusError - the last classification call failed; label defaults to no_accident
	StatusError Status = "error"
	// StatusNoFrame - no frame was available at the last analysis tick
	StatusNoFrame Status = "no_frame"
)

// AnalysisTask is a single frame snapshot queued for classification.
// Created by the feeder, consumed exactly once by a worker, discarded
// after processing.
type AnalysisTask struct {
	Frame      []byte
	CapturedAt time.Time
	Seq        uint64
}

// DetectionResult is the outcome of one analysis task. It supersedes the
// previous value entirely on each write; Seq orders results so a stale
// completion cannot overwrite a newer one.
type DetectionResult struct {
	Status      Status       `json:"status"`
	Label       vision.Label `json:"result"`
	Description string       `json:"description,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	Location    string       `json:"location"`
	Seq         uint64       `json:"-"`
}

// AlertEvent is created once per confirmed accident and queued for
// broadcast, then dropped.
type AlertEvent struct {
	ID          string
	StreamID    string
	Timestamp   time.Time
	Location    string
	Description string
	Frame       []byte
}

// Stats counts pipeline activity for one stream.
type Stats struct {
	StreamID       string
	TasksFed       uint64
	TasksDropped   uint64
	TasksCompleted uint64
	StaleRejected  uint64
	ClassifyErrors uint64
	Accidents      uint64
}
