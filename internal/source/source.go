// Package source acquires frames for a stream. A source keeps the
// stream's frame artifact (a single JPEG on disk) overwritten with the
// newest decoded frame; the watcher turns artifact writes into immutable
// in-memory snapshots.
package source

import (
	"errors"
	"time"
)

// ErrSourceFailed signals that a source stopped on its own (upstream
// unreachable, decode process crash). The caller is expected to fail
// over to the fallback variant rather than treat this as fatal.
var ErrSourceFailed = errors.New("frame source failed")

// Source produces frames for one stream by overwriting its artifact.
// Run blocks until the stop channel closes or the source fails.
type Source interface {
	Run(stop <-chan struct{}) error
}

// FrameSnapshot is an immutable view of the latest captured frame.
// Writers publish a fresh snapshot on every accepted update; readers
// hold references only.
type FrameSnapshot struct {
	Data       []byte
	CapturedAt time.Time
}
