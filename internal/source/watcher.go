package source

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher turns frame artifact writes into published snapshots. It
// watches the artifact's directory (the artifact itself is replaced by
// rename) and enforces a monotonically increasing capture timestamp, so
// a late or duplicate write never moves a reader backwards in time.
type Watcher struct {
	streamID string
	path     string
	onFrame  func(*FrameSnapshot)
	lastMod  int64 // unix nanos of the last accepted write
	fw       *fsnotify.Watcher
}

// NewWatcher creates a watcher for a stream's frame artifact. onFrame is
// called from the watcher goroutine with each accepted snapshot.
func NewWatcher(streamID, path string, onFrame func(*FrameSnapshot)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		streamID: streamID,
		path:     filepath.Clean(path),
		onFrame:  onFrame,
		fw:       fw,
	}, nil
}

// Run publishes snapshots until the stop channel closes. An artifact
// already present at start is published immediately so subscribers see a
// frame without waiting for the next write.
func (w *Watcher) Run(stop <-chan struct{}) {
	defer w.fw.Close()

	w.read()

	for {
		select {
		case <-stop:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.read()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("[Watcher] %s: watch error: %v", w.streamID, err)
		}
	}
}

func (w *Watcher) read() {
	info, err := os.Stat(w.path)
	if err != nil {
		return // artifact not written yet
	}
	mod := info.ModTime().UnixNano()
	if mod <= w.lastMod {
		return
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		log.Printf("[Watcher] %s: error reading artifact: %v", w.streamID, err)
		return
	}
	if len(data) == 0 {
		return // racing the writer on an empty file
	}

	w.lastMod = mod
	w.onFrame(&FrameSnapshot{Data: data, CapturedAt: info.ModTime()})
}
