package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) (*Watcher, string, chan *FrameSnapshot) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "current_frame.jpg")
	frames := make(chan *FrameSnapshot, 16)
	w, err := NewWatcher("demo1", path, func(s *FrameSnapshot) { frames <- s })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	return w, path, frames
}

func waitFrame(t *testing.T, frames chan *FrameSnapshot) *FrameSnapshot {
	t.Helper()
	select {
	case s := <-frames:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for frame snapshot")
		return nil
	}
}

func TestWatcherPublishesOnWrite(t *testing.T) {
	w, path, frames := newTestWatcher(t)
	stop := make(chan struct{})
	defer close(stop)
	go w.Run(stop)

	if err := os.WriteFile(path, []byte("frame-1"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	snap := waitFrame(t, frames)
	if string(snap.Data) != "frame-1" {
		t.Errorf("snapshot data = %q, want frame-1", snap.Data)
	}
	if snap.CapturedAt.IsZero() {
		t.Error("snapshot missing capture time")
	}
}

func TestWatcherPublishesPreexistingArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "current_frame.jpg")
	if err := os.WriteFile(path, []byte("already-here"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	frames := make(chan *FrameSnapshot, 16)
	w, err := NewWatcher("demo1", path, func(s *FrameSnapshot) { frames <- s })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	stop := make(chan struct{})
	defer close(stop)
	go w.Run(stop)

	snap := waitFrame(t, frames)
	if string(snap.Data) != "already-here" {
		t.Errorf("snapshot data = %q, want already-here", snap.Data)
	}
}

func TestWatcherRejectsNonMonotonicWrites(t *testing.T) {
	w, path, frames := newTestWatcher(t)

	if err := os.WriteFile(path, []byte("frame-1"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	now := time.Now()
	os.Chtimes(path, now, now)
	w.read()
	if got := waitFrame(t, frames); string(got.Data) != "frame-1" {
		t.Fatalf("first read published %q", got.Data)
	}

	// Same content rewritten with an older mtime must be ignored.
	if err := os.WriteFile(path, []byte("frame-stale"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	past := now.Add(-time.Minute)
	os.Chtimes(path, past, past)
	w.read()
	select {
	case snap := <-frames:
		t.Errorf("stale write was published: %q", snap.Data)
	default:
	}

	// A newer mtime is accepted again.
	if err := os.WriteFile(path, []byte("frame-2"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	future := now.Add(time.Minute)
	os.Chtimes(path, future, future)
	w.read()
	if got := waitFrame(t, frames); string(got.Data) != "frame-2" {
		t.Errorf("newer write published %q, want frame-2", got.Data)
	}
}

func TestWatcherSkipsEmptyArtifact(t *testing.T) {
	w, path, frames := newTestWatcher(t)

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	w.read()
	select {
	case snap := <-frames:
		t.Errorf("empty artifact was published: %q", snap.Data)
	default:
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	w, path, frames := newTestWatcher(t)
	stop := make(chan struct{})
	defer close(stop)
	go w.Run(stop)

	sibling := filepath.Join(filepath.Dir(path), "other.tmp")
	if err := os.WriteFile(sibling, []byte("noise"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case snap := <-frames:
		t.Errorf("sibling write was published: %q", snap.Data)
	case <-time.After(200 * time.Millisecond):
	}
}
