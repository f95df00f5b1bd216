package database

import (
	"path/filepath"
	"testing"
	"time"

	"trafficwatch/internal/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trafficwatch.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func event(id string, ts time.Time) *pipeline.AlertEvent {
	return &pipeline.AlertEvent{
		ID:          id,
		StreamID:    "demo1",
		Timestamp:   ts,
		Location:    "Hwy 55",
		Description: "Collision near the off-ramp.",
	}
}

func TestRecordAndQueryAccidents(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"ev1", "ev2", "ev3"} {
		if err := s.RecordAccident(event(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("RecordAccident %s failed: %v", id, err)
		}
	}

	events, err := s.RecentAccidents(10)
	if err != nil {
		t.Fatalf("RecentAccidents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	// Newest first.
	for i, want := range []string{"ev3", "ev2", "ev1"} {
		if events[i].ID != want {
			t.Errorf("events[%d].ID = %s, want %s", i, events[i].ID, want)
		}
	}
	if events[0].StreamID != "demo1" || events[0].Location != "Hwy 55" || events[0].Description == "" {
		t.Errorf("unexpected event record: %+v", events[0])
	}
}

func TestRecentAccidentsLimit(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		ev := event("ev"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
		if err := s.RecordAccident(ev); err != nil {
			t.Fatalf("RecordAccident failed: %v", err)
		}
	}

	events, err := s.RecentAccidents(2)
	if err != nil {
		t.Fatalf("RecentAccidents failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want limit of 2", len(events))
	}
}

func TestRecentAccidentsEmpty(t *testing.T) {
	s := openTestStore(t)

	events, err := s.RecentAccidents(0)
	if err != nil {
		t.Fatalf("RecentAccidents failed: %v", err)
	}
	if events == nil {
		t.Error("RecentAccidents returned nil, want empty slice")
	}
	if len(events) != 0 {
		t.Errorf("got %d events from empty store", len(events))
	}
}

func TestDuplicateEventIDRejected(t *testing.T) {
	s := openTestStore(t)

	ev := event("ev1", time.Now().UTC())
	if err := s.RecordAccident(ev); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := s.RecordAccident(ev); err == nil {
		t.Error("duplicate primary key insert succeeded")
	}
}
