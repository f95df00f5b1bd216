package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trafficwatch/internal/pipeline"
)

func TestRecordAccidentAppendsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "accidents.log")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	ts := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	err = l.RecordAccident(&pipeline.AlertEvent{
		ID:          "ev1",
		StreamID:    "demo1",
		Timestamp:   ts,
		Location:    "Hwy 55 at Hwy 100",
		Description: "Two cars collided in the left lane.",
	})
	if err != nil {
		t.Fatalf("RecordAccident failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	want := "2025-06-01 14:30:00 - Accident Detected - Stream: demo1, Location: Hwy 55 at Hwy 100, Description: Two cars collided in the left lane.\n"
	if string(data) != want {
		t.Errorf("log line = %q, want %q", data, want)
	}
}

func TestRecordAccidentAppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accidents.log")
	ev := &pipeline.AlertEvent{ID: "ev", StreamID: "demo1", Timestamp: time.Now(), Location: "x", Description: "y"}

	for i := 0; i < 2; i++ {
		l, err := Open(path)
		if err != nil {
			t.Fatalf("Open %d failed: %v", i, err)
		}
		if err := l.RecordAccident(ev); err != nil {
			t.Fatalf("RecordAccident %d failed: %v", i, err)
		}
		l.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if got := strings.Count(string(data), "Accident Detected"); got != 2 {
		t.Errorf("log has %d entries after reopen, want 2", got)
	}
}
