package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streams.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
streams:
  - id: demo1
    url: https://example.com/demo1.m3u8
    location: Hwy 55 at Hwy 100
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.FramesDir != "frames" {
		t.Errorf("FramesDir = %q, want frames", cfg.FramesDir)
	}
	if cfg.AnalysisWorkers != 2 {
		t.Errorf("AnalysisWorkers = %d, want 2", cfg.AnalysisWorkers)
	}
	if got := cfg.Streams[0].AnalysisHz; got != 1 {
		t.Errorf("AnalysisHz = %v, want 1", got)
	}
	if got := cfg.Streams[0].AnalysisInterval(); got != time.Second {
		t.Errorf("AnalysisInterval = %v, want 1s", got)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
frames_dir: /tmp/frames
analysis_workers: 4
streams:
  - id: demo1
    url: https://example.com/demo1.m3u8
    location: Hwy 55
    analysis_hz: 2
  - id: cam2
    url: fallback
    location: Test Camera
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Streams) != 2 {
		t.Fatalf("got %d streams, want 2", len(cfg.Streams))
	}
	if got := cfg.Streams[0].AnalysisInterval(); got != 500*time.Millisecond {
		t.Errorf("AnalysisInterval = %v, want 500ms", got)
	}
	if cfg.Streams[0].UseFallback() {
		t.Error("demo1 should not use fallback")
	}
	if !cfg.Streams[1].UseFallback() {
		t.Error("cam2 should use fallback")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no streams", `frames_dir: x`, "no streams"},
		{
			"duplicate id",
			"streams:\n  - {id: a, url: fallback, location: x}\n  - {id: a, url: fallback, location: y}",
			"duplicate stream id",
		},
		{"empty url", "streams:\n  - {id: a, location: x}", "empty url"},
		{"empty location", "streams:\n  - {id: a, url: fallback}", "empty location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
