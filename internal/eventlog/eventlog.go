// Package eventlog appends confirmed accident events to a durable
// plain-text log, one line per event.
package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"trafficwatch/internal/pipeline"
)

// Logger writes the append-only accident log.
type Logger struct {
	mu sync.Mutex
	f  *os.File
}

// Open creates the log file (and its directory) if needed and opens it
// for appending.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open accident log: %w", err)
	}
	return &Logger{f: f}, nil
}

// RecordAccident appends one line for a confirmed accident.
func (l *Logger) RecordAccident(ev *pipeline.AlertEvent) error {
	line := fmt.Sprintf("%s - Accident Detected - Stream: %s, Location: %s, Description: %s\n",
		ev.Timestamp.UTC().Format("2006-01-02 15:04:05"), ev.StreamID, ev.Location, ev.Description)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append accident log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
