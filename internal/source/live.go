package source

import (
	"fmt"
	"log"
	"net/http"
	"time"
)

// browserUserAgent is sent on playlist requests; several public traffic
// camera endpoints reject requests without one.
const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36"

// LiveSource supervises an ffmpeg decode process that continuously
// overwrites the stream's frame artifact with the newest frame. The
// source does not parse the codec itself; the artifact's modification
// time is the freshness signal consumed downstream.
type LiveSource struct {
	streamID     string
	url          string
	artifactPath string
	fps          int
	grace        time.Duration
}

// NewLiveSource creates a live decode source for an HLS/network stream.
func NewLiveSource(streamID, url, artifactPath string) *LiveSource {
	return &LiveSource{
		streamID:     streamID,
		url:          url,
		artifactPath: artifactPath,
		fps:          30,
		grace:        5 * time.Second,
	}
}

// Run launches ffmpeg and supervises it until stopped. Returns
// ErrSourceFailed if the process exits on its own while a stop was not
// requested, flagging the stream for fallback acquisition.
func (s *LiveSource) Run(stop <-chan struct{}) error {
	proc := NewManagedProcess("ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-headers", "User-Agent: "+browserUserAgent,
		"-protocol_whitelist", "file,http,https,tcp,tls",
		"-i", s.url,
		"-vf", fmt.Sprintf("fps=%d", s.fps),
		"-q:v", "2",
		"-update", "1",
		"-y", s.artifactPath,
	)

	log.Printf("[Source] %s: starting ffmpeg for %s", s.streamID, s.url)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceFailed, err)
	}

	select {
	case <-stop:
		if err := proc.Stop(s.grace); err != nil {
			log.Printf("[Source] %s: error stopping ffmpeg: %v", s.streamID, err)
		}
		log.Printf("[Source] %s: ffmpeg stopped", s.streamID)
		return nil
	case <-proc.Done():
		if err := proc.Err(); err != nil {
			log.Printf("[Source] %s: ffmpeg exited unexpectedly: %v", s.streamID, err)
			return fmt.Errorf("%w: %v", ErrSourceFailed, err)
		}
		log.Printf("[Source] %s: ffmpeg exited cleanly but unexpectedly", s.streamID)
		return ErrSourceFailed
	}
}

// Preflight checks that a live stream URL answers before committing to
// the live variant. Failures select the fallback variant at start.
func Preflight(url string) bool {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("[Source] preflight failed for %s: %v", url, err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Ensure LiveSource implements Source
var _ Source = (*LiveSource)(nil)
