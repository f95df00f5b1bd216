package source

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultFallbackSources are public static traffic camera images used
// when no fallback list is configured.
var DefaultFallbackSources = []string{
	"https://511ev.org/cameras/latest/R1_167_St_Louis_River.jpg",
	"https://511ev.org/cameras/latest/R1_21_Thompson_Hill.jpg",
	"https://511ev.org/cameras/latest/R1_13_Mesaba.jpg",
	"https://511ev.org/cameras/latest/R1_172_North_Shore.jpg",
}

// FallbackSource polls a rotating list of static image endpoints at a
// fixed cadence, overwriting the stream's frame artifact. Used when the
// live transcode is unavailable.
type FallbackSource struct {
	streamID     string
	sources      []string
	artifactPath string
	interval     time.Duration
	client       *http.Client
	index        int
}

// NewFallbackSource creates a static-image poller. An empty source list
// selects DefaultFallbackSources.
func NewFallbackSource(streamID, artifactPath string, sources []string) *FallbackSource {
	if len(sources) == 0 {
		sources = DefaultFallbackSources
	}
	return &FallbackSource{
		streamID:     streamID,
		sources:      sources,
		artifactPath: artifactPath,
		interval:     time.Second / 30,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Run polls until stopped. Fetch errors are logged and retried on the
// next tick; they never propagate.
func (s *FallbackSource) Run(stop <-chan struct{}) error {
	log.Printf("[Source] %s: starting fallback frame loop (%d sources)", s.streamID, len(s.sources))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			log.Printf("[Source] %s: fallback frame loop stopped", s.streamID)
			return nil
		case <-ticker.C:
			if err := s.fetchNext(); err != nil {
				log.Printf("[Source] %s: error downloading fallback frame: %v", s.streamID, err)
			}
		}
	}
}

// fetchNext downloads the next image in rotation and atomically replaces
// the artifact so readers never observe a partial file.
func (s *FallbackSource) fetchNext() error {
	src := s.sources[s.index%len(s.sources)]
	s.index++

	url := fmt.Sprintf("%s?nocache=%d", src, time.Now().UnixNano())
	resp, err := s.client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, src)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.artifactPath), ".frame-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.artifactPath)
}

// Ensure FallbackSource implements Source
var _ Source = (*FallbackSource)(nil)
