// Package stream owns per-stream lifecycle: one Controller per
// configured stream ties together frame acquisition, the analysis
// pipeline, and the latest-frame/latest-detection slots, and a Registry
// supervises the set of controllers.
package stream

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"trafficwatch/internal/config"
	"trafficwatch/internal/pipeline"
	"trafficwatch/internal/source"
	"trafficwatch/internal/vision"
)

const (
	defaultSettleDelay = 1 * time.Second
	stopTimeout        = 5 * time.Second
	alertQueueCapacity = 32
)

// AccidentRecorder persists a confirmed accident as a side channel
// independent of broadcast delivery.
type AccidentRecorder interface {
	RecordAccident(ev *pipeline.AlertEvent) error
}

// Options configures a Controller beyond its StreamConfig.
type Options struct {
	FramesDir       string
	Classifier      vision.Classifier
	Workers         int
	FallbackSources []string
	Recorders       []AccidentRecorder
	SettleDelay     time.Duration // defaults to one second
}

// Controller owns one stream: its frame source, artifact watcher,
// analysis pipeline, and the snapshot slots read by broadcast and REST.
type Controller struct {
	cfg  config.StreamConfig
	opts Options

	artifactPath  string
	frame         atomic.Pointer[source.FrameSnapshot]
	detection     atomic.Pointer[pipeline.DetectionResult]
	alerts        chan *pipeline.AlertEvent
	usingFallback atomic.Bool

	// newSource and preflight are replaced in tests.
	newSource func(useFallback bool) source.Source
	preflight func(url string) bool

	pipe    *pipeline.Pipeline
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewController creates a controller for one configured stream.
func NewController(cfg config.StreamConfig, opts Options) *Controller {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	c := &Controller{
		cfg:          cfg,
		opts:         opts,
		artifactPath: filepath.Join(opts.FramesDir, cfg.ID, "current_frame.jpg"),
		alerts:       make(chan *pipeline.AlertEvent, alertQueueCapacity),
	}
	c.newSource = func(useFallback bool) source.Source {
		if useFallback {
			return source.NewFallbackSource(cfg.ID, c.artifactPath, opts.FallbackSources)
		}
		return source.NewLiveSource(cfg.ID, cfg.URL, c.artifactPath)
	}
	c.preflight = source.Preflight
	return c
}

// ID returns the stream id.
func (c *Controller) ID() string { return c.cfg.ID }

// Location returns the stream's human-readable location label.
func (c *Controller) Location() string { return c.cfg.Location }

// Status reports the acquisition state for the query surface.
func (c *Controller) Status() string {
	if c.frame.Load() == nil {
		return "initializing"
	}
	if c.usingFallback.Load() {
		return "fallback"
	}
	return "live"
}

// Start launches frame acquisition, waits a short settle delay so the
// pipeline does not race an empty artifact, then starts analysis.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	c.stopCh = make(chan struct{})

	c.detection.Store(&pipeline.DetectionResult{
		Status:   pipeline.StatusInitializing,
		Label:    vision.LabelNoAccident,
		Location: c.cfg.Location,
	})

	if err := os.MkdirAll(filepath.Dir(c.artifactPath), 0o755); err != nil {
		return fmt.Errorf("stream %s: failed to create frames dir: %w", c.cfg.ID, err)
	}

	watcher, err := source.NewWatcher(c.cfg.ID, c.artifactPath, c.publishFrame)
	if err != nil {
		return fmt.Errorf("stream %s: %w", c.cfg.ID, err)
	}

	c.running = true
	log.Printf("[Stream] %s: starting (%s)", c.cfg.ID, c.cfg.Location)

	stop := c.stopCh
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		watcher.Run(stop)
	}()
	go func() {
		defer c.wg.Done()
		c.runSource(stop)
	}()

	// Settle before analysis so the first tick has a chance of seeing a
	// populated artifact.
	select {
	case <-stop:
		return nil
	case <-time.After(c.opts.SettleDelay):
	}

	c.pipe = pipeline.New(
		c.cfg.ID, c.cfg.Location,
		c.cfg.AnalysisInterval(), c.opts.Workers,
		c.opts.Classifier,
		c.LatestFrame,
		pipeline.Sinks{OnResult: c.publishDetection, OnAlert: c.handleAlert},
	)
	c.pipe.Start()
	return nil
}

// Stop signals every owned loop, stops the pipeline and the external
// process, and joins with a bounded timeout. Safe to call after a
// partially failed Start, and safe to call more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	close(c.stopCh)

	if c.pipe != nil {
		c.pipe.Stop(stopTimeout)
		c.pipe = nil
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Printf("[Stream] %s: stopped", c.cfg.ID)
	case <-time.After(stopTimeout):
		log.Printf("[Stream] %s: stop timed out after %v", c.cfg.ID, stopTimeout)
	}
}

// LatestFrame returns the most recent frame snapshot, or nil before the
// first capture.
func (c *Controller) LatestFrame() *source.FrameSnapshot {
	return c.frame.Load()
}

// LatestDetection returns the most recently accepted detection result.
func (c *Controller) LatestDetection() *pipeline.DetectionResult {
	return c.detection.Load()
}

// PipelineStats returns analysis counters, or a zero value before the
// pipeline has started.
func (c *Controller) PipelineStats() pipeline.Stats {
	c.mu.Lock()
	pipe := c.pipe
	c.mu.Unlock()
	if pipe == nil {
		return pipeline.Stats{StreamID: c.cfg.ID}
	}
	return pipe.Stats()
}

// DrainAlerts removes and returns all queued alert events without
// blocking.
func (c *Controller) DrainAlerts() []*pipeline.AlertEvent {
	var out []*pipeline.AlertEvent
	for {
		select {
		case ev := <-c.alerts:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// runSource keeps acquisition alive until stopped, failing over from the
// live variant to the fallback poller when the decode process dies.
func (c *Controller) runSource(stop <-chan struct{}) {
	useFallback := c.cfg.UseFallback()
	if !useFallback && !c.preflight(c.cfg.URL) {
		log.Printf("[Stream] %s: live source preflight failed, using fallback", c.cfg.ID)
		useFallback = true
	}

	for {
		c.usingFallback.Store(useFallback)
		err := c.newSource(useFallback).Run(stop)

		select {
		case <-stop:
			return
		default:
		}

		if err == nil {
			return
		}
		if useFallback {
			// Fallback failing outright means repeated fetch errors were
			// already logged per tick; restart the loop after a beat.
			time.Sleep(time.Second)
			continue
		}
		log.Printf("[Stream] %s: live source failed, switching to fallback: %v", c.cfg.ID, err)
		useFallback = true
	}
}

// publishFrame is the watcher's sink; the watcher is the only writer and
// already enforces timestamp monotonicity.
func (c *Controller) publishFrame(snap *source.FrameSnapshot) {
	c.frame.Store(snap)
}

// publishDetection stores a result unless a newer one (higher sequence
// number) has already been published by another worker.
func (c *Controller) publishDetection(res *pipeline.DetectionResult) bool {
	for {
		cur := c.detection.Load()
		if cur != nil && res.Seq < cur.Seq {
			return false
		}
		if c.detection.CompareAndSwap(cur, res) {
			return true
		}
	}
}

// handleAlert records the accident durably, then queues it for
// broadcast. Recording happens first: broadcast failure must never
// suppress the accident log.
func (c *Controller) handleAlert(ev *pipeline.AlertEvent) {
	for _, rec := range c.opts.Recorders {
		if err := rec.RecordAccident(ev); err != nil {
			log.Printf("[Stream] %s: error recording accident: %v", c.cfg.ID, err)
		}
	}

	select {
	case c.alerts <- ev:
	default:
		log.Printf("[Stream] %s: alert queue full, dropping event %s", c.cfg.ID, ev.ID)
	}
}
