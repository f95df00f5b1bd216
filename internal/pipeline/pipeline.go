// Package pipeline runs accident analysis for one stream: a feeder
// samples the latest frame at the configured analysis cadence onto a
// bounded queue, and a small worker pool drains the queue against the
// vision collaborator.
package pipeline

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"trafficwatch/internal/source"
	"trafficwatch/internal/vision"
)

const (
	// taskQueueCapacity bounds in-flight analysis work. The pipeline
	// favors recency over completeness: a full queue drops the new
	// snapshot rather than block the feeder.
	taskQueueCapacity = 5

	descriptionPlaceholder = "Error generating description."
)

// Sinks receive pipeline output. OnResult returns false when the
// receiver rejected the result as stale. OnAlert fires once per
// confirmed accident, after the result has been published.
type Sinks struct {
	OnResult func(*DetectionResult) bool
	OnAlert  func(*AlertEvent)
}

// Pipeline is the bounded analysis pipeline for a single stream.
type Pipeline struct {
	streamID   string
	location   string
	interval   time.Duration
	workers    int
	classifier vision.Classifier
	latest     func() *source.FrameSnapshot
	sinks      Sinks

	tasks  chan *AnalysisTask
	seq    atomic.Uint64
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats   Stats
	statsMu sync.Mutex
}

// New creates a pipeline. latest returns the stream's current frame
// snapshot, or nil if none has been captured yet.
func New(streamID, location string, interval time.Duration, workers int, classifier vision.Classifier, latest func() *source.FrameSnapshot, sinks Sinks) *Pipeline {
	if workers < 2 {
		workers = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		streamID:   streamID,
		location:   location,
		interval:   interval,
		workers:    workers,
		classifier: classifier,
		latest:     latest,
		sinks:      sinks,
		tasks:      make(chan *AnalysisTask, taskQueueCapacity),
		ctx:        ctx,
		cancel:     cancel,
		stats:      Stats{StreamID: streamID},
	}
}

// Start launches the feeder and the worker pool.
func (p *Pipeline) Start() {
	p.wg.Add(1)
	go p.feed()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}

	log.Printf("[Pipeline] %s: started (interval: %v, workers: %d)", p.streamID, p.interval, p.workers)
}

// Stop cancels all loops and in-flight classification calls, then waits
// up to timeout for the goroutines to exit. A worker stuck past the
// timeout is logged and abandoned.
func (p *Pipeline) Stop(timeout time.Duration) {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("[Pipeline] %s: stopped", p.streamID)
	case <-time.After(timeout):
		log.Printf("[Pipeline] %s: stop timed out after %v", p.streamID, timeout)
	}
}

// Stats returns a copy of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// feed samples the latest frame once per analysis tick and enqueues it
// without ever blocking; with the queue full the newest snapshot is
// dropped and the next tick naturally retries.
func (p *Pipeline) feed() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			snap := p.latest()
			if snap == nil {
				p.sinks.OnResult(&DetectionResult{
					Status:    StatusNoFrame,
					Label:     vision.LabelNoAccident,
					Timestamp: time.Now().UTC(),
					Location:  p.location,
					Seq:       p.seq.Add(1),
				})
				continue
			}

			task := &AnalysisTask{
				Frame:      snap.Data,
				CapturedAt: snap.CapturedAt,
				Seq:        p.seq.Add(1),
			}

			select {
			case p.tasks <- task:
				p.count(func(s *Stats) { s.TasksFed++ })
			default:
				p.count(func(s *Stats) { s.TasksDropped++ })
			}
		}
	}
}

// work drains the task queue. Workers complete independently and may
// finish out of order; the result sink resolves ordering via Seq.
func (p *Pipeline) work(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			p.process(task)
		}
	}
}

func (p *Pipeline) process(task *AnalysisTask) {
	now := time.Now().UTC()

	reply, err := p.classifier.Classify(p.ctx, task.Frame)
	if err != nil {
		if p.ctx.Err() != nil {
			return // stopping, not a classification failure
		}
		log.Printf("[Pipeline] %s: classification error: %v", p.streamID, err)
		p.count(func(s *Stats) { s.ClassifyErrors++ })
		p.publish(&DetectionResult{
			Status:    StatusError,
			Label:     vision.LabelNoAccident,
			Timestamp: now,
			Location:  p.location,
			Seq:       task.Seq,
		})
		return
	}

	result := &DetectionResult{
		Status:    StatusSuccess,
		Label:     vision.NormalizeLabel(reply),
		Timestamp: now,
		Location:  p.location,
		Seq:       task.Seq,
	}

	if result.Label == vision.LabelAccident {
		desc, derr := p.classifier.Describe(p.ctx, task.Frame)
		if derr != nil {
			log.Printf("[Pipeline] %s: error getting accident description: %v", p.streamID, derr)
			desc = descriptionPlaceholder
		}
		result.Description = desc
	}

	p.publish(result)

	// An accident is recorded and broadcast even when its result lost
	// the ordering race against a newer completion.
	if result.Label == vision.LabelAccident {
		p.count(func(s *Stats) { s.Accidents++ })
		if p.sinks.OnAlert != nil {
			p.sinks.OnAlert(&AlertEvent{
				ID:          uuid.NewString(),
				StreamID:    p.streamID,
				Timestamp:   now,
				Location:    p.location,
				Description: result.Description,
				Frame:       task.Frame,
			})
		}
	}
}

func (p *Pipeline) publish(result *DetectionResult) {
	p.count(func(s *Stats) { s.TasksCompleted++ })
	if !p.sinks.OnResult(result) {
		p.count(func(s *Stats) { s.StaleRejected++ })
	}
}

func (p *Pipeline) count(fn func(*Stats)) {
	p.statsMu.Lock()
	fn(&p.stats)
	p.statsMu.Unlock()
}
