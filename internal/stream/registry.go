package stream

import (
	"errors"
	"log"
	"sync"
	"time"
)

// ErrStreamNotFound is returned for lookups of unknown stream ids.
var ErrStreamNotFound = errors.New("stream not found")

// Registry holds one Controller per configured stream and supervises
// their shared lifecycle.
type Registry struct {
	controllers map[string]*Controller
	order       []string
	mu          sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		controllers: make(map[string]*Controller),
	}
}

// Add registers a controller. Later Add calls with a duplicate id are a
// configuration bug and are ignored with a log line.
func (r *Registry) Add(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.controllers[c.ID()]; exists {
		log.Printf("[Registry] duplicate stream id %s ignored", c.ID())
		return
	}
	r.controllers[c.ID()] = c
	r.order = append(r.order, c.ID())
}

// Get looks up a controller by stream id.
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.controllers[id]
	if !ok {
		return nil, ErrStreamNotFound
	}
	return c, nil
}

// All returns the controllers in configuration order.
func (r *Registry) All() []*Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Controller, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.controllers[id])
	}
	return out
}

// StartAll starts every controller, staggering starts to avoid a
// thundering herd on the upstream sources and the inference service. A
// controller that fails to start is logged and skipped; its siblings
// keep running.
func (r *Registry) StartAll(stagger time.Duration) {
	for i, c := range r.All() {
		if i > 0 && stagger > 0 {
			time.Sleep(stagger)
		}
		if err := c.Start(); err != nil {
			log.Printf("[Registry] failed to start stream %s: %v", c.ID(), err)
		}
	}
}

// StopAll stops every controller concurrently and waits for each with a
// bounded timeout. A hung controller is logged and skipped so shutdown
// always completes.
func (r *Registry) StopAll(perControllerTimeout time.Duration) {
	var wg sync.WaitGroup
	for _, c := range r.All() {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()

			done := make(chan struct{})
			go func() {
				c.Stop()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(perControllerTimeout):
				log.Printf("[Registry] stream %s did not stop within %v, skipping", c.ID(), perControllerTimeout)
			}
		}(c)
	}
	wg.Wait()
	log.Printf("[Registry] all streams stopped")
}
