package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"trafficwatch/internal/pipeline"
	"trafficwatch/internal/source"
)

// ErrUnknownStream is returned when subscribing to a stream id the hub
// does not know.
var ErrUnknownStream = errors.New("unknown stream id")

// ChannelKind selects which delivery channel a subscriber joins.
type ChannelKind string

const (
	ChannelFrames ChannelKind = "frames"
	ChannelAlerts ChannelKind = "alerts"
)

// Default delivery cadences. Frames stream at viewing rate; alerts are
// rare and only need a short drain period.
const (
	DefaultFrameInterval = time.Second / 30
	DefaultAlertInterval = time.Second / 10
)

// StreamSource is the per-stream state the hub reads. Implemented by
// the stream Controller.
type StreamSource interface {
	ID() string
	LatestFrame() *source.FrameSnapshot
	LatestDetection() *pipeline.DetectionResult
	DrainAlerts() []*pipeline.AlertEvent
}

// HubStats counts hub activity.
type HubStats struct {
	FramesSent uint64
	AlertsSent uint64
	Pruned     uint64
}

// Hub fans frames and accident alerts out to the current subscriber
// sets. Two independent loops run at their own cadence; each tick
// fetches one snapshot per stream and delivers the same encoded payload
// to every subscriber of that stream.
type Hub struct {
	streams map[string]StreamSource
	// subs maps channel kind -> stream id -> subscriber set
	subs map[ChannelKind]map[string]map[Subscriber]bool
	mu   sync.RWMutex

	frameInterval time.Duration
	alertInterval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	stats   HubStats
	statsMu sync.Mutex
}

// NewHub creates a hub with the given delivery cadences.
func NewHub(frameInterval, alertInterval time.Duration) *Hub {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	if alertInterval <= 0 {
		alertInterval = DefaultAlertInterval
	}
	return &Hub{
		streams: make(map[string]StreamSource),
		subs: map[ChannelKind]map[string]map[Subscriber]bool{
			ChannelFrames: make(map[string]map[Subscriber]bool),
			ChannelAlerts: make(map[string]map[Subscriber]bool),
		},
		frameInterval: frameInterval,
		alertInterval: alertInterval,
		stopCh:        make(chan struct{}),
	}
}

// AddStream registers a stream with the hub. Called once per configured
// stream at startup.
func (h *Hub) AddStream(s StreamSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.streams[s.ID()] = s
}

// HasStream reports whether the hub knows a stream id.
func (h *Hub) HasStream(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.streams[id]
	return ok
}

// Subscribe adds a subscriber to a stream's channel. The subscriber
// synchronously receives one immediate snapshot (current frame or
// current detection status) before the periodic loop covers it; a failed
// initial send rejects the subscription.
func (h *Hub) Subscribe(streamID string, kind ChannelKind, sub Subscriber) error {
	h.mu.RLock()
	s, ok := h.streams[streamID]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownStream
	}

	if payload := h.initialSnapshot(s, kind); payload != nil {
		if err := sub.Send(payload); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[kind][streamID] == nil {
		h.subs[kind][streamID] = make(map[Subscriber]bool)
	}
	h.subs[kind][streamID][sub] = true
	log.Printf("[Hub] subscriber %s joined %s/%s (total: %d)", sub.ID(), streamID, kind, len(h.subs[kind][streamID]))
	return nil
}

func (h *Hub) initialSnapshot(s StreamSource, kind ChannelKind) []byte {
	switch kind {
	case ChannelFrames:
		if snap := s.LatestFrame(); snap != nil {
			return marshal(NewFrameMessage(s.ID(), snap))
		}
		// No frame captured yet; fall back to the detection status so
		// the subscriber still gets an immediate message.
		if res := s.LatestDetection(); res != nil {
			return marshal(NewDetectionStatusMessage(s.ID(), res))
		}
	case ChannelAlerts:
		if res := s.LatestDetection(); res != nil {
			return marshal(NewDetectionStatusMessage(s.ID(), res))
		}
	}
	return nil
}

// Unsubscribe removes a subscriber. A stream with no subscribers left in
// a channel leaves the hub's active set until a new subscription
// arrives.
func (h *Hub) Unsubscribe(streamID string, kind ChannelKind, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(streamID, kind, sub)
}

func (h *Hub) removeLocked(streamID string, kind ChannelKind, sub Subscriber) {
	set, ok := h.subs[kind][streamID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs[kind], streamID)
	}
	log.Printf("[Hub] subscriber %s left %s/%s", sub.ID(), streamID, kind)
}

// SubscriberCount returns the subscriber count for a stream's channel.
func (h *Hub) SubscriberCount(streamID string, kind ChannelKind) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[kind][streamID])
}

// Stats returns a copy of the hub counters.
func (h *Hub) Stats() HubStats {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return h.stats
}

// Start launches the frame and alert delivery loops.
func (h *Hub) Start() {
	h.wg.Add(2)
	go h.frameLoop()
	go h.alertLoop()
	log.Printf("[Hub] delivery loops started (frames: %v, alerts: %v)", h.frameInterval, h.alertInterval)
}

// Stop terminates the delivery loops and waits for them.
func (h *Hub) Stop() {
	close(h.stopCh)
	h.wg.Wait()
	log.Printf("[Hub] delivery loops stopped")
}

func (h *Hub) frameLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.broadcastFrames()
		}
	}
}

func (h *Hub) alertLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.alertInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.broadcastAlerts()
		}
	}
}

// broadcastFrames does one pass over the streams that currently have
// frame subscribers. The frame is fetched and encoded once per stream,
// then fanned out; streams without subscribers incur no work.
func (h *Hub) broadcastFrames() {
	for _, t := range h.targets(ChannelFrames) {
		snap := t.stream.LatestFrame()
		if snap == nil {
			continue
		}
		payload := marshal(NewFrameMessage(t.stream.ID(), snap))
		h.fanOut(t, ChannelFrames, payload)
		h.count(func(s *HubStats) { s.FramesSent++ })
	}
}

// broadcastAlerts drains every stream's alert queue each tick so the
// queues stay bounded even with nobody listening, and fans drained
// events out when alert subscribers exist.
func (h *Hub) broadcastAlerts() {
	h.mu.RLock()
	streams := make([]StreamSource, 0, len(h.streams))
	for _, s := range h.streams {
		streams = append(streams, s)
	}
	h.mu.RUnlock()

	for _, s := range streams {
		events := s.DrainAlerts()
		if len(events) == 0 {
			continue
		}

		t := h.target(s, ChannelAlerts)
		if len(t.subs) == 0 {
			continue // drained without delivery; alerts are fire-and-forget
		}
		for _, ev := range events {
			payload := marshal(NewAlertMessage(ev))
			h.fanOut(t, ChannelAlerts, payload)
			h.count(func(st *HubStats) { st.AlertsSent++ })
		}
	}
}

// fanOutTarget pairs a stream with a stable copy of its subscriber set
// for one fan-out pass.
type fanOutTarget struct {
	stream StreamSource
	subs   []Subscriber
}

func (h *Hub) targets(kind ChannelKind) []fanOutTarget {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]fanOutTarget, 0, len(h.subs[kind]))
	for id, set := range h.subs[kind] {
		s, ok := h.streams[id]
		if !ok || len(set) == 0 {
			continue
		}
		subs := make([]Subscriber, 0, len(set))
		for sub := range set {
			subs = append(subs, sub)
		}
		out = append(out, fanOutTarget{stream: s, subs: subs})
	}
	return out
}

func (h *Hub) target(s StreamSource, kind ChannelKind) fanOutTarget {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.subs[kind][s.ID()]
	subs := make([]Subscriber, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	return fanOutTarget{stream: s, subs: subs}
}

// fanOut delivers one payload to every subscriber in the target. Failed
// subscribers are collected during the pass and removed after it, never
// while the set is being iterated.
func (h *Hub) fanOut(t fanOutTarget, kind ChannelKind, payload []byte) {
	if payload == nil {
		return
	}
	var failed []Subscriber
	for _, sub := range t.subs {
		if err := sub.Send(payload); err != nil {
			log.Printf("[Hub] send to subscriber %s failed: %v", sub.ID(), err)
			failed = append(failed, sub)
		}
	}

	if len(failed) == 0 {
		return
	}
	h.mu.Lock()
	for _, sub := range failed {
		h.removeLocked(t.stream.ID(), kind, sub)
	}
	h.mu.Unlock()
	for _, sub := range failed {
		sub.Close()
	}
	h.count(func(s *HubStats) { s.Pruned += uint64(len(failed)) })
}

func (h *Hub) count(fn func(*HubStats)) {
	h.statsMu.Lock()
	fn(&h.stats)
	h.statsMu.Unlock()
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[Hub] error marshaling message: %v", err)
		return nil
	}
	return data
}
