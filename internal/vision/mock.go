package vision

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// MockClassifier simulates the vision collaborator without consuming
// inference quota. Replies lean toward "no accident" with a configurable
// accident probability.
type MockClassifier struct {
	AccidentRate float64       // probability of a positive reply, default 0.2
	Delay        time.Duration // simulated inference latency

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockClassifier creates a mock classifier with the given seed.
func NewMockClassifier(seed int64) *MockClassifier {
	return &MockClassifier{
		AccidentRate: 0.2,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

func (m *MockClassifier) Classify(ctx context.Context, frame []byte) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	positive := m.rng.Float64() < m.AccidentRate
	m.mu.Unlock()
	if positive {
		return "accident", nil
	}
	return "no accident", nil
}

func (m *MockClassifier) Describe(ctx context.Context, frame []byte) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	return "Simulated: two vehicles appear to have collided on the roadway.", nil
}

func (m *MockClassifier) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.Delay):
		return nil
	}
}

// Ensure MockClassifier implements Classifier
var _ Classifier = (*MockClassifier)(nil)
