package vision

import "context"

// Label is the normalized outcome of a frame classification.
type Label string

const (
	LabelAccident   Label = "accident"
	LabelNoAccident Label = "no_accident"
)

// Classifier is the external vision-inference collaborator. Classify
// returns the model's raw textual reply for a frame; Describe returns a
// short natural-language description of a confirmed accident scene.
type Classifier interface {
	Classify(ctx context.Context, frame []byte) (string, error)
	Describe(ctx context.Context, frame []byte) (string, error)
}
