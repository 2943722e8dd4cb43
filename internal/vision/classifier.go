// Package vision runs the per-frame detection loop: it pulls the freshest
// frame for each camera role, feeds it to pluggable classifiers, debounces
// noisy per-frame results with leaky streak counters, and turns sustained
// detections into events, snapshots and fusion calls.
package vision

import "image"

// FaceObservation is one frame's face-channel result. When no face is in the
// frame, Found is false and the other fields are meaningless.
type FaceObservation struct {
	Found      bool
	Label      string
	Confidence float64
}

// Unknown reports whether the observation is an unrecognized face.
func (o FaceObservation) Unknown() bool {
	return o.Found && o.Label == "UNKNOWN"
}

// FaceClassifier recognizes the largest face in a frame. Implementations
// that cannot load a trained model must report every face as UNKNOWN rather
// than fail.
type FaceClassifier interface {
	Classify(img image.Image) FaceObservation
}

// FlameObservation is one frame's flame-channel result. Ratio is the
// fraction of flame-colored pixels regardless of whether it crossed the
// threshold.
type FlameObservation struct {
	Flame bool
	Ratio float64
}

// FlameClassifier decides whether a frame shows an open flame.
type FlameClassifier interface {
	Detect(img image.Image) FlameObservation
}

// RosterAware classifiers receive the freshly reloaded name roster after a
// model hot-swap.
type RosterAware interface {
	SetRoster(m *FaceModel)
}
