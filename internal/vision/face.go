package vision

import (
	"encoding/json"
	"image"
	"os"

	"github.com/condosec/condowatch/internal/errors"
)

// FaceModel is the trained recognizer roster: recognizer class ids mapped to
// resident names. Recognition itself lives behind FaceClassifier; the roster
// is what training rewrites and the watcher hot-reloads.
type FaceModel struct {
	IDToName map[int]string `json:"id_to_name"`
}

// LoadFaceModel reads a face roster file.
func LoadFaceModel(path string) (*FaceModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryClassifier).Context("path", path).Build()
	}
	var m FaceModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.New(err).Category(errors.CategoryClassifier).Context("path", path).Build()
	}
	if m.IDToName == nil {
		m.IDToName = map[int]string{}
	}
	return &m, nil
}

// FaceClassifierFunc adapts a function to FaceClassifier.
type FaceClassifierFunc func(img image.Image) FaceObservation

func (f FaceClassifierFunc) Classify(img image.Image) FaceObservation { return f(img) }
