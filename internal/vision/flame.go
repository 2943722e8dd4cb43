package vision

import (
	"encoding/json"
	"image"
	"os"

	"github.com/condosec/condowatch/internal/errors"
)

// FlameModel is the trained flame-color model: a single threshold on the
// fraction of flame-colored pixels, produced by offline training against
// labeled frames.
type FlameModel struct {
	RatioThreshold float64 `json:"ratio_threshold"`
}

// LoadFlameModel reads a flame-color model file. A file without a usable
// threshold is a classifier-category error.
func LoadFlameModel(path string) (*FlameModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryClassifier).Context("path", path).Build()
	}
	var m FlameModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.New(err).Category(errors.CategoryClassifier).Context("path", path).Build()
	}
	if m.RatioThreshold <= 0 {
		return nil, errors.ValidationError("flame model %q has no positive ratio_threshold", path)
	}
	return &m, nil
}

// ColorFlameClassifier flags frames whose flame-colored pixel ratio crosses
// the model threshold. Flame-colored means hot hues (reds through yellows,
// wrapping through magenta-red) at high saturation and brightness.
type ColorFlameClassifier struct {
	Threshold float64
}

// NewColorFlameClassifier builds a classifier from a model, with an optional
// manual override that wins when positive.
func NewColorFlameClassifier(m *FlameModel, override float64) *ColorFlameClassifier {
	threshold := m.RatioThreshold
	if override > 0 {
		threshold = override
	}
	return &ColorFlameClassifier{Threshold: threshold}
}

func (c *ColorFlameClassifier) Detect(img image.Image) FlameObservation {
	ratio := FlameRatio(img)
	return FlameObservation{Flame: ratio >= c.Threshold, Ratio: ratio}
}

// FlameRatio estimates the fraction of flame-like pixels in a frame. Hue is
// measured on the half-degree scale (0..179) so trained thresholds carry
// over unchanged; the masked bands are hue 0..35 and 160..179 with
// saturation and value both at least 120/255.
func FlameRatio(img image.Image) float64 {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 0
	}

	hits := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			h, s, v := rgbToHSV(uint8(r16>>8), uint8(g16>>8), uint8(b16>>8))
			if s < 120 || v < 120 {
				continue
			}
			if h <= 35 || h >= 160 {
				hits++
			}
		}
	}
	return float64(hits) / float64(total)
}

// rgbToHSV converts to OpenCV-style HSV: hue 0..179, saturation and value
// 0..255.
func rgbToHSV(r, g, b uint8) (h, s, v int) {
	maxC := max(r, g, b)
	minC := min(r, g, b)
	v = int(maxC)
	delta := int(maxC) - int(minC)
	if maxC == 0 || delta == 0 {
		return 0, 0, v
	}
	s = 255 * delta / int(maxC)

	var hue float64
	switch maxC {
	case r:
		hue = 30 * float64(int(g)-int(b)) / float64(delta)
	case g:
		hue = 60 + 30*float64(int(b)-int(r))/float64(delta)
	default:
		hue = 120 + 30*float64(int(r)-int(g))/float64(delta)
	}
	if hue < 0 {
		hue += 180
	}
	return int(hue), s, v
}
