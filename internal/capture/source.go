// Package capture maintains one background worker per distinct physical
// video source and publishes each worker's most recent JPEG frame to any
// number of concurrent readers.
package capture

import (
	"fmt"
	"image"
	"strings"

	"github.com/condosec/condowatch/internal/errors"
)

// Frame is a single captured frame. Sources that already speak JPEG (network
// MJPEG cameras) fill JPEG; sources yielding raw images fill Image and the
// worker encodes at the configured quality.
type Frame struct {
	JPEG  []byte
	Image image.Image
}

// FrameReader is an open capture session.
type FrameReader interface {
	// ReadFrame blocks until the next frame or an error. Any error is
	// treated as transient: the worker closes the reader and reopens.
	ReadFrame() (*Frame, error)
	Close() error
}

// SourceOpener opens a capture session for a canonical source spec.
type SourceOpener func(source string) (FrameReader, error)

// CanonicalSource normalizes a source spec so that logical roles pointing at
// the same physical device share one worker. Friendly webcam names collapse
// to device index "0".
func CanonicalSource(spec string) string {
	s := strings.TrimSpace(spec)
	switch strings.ToLower(s) {
	case "webcam", "laptop", "camera":
		return "0"
	}
	return s
}

// DefaultOpener opens network MJPEG sources (http:// or https:// URLs) and
// local replay directories (dir: prefix). Bare device indexes would need a
// V4L2 binding this build does not carry; they fail as device-unavailable
// and keep being retried, so a deployment can switch a role to a network
// camera without restarting.
func DefaultOpener(source string) (FrameReader, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return OpenMJPEGStream(source)
	case strings.HasPrefix(source, "dir:"):
		return OpenReplayDir(strings.TrimPrefix(source, "dir:"))
	default:
		return nil, errors.New(fmt.Errorf("no driver for capture source %q", source)).
			Category(errors.CategoryDevice).
			Context("source", source).
			Build()
	}
}
