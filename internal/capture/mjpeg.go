package capture

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/condosec/condowatch/internal/errors"
)

const (
	// mjpegDialTimeout bounds how long an open attempt may hang on an
	// unreachable camera.
	mjpegDialTimeout = 5 * time.Second
	// maxFrameBytes guards against a malformed part claiming an absurd size.
	maxFrameBytes = 8 << 20
)

// mjpegClient is shared by all camera streams so reconnects reuse pooled
// connections.
var mjpegClient = &http.Client{
	Transport: &http.Transport{
		ResponseHeaderTimeout: mjpegDialTimeout,
	},
}

// mjpegStream reads frames from a multipart/x-mixed-replace MJPEG stream,
// the wire format ESP32-CAM class devices serve.
type mjpegStream struct {
	body  io.ReadCloser
	parts *multipart.Reader
}

// OpenMJPEGStream connects to the camera URL and prepares the multipart
// reader. Failures are device-category errors; the caller retries.
func OpenMJPEGStream(url string) (FrameReader, error) {
	resp, err := mjpegClient.Get(url)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to connect to camera stream: %w", err)).
			Category(errors.CategoryDevice).
			Context("url", url).
			Build()
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, errors.New(fmt.Errorf("camera stream returned status %d", resp.StatusCode)).
			Category(errors.CategoryDevice).
			Context("url", url).
			Build()
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || params["boundary"] == "" {
		_ = resp.Body.Close()
		return nil, errors.New(fmt.Errorf("camera stream has no multipart boundary (content-type %q)", mediaType)).
			Category(errors.CategoryDevice).
			Context("url", url).
			Build()
	}

	return &mjpegStream{
		body:  resp.Body,
		parts: multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

func (s *mjpegStream) ReadFrame() (*Frame, error) {
	part, err := s.parts.NextPart()
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read stream part: %w", err)).
			Category(errors.CategoryDevice).Build()
	}
	defer func() { _ = part.Close() }()

	data, err := io.ReadAll(io.LimitReader(part, maxFrameBytes+1))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read frame body: %w", err)).
			Category(errors.CategoryDevice).Build()
	}
	if len(data) > maxFrameBytes {
		return nil, errors.New(fmt.Errorf("frame exceeds %d bytes", maxFrameBytes)).
			Category(errors.CategoryDevice).Build()
	}
	if len(data) == 0 {
		return nil, errors.New(errors.NewStd("empty frame part")).
			Category(errors.CategoryDevice).Build()
	}
	return &Frame{JPEG: data}, nil
}

func (s *mjpegStream) Close() error {
	return s.body.Close()
}
