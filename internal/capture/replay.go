package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/condosec/condowatch/internal/errors"
)

// replayFrameInterval paces directory replay so it resembles a real camera
// instead of a tight loop.
const replayFrameInterval = 100 * time.Millisecond

// replayDir serves the JPEG files of a directory in name order, looping
// forever. Used for bench setups and simulations without physical cameras.
type replayDir struct {
	files []string
	next  int
}

// OpenReplayDir opens a directory of *.jpg files as a looping frame source.
func OpenReplayDir(dir string) (FrameReader, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open replay dir: %w", err)).
			Category(errors.CategoryDevice).
			Context("dir", dir).
			Build()
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, ".jpeg") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errors.New(fmt.Errorf("replay dir %s has no jpeg files", dir)).
			Category(errors.CategoryDevice).
			Build()
	}
	slices.Sort(files)

	return &replayDir{files: files}, nil
}

func (r *replayDir) ReadFrame() (*Frame, error) {
	time.Sleep(replayFrameInterval)

	path := r.files[r.next]
	r.next = (r.next + 1) % len(r.files)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read replay frame: %w", err)).
			Category(errors.CategoryDevice).
			Context("path", path).
			Build()
	}
	return &Frame{JPEG: data}, nil
}

func (r *replayDir) Close() error { return nil }
