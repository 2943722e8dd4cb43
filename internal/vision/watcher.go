package vision

import (
	"os"
	"sync"
	"time"
)

// ModelWatcher hot-reloads a model file. CheckAndSwap is called once per
// processing cycle; it stats the file and reloads only when the modification
// time changed, so training can drop a new model next to a running loop. A
// failed reload keeps the previous model and retries on the next cycle.
type ModelWatcher[T any] struct {
	path string
	load func(path string) (T, error)

	mu     sync.RWMutex
	model  T
	loaded bool
	mtime  time.Time
}

func NewModelWatcher[T any](path string, load func(path string) (T, error)) *ModelWatcher[T] {
	return &ModelWatcher[T]{path: path, load: load}
}

// Current returns the latest successfully loaded model.
func (w *ModelWatcher[T]) Current() (T, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.model, w.loaded
}

// CheckAndSwap reloads the model if the file changed since the last
// successful load. It reports whether a swap happened. A missing file is not
// an error; the previous model, if any, stays live.
func (w *ModelWatcher[T]) CheckAndSwap() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, nil
	}

	w.mu.RLock()
	unchanged := w.loaded && info.ModTime().Equal(w.mtime)
	w.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	model, err := w.load(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	w.model = model
	w.loaded = true
	w.mtime = info.ModTime()
	w.mu.Unlock()
	return true, nil
}
