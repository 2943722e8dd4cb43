package capture

import (
	"bytes"
	"image/jpeg"
	"sync"
	"time"

	"github.com/condosec/condowatch/internal/conf"
	"github.com/condosec/condowatch/internal/logger"
	"github.com/condosec/condowatch/internal/observability"
)

// stopJoinTimeout bounds how long Stop waits for the run loop to exit. A
// worker blocked in device I/O may take up to one I/O timeout to observe the
// stop signal; callers must not wait forever on it. The bounded wait also
// makes Stop safe to call from the worker's own goroutine.
const stopJoinTimeout = 2 * time.Second

// frameCell is the single-writer/multi-reader slot holding the most recent
// encoded frame. The lock is held only for the slice/timestamp swap.
type frameCell struct {
	mu   sync.RWMutex
	data []byte
	ts   time.Time
}

func (c *frameCell) set(data []byte, ts time.Time) {
	c.mu.Lock()
	c.data = data
	c.ts = ts
	c.mu.Unlock()
}

func (c *frameCell) get() ([]byte, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil {
		return nil, time.Time{}, false
	}
	return c.data, c.ts, true
}

// Worker owns one live capture session for a physical source. It retries
// device failures indefinitely; only Stop ends the loop.
type Worker struct {
	source  string
	opener  SourceOpener
	cfg     conf.CaptureSettings
	log     logger.Logger
	metrics *observability.Metrics

	cell frameCell

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newWorker(source string, opener SourceOpener, cfg conf.CaptureSettings, log logger.Logger, metrics *observability.Metrics) *Worker {
	return &Worker{
		source:  source,
		opener:  opener,
		cfg:     cfg,
		log:     log.With(logger.String("source", source)),
		metrics: metrics,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Source returns the canonical source spec this worker captures from.
func (w *Worker) Source() string { return w.source }

// LatestFrame returns the most recently published JPEG frame and its capture
// time. ok is false until the first frame has been captured.
func (w *Worker) LatestFrame() (data []byte, ts time.Time, ok bool) {
	return w.cell.get()
}

// start launches the run loop.
func (w *Worker) start() {
	w.metrics.CaptureWorkers.Inc()
	go func() {
		defer close(w.done)
		defer w.metrics.CaptureWorkers.Dec()
		w.run()
	}()
}

// Stop signals the run loop and waits (bounded) for it to exit. Safe to call
// more than once and safe to call from the worker's own goroutine: the wait
// simply times out instead of deadlocking.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	select {
	case <-w.done:
	case <-time.After(stopJoinTimeout):
		w.log.Warn("capture worker did not exit before join timeout")
	}
}

func (w *Worker) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

// sleepOrStop waits d and reports whether the worker was stopped meanwhile.
func (w *Worker) sleepOrStop(d time.Duration) bool {
	select {
	case <-w.stop:
		return true
	case <-time.After(d):
		return false
	}
}

func (w *Worker) run() {
	var openFailures uint64

	for !w.stopped() {
		reader, err := w.opener(w.source)
		if err != nil {
			openFailures++
			w.metrics.CaptureFailuresTotal.WithLabelValues(w.source).Inc()
			// Log the first failure and every Nth thereafter; a dead camera
			// must not flood the log at retry frequency.
			if openFailures == 1 || openFailures%uint64(w.cfg.FailureLogEvery) == 0 {
				w.log.Warn("failed to open capture source",
					logger.Uint64("failures", openFailures),
					logger.Error(err))
			}
			if w.sleepOrStop(w.cfg.RetryInterval.Std()) {
				return
			}
			continue
		}

		if openFailures > 0 {
			w.log.Info("capture source recovered",
				logger.Uint64("failures", openFailures))
			openFailures = 0
		}

		w.capture(reader)
	}
}

// capture reads frames until the source faults or the worker is stopped.
// The first few frames are discarded while the camera's auto-exposure
// settles.
func (w *Worker) capture(reader FrameReader) {
	defer func() { _ = reader.Close() }()

	discarded := 0
	for !w.stopped() {
		frame, err := reader.ReadFrame()
		if err != nil {
			w.metrics.CaptureFailuresTotal.WithLabelValues(w.source).Inc()
			w.log.Debug("capture read fault, reopening", logger.Error(err))
			w.sleepOrStop(w.cfg.RetryInterval.Std())
			return
		}

		if discarded < w.cfg.WarmupFrames {
			discarded++
			continue
		}

		data, err := w.encode(frame)
		if err != nil {
			w.log.Debug("frame encode fault, reopening", logger.Error(err))
			w.sleepOrStop(w.cfg.RetryInterval.Std())
			return
		}

		w.cell.set(data, time.Now().UTC())
		w.metrics.CaptureFramesTotal.WithLabelValues(w.source).Inc()
	}
}

// encode returns the frame as JPEG wire bytes, re-encoding raw images at the
// configured quality. Frames already in JPEG form pass through untouched.
func (w *Worker) encode(frame *Frame) ([]byte, error) {
	if frame.JPEG != nil {
		return frame.JPEG, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: w.cfg.JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
