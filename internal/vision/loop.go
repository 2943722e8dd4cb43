package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/condosec/condowatch/internal/conf"
	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/datastore/repository"
	"github.com/condosec/condowatch/internal/logger"
	"github.com/condosec/condowatch/internal/observability"
)

// Camera roles served by the loop.
const (
	RoleOutdoor = "outdoor"
	RoleIndoor  = "indoor"
)

// Channel labels for metrics.
const (
	channelOutdoorFace = "outdoor-face"
	channelIndoorFace  = "indoor-face"
	channelIndoorFlame = "indoor-flame"
)

// indoorCadenceFactor stretches the indoor channel relative to the outdoor
// one: the indoor camera is processed once per this many outdoor cycles.
const indoorCadenceFactor = 6

// heartbeatNote is recorded on camera node heartbeats written by the loop.
const heartbeatNote = "vision loop"

// FrameSource yields the freshest frame for a camera role. The capture pool
// satisfies this.
type FrameSource interface {
	LatestFrame(role string) (data []byte, ts time.Time, ok bool)
}

// FusionHook receives detection evidence. Implementations decide whether it
// adds up to an alert; a zero id means no alert was raised.
type FusionHook interface {
	HandleIntruderEvidence(ctx context.Context, ts time.Time) (uint, error)
	HandleFireSignal(ctx context.Context, ts time.Time, room string) (uint, error)
}

// streak is the leaky debounce counter: positives increment, absences and
// negatives decrement toward zero, so one clean frame in a burst of
// detections does not erase accumulated evidence.
type streak struct {
	n int
}

func (s *streak) hit() int {
	s.n++
	return s.n
}

func (s *streak) miss() {
	if s.n > 0 {
		s.n--
	}
}

func (s *streak) reset() { s.n = 0 }

// milestones reports whether a streak value is one of the points worth a
// snapshot: the first detection, a mid-streak checkpoint, and the
// alert-trigger value.
func milestones(value, checkpoint, trigger int) bool {
	return value == 1 || value == checkpoint || value == trigger
}

// Loop is the detection loop. It ticks at a fixed rate, decimates frames per
// configuration and drives the face and flame channels.
type Loop struct {
	cfg     conf.VisionSettings
	frames  FrameSource
	fusion  FusionHook
	store   *SnapshotStore
	events  repository.EventRepository
	snaps   repository.SnapshotRepository
	nodes   repository.NodeRepository
	log     logger.Logger
	metrics *observability.Metrics

	faces      FaceClassifier
	faceModel  *ModelWatcher[*FaceModel]
	flameModel *ModelWatcher[*ColorFlameClassifier]

	tick  time.Duration
	nowFn func() time.Time

	frameIdx       uint64
	outdoorUnknown streak
	indoorUnknown  streak
	flame          streak

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Deps wires a Loop. FaceClassifier may be nil: the face channels then stay
// idle and face events can only arrive through node ingestion.
type Deps struct {
	Frames  FrameSource
	Fusion  FusionHook
	Store   *SnapshotStore
	Events  repository.EventRepository
	Snaps   repository.SnapshotRepository
	Nodes   repository.NodeRepository
	Faces   FaceClassifier
	Log     logger.Logger
	Metrics *observability.Metrics
}

func NewLoop(cfg conf.VisionSettings, tick time.Duration, deps Deps) *Loop {
	l := &Loop{
		cfg:        cfg,
		frames:     deps.Frames,
		fusion:     deps.Fusion,
		store:      deps.Store,
		events:     deps.Events,
		snaps:      deps.Snaps,
		nodes:      deps.Nodes,
		faces:      deps.Faces,
		log:        deps.Log,
		metrics:    deps.Metrics,
		faceModel:  NewModelWatcher(cfg.FaceModelPath, LoadFaceModel),
		flameModel: NewModelWatcher(cfg.FlameModelPath, newFlameClassifierLoader(cfg.FlameRatioOverride)),
		tick:       tick,
		nowFn:      func() time.Time { return time.Now().UTC() },
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if l.tick <= 0 {
		l.tick = 100 * time.Millisecond
	}
	return l
}

func newFlameClassifierLoader(override float64) func(string) (*ColorFlameClassifier, error) {
	return func(path string) (*ColorFlameClassifier, error) {
		m, err := LoadFlameModel(path)
		if err != nil {
			return nil, err
		}
		return NewColorFlameClassifier(m, override), nil
	}
}

// Start launches the loop goroutine.
func (l *Loop) Start() {
	go func() {
		defer close(l.done)
		l.run()
	}()
}

// Stop ends the loop and waits for the in-flight cycle to finish.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	select {
	case <-l.done:
	case <-time.After(5 * time.Second):
		l.log.Warn("detection loop did not exit before join timeout")
	}
}

func (l *Loop) run() {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.cycle(context.Background())
		}
	}
}

// cycle advances the frame counter and runs whichever channels are due.
func (l *Loop) cycle(ctx context.Context) {
	l.frameIdx++
	every := uint64(l.cfg.ProcessEvery)
	if every == 0 {
		every = 1
	}
	if l.frameIdx%every != 0 {
		return
	}

	l.reloadModels()
	now := l.nowFn()

	l.processOutdoor(ctx, now)
	if l.frameIdx%(every*indoorCadenceFactor) == 0 {
		l.processIndoor(ctx, now)
	}
}

// reloadModels is the once-per-cycle check-and-swap for both model files.
func (l *Loop) reloadModels() {
	if swapped, err := l.faceModel.CheckAndSwap(); err != nil {
		l.metrics.ModelReloadsTotal.WithLabelValues("face", observability.OutcomeFailed).Inc()
		l.log.Warn("face model reload failed", logger.Error(err))
	} else if swapped {
		l.metrics.ModelReloadsTotal.WithLabelValues("face", observability.OutcomeOK).Inc()
		l.log.Info("face model reloaded", logger.String("path", l.cfg.FaceModelPath))
		if aware, ok := l.faces.(RosterAware); ok {
			if m, loaded := l.faceModel.Current(); loaded {
				aware.SetRoster(m)
			}
		}
	}

	if swapped, err := l.flameModel.CheckAndSwap(); err != nil {
		l.metrics.ModelReloadsTotal.WithLabelValues("flame", observability.OutcomeFailed).Inc()
		l.log.Warn("flame model reload failed", logger.Error(err))
	} else if swapped {
		if c, ok := l.flameModel.Current(); ok {
			l.metrics.ModelReloadsTotal.WithLabelValues("flame", observability.OutcomeOK).Inc()
			l.log.Info("flame model reloaded", logger.Float64("threshold", c.Threshold))
		}
	}
}

func (l *Loop) decodeFrame(role string) (image.Image, bool) {
	data, _, ok := l.frames.LatestFrame(role)
	if !ok {
		return nil, false
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		l.log.Debug("frame decode failed", logger.String("role", role), logger.Error(err))
		return nil, false
	}
	return img, true
}

func (l *Loop) processOutdoor(ctx context.Context, now time.Time) {
	img, ok := l.decodeFrame(RoleOutdoor)
	if !ok {
		return
	}
	l.metrics.FramesProcessedTotal.WithLabelValues(channelOutdoorFace).Inc()
	l.heartbeat(ctx, conf.NodeCamOutdoor, now)

	l.faceChannel(ctx, faceChannelParams{
		img:        img,
		now:        now,
		source:     entities.SourceCamOutdoor,
		room:       conf.RoomEntrance,
		streak:     &l.outdoorUnknown,
		checkpoint: 6,
		prefix:     "outdoor_unknown",
		channel:    channelOutdoorFace,
	})
}

func (l *Loop) processIndoor(ctx context.Context, now time.Time) {
	img, ok := l.decodeFrame(RoleIndoor)
	if !ok {
		return
	}
	l.metrics.FramesProcessedTotal.WithLabelValues(channelIndoorFace).Inc()
	l.heartbeat(ctx, conf.NodeCamIndoor, now)

	l.faceChannel(ctx, faceChannelParams{
		img:        img,
		now:        now,
		source:     entities.SourceCamIndoor,
		room:       conf.RoomLivingRoom,
		streak:     &l.indoorUnknown,
		checkpoint: 4,
		prefix:     "indoor_unknown",
		channel:    channelIndoorFace,
	})

	l.flameChannel(ctx, img, now)
}

type faceChannelParams struct {
	img        image.Image
	now        time.Time
	source     string
	room       string
	streak     *streak
	checkpoint int
	prefix     string
	channel    string
}

func (l *Loop) faceChannel(ctx context.Context, p faceChannelParams) {
	if l.faces == nil {
		return
	}

	obs := l.faces.Classify(p.img)
	if !obs.Found {
		p.streak.miss()
		return
	}

	if !obs.Unknown() {
		p.streak.miss()
		l.createEvent(ctx, entities.EventAuthorized, p.source, p.room,
			fmt.Sprintf("name=%s conf=%.1f", obs.Label, obs.Confidence), p.now)
		return
	}

	n := p.streak.hit()
	l.createEvent(ctx, entities.EventUnknown, p.source, p.room,
		fmt.Sprintf("conf=%.1f", obs.Confidence), p.now)

	if milestones(n, p.checkpoint, l.cfg.UnknownStreak) {
		l.saveSnapshot(ctx, p.img, entities.SnapshotFaceUnknown, entities.LabelUnknown,
			fmt.Sprintf("%s_%d", p.prefix, n), fmt.Sprintf("conf=%.1f", obs.Confidence), p.now)
	}

	if id, err := l.fusion.HandleIntruderEvidence(ctx, p.now); err != nil {
		l.log.Error("intruder fusion failed", logger.Error(err))
	} else if id != 0 {
		l.log.Warn("intruder alert raised",
			logger.Uint64("alert_id", uint64(id)),
			logger.String("source", p.source))
	}
}

func (l *Loop) flameChannel(ctx context.Context, img image.Image, now time.Time) {
	classifier, ok := l.flameModel.Current()
	if !ok {
		// No trained flame model yet; the channel stays disabled.
		return
	}
	l.metrics.FramesProcessedTotal.WithLabelValues(channelIndoorFlame).Inc()

	obs := classifier.Detect(img)
	if !obs.Flame {
		l.flame.miss()
		return
	}

	n := l.flame.hit()
	l.createEvent(ctx, entities.EventFlameSignal, entities.SourceCamIndoor,
		conf.RoomLivingRoom, fmt.Sprintf("ratio=%.4f", obs.Ratio), now)

	if milestones(n, 1, l.cfg.FlameStreak) {
		l.saveSnapshot(ctx, img, entities.SnapshotFlame, entities.LabelFlame,
			fmt.Sprintf("indoor_flame_%d", n), fmt.Sprintf("ratio=%.4f", obs.Ratio), now)
	}

	if id, err := l.fusion.HandleFireSignal(ctx, now, conf.RoomLivingRoom); err != nil {
		l.log.Error("fire fusion failed", logger.Error(err))
	} else if id != 0 {
		l.flame.reset()
		l.log.Warn("fire alert raised", logger.Uint64("alert_id", uint64(id)))
	}
}

func (l *Loop) heartbeat(ctx context.Context, nodeID string, now time.Time) {
	if err := l.nodes.UpsertSeen(ctx, nodeID, heartbeatNote, now); err != nil {
		l.log.Debug("heartbeat upsert failed", logger.String("node", nodeID), logger.Error(err))
	}
}

func (l *Loop) createEvent(ctx context.Context, eventType, source, room, details string, now time.Time) {
	event := &entities.Event{
		Type:      eventType,
		Source:    source,
		Room:      room,
		Details:   details,
		Timestamp: now,
	}
	if err := l.events.Create(ctx, event); err != nil {
		l.log.Error("event create failed", logger.String("type", eventType), logger.Error(err))
		return
	}
	l.metrics.EventsTotal.WithLabelValues(eventType).Inc()
}

func (l *Loop) saveSnapshot(ctx context.Context, img image.Image, snapType, label, prefix, note string, now time.Time) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 88}); err != nil {
		l.log.Error("snapshot encode failed", logger.Error(err))
		return
	}
	rel, err := l.store.Save(buf.Bytes(), prefix, now)
	if err != nil {
		l.log.Error("snapshot save failed", logger.Error(err))
		return
	}
	snap := &entities.Snapshot{
		Type:      snapType,
		Label:     label,
		FilePath:  rel,
		Note:      note,
		CreatedAt: now,
	}
	if err := l.snaps.Create(ctx, snap); err != nil {
		l.log.Error("snapshot record failed", logger.Error(err))
		return
	}
	l.metrics.SnapshotsTotal.WithLabelValues(snapType).Inc()
}
