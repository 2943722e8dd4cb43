// Package fusion correlates raw events into alerts. The rules are fixed:
// fire needs smoke and an indoor flame signal inside one window, intruder
// needs two independent kinds of evidence. Every rule hit is checked against
// a per-type cooldown so one incident does not fan out into a storm of
// duplicate alerts.
package fusion

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/condosec/condowatch/internal/conf"
	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/datastore/repository"
	"github.com/condosec/condowatch/internal/logger"
	"github.com/condosec/condowatch/internal/observability"
)

// severity of fused alerts. Both rule families describe situations that need
// a person now.
const fusedSeverity = 3

// Engine evaluates the fusion rules. All methods take the evidence timestamp
// explicitly; windows and cooldowns are measured against it, not against the
// wall clock, so replayed or delayed evidence fuses correctly.
type Engine struct {
	cfg      conf.FusionSettings
	events   repository.EventRepository
	alerts   repository.AlertRepository
	snaps    repository.SnapshotRepository
	settings repository.SettingsRepository
	log      logger.Logger
	metrics  *observability.Metrics

	// cooldowns is the fast path: a hit here skips the datastore check.
	// The datastore remains authoritative for cooldowns spanning restarts.
	cooldowns *gocache.Cache
}

func NewEngine(
	cfg conf.FusionSettings,
	events repository.EventRepository,
	alerts repository.AlertRepository,
	snaps repository.SnapshotRepository,
	settings repository.SettingsRepository,
	log logger.Logger,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		cfg:       cfg,
		events:    events,
		alerts:    alerts,
		snaps:     snaps,
		settings:  settings,
		log:       log,
		metrics:   metrics,
		cooldowns: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

// HandleFireSignal runs the fire rule at ts: a SMOKE_HIGH event from any
// source and a FLAME_SIGNAL from the indoor camera, both inside the fire
// window. callerRoom is the last-resort room when neither evidence event
// carries one. Returns the new alert id, or 0 when the rule did not fire.
func (e *Engine) HandleFireSignal(ctx context.Context, ts time.Time, callerRoom string) (uint, error) {
	window := e.cfg.FireWindow.Std()
	since := ts.Add(-window)

	hasSmoke, err := e.events.HasSince(ctx, repository.EventFilter{Type: entities.EventSmokeHigh}, since, ts)
	if err != nil {
		return 0, err
	}
	hasFlame, err := e.events.HasSince(ctx,
		repository.EventFilter{Type: entities.EventFlameSignal, Source: entities.SourceCamIndoor}, since, ts)
	if err != nil {
		return 0, err
	}
	if !hasSmoke || !hasFlame {
		return 0, nil
	}

	cooling, err := e.inCooldown(ctx, entities.AlertFire, e.cfg.FireCooldown.Std(), ts)
	if err != nil {
		return 0, err
	}
	if cooling {
		return 0, nil
	}

	flameEvent, err := e.events.Latest(ctx,
		repository.EventFilter{Type: entities.EventFlameSignal, Source: entities.SourceCamIndoor})
	if err != nil {
		return 0, err
	}
	smokeEvent, err := e.events.Latest(ctx, repository.EventFilter{Type: entities.EventSmokeHigh})
	if err != nil {
		return 0, err
	}

	room := e.fireRoom(flameEvent, smokeEvent, callerRoom)

	details := "Fusion: flame + smoke evidence"
	if flameEvent != nil && smokeEvent != nil {
		details = fmt.Sprintf("Fusion: flame(%s) + smoke(%s)",
			flameEvent.Timestamp.Format(time.RFC3339),
			smokeEvent.Timestamp.Format(time.RFC3339))
	}

	return e.raise(ctx, entities.AlertFire, room, details, ts,
		entities.SnapshotFlame, entities.LabelFlame)
}

// HandleIntruderEvidence runs the intruder rule at ts: at least
// IntruderMinEvidence (default two) of {unknown face outdoors, unknown face
// indoors, door forced} inside the intruder window. Guest mode suppresses
// the rule entirely.
func (e *Engine) HandleIntruderEvidence(ctx context.Context, ts time.Time) (uint, error) {
	guest, err := e.GuestMode(ctx)
	if err != nil {
		return 0, err
	}
	if guest {
		return 0, nil
	}

	window := e.cfg.IntruderWindow.Std()
	since := ts.Add(-window)

	hasOutdoor, err := e.events.HasSince(ctx,
		repository.EventFilter{Type: entities.EventUnknown, Source: entities.SourceCamOutdoor}, since, ts)
	if err != nil {
		return 0, err
	}
	hasIndoor, err := e.events.HasSince(ctx,
		repository.EventFilter{Type: entities.EventUnknown, Source: entities.SourceCamIndoor}, since, ts)
	if err != nil {
		return 0, err
	}
	hasForce, err := e.events.HasSince(ctx,
		repository.EventFilter{Type: entities.EventDoorForce}, since, ts)
	if err != nil {
		return 0, err
	}

	count := 0
	var evidence []string
	if hasOutdoor {
		count++
		evidence = append(evidence, "outdoor unknown")
	}
	if hasIndoor {
		count++
		evidence = append(evidence, "indoor unknown")
	}
	if hasForce {
		count++
		evidence = append(evidence, "door-force")
	}
	need := e.cfg.IntruderMinEvidence
	if need <= 0 {
		need = 2
	}
	if count < need {
		return 0, nil
	}

	cooling, err := e.inCooldown(ctx, entities.AlertIntruder, e.cfg.IntruderCooldown.Std(), ts)
	if err != nil {
		return 0, err
	}
	if cooling {
		return 0, nil
	}

	// Entry-path evidence pins the alert to the entrance; two indoor-only
	// sightings stay in the living area.
	room := conf.RoomLivingRoom
	if hasOutdoor || hasForce {
		room = conf.RoomEntrance
	}

	return e.raise(ctx, entities.AlertIntruder, room, "Evidence: "+strings.Join(evidence, ", "), ts,
		entities.SnapshotFaceUnknown, entities.LabelUnknown)
}

// GuestMode reads the persisted guest switch. The configured initial value
// is the fallback until something writes the setting.
func (e *Engine) GuestMode(ctx context.Context) (bool, error) {
	fallback := "0"
	if e.cfg.GuestMode {
		fallback = "1"
	}
	value, err := e.settings.Get(ctx, entities.SettingGuestMode, fallback)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true, nil
	}
	return false, nil
}

// fireRoom picks the alert room: flame event room, then smoke event room,
// then the caller's room, then the configured default.
func (e *Engine) fireRoom(flameEvent, smokeEvent *entities.Event, callerRoom string) string {
	if flameEvent != nil && flameEvent.Room != "" {
		return flameEvent.Room
	}
	if smokeEvent != nil && smokeEvent.Room != "" {
		return smokeEvent.Room
	}
	if callerRoom != "" {
		return callerRoom
	}
	if e.cfg.DefaultRoom != "" {
		return e.cfg.DefaultRoom
	}
	return conf.RoomLivingRoom
}

// inCooldown reports whether an alert of this type was raised inside the
// cooldown ending at ts.
func (e *Engine) inCooldown(ctx context.Context, alertType string, cooldown time.Duration, ts time.Time) (bool, error) {
	if raw, found := e.cooldowns.Get(alertType); found {
		if last, ok := raw.(time.Time); ok && ts.Sub(last) < cooldown {
			return true, nil
		}
	}
	return e.alerts.HasRecent(ctx, alertType, ts.Add(-cooldown))
}

// raise creates the ACTIVE alert, arms the cooldown and attaches the latest
// matching evidence snapshot. A missing snapshot is not an error; the alert
// stands on the event record alone.
func (e *Engine) raise(ctx context.Context, alertType, room, details string, ts time.Time, snapType, snapLabel string) (uint, error) {
	alert := &entities.Alert{
		Type:      alertType,
		Room:      room,
		Severity:  fusedSeverity,
		Status:    entities.StatusActive,
		Details:   details,
		CreatedAt: ts,
	}
	if err := e.alerts.Create(ctx, alert); err != nil {
		return 0, err
	}
	e.cooldowns.Set(alertType, ts, gocache.DefaultExpiration)
	e.metrics.AlertsCreatedTotal.WithLabelValues(alertType).Inc()
	e.log.Warn("alert raised",
		logger.Uint64("alert_id", uint64(alert.ID)),
		logger.String("type", alertType),
		logger.String("room", room))

	snap, err := e.snaps.Latest(ctx, snapType, snapLabel)
	if err != nil {
		return alert.ID, err
	}
	if snap != nil {
		if err := e.alerts.AttachSnapshot(ctx, alert.ID, snap.FilePath); err != nil {
			return alert.ID, err
		}
	}
	return alert.ID, nil
}
