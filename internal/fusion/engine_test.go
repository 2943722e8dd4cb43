package fusion

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/condosec/condowatch/internal/conf"
	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/datastore/repository"
	"github.com/condosec/condowatch/internal/logger"
	"github.com/condosec/condowatch/internal/observability"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entities.Event{},
		&entities.Alert{},
		&entities.Snapshot{},
		&entities.Setting{},
	))
	return db
}

type engineFixture struct {
	engine   *Engine
	events   repository.EventRepository
	alerts   repository.AlertRepository
	snaps    repository.SnapshotRepository
	settings repository.SettingsRepository
}

func testFusionConfig() conf.FusionSettings {
	return conf.FusionSettings{
		FireWindow:       conf.Duration(120 * time.Second),
		IntruderWindow:   conf.Duration(120 * time.Second),
		FireCooldown:     conf.Duration(75 * time.Second),
		IntruderCooldown: conf.Duration(45 * time.Second),
	}
}

func newFixture(t *testing.T, cfg conf.FusionSettings) *engineFixture {
	t.Helper()
	db := setupTestDB(t)
	f := &engineFixture{
		events:   repository.NewEventRepository(db),
		alerts:   repository.NewAlertRepository(db),
		snaps:    repository.NewSnapshotRepository(db),
		settings: repository.NewSettingsRepository(db),
	}
	f.engine = NewEngine(cfg, f.events, f.alerts, f.snaps, f.settings,
		logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil),
		observability.NewMetrics())
	return f
}

func (f *engineFixture) addEvent(t *testing.T, eventType, source, room string, ts time.Time) {
	t.Helper()
	require.NoError(t, f.events.Create(context.Background(), &entities.Event{
		Type:      eventType,
		Source:    source,
		Room:      room,
		Timestamp: ts,
	}))
}

var baseTS = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func TestFireNeedsBothSmokeAndFlame(t *testing.T) {
	ctx := context.Background()

	t.Run("smoke only", func(t *testing.T) {
		f := newFixture(t, testFusionConfig())
		f.addEvent(t, entities.EventSmokeHigh, "mq2_living", "Living Room", baseTS.Add(-10*time.Second))
		id, err := f.engine.HandleFireSignal(ctx, baseTS, "")
		require.NoError(t, err)
		assert.Zero(t, id)
	})

	t.Run("flame only", func(t *testing.T) {
		f := newFixture(t, testFusionConfig())
		f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "Living Room", baseTS.Add(-10*time.Second))
		id, err := f.engine.HandleFireSignal(ctx, baseTS, "")
		require.NoError(t, err)
		assert.Zero(t, id)
	})

	t.Run("both", func(t *testing.T) {
		f := newFixture(t, testFusionConfig())
		f.addEvent(t, entities.EventSmokeHigh, "mq2_living", "Kitchen", baseTS.Add(-30*time.Second))
		f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "Living Room", baseTS.Add(-10*time.Second))

		id, err := f.engine.HandleFireSignal(ctx, baseTS, "")
		require.NoError(t, err)
		require.NotZero(t, id)

		alert, err := f.alerts.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entities.AlertFire, alert.Type)
		assert.Equal(t, entities.StatusActive, alert.Status)
		assert.Equal(t, 3, alert.Severity)
		assert.Equal(t, "Living Room", alert.Room)
		assert.Contains(t, alert.Details, "Fusion: flame(")
	})
}

func TestFireWindowExcludesStaleSmoke(t *testing.T) {
	f := newFixture(t, testFusionConfig())
	f.addEvent(t, entities.EventSmokeHigh, "mq2_living", "", baseTS.Add(-121*time.Second))
	f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "", baseTS.Add(-5*time.Second))

	id, err := f.engine.HandleFireSignal(context.Background(), baseTS, "")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestFireIgnoresOutdoorFlame(t *testing.T) {
	f := newFixture(t, testFusionConfig())
	f.addEvent(t, entities.EventSmokeHigh, "mq2_living", "", baseTS.Add(-10*time.Second))
	f.addEvent(t, entities.EventFlameSignal, entities.SourceCamOutdoor, "", baseTS.Add(-10*time.Second))

	id, err := f.engine.HandleFireSignal(context.Background(), baseTS, "")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestFireCooldownSuppressesRepeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testFusionConfig())
	f.addEvent(t, entities.EventSmokeHigh, "mq2_living", "", baseTS.Add(-10*time.Second))
	f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "", baseTS.Add(-5*time.Second))

	first, err := f.engine.HandleFireSignal(ctx, baseTS, "")
	require.NoError(t, err)
	require.NotZero(t, first)

	// Fresh evidence inside the cooldown stays silent.
	later := baseTS.Add(30 * time.Second)
	f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "", later)
	id, err := f.engine.HandleFireSignal(ctx, later, "")
	require.NoError(t, err)
	assert.Zero(t, id)

	// Once the cooldown has passed, the rule may fire again.
	after := baseTS.Add(76 * time.Second)
	f.addEvent(t, entities.EventSmokeHigh, "mq2_living", "", after)
	f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "", after)
	id, err = f.engine.HandleFireSignal(ctx, after, "")
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.NotEqual(t, first, id)
}

func TestFireRoomPreference(t *testing.T) {
	ctx := context.Background()

	t.Run("flame room wins", func(t *testing.T) {
		f := newFixture(t, testFusionConfig())
		f.addEvent(t, entities.EventSmokeHigh, "mq2_door", "Hallway", baseTS.Add(-10*time.Second))
		f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "Living Room", baseTS.Add(-5*time.Second))
		id, err := f.engine.HandleFireSignal(ctx, baseTS, "Kitchen")
		require.NoError(t, err)
		alert, err := f.alerts.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Living Room", alert.Room)
	})

	t.Run("smoke room when flame has none", func(t *testing.T) {
		f := newFixture(t, testFusionConfig())
		f.addEvent(t, entities.EventSmokeHigh, "mq2_door", "Hallway", baseTS.Add(-10*time.Second))
		f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "", baseTS.Add(-5*time.Second))
		id, err := f.engine.HandleFireSignal(ctx, baseTS, "Kitchen")
		require.NoError(t, err)
		alert, err := f.alerts.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Hallway", alert.Room)
	})

	t.Run("caller room as fallback", func(t *testing.T) {
		f := newFixture(t, testFusionConfig())
		f.addEvent(t, entities.EventSmokeHigh, "mq2_door", "", baseTS.Add(-10*time.Second))
		f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "", baseTS.Add(-5*time.Second))
		id, err := f.engine.HandleFireSignal(ctx, baseTS, "Kitchen")
		require.NoError(t, err)
		alert, err := f.alerts.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Kitchen", alert.Room)
	})

	t.Run("default room last", func(t *testing.T) {
		f := newFixture(t, testFusionConfig())
		f.addEvent(t, entities.EventSmokeHigh, "mq2_door", "", baseTS.Add(-10*time.Second))
		f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "", baseTS.Add(-5*time.Second))
		id, err := f.engine.HandleFireSignal(ctx, baseTS, "")
		require.NoError(t, err)
		alert, err := f.alerts.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, conf.RoomLivingRoom, alert.Room)
	})
}

func TestFireAttachesLatestFlameSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testFusionConfig())

	require.NoError(t, f.snaps.Create(ctx, &entities.Snapshot{
		Type:      entities.SnapshotFlame,
		Label:     entities.LabelFlame,
		FilePath:  "2026-05-10/flame.jpg",
		CreatedAt: baseTS.Add(-8 * time.Second),
	}))
	f.addEvent(t, entities.EventSmokeHigh, "mq2_living", "", baseTS.Add(-10*time.Second))
	f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "", baseTS.Add(-5*time.Second))

	id, err := f.engine.HandleFireSignal(ctx, baseTS, "")
	require.NoError(t, err)

	alert, err := f.alerts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-10/flame.jpg", alert.SnapshotPath)
}

func TestIntruderNeedsTwoKindsOfEvidence(t *testing.T) {
	ctx := context.Background()

	t.Run("outdoor alone is not enough", func(t *testing.T) {
		f := newFixture(t, testFusionConfig())
		f.addEvent(t, entities.EventUnknown, entities.SourceCamOutdoor, "", baseTS.Add(-10*time.Second))
		id, err := f.engine.HandleIntruderEvidence(ctx, baseTS)
		require.NoError(t, err)
		assert.Zero(t, id)
	})

	t.Run("outdoor plus door force", func(t *testing.T) {
		f := newFixture(t, testFusionConfig())
		f.addEvent(t, entities.EventUnknown, entities.SourceCamOutdoor, "", baseTS.Add(-10*time.Second))
		f.addEvent(t, entities.EventDoorForce, "door_force", "", baseTS.Add(-5*time.Second))

		id, err := f.engine.HandleIntruderEvidence(ctx, baseTS)
		require.NoError(t, err)
		require.NotZero(t, id)

		alert, err := f.alerts.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entities.AlertIntruder, alert.Type)
		assert.Equal(t, conf.RoomEntrance, alert.Room)
		assert.Equal(t, "Evidence: outdoor unknown, door-force", alert.Details)
	})

	t.Run("indoor plus outdoor", func(t *testing.T) {
		f := newFixture(t, testFusionConfig())
		f.addEvent(t, entities.EventUnknown, entities.SourceCamOutdoor, "", baseTS.Add(-10*time.Second))
		f.addEvent(t, entities.EventUnknown, entities.SourceCamIndoor, "", baseTS.Add(-5*time.Second))

		id, err := f.engine.HandleIntruderEvidence(ctx, baseTS)
		require.NoError(t, err)
		require.NotZero(t, id)

		alert, err := f.alerts.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Evidence: outdoor unknown, indoor unknown", alert.Details)
	})

	t.Run("repeated events of one kind do not count twice", func(t *testing.T) {
		f := newFixture(t, testFusionConfig())
		f.addEvent(t, entities.EventUnknown, entities.SourceCamOutdoor, "", baseTS.Add(-10*time.Second))
		f.addEvent(t, entities.EventUnknown, entities.SourceCamOutdoor, "", baseTS.Add(-5*time.Second))
		id, err := f.engine.HandleIntruderEvidence(ctx, baseTS)
		require.NoError(t, err)
		assert.Zero(t, id)
	})
}

func TestIntruderWindowExcludesStaleEvidence(t *testing.T) {
	f := newFixture(t, testFusionConfig())
	f.addEvent(t, entities.EventUnknown, entities.SourceCamOutdoor, "", baseTS.Add(-121*time.Second))
	f.addEvent(t, entities.EventDoorForce, "door_force", "", baseTS.Add(-5*time.Second))

	id, err := f.engine.HandleIntruderEvidence(context.Background(), baseTS)
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestIntruderCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testFusionConfig())
	f.addEvent(t, entities.EventUnknown, entities.SourceCamOutdoor, "", baseTS.Add(-10*time.Second))
	f.addEvent(t, entities.EventDoorForce, "door_force", "", baseTS.Add(-5*time.Second))

	first, err := f.engine.HandleIntruderEvidence(ctx, baseTS)
	require.NoError(t, err)
	require.NotZero(t, first)

	id, err := f.engine.HandleIntruderEvidence(ctx, baseTS.Add(20*time.Second))
	require.NoError(t, err)
	assert.Zero(t, id)

	after := baseTS.Add(46 * time.Second)
	f.addEvent(t, entities.EventUnknown, entities.SourceCamOutdoor, "", after)
	f.addEvent(t, entities.EventDoorForce, "door_force", "", after)
	id, err = f.engine.HandleIntruderEvidence(ctx, after)
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestGuestModeSuppressesIntruderOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testFusionConfig())
	require.NoError(t, f.settings.Set(ctx, entities.SettingGuestMode, "1"))

	f.addEvent(t, entities.EventUnknown, entities.SourceCamOutdoor, "", baseTS.Add(-10*time.Second))
	f.addEvent(t, entities.EventDoorForce, "door_force", "", baseTS.Add(-5*time.Second))
	id, err := f.engine.HandleIntruderEvidence(ctx, baseTS)
	require.NoError(t, err)
	assert.Zero(t, id, "guest mode must silence the intruder rule")

	f.addEvent(t, entities.EventSmokeHigh, "mq2_living", "", baseTS.Add(-10*time.Second))
	f.addEvent(t, entities.EventFlameSignal, entities.SourceCamIndoor, "", baseTS.Add(-5*time.Second))
	id, err = f.engine.HandleFireSignal(ctx, baseTS, "")
	require.NoError(t, err)
	assert.NotZero(t, id, "guest mode must not touch the fire rule")
}

func TestGuestModeFallsBackToConfig(t *testing.T) {
	ctx := context.Background()

	cfg := testFusionConfig()
	cfg.GuestMode = true
	f := newFixture(t, cfg)

	guest, err := f.engine.GuestMode(ctx)
	require.NoError(t, err)
	assert.True(t, guest)

	// A persisted setting overrides the configured initial value.
	require.NoError(t, f.settings.Set(ctx, entities.SettingGuestMode, "0"))
	guest, err = f.engine.GuestMode(ctx)
	require.NoError(t, err)
	assert.False(t, guest)
}

func TestIntruderEvidenceThresholdConfigurable(t *testing.T) {
	ctx := context.Background()

	t.Run("threshold one fires on a single kind", func(t *testing.T) {
		cfg := testFusionConfig()
		cfg.IntruderMinEvidence = 1
		f := newFixture(t, cfg)
		f.addEvent(t, entities.EventDoorForce, "door_force", "", baseTS.Add(-5*time.Second))

		id, err := f.engine.HandleIntruderEvidence(ctx, baseTS)
		require.NoError(t, err)
		assert.NotZero(t, id)
	})

	t.Run("threshold three needs all kinds", func(t *testing.T) {
		cfg := testFusionConfig()
		cfg.IntruderMinEvidence = 3
		f := newFixture(t, cfg)
		f.addEvent(t, entities.EventUnknown, entities.SourceCamOutdoor, "", baseTS.Add(-10*time.Second))
		f.addEvent(t, entities.EventDoorForce, "door_force", "", baseTS.Add(-5*time.Second))

		id, err := f.engine.HandleIntruderEvidence(ctx, baseTS)
		require.NoError(t, err)
		assert.Zero(t, id)

		f.addEvent(t, entities.EventUnknown, entities.SourceCamIndoor, "", baseTS.Add(-2*time.Second))
		id, err = f.engine.HandleIntruderEvidence(ctx, baseTS)
		require.NoError(t, err)
		assert.NotZero(t, id)
	})
}
