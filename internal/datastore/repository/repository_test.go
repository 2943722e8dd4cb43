package repository

import (
	"testing"
	"time"

	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database. Shared-cache mode with a
// single connection so all operations see the same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entities.Event{},
		&entities.Alert{},
		&entities.Snapshot{},
		&entities.NodeHeartbeat{},
		&entities.NotificationAttempt{},
		&entities.Setting{},
	))
	return db
}

func TestEventRepositoryLatestAndHasSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)
	ctx := t.Context()

	now := time.Now().UTC()
	old := &entities.Event{Type: entities.EventUnknown, Source: entities.SourceCamOutdoor, Timestamp: now.Add(-10 * time.Minute)}
	fresh := &entities.Event{Type: entities.EventUnknown, Source: entities.SourceCamOutdoor, Room: "Door Entrance Area", Timestamp: now.Add(-5 * time.Second)}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	latest, err := repo.Latest(ctx, EventFilter{Type: entities.EventUnknown, Source: entities.SourceCamOutdoor})
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, fresh.ID, latest.ID)

	none, err := repo.Latest(ctx, EventFilter{Type: entities.EventSmokeHigh})
	require.NoError(t, err)
	assert.Nil(t, none)

	has, err := repo.HasSince(ctx, EventFilter{Type: entities.EventUnknown}, now.Add(-time.Minute), now)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasSince(ctx, EventFilter{Type: entities.EventUnknown}, now.Add(-time.Minute), now.Add(-30*time.Second))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestEventRepositoryListBetween(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)
	ctx := t.Context()

	base := time.Now().UTC().Add(-time.Hour)
	for i := range 5 {
		require.NoError(t, repo.Create(ctx, &entities.Event{
			Type:      entities.EventDoorForce,
			Source:    "door_force",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := repo.ListBetween(ctx, EventFilter{Type: entities.EventDoorForce}, base.Add(time.Minute), base.Add(3*time.Minute), 100)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestAlertRepositoryTransition(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := t.Context()

	alert := &entities.Alert{Type: entities.AlertIntruder, Severity: 3, Status: entities.StatusActive}
	require.NoError(t, repo.Create(ctx, alert))

	now := time.Now().UTC()
	changed, err := repo.Transition(ctx, alert.ID, entities.StatusAck, now)
	require.NoError(t, err)
	assert.True(t, changed)

	// Second transition on the same alert is a no-op, not an error.
	changed, err = repo.Transition(ctx, alert.ID, entities.StatusResolved, now)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.Get(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusAck, got.Status)
	require.NotNil(t, got.AckAt)

	// Unknown id is a caller error.
	_, err = repo.Transition(ctx, 9999, entities.StatusAck, now)
	assert.ErrorIs(t, err, ErrAlertNotFound)

	// Invalid target state is rejected.
	_, err = repo.Transition(ctx, alert.ID, entities.StatusActive, now)
	assert.Error(t, err)
}

func TestAlertRepositoryHasRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := t.Context()

	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, &entities.Alert{
		Type:      entities.AlertFire,
		Status:    entities.StatusActive,
		CreatedAt: now.Add(-30 * time.Second),
	}))

	recent, err := repo.HasRecent(ctx, entities.AlertFire, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, recent)

	recent, err = repo.HasRecent(ctx, entities.AlertFire, now.Add(-10*time.Second))
	require.NoError(t, err)
	assert.False(t, recent)

	recent, err = repo.HasRecent(ctx, entities.AlertIntruder, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, recent)
}

func TestAlertRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.Create(ctx, &entities.Alert{Type: entities.AlertFire, Room: "Living Room", Severity: 3, Status: entities.StatusActive}))
	require.NoError(t, repo.Create(ctx, &entities.Alert{Type: entities.AlertIntruder, Room: "Door Entrance Area", Severity: 2, Status: entities.StatusActive}))
	require.NoError(t, repo.Create(ctx, &entities.Alert{Type: entities.AlertIntruder, Room: "Door Entrance Area", Severity: 3, Status: entities.StatusAck}))

	active, err := repo.ListActive(ctx, AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	fires, err := repo.ListActive(ctx, AlertFilter{Type: entities.AlertFire})
	require.NoError(t, err)
	require.Len(t, fires, 1)
	assert.Equal(t, "Living Room", fires[0].Room)

	history, err := repo.ListHistory(ctx, AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 1)

	count, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	bySeverity, err := repo.ListActive(ctx, AlertFilter{Sort: SortSeverity})
	require.NoError(t, err)
	require.Len(t, bySeverity, 2)
	assert.Equal(t, 3, bySeverity[0].Severity)
}

func TestSnapshotRepositoryLatest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSnapshotRepository(db)
	ctx := t.Context()

	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, &entities.Snapshot{
		Type: entities.SnapshotFaceUnknown, Label: entities.LabelUnknown,
		FilePath: "a.jpg", CreatedAt: now.Add(-time.Minute),
	}))
	require.NoError(t, repo.Create(ctx, &entities.Snapshot{
		Type: entities.SnapshotFaceUnknown, Label: entities.LabelUnknown,
		FilePath: "b.jpg", CreatedAt: now,
	}))

	latest, err := repo.Latest(ctx, entities.SnapshotFaceUnknown, entities.LabelUnknown)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "b.jpg", latest.FilePath)

	none, err := repo.Latest(ctx, entities.SnapshotFlame, entities.LabelFlame)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestNodeRepositoryUpsertLatestWins(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNodeRepository(db)
	ctx := t.Context()

	first := time.Now().UTC().Add(-time.Minute)
	second := time.Now().UTC()
	require.NoError(t, repo.UpsertSeen(ctx, "cam_outdoor", "boot", first))
	require.NoError(t, repo.UpsertSeen(ctx, "cam_outdoor", "loop", second))

	nodes, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "loop", nodes[0].Note)
	assert.WithinDuration(t, second, nodes[0].LastSeen, time.Second)
}

func TestNotificationRepositoryQueries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := t.Context()

	const channel = "telegram"
	now := time.Now().UTC()

	require.NoError(t, repo.Append(ctx, &entities.NotificationAttempt{
		AlertID: 1, Channel: channel, Kind: entities.KindInitial, OK: true, AttemptAt: now.Add(-2 * time.Minute),
	}))
	require.NoError(t, repo.Append(ctx, &entities.NotificationAttempt{
		AlertID: 1, Channel: channel, Kind: entities.KindReminder, OK: false, Error: "timeout", AttemptAt: now.Add(-time.Minute),
	}))

	last, err := repo.LastAttempt(ctx, 1, channel)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.False(t, last.OK)

	success, err := repo.LastSuccess(ctx, 1, channel)
	require.NoError(t, err)
	require.NotNil(t, success)
	assert.Equal(t, entities.KindInitial, success.Kind)

	count, err := repo.CountSuccess(ctx, 1, channel)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	none, err := repo.LastAttempt(ctx, 2, channel)
	require.NoError(t, err)
	assert.Nil(t, none)

	attempts, err := repo.ListForAlert(ctx, 1)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.True(t, attempts[0].AttemptAt.Before(attempts[1].AttemptAt))
}

func TestSettingsRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepository(db)
	ctx := t.Context()

	value, err := repo.Get(ctx, entities.SettingGuestMode, "0")
	require.NoError(t, err)
	assert.Equal(t, "0", value)

	require.NoError(t, repo.Set(ctx, entities.SettingGuestMode, "1"))
	require.NoError(t, repo.Set(ctx, entities.SettingGuestMode, "0"))

	value, err = repo.Get(ctx, entities.SettingGuestMode, "1")
	require.NoError(t, err)
	assert.Equal(t, "0", value)
}

func TestSummaryRepositoryForDay(t *testing.T) {
	db := setupTestDB(t)
	ctx := t.Context()

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	inDay := day.Add(10 * time.Hour)

	alertRepo := NewAlertRepository(db)
	require.NoError(t, alertRepo.Create(ctx, &entities.Alert{Type: entities.AlertFire, Room: "Living Room", Status: entities.StatusActive, CreatedAt: inDay}))
	require.NoError(t, alertRepo.Create(ctx, &entities.Alert{Type: entities.AlertFire, Room: "Living Room", Status: entities.StatusAck, CreatedAt: inDay}))
	require.NoError(t, alertRepo.Create(ctx, &entities.Alert{Type: entities.AlertIntruder, Room: "Door Entrance Area", Status: entities.StatusActive, CreatedAt: day.AddDate(0, 0, -1)}))

	eventRepo := NewEventRepository(db)
	require.NoError(t, eventRepo.Create(ctx, &entities.Event{Type: entities.EventSmokeHigh, Source: "mq2_living", Timestamp: inDay}))

	summary, err := NewSummaryRepository(db).ForDay(ctx, day)
	require.NoError(t, err)

	assert.Equal(t, "2026-03-14", summary.Date)
	require.Len(t, summary.AlertsByTypeStatus, 2)
	require.Len(t, summary.EventsByType, 1)
	assert.Equal(t, int64(1), summary.EventsByType[0].Count)
	require.Len(t, summary.TopRooms, 1)
	assert.Equal(t, "Living Room", summary.TopRooms[0].Room)
	assert.Equal(t, int64(2), summary.TopRooms[0].Count)
}
