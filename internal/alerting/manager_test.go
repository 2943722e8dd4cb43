package alerting

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

	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/datastore/repository"
	"github.com/condosec/condowatch/internal/errors"
	"github.com/condosec/condowatch/internal/logger"
	"github.com/condosec/condowatch/internal/observability"
)

func setupManager(t *testing.T) (*Manager, repository.AlertRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&entities.Alert{}))

	alerts := repository.NewAlertRepository(db)
	m := NewManager(alerts, logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil), observability.NewMetrics())
	return m, alerts
}

func activeAlert(t *testing.T, alerts repository.AlertRepository) uint {
	t.Helper()
	alert := &entities.Alert{
		Type:      entities.AlertIntruder,
		Room:      "Door Entrance Area",
		Severity:  3,
		Status:    entities.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, alerts.Create(context.Background(), alert))
	return alert.ID
}

func TestAcknowledgeActiveAlert(t *testing.T) {
	ctx := context.Background()
	m, alerts := setupManager(t)
	id := activeAlert(t, alerts)

	changed, err := m.Acknowledge(ctx, id)
	require.NoError(t, err)
	assert.True(t, changed)

	alert, err := alerts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusAck, alert.Status)
	require.NotNil(t, alert.AckAt)
}

func TestSecondTransitionIsNoop(t *testing.T) {
	ctx := context.Background()
	m, alerts := setupManager(t)
	id := activeAlert(t, alerts)

	changed, err := m.Acknowledge(ctx, id)
	require.NoError(t, err)
	require.True(t, changed)

	// Terminal states never move again, not even to another terminal one.
	changed, err = m.Resolve(ctx, id)
	require.NoError(t, err)
	assert.False(t, changed)

	alert, err := alerts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusAck, alert.Status)
}

func TestTransitionUnknownAlert(t *testing.T) {
	m, _ := setupManager(t)
	_, err := m.Acknowledge(context.Background(), 9999)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrAlertNotFound)
}

func TestTransitionRejectsInvalidTarget(t *testing.T) {
	m, alerts := setupManager(t)
	id := activeAlert(t, alerts)

	_, err := m.Transition(context.Background(), id, "ACTIVE")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
