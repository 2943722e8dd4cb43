// Package alerting owns the alert status machine: ACTIVE is the only live
// state, ACK and RESOLVED are terminal, and the one legal move is
// ACTIVE to a terminal state.
package alerting

import (
	"context"
	"time"

	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/datastore/repository"
	"github.com/condosec/condowatch/internal/errors"
	"github.com/condosec/condowatch/internal/logger"
	"github.com/condosec/condowatch/internal/observability"
)

// Manager performs alert transitions through the repository's conditional
// update so concurrent acknowledgers cannot double-apply.
type Manager struct {
	alerts  repository.AlertRepository
	log     logger.Logger
	metrics *observability.Metrics
	nowFn   func() time.Time
}

func NewManager(alerts repository.AlertRepository, log logger.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		alerts:  alerts,
		log:     log,
		metrics: metrics,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// Transition moves an ACTIVE alert to target (ACK or RESOLVED). It returns
// true when this call performed the move, false when the alert was already
// terminal. An unknown id is an error; a lost race is not.
func (m *Manager) Transition(ctx context.Context, id uint, target string) (bool, error) {
	if target != entities.StatusAck && target != entities.StatusResolved {
		return false, errors.ValidationError("invalid alert target status %q", target)
	}

	changed, err := m.alerts.Transition(ctx, id, target, m.nowFn())
	if err != nil {
		m.metrics.AlertTransitionsTotal.WithLabelValues(target, observability.OutcomeFailed).Inc()
		return false, err
	}
	if !changed {
		m.metrics.AlertTransitionsTotal.WithLabelValues(target, observability.OutcomeNoop).Inc()
		return false, nil
	}

	m.metrics.AlertTransitionsTotal.WithLabelValues(target, observability.OutcomeOK).Inc()
	m.log.Info("alert transitioned",
		logger.Uint64("alert_id", uint64(id)),
		logger.String("status", target))
	return true, nil
}

// Acknowledge marks an alert as seen by a person.
func (m *Manager) Acknowledge(ctx context.Context, id uint) (bool, error) {
	return m.Transition(ctx, id, entities.StatusAck)
}

// Resolve closes out an alert.
func (m *Manager) Resolve(ctx context.Context, id uint) (bool, error) {
	return m.Transition(ctx, id, entities.StatusResolved)
}
