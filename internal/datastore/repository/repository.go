// Package repository defines the narrow CRUD surface the core components use
// to talk to the event log. All implementations are GORM-backed; callers
// treat the store as a transactional external service and never hold
// in-process locks across calls into it.
package repository

import (
	"context"
	"time"

	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/errors"
)

// Sentinel errors for by-id lookups. Absence in "latest"/"has" style queries
// is normal control flow and reported via nil results instead.
var (
	ErrAlertNotFound    = errors.NewStd("alert not found")
	ErrSnapshotNotFound = errors.NewStd("snapshot not found")
)

// EventFilter restricts event queries. Zero-value fields are ignored.
type EventFilter struct {
	Type   string
	Source string
	Room   string
	Query  string // substring match against details/room/type
}

// EventRepository stores and queries raw events.
type EventRepository interface {
	Create(ctx context.Context, event *entities.Event) error
	// Latest returns the most recent event matching the filter, or nil when
	// none exists.
	Latest(ctx context.Context, filter EventFilter) (*entities.Event, error)
	// HasSince reports whether any matching event exists with a timestamp in
	// [since, until].
	HasSince(ctx context.Context, filter EventFilter, since, until time.Time) (bool, error)
	List(ctx context.Context, filter EventFilter, limit int) ([]entities.Event, error)
	// ListBetween returns matching events within [start, end], newest first.
	ListBetween(ctx context.Context, filter EventFilter, start, end time.Time, limit int) ([]entities.Event, error)
}

// AlertSort values accepted by alert listing queries.
const (
	SortNewest   = "newest"
	SortSeverity = "severity"
)

// AlertFilter restricts alert queries. Zero-value fields are ignored.
type AlertFilter struct {
	Type  string
	Room  string
	Query string
	Sort  string // newest (default) | severity
	Limit int
}

// AlertRepository stores alerts and performs the conditional status update
// the lifecycle manager relies on.
type AlertRepository interface {
	Create(ctx context.Context, alert *entities.Alert) error
	// Get returns the alert or ErrAlertNotFound.
	Get(ctx context.Context, id uint) (*entities.Alert, error)
	ListActive(ctx context.Context, filter AlertFilter) ([]entities.Alert, error)
	ListHistory(ctx context.Context, filter AlertFilter) ([]entities.Alert, error)
	CountActive(ctx context.Context) (int64, error)
	// HasRecent reports whether an alert of the given type was created at or
	// after since.
	HasRecent(ctx context.Context, alertType string, since time.Time) (bool, error)
	// Transition atomically sets status and ack timestamp if and only if the
	// alert is currently ACTIVE. Returns false (without error) when the alert
	// exists but is not ACTIVE, and ErrAlertNotFound when it does not exist.
	Transition(ctx context.Context, id uint, target string, at time.Time) (bool, error)
	// AttachSnapshot links evidence to an existing alert.
	AttachSnapshot(ctx context.Context, id uint, snapshotPath string) error
	DistinctTypes(ctx context.Context) ([]string, error)
	DistinctRooms(ctx context.Context) ([]string, error)
}

// SnapshotFilter restricts snapshot queries. Zero-value fields are ignored.
type SnapshotFilter struct {
	Type  string
	Label string
	Query string
}

// SnapshotRepository stores snapshot metadata.
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *entities.Snapshot) error
	// Get returns the snapshot by id or ErrSnapshotNotFound.
	Get(ctx context.Context, id uint) (*entities.Snapshot, error)
	// Latest returns the most recent snapshot matching type/label, or nil
	// when none exists.
	Latest(ctx context.Context, snapshotType, label string) (*entities.Snapshot, error)
	List(ctx context.Context, filter SnapshotFilter, limit int) ([]entities.Snapshot, error)
	ListForAlert(ctx context.Context, alertID uint) ([]entities.Snapshot, error)
}

// NodeRepository tracks per-node heartbeats, latest-wins.
type NodeRepository interface {
	UpsertSeen(ctx context.Context, nodeID, note string, at time.Time) error
	List(ctx context.Context) ([]entities.NodeHeartbeat, error)
}

// NotificationRepository is the append-only notification audit trail.
type NotificationRepository interface {
	Append(ctx context.Context, attempt *entities.NotificationAttempt) error
	// LastAttempt returns the most recent attempt for the alert on the
	// channel regardless of outcome, or nil when none exists.
	LastAttempt(ctx context.Context, alertID uint, channel string) (*entities.NotificationAttempt, error)
	// LastSuccess returns the most recent successful attempt, or nil.
	LastSuccess(ctx context.Context, alertID uint, channel string) (*entities.NotificationAttempt, error)
	CountSuccess(ctx context.Context, alertID uint, channel string) (int64, error)
	ListForAlert(ctx context.Context, alertID uint) ([]entities.NotificationAttempt, error)
}

// SettingsRepository persists operator-togglable key/value state.
type SettingsRepository interface {
	Get(ctx context.Context, key, fallback string) (string, error)
	Set(ctx context.Context, key, value string) error
}
