package notification

import (
	"context"
	"sync"
	"time"

	"github.com/condosec/condowatch/internal/conf"
	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/datastore/repository"
	"github.com/condosec/condowatch/internal/logger"
	"github.com/condosec/condowatch/internal/observability"
)

// activeAlertsPerTick bounds one tick's workload.
const activeAlertsPerTick = 300

// Scheduler is the notification loop. Each poll it snapshots the ACTIVE
// alerts and, per alert and channel, decides whether an attempt is due:
// walk the reminder schedule on successful sends, then repeat at the
// configured interval, backing off after failures.
type Scheduler struct {
	cfg      conf.NotifySettings
	linkBase string
	alerts   repository.AlertRepository
	attempts repository.NotificationRepository
	channels []Channel
	log      logger.Logger
	metrics  *observability.Metrics

	nowFn func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(
	cfg conf.NotifySettings,
	linkBase string,
	alerts repository.AlertRepository,
	attempts repository.NotificationRepository,
	channels []Channel,
	log logger.Logger,
	metrics *observability.Metrics,
) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		linkBase: linkBase,
		alerts:   alerts,
		attempts: attempts,
		channels: channels,
		log:      log,
		metrics:  metrics,
		nowFn:    func() time.Time { return time.Now().UTC() },
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. Without configured channels the loop
// stays dormant so a bare deployment runs silently rather than failing.
func (s *Scheduler) Start() {
	if len(s.channels) == 0 {
		s.log.Warn("notification scheduler disabled, no channels configured")
	} else {
		s.log.Info("notification scheduler started",
			logger.Int("channels", len(s.channels)),
			logger.Duration("poll", s.cfg.PollInterval.Std()))
	}
	go func() {
		defer close(s.done)
		s.run()
	}()
}

// Stop ends the loop and waits for the in-flight tick, bounded so a slow
// transport cannot hang shutdown.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.log.Warn("notification scheduler did not exit before join timeout")
	}
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.cfg.PollInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if len(s.channels) == 0 {
				continue
			}
			if err := s.tick(context.Background()); err != nil {
				s.log.Error("notification tick failed", logger.Error(err))
			}
		}
	}
}

// tick processes one poll. The ACTIVE set is a point-in-time snapshot: an
// alert acknowledged while the tick runs may still receive one in-flight
// notification. That gap is accepted; the alternative is a lock across the
// whole tick including sends.
func (s *Scheduler) tick(ctx context.Context) error {
	now := s.nowFn()
	active, err := s.alerts.ListActive(ctx, repository.AlertFilter{Limit: activeAlertsPerTick})
	if err != nil {
		return err
	}

	for i := range active {
		alert := &active[i]
		for _, ch := range s.channels {
			due, initial, err := s.shouldSend(ctx, alert, ch.Name, now)
			if err != nil {
				return err
			}
			if !due {
				continue
			}
			s.send(ctx, alert, ch, initial, now)
		}
	}
	return nil
}

// shouldSend implements the per-alert schedule walk for one channel.
func (s *Scheduler) shouldSend(ctx context.Context, alert *entities.Alert, channel string, now time.Time) (due, initial bool, err error) {
	age := now.Sub(alert.CreatedAt)
	if age < 0 {
		age = 0
	}

	successCount, err := s.attempts.CountSuccess(ctx, alert.ID, channel)
	if err != nil {
		return false, false, err
	}

	// A recent failed attempt puts the channel in backoff for this alert.
	lastAttempt, err := s.attempts.LastAttempt(ctx, alert.ID, channel)
	if err != nil {
		return false, false, err
	}
	if lastAttempt != nil && !lastAttempt.OK &&
		now.Sub(lastAttempt.AttemptAt) < s.cfg.FailRetry.Std() {
		return false, false, nil
	}

	schedule := conf.NormalizeSchedule(s.cfg.ReminderSchedule)
	if int(successCount) < len(schedule) {
		dueAt := schedule[successCount].Std()
		if age < dueAt {
			return false, false, nil
		}
		return true, successCount == 0, nil
	}

	// Schedule exhausted: keep repeating off the last successful send.
	lastSuccess, err := s.attempts.LastSuccess(ctx, alert.ID, channel)
	if err != nil {
		return false, false, err
	}
	if lastSuccess == nil {
		return false, false, nil
	}
	if now.Sub(lastSuccess.AttemptAt) >= s.cfg.RepeatInterval.Std() {
		return true, false, nil
	}
	return false, false, nil
}

// send performs one attempt and appends its audit row before the tick moves
// on to the next alert.
func (s *Scheduler) send(ctx context.Context, alert *entities.Alert, ch Channel, initial bool, now time.Time) {
	kind := entities.KindReminder
	if initial {
		kind = entities.KindInitial
	}
	message := ComposeAlertMessage(alert, initial, s.linkBase)

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout.Std())
	sendErr := ch.Sender.Send(sendCtx, message)
	cancel()

	attempt := &entities.NotificationAttempt{
		AlertID:   alert.ID,
		Channel:   ch.Name,
		Kind:      kind,
		OK:        sendErr == nil,
		Message:   message,
		AttemptAt: now,
	}
	if sendErr != nil {
		attempt.Error = sendErr.Error()
	}
	if err := s.attempts.Append(ctx, attempt); err != nil {
		s.log.Error("notification attempt log failed",
			logger.Uint64("alert_id", uint64(alert.ID)),
			logger.Error(err))
		return
	}

	if sendErr == nil {
		s.metrics.NotificationAttemptsTotal.WithLabelValues(kind, observability.OutcomeOK).Inc()
		s.log.Info("notification sent",
			logger.Uint64("alert_id", uint64(alert.ID)),
			logger.String("channel", ch.Name),
			logger.String("kind", kind))
	} else {
		s.metrics.NotificationAttemptsTotal.WithLabelValues(kind, observability.OutcomeFailed).Inc()
		s.log.Warn("notification send failed",
			logger.Uint64("alert_id", uint64(alert.ID)),
			logger.String("channel", ch.Name),
			logger.Error(sendErr))
	}
}

// SendTest pushes the connectivity-test message through every channel and
// returns the first transport error.
func (s *Scheduler) SendTest(ctx context.Context) error {
	message := ComposeTestMessage(s.linkBase)
	for _, ch := range s.channels {
		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout.Std())
		err := ch.Sender.Send(sendCtx, message)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

// Channels lists the configured channel names for status reporting.
func (s *Scheduler) Channels() []string {
	names := make([]string, 0, len(s.channels))
	for _, ch := range s.channels {
		names = append(names, ch.Name)
	}
	return names
}
