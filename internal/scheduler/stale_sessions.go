// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"soldeser/internal/models"
)

// staleLister is the part of attendance.Service the sweeper needs.
type staleLister interface {
	StaleSessions(ctx context.Context, maxAge time.Duration) ([]models.AttendanceRecord, error)
}

// StaleSessionSweeper reports workers who clocked in and never clocked out. It only
// logs: closing a session is the worker's or a supervisor's call.
type StaleSessionSweeper struct {
	Sessions staleLister
	MaxAge   time.Duration
	Logger   *logrus.Logger
	Now      func() time.Time
}

func NewStaleSessionSweeper(sessions staleLister, maxAge time.Duration, logger *logrus.Logger) *StaleSessionSweeper {
	return &StaleSessionSweeper{Sessions: sessions, MaxAge: maxAge, Logger: logger, Now: time.Now}
}

// Run performs one sweep and returns the number of stale sessions found.
func (s *StaleSessionSweeper) Run(ctx context.Context) (int, error) {
	stale, err := s.Sessions.StaleSessions(ctx, s.MaxAge)
	if err != nil {
		s.Logger.WithError(err).Error("Stale session sweep failed")
		return 0, err
	}
	now := s.Now()
	for _, r := range stale {
		fields := logrus.Fields{
			"worker_id":  r.UserID,
			"record_id":  r.ID,
			"since":      r.Timestamp.Format(time.RFC3339),
			"open_hours": int(now.Sub(r.Timestamp).Hours()),
		}
		if r.WorksiteID != nil {
			fields["worksite_id"] = *r.WorksiteID
		}
		s.Logger.WithFields(fields).Warn("Open session without clock-out")
	}
	s.Logger.WithField("count", len(stale)).Debug("Stale session sweep finished")
	return len(stale), nil
}

// Start schedules the sweeper on schedule (standard 5-field cron syntax) and starts the
// scheduler. Stop the returned cron on shutdown.
func Start(schedule string, sweeper *StaleSessionSweeper) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = sweeper.Run(ctx)
	})
	if err != nil {
		return nil, err
	}
	sweeper.Logger.WithFields(logrus.Fields{
		"schedule": schedule,
		"max_age":  sweeper.MaxAge.String(),
	}).Info("Stale session sweeper started")
	c.Start()
	return c, nil
}
