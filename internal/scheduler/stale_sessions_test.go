package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"soldeser/internal/models"
)

type fakeLister struct {
	records []models.AttendanceRecord
	err     error
	gotAge  time.Duration
}

func (f *fakeLister) StaleSessions(ctx context.Context, maxAge time.Duration) ([]models.AttendanceRecord, error) {
	f.gotAge = maxAge
	return f.records, f.err
}

func TestStaleSessionSweeper_Run(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	now := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	site := uint(4)
	lister := &fakeLister{records: []models.AttendanceRecord{
		{Model: gorm.Model{ID: 10}, UserID: 1, Kind: models.ClockIn, Timestamp: now.Add(-20 * time.Hour), WorksiteID: &site},
		{Model: gorm.Model{ID: 11}, UserID: 2, Kind: models.ClockIn, Timestamp: now.Add(-15 * time.Hour)},
	}}
	sweeper := NewStaleSessionSweeper(lister, 14*time.Hour, logger)
	sweeper.Now = func() time.Time { return now }

	n, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 14*time.Hour, lister.gotAge)

	var warnings []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings = append(warnings, e)
		}
	}
	require.Len(t, warnings, 2)
	assert.Equal(t, uint(1), warnings[0].Data["worker_id"])
	assert.Equal(t, 20, warnings[0].Data["open_hours"])
	assert.Equal(t, uint(4), warnings[0].Data["worksite_id"])
}

func TestStaleSessionSweeper_Error(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sweeper := NewStaleSessionSweeper(&fakeLister{err: errors.New("db down")}, time.Hour, logger)

	_, err := sweeper.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestStart(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sweeper := NewStaleSessionSweeper(&fakeLister{}, time.Hour, logger)

	c, err := Start("0 * * * *", sweeper)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	<-c.Stop().Done()

	_, err = Start("not a schedule", sweeper)
	assert.Error(t, err)
}
