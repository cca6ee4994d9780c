package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soldeser/internal/models"
)

func TestActiveSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.site("Obra Sol", 40.4168, -3.7038, 150)
	ana := f.repo.SaveUser(models.User{FirstName: "Ana", Role: models.RoleWorker, IsActive: true})

	// Worker 1 clocks in on site, ana is still open from earlier, worker 50 already left.
	require.NoError(t, f.repo.CreateRecord(ctx, &models.AttendanceRecord{UserID: ana.ID, Kind: models.ClockIn, Timestamp: base.Add(-2 * time.Hour)}))
	require.NoError(t, f.repo.CreateRecord(ctx, &models.AttendanceRecord{UserID: 50, Kind: models.ClockIn, Timestamp: base.Add(-3 * time.Hour)}))
	require.NoError(t, f.repo.CreateRecord(ctx, &models.AttendanceRecord{UserID: 50, Kind: models.ClockOut, Timestamp: base.Add(-time.Hour)}))
	_, err := f.svc.ClockIn(ctx, ClockInRequest{WorkerID: 1, Position: madrid})
	require.NoError(t, err)
	f.clock.Advance(90 * time.Minute)

	active, err := f.svc.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	assert.Equal(t, "Ana", active[0].Worker.FirstName)
	assert.InDelta(t, 3.5, active[0].HoursWorked, 1e-9)
	assert.Nil(t, active[0].IsWithinGeofence)

	assert.Nil(t, active[1].Worker)
	assert.InDelta(t, 1.5, active[1].HoursWorked, 1e-9)
	require.NotNil(t, active[1].Worksite)
	assert.Equal(t, w.ID, active[1].Worksite.ID)
	require.NotNil(t, active[1].IsWithinGeofence)
	assert.True(t, *active[1].IsWithinGeofence)
	assert.Equal(t, 0, *active[1].DistanceFromSite)
}

func TestActiveSessions_NoneOpen(t *testing.T) {
	f := newFixture(t)
	active, err := f.svc.ActiveSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDailyAttendance(t *testing.T) {
	site := &models.Worksite{Name: "Obra Sol"}
	workers := []models.User{
		{Model: gormModel(1), FirstName: "Ana"},
		{Model: gormModel(2), FirstName: "Luis"},
		{Model: gormModel(3), FirstName: "Pedro"},
	}
	records := []models.AttendanceRecord{
		{UserID: 1, Kind: models.ClockIn, Timestamp: base, Worksite: site},
		{UserID: 1, Kind: models.ClockOut, Timestamp: base.Add(4 * time.Hour)},
		{UserID: 1, Kind: models.ClockIn, Timestamp: base.Add(5 * time.Hour)},
		{UserID: 1, Kind: models.ClockOut, Timestamp: base.Add(9 * time.Hour)},
		// Luis never clocked out.
		{UserID: 2, Kind: models.ClockIn, Timestamp: base.Add(time.Hour)},
		// A supervisor's records are not part of the roll call.
		{UserID: 9, Kind: models.ClockIn, Timestamp: base},
	}

	report := DailyAttendance(base, workers, records)

	assert.Equal(t, "2025-03-10", report.Date)
	assert.Equal(t, 3, report.TotalWorkers)
	assert.Equal(t, 2, report.PresentCount)
	assert.Equal(t, 1, report.AbsentCount)
	require.Len(t, report.Attendance, 3)

	ana := report.Attendance[0]
	assert.True(t, ana.Present)
	assert.InDelta(t, 8.0, ana.HoursWorked, 1e-9)
	assert.Equal(t, 4, ana.Records)
	assert.Equal(t, "Obra Sol", ana.Worksite)
	require.NotNil(t, ana.FirstEntry)
	assert.True(t, ana.FirstEntry.Equal(base))
	require.NotNil(t, ana.LastExit)
	assert.True(t, ana.LastExit.Equal(base.Add(9*time.Hour)))

	luis := report.Attendance[1]
	assert.True(t, luis.Present)
	assert.Zero(t, luis.HoursWorked)
	assert.Nil(t, luis.LastExit)

	pedro := report.Attendance[2]
	assert.False(t, pedro.Present)
	assert.Nil(t, pedro.FirstEntry)
	assert.Zero(t, pedro.Records)
}
