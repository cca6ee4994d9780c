package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soldeser/internal/models"
)

func event(key string, kind models.ClockKind, at time.Time, pos Position) OfflineEvent {
	return OfflineEvent{
		DeviceRecordID: key,
		Kind:           kind,
		Timestamp:      at,
		Latitude:       pos.Latitude,
		Longitude:      pos.Longitude,
	}
}

func TestReconcile_SyncsAndResolvesWorksite(t *testing.T) {
	// Arrange
	f := newFixture(t)
	site := f.site("Obra Sol", 40.4168, -3.7038, 150)
	events := []OfflineEvent{
		event("k1", models.ClockIn, base.Add(-9*time.Hour), madrid),
		event("k2", models.ClockOut, base.Add(-time.Hour), Position{Latitude: 40.4200, Longitude: -3.7038}),
	}

	// Act
	res, err := f.svc.Reconcile(context.Background(), 1, events)

	// Assert
	require.NoError(t, err)
	require.Len(t, res.Synced, 2)
	assert.Empty(t, res.Duplicates)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.AlternationWarnings)

	assert.Equal(t, "k1", res.Synced[0].DeviceRecordID)
	assert.NotZero(t, res.Synced[0].ServerID)
	assert.Equal(t, site.ID, *res.Synced[0].WorksiteID)
	assert.Equal(t, "Obra Sol", res.Synced[0].WorksiteName)
	assert.True(t, *res.Synced[0].IsWithinGeofence)
	assert.False(t, *res.Synced[1].IsWithinGeofence)
	assert.Equal(t, 356, *res.Synced[1].DistanceFromSite)

	stored, err := f.repo.FindByIdempotencyKey(context.Background(), "k2")
	require.NoError(t, err)
	assert.Equal(t, models.SyncSynced, stored.SyncStatus)
	assert.True(t, stored.Timestamp.Equal(base.Add(-time.Hour)))
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := []OfflineEvent{
		event("a", models.ClockIn, base.Add(-3*time.Hour), madrid),
		event("b", models.ClockOut, base.Add(-2*time.Hour), madrid),
		event("c", models.ClockIn, base.Add(-time.Hour), madrid),
	}

	first, err := f.svc.Reconcile(ctx, 1, events)
	require.NoError(t, err)
	require.Len(t, first.Synced, 3)

	second, err := f.svc.Reconcile(ctx, 1, events)
	require.NoError(t, err)
	assert.Empty(t, second.Synced)
	require.Len(t, second.Duplicates, 3)
	for i, dup := range second.Duplicates {
		assert.Equal(t, first.Synced[i].DeviceRecordID, dup.DeviceRecordID)
		assert.Equal(t, first.Synced[i].ServerID, dup.ExistingID)
	}
	assert.Equal(t, 3, f.repo.Count())
}

func TestReconcile_PartitionsInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.CreateRecord(ctx, &models.AttendanceRecord{UserID: 1, Kind: models.ClockIn, Timestamp: base.Add(-5 * time.Hour), DeviceRecordID: ptr("old")}))

	events := []OfflineEvent{
		event("ok", models.ClockOut, base.Add(-time.Hour), madrid),
		event("old", models.ClockIn, base.Add(-5*time.Hour), madrid),
		event("bad-lat", models.ClockIn, base, Position{Latitude: 123, Longitude: 0}),
		event("", models.ClockIn, base, madrid),
		event("bad-kind", models.ClockKind("BREAK"), base, madrid),
		{DeviceRecordID: "no-ts", Kind: models.ClockIn, Latitude: 40, Longitude: -3},
		event("ok", models.ClockOut, base.Add(-time.Hour), madrid),
	}

	res, err := f.svc.Reconcile(ctx, 1, events)
	require.NoError(t, err)

	assert.Equal(t, len(events), res.Total())
	assert.Len(t, res.Synced, 1)
	assert.Len(t, res.Duplicates, 2)
	require.Len(t, res.Errors, 4)
	for _, e := range res.Errors {
		assert.NotEmpty(t, e.Error)
		assert.False(t, e.Retryable)
	}
	assert.Equal(t, "ok", res.Duplicates[1].DeviceRecordID)
	assert.Equal(t, res.Synced[0].ServerID, res.Duplicates[1].ExistingID)
}

func TestReconcile_NoAlternationCheckButWarns(t *testing.T) {
	f := newFixture(t)
	events := []OfflineEvent{
		event("in-2", models.ClockIn, base.Add(-time.Hour), madrid),
		event("in-1", models.ClockIn, base.Add(-2*time.Hour), madrid),
	}

	res, err := f.svc.Reconcile(context.Background(), 1, events)
	require.NoError(t, err)
	assert.Len(t, res.Synced, 2)
	require.Len(t, res.AlternationWarnings, 1)
	assert.Contains(t, res.AlternationWarnings[0], "in-1 and in-2")
}

func TestReconcile_ConstraintViolationIsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stored := &models.AttendanceRecord{UserID: 1, Kind: models.ClockIn, Timestamp: base, DeviceRecordID: ptr("raced")}
	require.NoError(t, f.repo.CreateRecord(ctx, stored))
	f.svc.Repo = &racingRepo{AttendanceRepository: f.repo, seen: map[string]bool{}}

	res, err := f.svc.Reconcile(ctx, 1, []OfflineEvent{event("raced", models.ClockIn, base, madrid)})
	require.NoError(t, err)
	assert.Empty(t, res.Synced)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, stored.ID, res.Duplicates[0].ExistingID)
}

func TestReconcile_StoreFailureContinues(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyRepo{AttendanceRepository: f.repo, failing: true}
	f.svc.Repo = flaky

	res, err := f.svc.Reconcile(context.Background(), 1, []OfflineEvent{
		event("x", models.ClockIn, base, madrid),
		event("y", models.ClockOut, base.Add(time.Hour), madrid),
	})
	require.NoError(t, err)
	require.Len(t, res.Errors, 2)
	assert.True(t, res.Errors[0].Retryable)
	assert.Contains(t, res.Errors[0].Error, "connection reset")

	// The client retries the same batch once the store is back.
	flaky.failing = false
	res, err = f.svc.Reconcile(context.Background(), 1, []OfflineEvent{
		event("x", models.ClockIn, base, madrid),
		event("y", models.ClockOut, base.Add(time.Hour), madrid),
	})
	require.NoError(t, err)
	assert.Len(t, res.Synced, 2)
}

func TestReconcile_RequiresWorker(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Reconcile(context.Background(), 0, nil)
	assert.ErrorIs(t, err, ErrValidation)

	res, err := f.svc.Reconcile(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Total())
}
