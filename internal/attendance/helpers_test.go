package attendance

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"soldeser/internal/models"
	"soldeser/internal/store"
)

var base = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

// Plaza Mayor, Madrid.
var madrid = Position{Latitude: 40.4168, Longitude: -3.7038}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	repo  *store.MemoryRepository
	svc   *Service
	clock *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: base}
	repo := store.NewMemoryRepository()
	repo.Now = clock.Now
	svc := NewService(repo, quietLogger())
	svc.Now = clock.Now
	return &fixture{repo: repo, svc: svc, clock: clock}
}

// site stores an active worksite and assigns worker 1 to it.
func (f *fixture) site(name string, lat, lng, radius float64) models.Worksite {
	w := f.repo.SaveWorksite(models.Worksite{Name: name, Latitude: lat, Longitude: lng, RadiusMeters: radius, IsActive: true})
	f.repo.Assign(models.WorksiteAssignment{UserID: 1, WorksiteID: w.ID, StartDate: base.Add(-24 * time.Hour), IsActive: true})
	return w
}

var errConnReset = errors.New("connection reset by peer")

// flakyRepo fails writes while failing is set.
type flakyRepo struct {
	store.AttendanceRepository
	failing bool
}

func (r *flakyRepo) CreateRecord(ctx context.Context, record *models.AttendanceRecord) error {
	if r.failing {
		return errConnReset
	}
	return r.AttendanceRepository.CreateRecord(ctx, record)
}

func (r *flakyRepo) WithWorkerLock(ctx context.Context, userID uint, fn func(repo store.AttendanceRepository) error) error {
	return r.AttendanceRepository.WithWorkerLock(ctx, userID, func(store.AttendanceRepository) error {
		return fn(r)
	})
}

// racingRepo hides existing keys from the first lookup, as if another instance
// inserted them between lookup and insert.
type racingRepo struct {
	store.AttendanceRepository
	seen map[string]bool
}

func (r *racingRepo) FindByIdempotencyKey(ctx context.Context, key string) (*models.AttendanceRecord, error) {
	if !r.seen[key] {
		r.seen[key] = true
		return nil, store.ErrNotFound
	}
	return r.AttendanceRepository.FindByIdempotencyKey(ctx, key)
}

func (r *racingRepo) WithWorkerLock(ctx context.Context, userID uint, fn func(repo store.AttendanceRepository) error) error {
	return r.AttendanceRepository.WithWorkerLock(ctx, userID, func(store.AttendanceRepository) error {
		return fn(r)
	})
}

func ptr[T any](v T) *T { return &v }
