package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"soldeser/internal/models"
)

// MemoryRepository is an in-process AttendanceRepository. It keeps the same ordering
// and uniqueness rules as the postgres DAO and backs the engine in tests and local runs.
type MemoryRepository struct {
	Now func() time.Time

	mu          sync.RWMutex
	nextID      uint
	records     []models.AttendanceRecord
	worksites   map[uint]models.Worksite
	users       map[uint]models.User
	assignments []models.WorksiteAssignment

	locksMu sync.Mutex
	locks   map[uint]*sync.Mutex
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		Now:       time.Now,
		worksites: make(map[uint]models.Worksite),
		users:     make(map[uint]models.User),
		locks:     make(map[uint]*sync.Mutex),
	}
}

// SaveWorksite inserts or replaces a worksite. A zero ID gets the next free one.
func (m *MemoryRepository) SaveWorksite(w models.Worksite) models.Worksite {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == 0 {
		m.nextID++
		w.ID = m.nextID
	} else if w.ID > m.nextID {
		m.nextID = w.ID
	}
	m.worksites[w.ID] = w
	return w
}

// SaveUser inserts or replaces a user. A zero ID gets the next free one.
func (m *MemoryRepository) SaveUser(u models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		m.nextID++
		u.ID = m.nextID
	} else if u.ID > m.nextID {
		m.nextID = u.ID
	}
	m.users[u.ID] = u
	return u
}

// Assign adds an assignment of userID to worksiteID.
func (m *MemoryRepository) Assign(a models.WorksiteAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.assignments = append(m.assignments, a)
}

// Count returns the number of stored attendance records.
func (m *MemoryRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryRepository) FindMostRecentRecord(ctx context.Context, userID uint) (*models.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.AttendanceRecord
	for i := range m.records {
		r := &m.records[i]
		if r.UserID != userID {
			continue
		}
		if latest == nil || newer(r, latest) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := m.withWorksite(*latest)
	return &out, nil
}

func (m *MemoryRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.DeviceRecordID != nil && *r.DeviceRecordID == key {
			out := m.withWorksite(r)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) CreateRecord(ctx context.Context, record *models.AttendanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.DeviceRecordID != nil {
		for _, r := range m.records {
			if r.DeviceRecordID != nil && *r.DeviceRecordID == *record.DeviceRecordID {
				return fmt.Errorf("create record: %w", ErrDuplicateKey)
			}
		}
	}

	m.nextID++
	record.ID = m.nextID
	record.CreatedAt = m.Now()
	record.UpdatedAt = record.CreatedAt

	stored := *record
	stored.User = nil
	stored.Worksite = nil
	m.records = append(m.records, stored)
	return nil
}

func (m *MemoryRepository) FindActiveAssignments(ctx context.Context, userID uint) ([]models.Worksite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.Now()
	var out []models.Worksite
	for _, a := range m.assignments {
		if a.UserID != userID || !a.CoversTime(now) {
			continue
		}
		if w, ok := m.worksites[a.WorksiteID]; ok && w.IsActive {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *MemoryRepository) FindWorksiteByID(ctx context.Context, id uint) (*models.Worksite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.worksites[id]
	if !ok || !w.IsActive {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (m *MemoryRepository) ListRecordsInRange(ctx context.Context, userID uint, from, to time.Time) ([]models.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.AttendanceRecord
	for _, r := range m.records {
		if r.UserID == userID && !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, m.withWorksite(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(&out[j], &out[i]) })
	return out, nil
}

func (m *MemoryRepository) ListOpenRecords(ctx context.Context, openedBefore time.Time) ([]models.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[uint]*models.AttendanceRecord)
	for i := range m.records {
		r := &m.records[i]
		if cur, ok := latest[r.UserID]; !ok || newer(r, cur) {
			latest[r.UserID] = r
		}
	}
	var out []models.AttendanceRecord
	for _, r := range latest {
		if r.Kind == models.ClockIn && r.Timestamp.Before(openedBefore) {
			open := m.withWorksite(*r)
			if u, ok := m.users[open.UserID]; ok {
				open.User = &u
			}
			out = append(out, open)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryRepository) ListRecords(ctx context.Context, f RecordFilter) ([]models.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.AttendanceRecord
	for _, r := range m.records {
		if r.Timestamp.Before(f.From) || !r.Timestamp.Before(f.To) {
			continue
		}
		if f.UserID != 0 && r.UserID != f.UserID {
			continue
		}
		if f.WorksiteID != 0 && (r.WorksiteID == nil || *r.WorksiteID != f.WorksiteID) {
			continue
		}
		r = m.withWorksite(r)
		if u, ok := m.users[r.UserID]; ok {
			r.User = &u
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return newer(&out[j], &out[i])
	})
	return out, nil
}

func (m *MemoryRepository) ListActiveWorkers(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.User{}
	for _, u := range m.users {
		if u.Role == models.RoleWorker && u.IsActive {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// WithWorkerLock serialises fn per worker with an in-process mutex.
func (m *MemoryRepository) WithWorkerLock(ctx context.Context, userID uint, fn func(repo AttendanceRepository) error) error {
	m.locksMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	m.locksMu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(m)
}

// withWorksite attaches the worksite the way Preload does. Callers hold m.mu.
func (m *MemoryRepository) withWorksite(r models.AttendanceRecord) models.AttendanceRecord {
	if r.WorksiteID != nil {
		if w, ok := m.worksites[*r.WorksiteID]; ok {
			r.Worksite = &w
		}
	}
	return r
}

// newer orders records by timestamp, then by insertion id.
func newer(a, b *models.AttendanceRecord) bool {
	if a.Timestamp.Equal(b.Timestamp) {
		return a.ID > b.ID
	}
	return a.Timestamp.After(b.Timestamp)
}
