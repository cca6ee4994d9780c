// Package attendance implements the clock-in/clock-out state machine, offline
// reconciliation and session aggregation on top of a store.AttendanceRepository.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"soldeser/internal/geo"
	"soldeser/internal/models"
	"soldeser/internal/store"
)

// Position is a GPS fix as reported by the device.
type Position struct {
	Latitude  float64  `json:"latitude" validate:"latitude"`
	Longitude float64  `json:"longitude" validate:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
}

// Point drops the accuracy.
func (p Position) Point() geo.Point {
	return geo.Point{Latitude: p.Latitude, Longitude: p.Longitude}
}

// State is the derived clock state of a worker.
type State string

const (
	StateClockedOut State = "CLOCKED_OUT"
	StateClockedIn  State = "CLOCKED_IN"
)

// StateOf folds the most recent record into a state. No record means clocked out.
func StateOf(last *models.AttendanceRecord) State {
	if last != nil && last.Kind == models.ClockIn {
		return StateClockedIn
	}
	return StateClockedOut
}

type ClockInRequest struct {
	WorkerID   uint `validate:"required"`
	Position   Position
	WorksiteID *uint
	Timestamp  *time.Time // client time for delayed submissions; server time when nil

	DeviceRecordID string `validate:"max=128"`
	DeviceInfo     datatypes.JSON
}

type ClockOutRequest struct {
	WorkerID  uint `validate:"required"`
	Position  Position
	Notes     string `validate:"max=500"`
	Timestamp *time.Time

	DeviceRecordID string `validate:"max=128"`
	DeviceInfo     datatypes.JSON
}

type ClockInResult struct {
	Record     *models.AttendanceRecord `json:"record"`
	Worksite   *models.Worksite         `json:"worksite,omitempty"`
	Geofence   *geo.Verdict             `json:"geofence,omitempty"`
	Advisories []string                 `json:"warnings"`
	Duplicate  bool                     `json:"duplicate"`
}

// SessionSummary describes the session closed by a clock-out.
type SessionSummary struct {
	EntryRecordID uint      `json:"entry_record_id"`
	Entry         time.Time `json:"entry_time"`
	Exit          time.Time `json:"exit_time"`
	Hours         float64   `json:"hours_worked"`
	WorksiteID    *uint     `json:"worksite_id,omitempty"`
	WorksiteName  string    `json:"worksite,omitempty"`
}

type ClockOutResult struct {
	Record     *models.AttendanceRecord `json:"record"`
	Geofence   *geo.Verdict             `json:"geofence,omitempty"`
	Advisories []string                 `json:"warnings"`
	Session    *SessionSummary          `json:"summary,omitempty"` // nil for replayed requests
	Duplicate  bool                     `json:"duplicate"`
}

// Service is the attendance engine. It keeps no per-worker state of its own:
// the clock state is always read back from the repository.
type Service struct {
	Repo   store.AttendanceRepository
	Logger *logrus.Logger
	// Bounds is the expected operating area; fixes outside it get an advisory. Zero disables the check.
	Bounds geo.Bounds
	Now    func() time.Time

	locks    *workerLocks
	validate *validator.Validate
}

// NewService builds a Service with server time and the default operating area.
func NewService(repo store.AttendanceRepository, logger *logrus.Logger) *Service {
	return &Service{
		Repo:     repo,
		Logger:   logger,
		Bounds:   geo.SpainBounds,
		Now:      time.Now,
		locks:    newWorkerLocks(),
		validate: validator.New(),
	}
}

// ClockIn opens a session for the worker. Being outside the geofence only produces an advisory.
func (s *Service) ClockIn(ctx context.Context, req ClockInRequest) (*ClockInResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError("clock-in: %v", err)
	}

	unlock := s.locks.lock(req.WorkerID)
	defer unlock()

	var result *ClockInResult
	err := s.Repo.WithWorkerLock(ctx, req.WorkerID, func(repo store.AttendanceRepository) error {
		if req.DeviceRecordID != "" {
			existing, err := s.replayed(ctx, repo, req.WorkerID, req.DeviceRecordID, models.ClockIn)
			if err != nil {
				return err
			}
			if existing != nil {
				result = &ClockInResult{Record: existing, Worksite: existing.Worksite, Advisories: []string{}, Duplicate: true}
				return nil
			}
		}

		last, err := repo.FindMostRecentRecord(ctx, req.WorkerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return storeFailure("load clock state", err)
		}
		if StateOf(last) == StateClockedIn {
			return &AlreadyClockedInError{Open: last}
		}

		point := req.Position.Point()
		worksite, advisories, err := s.resolveWorksite(ctx, repo, req.WorkerID, req.WorksiteID, point)
		if err != nil {
			return err
		}
		advisories = append(advisories, s.boundsAdvisory(req.WorkerID, point)...)

		record := s.newRecord(req.WorkerID, models.ClockIn, req.Position, req.Timestamp, req.DeviceRecordID, req.DeviceInfo)
		if err := checkOrder(record, last); err != nil {
			return err
		}
		verdict := applyGeofence(record, worksite, point)
		if verdict != nil && !verdict.IsWithin {
			advisories = append(advisories, outsideAdvisory(*verdict, *worksite))
		}

		if err := repo.CreateRecord(ctx, record); err != nil {
			return createFailure("create clock-in", err)
		}
		record.Worksite = worksite

		result = &ClockInResult{Record: record, Worksite: worksite, Geofence: verdict, Advisories: advisories}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConstraintViolation) && req.DeviceRecordID != "" {
			return s.clockInRaceLoser(ctx, req)
		}
		return nil, s.lockError(req.WorkerID, err)
	}

	if !result.Duplicate {
		s.logRecord("Clock-in recorded", result.Record, result.Geofence)
	}
	return result, nil
}

// ClockOut closes the open session. The worksite is inherited from the open CLOCK_IN.
func (s *Service) ClockOut(ctx context.Context, req ClockOutRequest) (*ClockOutResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError("clock-out: %v", err)
	}

	unlock := s.locks.lock(req.WorkerID)
	defer unlock()

	var result *ClockOutResult
	err := s.Repo.WithWorkerLock(ctx, req.WorkerID, func(repo store.AttendanceRepository) error {
		if req.DeviceRecordID != "" {
			existing, err := s.replayed(ctx, repo, req.WorkerID, req.DeviceRecordID, models.ClockOut)
			if err != nil {
				return err
			}
			if existing != nil {
				result = &ClockOutResult{Record: existing, Advisories: []string{}, Duplicate: true}
				return nil
			}
		}

		open, err := repo.FindMostRecentRecord(ctx, req.WorkerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return storeFailure("load clock state", err)
		}
		if StateOf(open) != StateClockedIn {
			return ErrNotClockedIn
		}

		point := req.Position.Point()
		advisories := append([]string{}, s.boundsAdvisory(req.WorkerID, point)...)

		record := s.newRecord(req.WorkerID, models.ClockOut, req.Position, req.Timestamp, req.DeviceRecordID, req.DeviceInfo)
		if err := checkOrder(record, open); err != nil {
			return err
		}
		record.Notes = req.Notes
		record.WorksiteID = open.WorksiteID

		var verdict *geo.Verdict
		if open.Worksite != nil {
			verdict = applyGeofence(record, open.Worksite, point)
			if !verdict.IsWithin {
				advisories = append(advisories, outsideAdvisory(*verdict, *open.Worksite))
			}
		}

		if err := repo.CreateRecord(ctx, record); err != nil {
			return createFailure("create clock-out", err)
		}
		record.Worksite = open.Worksite

		session := &SessionSummary{
			EntryRecordID: open.ID,
			Entry:         open.Timestamp,
			Exit:          record.Timestamp,
			Hours:         record.Timestamp.Sub(open.Timestamp).Hours(),
			WorksiteID:    open.WorksiteID,
		}
		if open.Worksite != nil {
			session.WorksiteName = open.Worksite.Name
		}

		result = &ClockOutResult{Record: record, Geofence: verdict, Advisories: advisories, Session: session}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConstraintViolation) && req.DeviceRecordID != "" {
			existing, lookupErr := s.Repo.FindByIdempotencyKey(ctx, req.DeviceRecordID)
			if lookupErr != nil {
				return nil, storeFailure("load replayed clock-out", lookupErr)
			}
			return &ClockOutResult{Record: existing, Advisories: []string{}, Duplicate: true}, nil
		}
		return nil, s.lockError(req.WorkerID, err)
	}

	if !result.Duplicate {
		s.logRecord("Clock-out recorded", result.Record, result.Geofence)
	}
	return result, nil
}

// replayed returns the record already stored under key, if any. A key reused for a
// different worker or event kind is a client bug and is rejected.
func (s *Service) replayed(ctx context.Context, repo store.AttendanceRepository, workerID uint, key string, kind models.ClockKind) (*models.AttendanceRecord, error) {
	existing, err := repo.FindByIdempotencyKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeFailure("look up device record id", err)
	}
	if existing.UserID != workerID || existing.Kind != kind {
		return nil, validationError("device record id %q already used by another event", key)
	}
	return existing, nil
}

// clockInRaceLoser handles a unique-key rejection that slipped past replayed, e.g. from
// another server instance. The stored record is returned as a replay.
func (s *Service) clockInRaceLoser(ctx context.Context, req ClockInRequest) (*ClockInResult, error) {
	existing, err := s.Repo.FindByIdempotencyKey(ctx, req.DeviceRecordID)
	if err != nil {
		return nil, storeFailure("load replayed clock-in", err)
	}
	return &ClockInResult{Record: existing, Worksite: existing.Worksite, Advisories: []string{}, Duplicate: true}, nil
}

// resolveWorksite picks the worksite for a clock-in: the explicit one if it is active,
// otherwise the nearest active assignment, otherwise none.
func (s *Service) resolveWorksite(ctx context.Context, repo store.AttendanceRepository, workerID uint, explicit *uint, point geo.Point) (*models.Worksite, []string, error) {
	advisories := []string{}
	if explicit != nil {
		w, err := repo.FindWorksiteByID(ctx, *explicit)
		switch {
		case err == nil:
			return w, advisories, nil
		case errors.Is(err, store.ErrNotFound):
			s.Logger.WithError(ErrWorksiteUnavailable).WithFields(logrus.Fields{
				"worker_id":   workerID,
				"worksite_id": *explicit,
			}).Warn("Requested worksite unavailable, falling back to nearest assignment")
			advisories = append(advisories, fmt.Sprintf("Worksite %d is not available; the nearest assigned worksite was used", *explicit))
		default:
			return nil, nil, storeFailure("load worksite", err)
		}
	}

	candidates, err := repo.FindActiveAssignments(ctx, workerID)
	if err != nil {
		return nil, nil, storeFailure("load assignments", err)
	}
	if m := geo.Nearest(point, candidates); m != nil {
		w := m.Worksite
		return &w, advisories, nil
	}
	return nil, advisories, nil
}

func (s *Service) boundsAdvisory(workerID uint, p geo.Point) []string {
	if s.Bounds.IsZero() || s.Bounds.Contains(p) {
		return nil
	}
	s.Logger.WithFields(logrus.Fields{
		"worker_id": workerID,
		"latitude":  p.Latitude,
		"longitude": p.Longitude,
	}).Warn("Suspicious coordinates outside the operating area")
	return []string{"Your location is outside the usual operating area"}
}

func (s *Service) newRecord(workerID uint, kind models.ClockKind, pos Position, ts *time.Time, key string, info datatypes.JSON) *models.AttendanceRecord {
	now := s.Now()
	at := now
	if ts != nil {
		at = *ts
	}
	record := &models.AttendanceRecord{
		UserID:     workerID,
		Kind:       kind,
		Timestamp:  at.UTC(),
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		Accuracy:   pos.Accuracy,
		DeviceInfo: info,
		SyncStatus: models.SyncSynced,
		SyncedAt:   &now,
	}
	if key != "" {
		k := key
		record.DeviceRecordID = &k
	}
	return record
}

// checkOrder rejects a record timestamped before the worker's latest one, which
// would leave the derived state unchanged.
func checkOrder(record, last *models.AttendanceRecord) error {
	if last != nil && record.Timestamp.Before(last.Timestamp) {
		return validationError("timestamp %s precedes last record at %s",
			record.Timestamp.Format(time.RFC3339), last.Timestamp.Format(time.RFC3339))
	}
	return nil
}

func (s *Service) logRecord(msg string, record *models.AttendanceRecord, verdict *geo.Verdict) {
	fields := logrus.Fields{
		"worker_id": record.UserID,
		"record_id": record.ID,
		"type":      record.Kind,
	}
	if record.WorksiteID != nil {
		fields["worksite_id"] = *record.WorksiteID
	}
	if verdict != nil {
		fields["within_geofence"] = verdict.IsWithin
		fields["distance_m"] = verdict.DistanceMeters
	}
	s.Logger.WithFields(fields).Info(msg)
}

// lockError normalises errors coming out of a worker-locked section.
func (s *Service) lockError(workerID uint, err error) error {
	switch {
	case errors.Is(err, ErrAlreadyClockedIn),
		errors.Is(err, ErrNotClockedIn),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConstraintViolation),
		errors.Is(err, ErrStoreFailure):
		return err
	case errors.Is(err, store.ErrNotFound):
		return validationError("unknown worker %d", workerID)
	default:
		return storeFailure("worker lock", err)
	}
}

// applyGeofence stores the verdict for w on record. It returns nil when w is nil.
func applyGeofence(record *models.AttendanceRecord, w *models.Worksite, p geo.Point) *geo.Verdict {
	if w == nil {
		return nil
	}
	v := geo.Evaluate(p, *w)
	id := w.ID
	within := v.IsWithin
	distance := v.DistanceMeters
	record.WorksiteID = &id
	record.IsWithinGeofence = &within
	record.DistanceFromSite = &distance
	return &v
}

func outsideAdvisory(v geo.Verdict, w models.Worksite) string {
	return fmt.Sprintf("You are %dm from %s (maximum allowed: %.0fm)", v.DistanceMeters, w.Name, w.RadiusMeters)
}

func createFailure(op string, err error) error {
	if errors.Is(err, store.ErrDuplicateKey) {
		return fmt.Errorf("%s: %w", op, ErrConstraintViolation)
	}
	return storeFailure(op, err)
}
