package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"soldeser/internal/geo"
	"soldeser/internal/models"
	"soldeser/internal/store"
)

// OfflineEvent is one attendance event queued on the device while offline.
type OfflineEvent struct {
	DeviceRecordID string           `json:"device_record_id" validate:"required,max=128"`
	Kind           models.ClockKind `json:"type" validate:"oneof=CLOCK_IN CLOCK_OUT"`
	Timestamp      time.Time        `json:"timestamp"`
	Latitude       float64          `json:"latitude" validate:"latitude"`
	Longitude      float64          `json:"longitude" validate:"longitude"`
	Accuracy       *float64         `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
	DeviceInfo     datatypes.JSON   `json:"device_info,omitempty"`
}

type SyncedEvent struct {
	DeviceRecordID   string `json:"device_record_id"`
	ServerID         uint   `json:"server_id"`
	WorksiteID       *uint  `json:"worksite_id,omitempty"`
	WorksiteName     string `json:"worksite_name,omitempty"`
	IsWithinGeofence *bool  `json:"is_within_geofence"`
	DistanceFromSite *int   `json:"distance_from_site"`
}

type DuplicateEvent struct {
	DeviceRecordID string `json:"device_record_id"`
	ExistingID     uint   `json:"existing_id"`
}

type FailedEvent struct {
	DeviceRecordID string `json:"device_record_id"`
	Error          string `json:"error"`
	Retryable      bool   `json:"retryable"`
}

// ReconcileResult partitions a batch: every submitted event lands in exactly one of
// Synced, Duplicates or Errors.
type ReconcileResult struct {
	Synced     []SyncedEvent    `json:"synced"`
	Duplicates []DuplicateEvent `json:"duplicates"`
	Errors     []FailedEvent    `json:"errors"`

	// AlternationWarnings flags newly synced events of the same kind that follow each
	// other. Nothing is rejected because of them.
	AlternationWarnings []string `json:"alternation_warnings"`
}

// Total is the number of events accounted for.
func (r *ReconcileResult) Total() int {
	return len(r.Synced) + len(r.Duplicates) + len(r.Errors)
}

// reconcileBatch caches the worker's assignments for the duration of one batch.
type reconcileBatch struct {
	workerID   uint
	candidates []models.Worksite
	loaded     bool
}

// Reconcile merges offline events into the record log. Each event is handled on its own:
// a failure is recorded in Errors and the loop moves on. Resubmitting a batch is safe,
// already stored events come back as duplicates.
func (s *Service) Reconcile(ctx context.Context, workerID uint, events []OfflineEvent) (*ReconcileResult, error) {
	if workerID == 0 {
		return nil, validationError("reconcile: missing worker")
	}

	unlock := s.locks.lock(workerID)
	defer unlock()

	result := &ReconcileResult{
		Synced:              []SyncedEvent{},
		Duplicates:          []DuplicateEvent{},
		Errors:              []FailedEvent{},
		AlternationWarnings: []string{},
	}
	batch := &reconcileBatch{workerID: workerID}
	var created []*models.AttendanceRecord

	for _, ev := range events {
		record, dup, err := s.reconcileOne(ctx, batch, ev)
		switch {
		case err != nil:
			s.Logger.WithError(err).WithFields(logrus.Fields{
				"worker_id":        workerID,
				"device_record_id": ev.DeviceRecordID,
			}).Warn("Offline event could not be synced")
			result.Errors = append(result.Errors, FailedEvent{
				DeviceRecordID: ev.DeviceRecordID,
				Error:          err.Error(),
				Retryable:      IsRetryable(err),
			})
		case dup != nil:
			result.Duplicates = append(result.Duplicates, *dup)
		default:
			created = append(created, record)
			synced := SyncedEvent{
				DeviceRecordID:   ev.DeviceRecordID,
				ServerID:         record.ID,
				WorksiteID:       record.WorksiteID,
				IsWithinGeofence: record.IsWithinGeofence,
				DistanceFromSite: record.DistanceFromSite,
			}
			if record.Worksite != nil {
				synced.WorksiteName = record.Worksite.Name
			}
			result.Synced = append(result.Synced, synced)
		}
	}

	result.AlternationWarnings = alternationWarnings(created)

	s.Logger.WithFields(logrus.Fields{
		"worker_id":  workerID,
		"submitted":  len(events),
		"synced":     len(result.Synced),
		"duplicates": len(result.Duplicates),
		"errors":     len(result.Errors),
	}).Info("Offline batch reconciled")
	return result, nil
}

func (s *Service) reconcileOne(ctx context.Context, batch *reconcileBatch, ev OfflineEvent) (*models.AttendanceRecord, *DuplicateEvent, error) {
	if err := s.validateEvent(ev); err != nil {
		return nil, nil, err
	}

	existing, err := s.Repo.FindByIdempotencyKey(ctx, ev.DeviceRecordID)
	switch {
	case err == nil:
		return nil, &DuplicateEvent{DeviceRecordID: ev.DeviceRecordID, ExistingID: existing.ID}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, nil, storeFailure("look up device record id", err)
	}

	if !batch.loaded {
		candidates, err := s.Repo.FindActiveAssignments(ctx, batch.workerID)
		if err != nil {
			return nil, nil, storeFailure("load assignments", err)
		}
		batch.candidates = candidates
		batch.loaded = true
	}

	point := geo.Point{Latitude: ev.Latitude, Longitude: ev.Longitude}
	var worksite *models.Worksite
	if m := geo.Nearest(point, batch.candidates); m != nil {
		w := m.Worksite
		worksite = &w
	}

	ts := ev.Timestamp
	pos := Position{Latitude: ev.Latitude, Longitude: ev.Longitude, Accuracy: ev.Accuracy}
	record := s.newRecord(batch.workerID, ev.Kind, pos, &ts, ev.DeviceRecordID, ev.DeviceInfo)
	applyGeofence(record, worksite, point)

	if err := s.Repo.CreateRecord(ctx, record); err != nil {
		if !errors.Is(err, store.ErrDuplicateKey) {
			return nil, nil, storeFailure("create record", err)
		}
		// Another request stored the same event between our lookup and insert.
		existing, lookupErr := s.Repo.FindByIdempotencyKey(ctx, ev.DeviceRecordID)
		if lookupErr != nil {
			return nil, nil, storeFailure("load duplicate", lookupErr)
		}
		return nil, &DuplicateEvent{DeviceRecordID: ev.DeviceRecordID, ExistingID: existing.ID}, nil
	}
	record.Worksite = worksite
	return record, nil, nil
}

func (s *Service) validateEvent(ev OfflineEvent) error {
	if err := s.validate.Struct(ev); err != nil {
		return validationError("event %q: %v", ev.DeviceRecordID, err)
	}
	if ev.Timestamp.IsZero() {
		return validationError("event %q: missing timestamp", ev.DeviceRecordID)
	}
	return nil
}

// alternationWarnings reports consecutive same-kind events among the records created
// by one batch, in timestamp order.
func alternationWarnings(created []*models.AttendanceRecord) []string {
	warnings := []string{}
	if len(created) < 2 {
		return warnings
	}
	ordered := make([]*models.AttendanceRecord, len(created))
	copy(ordered, created)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp.Before(ordered[j].Timestamp) })

	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if prev.Kind == cur.Kind {
			warnings = append(warnings, fmt.Sprintf("consecutive %s events: %s and %s",
				cur.Kind, deref(prev.DeviceRecordID), deref(cur.DeviceRecordID)))
		}
	}
	return warnings
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
