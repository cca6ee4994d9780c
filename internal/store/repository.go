// Package store is the durable record store behind the attendance engine.
package store

import (
	"context"
	"errors"
	"time"

	"soldeser/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned by CreateRecord when the device record id already exists.
	ErrDuplicateKey = errors.New("duplicate device record id")
)

// AttendanceRepository defines the record store operations the attendance engine needs.
type AttendanceRepository interface {
	// FindMostRecentRecord returns the worker's latest record by timestamp, with its worksite loaded.
	FindMostRecentRecord(ctx context.Context, userID uint) (*models.AttendanceRecord, error)

	// FindByIdempotencyKey looks up a record by its client generated device record id.
	FindByIdempotencyKey(ctx context.Context, key string) (*models.AttendanceRecord, error)

	// CreateRecord persists a new record and fills in its ID. Fails with ErrDuplicateKey on key collision.
	CreateRecord(ctx context.Context, record *models.AttendanceRecord) error

	// FindActiveAssignments returns the active worksites the worker is currently assigned to, in assignment order.
	FindActiveAssignments(ctx context.Context, userID uint) ([]models.Worksite, error)

	// FindWorksiteByID returns the worksite only if it exists and is active.
	FindWorksiteByID(ctx context.Context, id uint) (*models.Worksite, error)

	// ListRecordsInRange returns records with from <= timestamp < to, ascending by timestamp.
	ListRecordsInRange(ctx context.Context, userID uint, from, to time.Time) ([]models.AttendanceRecord, error)

	// ListOpenRecords returns, for every worker whose latest record is a CLOCK_IN older than
	// openedBefore, that CLOCK_IN record with its worker and worksite loaded.
	ListOpenRecords(ctx context.Context, openedBefore time.Time) ([]models.AttendanceRecord, error)

	// WithWorkerLock runs fn while holding an exclusive lock on the worker. Calls made
	// through the repository passed to fn take part in the same atomic section.
	WithWorkerLock(ctx context.Context, userID uint, fn func(repo AttendanceRepository) error) error
}

// RecordFilter narrows a report query. Zero IDs match everything.
type RecordFilter struct {
	From       time.Time
	To         time.Time
	UserID     uint
	WorksiteID uint
}

// ReportRepository serves supervisor views and exports across workers.
type ReportRepository interface {
	// ListRecords returns matching records with worker and worksite loaded, ordered by
	// worker, then timestamp.
	ListRecords(ctx context.Context, f RecordFilter) ([]models.AttendanceRecord, error)

	// ListActiveWorkers returns active users with the WORKER role, ordered by id.
	ListActiveWorkers(ctx context.Context) ([]models.User, error)
}
