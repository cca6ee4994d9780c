package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"soldeser/internal/models"
)

// AttendanceDao implements AttendanceRepository on PostgreSQL through GORM.
type AttendanceDao struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Now    func() time.Time
}

// NewAttendanceDao wires a DAO around an open GORM handle.
func NewAttendanceDao(db *gorm.DB, logger *logrus.Logger) *AttendanceDao {
	return &AttendanceDao{DB: db, Logger: logger, Now: time.Now}
}

func (dao *AttendanceDao) FindMostRecentRecord(ctx context.Context, userID uint) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := dao.DB.WithContext(ctx).
		Preload("Worksite").
		Where("user_id = ?", userID).
		Order("recorded_at desc, id desc").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		dao.Logger.WithError(err).WithField("user_id", userID).Error("Failed to fetch most recent attendance record")
		return nil, fmt.Errorf("find most recent record: %w", err)
	}
	return &record, nil
}

func (dao *AttendanceDao) FindByIdempotencyKey(ctx context.Context, key string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := dao.DB.WithContext(ctx).
		Preload("Worksite").
		Where("device_record_id = ?", key).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		dao.Logger.WithError(err).WithField("device_record_id", key).Error("Failed to look up record by device record id")
		return nil, fmt.Errorf("find by device record id: %w", err)
	}
	return &record, nil
}

func (dao *AttendanceDao) CreateRecord(ctx context.Context, record *models.AttendanceRecord) error {
	if err := dao.DB.WithContext(ctx).Omit(clause.Associations).Create(record).Error; err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("create record: %w", ErrDuplicateKey)
		}
		dao.Logger.WithFields(logrus.Fields{
			"user_id": record.UserID,
			"type":    record.Kind,
			"error":   err.Error(),
		}).Error("Failed to create attendance record")
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

func (dao *AttendanceDao) FindActiveAssignments(ctx context.Context, userID uint) ([]models.Worksite, error) {
	now := dao.Now()
	var worksites []models.Worksite
	err := dao.DB.WithContext(ctx).
		Joins("JOIN worksite_assignments a ON a.worksite_id = worksites.id AND a.deleted_at IS NULL").
		Where("a.user_id = ? AND a.is_active = ? AND worksites.is_active = ?", userID, true, true).
		Where("a.start_date <= ? AND (a.end_date IS NULL OR a.end_date >= ?)", now, now).
		Order("a.id asc").
		Find(&worksites).Error
	if err != nil {
		dao.Logger.WithError(err).WithField("user_id", userID).Error("Failed to load active assignments")
		return nil, fmt.Errorf("find active assignments: %w", err)
	}
	return worksites, nil
}

func (dao *AttendanceDao) FindWorksiteByID(ctx context.Context, id uint) (*models.Worksite, error) {
	var worksite models.Worksite
	err := dao.DB.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&worksite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find worksite: %w", err)
	}
	return &worksite, nil
}

func (dao *AttendanceDao) ListRecordsInRange(ctx context.Context, userID uint, from, to time.Time) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := dao.DB.WithContext(ctx).
		Preload("Worksite").
		Where("user_id = ? AND recorded_at >= ? AND recorded_at < ?", userID, from, to).
		Order("recorded_at asc, id asc").
		Find(&records).Error
	if err != nil {
		dao.Logger.WithError(err).WithField("user_id", userID).Error("Failed to list attendance records")
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

func (dao *AttendanceDao) ListOpenRecords(ctx context.Context, openedBefore time.Time) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := dao.DB.WithContext(ctx).
		Preload("Worksite").
		Preload("User").
		Where("kind = ? AND recorded_at < ?", models.ClockIn, openedBefore).
		Where(`NOT EXISTS (
			SELECT 1 FROM attendance_records n
			WHERE n.user_id = attendance_records.user_id
			  AND n.deleted_at IS NULL
			  AND (n.recorded_at > attendance_records.recorded_at
			       OR (n.recorded_at = attendance_records.recorded_at AND n.id > attendance_records.id)))`).
		Order("recorded_at asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list open records: %w", err)
	}
	return records, nil
}

// WithWorkerLock runs fn inside a transaction that holds a row lock on the worker's
// user row, so concurrent clock requests for the same worker queue behind each other
// even across server instances.
func (dao *AttendanceDao) WithWorkerLock(ctx context.Context, userID uint, fn func(repo AttendanceRepository) error) error {
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("worker %d: %w", userID, ErrNotFound)
			}
			return fmt.Errorf("lock worker %d: %w", userID, err)
		}
		return fn(&AttendanceDao{DB: tx, Logger: dao.Logger, Now: dao.Now})
	})
}

func (dao *AttendanceDao) ListRecords(ctx context.Context, f RecordFilter) ([]models.AttendanceRecord, error) {
	q := dao.DB.WithContext(ctx).
		Preload("Worksite").
		Preload("User").
		Where("recorded_at >= ? AND recorded_at < ?", f.From, f.To)
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.WorksiteID != 0 {
		q = q.Where("worksite_id = ?", f.WorksiteID)
	}

	var records []models.AttendanceRecord
	if err := q.Order("user_id asc, recorded_at asc, id asc").Find(&records).Error; err != nil {
		dao.Logger.WithError(err).WithFields(logrus.Fields{
			"from":        f.From,
			"to":          f.To,
			"worksite_id": f.WorksiteID,
		}).Error("Failed to list attendance records for report")
		return nil, fmt.Errorf("list report records: %w", err)
	}
	return records, nil
}

func (dao *AttendanceDao) ListActiveWorkers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := dao.DB.WithContext(ctx).
		Where("role = ? AND is_active = ?", models.RoleWorker, true).
		Order("id asc").
		Find(&users).Error
	if err != nil {
		dao.Logger.WithError(err).Error("Failed to list active workers")
		return nil, fmt.Errorf("list active workers: %w", err)
	}
	return users, nil
}
