package attendance

import (
	"context"
	"errors"
	"time"

	"soldeser/internal/models"
	"soldeser/internal/store"
)

type CurrentSession struct {
	Entry       time.Time        `json:"entry_time"`
	HoursWorked float64          `json:"hours_worked"`
	Worksite    *models.Worksite `json:"worksite,omitempty"`
}

type StatusResult struct {
	State          State                    `json:"state"`
	IsClockedIn    bool                     `json:"is_clocked_in"`
	LastRecord     *models.AttendanceRecord `json:"last_record"`
	CurrentSession *CurrentSession          `json:"current_session"`
}

// Status reports the worker's derived clock state and, when clocked in, the open session.
func (s *Service) Status(ctx context.Context, workerID uint) (*StatusResult, error) {
	last, err := s.Repo.FindMostRecentRecord(ctx, workerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, storeFailure("load clock state", err)
	}

	state := StateOf(last)
	status := &StatusResult{State: state, IsClockedIn: state == StateClockedIn, LastRecord: last}
	if status.IsClockedIn {
		status.CurrentSession = &CurrentSession{
			Entry:       last.Timestamp,
			HoursWorked: RoundHours(s.Now().Sub(last.Timestamp).Hours()),
			Worksite:    last.Worksite,
		}
	}
	return status, nil
}

type HistoryPage struct {
	Records    []models.AttendanceRecord `json:"records"`
	Page       int                       `json:"page"`
	Limit      int                       `json:"limit"`
	Total      int                       `json:"total"`
	TotalPages int                       `json:"total_pages"`
	Summary    Summary                   `json:"summary"`
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// History returns one page of the worker's records in [from, to), newest first. The
// summary always covers the whole range, not just the page.
func (s *Service) History(ctx context.Context, workerID uint, from, to time.Time, page, limit int) (*HistoryPage, error) {
	if !from.Before(to) {
		return nil, validationError("history: from must be before to")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := s.Repo.ListRecordsInRange(ctx, workerID, from, to)
	if err != nil {
		return nil, storeFailure("list records", err)
	}

	result := &HistoryPage{
		Records: []models.AttendanceRecord{},
		Page:    page,
		Limit:   limit,
		Total:   len(records),
		Summary: Summarize(records),
	}
	result.TotalPages = (result.Total + limit - 1) / limit

	// Pages past the end are empty; page is bounded before it is multiplied.
	if page > result.TotalPages {
		return result, nil
	}
	start := (page - 1) * limit
	for i := len(records) - 1 - start; i >= 0 && len(result.Records) < limit; i-- {
		result.Records = append(result.Records, records[i])
	}
	return result, nil
}

type DayReport struct {
	Date    string                    `json:"date"`
	Records []models.AttendanceRecord `json:"records"`
	Summary Summary                   `json:"summary"`
}

// Day returns the worker's records for the calendar day containing at, in at's location,
// ascending.
func (s *Service) Day(ctx context.Context, workerID uint, at time.Time) (*DayReport, error) {
	start := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	end := start.AddDate(0, 0, 1)

	records, err := s.Repo.ListRecordsInRange(ctx, workerID, start, end)
	if err != nil {
		return nil, storeFailure("list records", err)
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	return &DayReport{
		Date:    start.Format("2006-01-02"),
		Records: records,
		Summary: Summarize(records),
	}, nil
}

// Today is Day for the current server time in loc.
func (s *Service) Today(ctx context.Context, workerID uint, loc *time.Location) (*DayReport, error) {
	if loc == nil {
		loc = time.Local
	}
	return s.Day(ctx, workerID, s.Now().In(loc))
}

// StaleSessions lists open CLOCK_IN records older than maxAge: sessions a worker most
// likely forgot to close.
func (s *Service) StaleSessions(ctx context.Context, maxAge time.Duration) ([]models.AttendanceRecord, error) {
	records, err := s.Repo.ListOpenRecords(ctx, s.Now().Add(-maxAge))
	if err != nil {
		return nil, storeFailure("list open records", err)
	}
	return records, nil
}
