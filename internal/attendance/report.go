package attendance

import (
	"context"
	"time"

	"soldeser/internal/models"
)

// ActiveSession is an open session seen from a supervisor's side.
type ActiveSession struct {
	Worker           *models.User     `json:"worker,omitempty"`
	RecordID         uint             `json:"record_id"`
	Entry            time.Time        `json:"clocked_in_at"`
	HoursWorked      float64          `json:"hours_worked"`
	Latitude         float64          `json:"latitude"`
	Longitude        float64          `json:"longitude"`
	Accuracy         *float64         `json:"accuracy,omitempty"`
	Worksite         *models.Worksite `json:"worksite,omitempty"`
	IsWithinGeofence *bool            `json:"is_within_geofence"`
	DistanceFromSite *int             `json:"distance_from_site"`
}

// ActiveSessions lists every worker currently clocked in, oldest entry first.
func (s *Service) ActiveSessions(ctx context.Context) ([]ActiveSession, error) {
	now := s.Now()
	open, err := s.Repo.ListOpenRecords(ctx, now)
	if err != nil {
		return nil, storeFailure("list open sessions", err)
	}

	out := make([]ActiveSession, 0, len(open))
	for _, r := range open {
		out = append(out, ActiveSession{
			Worker:           r.User,
			RecordID:         r.ID,
			Entry:            r.Timestamp,
			HoursWorked:      RoundHours(now.Sub(r.Timestamp).Hours()),
			Latitude:         r.Latitude,
			Longitude:        r.Longitude,
			Accuracy:         r.Accuracy,
			Worksite:         r.Worksite,
			IsWithinGeofence: r.IsWithinGeofence,
			DistanceFromSite: r.DistanceFromSite,
		})
	}
	return out, nil
}

type WorkerAttendance struct {
	Worker      models.User `json:"worker"`
	Present     bool        `json:"present"`
	FirstEntry  *time.Time  `json:"first_entry"`
	LastExit    *time.Time  `json:"last_exit"`
	HoursWorked float64     `json:"hours_worked"`
	Records     int         `json:"records"`
	Worksite    string      `json:"worksite,omitempty"`
}

type AttendanceReport struct {
	Date         string             `json:"date"`
	TotalWorkers int                `json:"total_workers"`
	PresentCount int                `json:"present_count"`
	AbsentCount  int                `json:"absent_count"`
	Attendance   []WorkerAttendance `json:"attendance"`
}

// DailyAttendance builds the roll call for one day. Records must be ascending per
// worker; records of users missing from workers are ignored.
func DailyAttendance(day time.Time, workers []models.User, records []models.AttendanceRecord) *AttendanceReport {
	byWorker := make(map[uint][]models.AttendanceRecord, len(workers))
	for _, r := range records {
		byWorker[r.UserID] = append(byWorker[r.UserID], r)
	}

	report := &AttendanceReport{
		Date:         day.Format("2006-01-02"),
		TotalWorkers: len(workers),
		Attendance:   make([]WorkerAttendance, 0, len(workers)),
	}
	for _, w := range workers {
		own := byWorker[w.ID]
		row := WorkerAttendance{
			Worker:      w,
			Present:     len(own) > 0,
			HoursWorked: RoundHours(Summarize(own).TotalHours),
			Records:     len(own),
		}
		for i := range own {
			if own[i].Kind == models.ClockIn {
				row.FirstEntry = &own[i].Timestamp
				if own[i].Worksite != nil {
					row.Worksite = own[i].Worksite.Name
				}
				break
			}
		}
		for i := len(own) - 1; i >= 0; i-- {
			if own[i].Kind == models.ClockOut {
				row.LastExit = &own[i].Timestamp
				break
			}
		}

		if row.Present {
			report.PresentCount++
		} else {
			report.AbsentCount++
		}
		report.Attendance = append(report.Attendance, row)
	}
	return report
}
