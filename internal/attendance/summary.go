package attendance

import (
	"math"
	"time"

	"soldeser/internal/models"
)

// Session is one CLOCK_IN paired with the CLOCK_OUT that closed it.
type Session struct {
	EntryID      uint      `json:"entry_id"`
	ExitID       uint      `json:"exit_id"`
	Entry        time.Time `json:"entry"`
	Exit         time.Time `json:"exit"`
	Hours        float64   `json:"hours"`
	WorksiteID   *uint     `json:"worksite_id,omitempty"`
	WorksiteName string    `json:"worksite,omitempty"`
}

type Summary struct {
	TotalHours   float64   `json:"total_hours"`
	SessionCount int       `json:"session_count"`
	Sessions     []Session `json:"sessions"`
}

// Summarize pairs every CLOCK_IN with the first CLOCK_OUT after it. records must be in
// ascending timestamp order. An entry with no later exit contributes nothing. Two
// entries in a row both pair with the same exit, mirroring what the raw log says; the
// online path never produces that sequence.
func Summarize(records []models.AttendanceRecord) Summary {
	summary := Summary{Sessions: []Session{}}

	// nextOut[i] is the index of the first CLOCK_OUT at or after i, or -1.
	nextOut := make([]int, len(records))
	next := -1
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Kind == models.ClockOut {
			next = i
		}
		nextOut[i] = next
	}

	for i, in := range records {
		if in.Kind != models.ClockIn || i+1 >= len(records) || nextOut[i+1] < 0 {
			continue
		}
		out := records[nextOut[i+1]]
		session := Session{
			EntryID:    in.ID,
			ExitID:     out.ID,
			Entry:      in.Timestamp,
			Exit:       out.Timestamp,
			Hours:      out.Timestamp.Sub(in.Timestamp).Hours(),
			WorksiteID: in.WorksiteID,
		}
		if in.Worksite != nil {
			session.WorksiteName = in.Worksite.Name
		}
		summary.Sessions = append(summary.Sessions, session)
		summary.TotalHours += session.Hours
	}

	summary.SessionCount = len(summary.Sessions)
	return summary
}

// RoundHours rounds to two decimals for display.
func RoundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
