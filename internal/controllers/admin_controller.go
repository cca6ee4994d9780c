package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"soldeser/internal/attendance"
	"soldeser/internal/store"
)

// AdminController serves the supervisor views across workers.
type AdminController struct {
	Service  *attendance.Service
	Reports  store.ReportRepository
	Location *time.Location
}

func NewAdminController(svc *attendance.Service, reports store.ReportRepository, loc *time.Location) *AdminController {
	return &AdminController{Service: svc, Reports: reports, Location: loc}
}

// ActiveWorkers serves GET /admin/active-workers.
func (ac *AdminController) ActiveWorkers(c *gin.Context) {
	active, err := ac.Service.ActiveSessions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active_workers": active,
		"total":          len(active),
		"server_time":    ac.Service.Now().UTC(),
	})
}

// AttendanceReport serves GET /admin/attendance-report?date=YYYY-MM-DD, today by default.
func (ac *AdminController) AttendanceReport(c *gin.Context) {
	now := ac.Service.Now().In(ac.Location)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, ac.Location)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, ac.Location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD", "code": "VALIDATION_ERROR"})
			return
		}
		day = parsed
	}

	ctx := c.Request.Context()
	workers, err := ac.Reports.ListActiveWorkers(ctx)
	if err != nil {
		respondError(c, fmt.Errorf("list workers: %w: %w", attendance.ErrStoreFailure, err))
		return
	}
	records, err := ac.Reports.ListRecords(ctx, store.RecordFilter{From: day, To: day.AddDate(0, 0, 1)})
	if err != nil {
		respondError(c, fmt.Errorf("list records: %w: %w", attendance.ErrStoreFailure, err))
		return
	}

	c.JSON(http.StatusOK, attendance.DailyAttendance(day, workers, records))
}
