package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"soldeser/internal/attendance"
	"soldeser/internal/export"
	"soldeser/internal/store"
)

type ExportController struct {
	Reports  store.ReportRepository
	Location *time.Location
	Now      func() time.Time
}

func NewExportController(reports store.ReportRepository, loc *time.Location) *ExportController {
	return &ExportController{Reports: reports, Location: loc, Now: time.Now}
}

// reportFilter reads start_date, end_date (inclusive, YYYY-MM-DD), user_id and
// worksite_id. Without dates it covers the current month.
func (ec *ExportController) reportFilter(c *gin.Context) (store.RecordFilter, error) {
	now := ec.Now().In(ec.Location)
	f := store.RecordFilter{
		From: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, ec.Location),
	}
	f.To = f.From.AddDate(0, 1, 0)

	if raw := c.Query("start_date"); raw != "" {
		from, err := time.ParseInLocation("2006-01-02", raw, ec.Location)
		if err != nil {
			return f, fmt.Errorf("start_date must be YYYY-MM-DD")
		}
		f.From = from
	}
	if raw := c.Query("end_date"); raw != "" {
		end, err := time.ParseInLocation("2006-01-02", raw, ec.Location)
		if err != nil {
			return f, fmt.Errorf("end_date must be YYYY-MM-DD")
		}
		f.To = end.AddDate(0, 0, 1)
	}
	if !f.From.Before(f.To) {
		return f, fmt.Errorf("start_date must not be after end_date")
	}

	for param, dst := range map[string]*uint{"user_id": &f.UserID, "worksite_id": &f.WorksiteID} {
		if raw := c.Query(param); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return f, fmt.Errorf("invalid %s", param)
			}
			*dst = uint(id)
		}
	}
	return f, nil
}

// ExportTimesheet serves GET /export/clock-records/xlsx.
func (ec *ExportController) ExportTimesheet(c *gin.Context) {
	filter, err := ec.reportFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
		return
	}

	records, err := ec.Reports.ListRecords(c.Request.Context(), filter)
	if err != nil {
		respondError(c, fmt.Errorf("list records: %w: %w", attendance.ErrStoreFailure, err))
		return
	}

	book, err := export.Timesheet(records, ec.Location)
	if err != nil {
		respondError(c, err)
		return
	}
	defer book.Close()

	requester, _ := c.Get("user_id")
	logrus.WithFields(logrus.Fields{
		"user_id":      requester,
		"record_count": len(records),
		"from":         filter.From.Format("2006-01-02"),
		"to":           filter.To.Format("2006-01-02"),
	}).Info("Timesheet exported")

	filename := fmt.Sprintf("fichajes_%s.xlsx", ec.Now().In(ec.Location).Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := book.Write(c.Writer); err != nil {
		logrus.WithError(err).Error("Failed to stream timesheet")
	}
}
