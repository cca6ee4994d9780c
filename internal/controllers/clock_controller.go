package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"soldeser/internal/attendance"
)

type ClockController struct {
	Service  *attendance.Service
	Hub      *AttendanceHub
	Location *time.Location
}

func NewClockController(svc *attendance.Service, hub *AttendanceHub, loc *time.Location) *ClockController {
	return &ClockController{Service: svc, Hub: hub, Location: loc}
}

type positionInput struct {
	Latitude       *float64       `json:"latitude" binding:"required"`
	Longitude      *float64       `json:"longitude" binding:"required"`
	Accuracy       *float64       `json:"accuracy"`
	Timestamp      *time.Time     `json:"timestamp"`
	DeviceRecordID string         `json:"device_record_id"`
	DeviceInfo     datatypes.JSON `json:"device_info"`
}

func (p positionInput) position() attendance.Position {
	return attendance.Position{Latitude: *p.Latitude, Longitude: *p.Longitude, Accuracy: p.Accuracy}
}

type clockInInput struct {
	positionInput
	WorksiteID *uint `json:"worksite_id"`
}

type clockOutInput struct {
	positionInput
	Notes string `json:"notes"`
}

func (cc *ClockController) ClockIn(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input clockInInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
		return
	}

	res, err := cc.Service.ClockIn(c.Request.Context(), attendance.ClockInRequest{
		WorkerID:       userID,
		Position:       input.position(),
		WorksiteID:     input.WorksiteID,
		Timestamp:      input.Timestamp,
		DeviceRecordID: input.DeviceRecordID,
		DeviceInfo:     input.DeviceInfo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	} else {
		cc.Hub.Publish(eventFromRecord("clock_in", res.Record))
	}
	c.JSON(status, gin.H{
		"message":   "Clock-in recorded",
		"record":    res.Record,
		"worksite":  res.Worksite,
		"geofence":  res.Geofence,
		"warnings":  res.Advisories,
		"duplicate": res.Duplicate,
	})
}

func (cc *ClockController) ClockOut(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input clockOutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
		return
	}

	res, err := cc.Service.ClockOut(c.Request.Context(), attendance.ClockOutRequest{
		WorkerID:       userID,
		Position:       input.position(),
		Notes:          input.Notes,
		Timestamp:      input.Timestamp,
		DeviceRecordID: input.DeviceRecordID,
		DeviceInfo:     input.DeviceInfo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	} else {
		cc.Hub.Publish(eventFromRecord("clock_out", res.Record))
	}
	body := gin.H{
		"message":   "Clock-out recorded",
		"record":    res.Record,
		"geofence":  res.Geofence,
		"warnings":  res.Advisories,
		"duplicate": res.Duplicate,
	}
	if res.Session != nil {
		session := *res.Session
		session.Hours = attendance.RoundHours(session.Hours)
		body["summary"] = session
	}
	c.JSON(status, body)
}

func (cc *ClockController) Status(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	st, err := cc.Service.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// History serves GET /clock/history?start_date=&end_date=&page=&limit=. Dates are
// YYYY-MM-DD in the server's timezone; the default range is the last 30 days.
func (cc *ClockController) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	now := cc.Service.Now().In(cc.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, cc.Location)
	from, to := today.AddDate(0, 0, -30), today.AddDate(0, 0, 1)

	var err error
	if raw := c.Query("start_date"); raw != "" {
		if from, err = time.ParseInLocation("2006-01-02", raw, cc.Location); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD", "code": "VALIDATION_ERROR"})
			return
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		end, err := time.ParseInLocation("2006-01-02", raw, cc.Location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD", "code": "VALIDATION_ERROR"})
			return
		}
		to = end.AddDate(0, 0, 1)
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	history, err := cc.Service.History(c.Request.Context(), userID, from, to, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	history.Summary.TotalHours = attendance.RoundHours(history.Summary.TotalHours)
	c.JSON(http.StatusOK, history)
}

func (cc *ClockController) Today(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	day, err := cc.Service.Today(c.Request.Context(), userID, cc.Location)
	if err != nil {
		respondError(c, err)
		return
	}
	day.Summary.TotalHours = attendance.RoundHours(day.Summary.TotalHours)
	c.JSON(http.StatusOK, day)
}
