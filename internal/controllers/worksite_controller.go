package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"soldeser/internal/attendance"
	"soldeser/internal/geo"
	"soldeser/internal/models"
	"soldeser/internal/store"
)

const (
	minRadiusMeters = 10
	maxRadiusMeters = 1000
)

type WorksiteController struct {
	DB            *gorm.DB
	Reports       store.ReportRepository
	Location      *time.Location
	DefaultRadius float64
}

func NewWorksiteController(db *gorm.DB, reports store.ReportRepository, loc *time.Location, defaultRadius float64) *WorksiteController {
	return &WorksiteController{DB: db, Reports: reports, Location: loc, DefaultRadius: defaultRadius}
}

type worksiteInput struct {
	Name         string          `json:"name" binding:"required,min=2,max=200"`
	Address      string          `json:"address"`
	City         string          `json:"city"`
	Latitude     *float64        `json:"latitude" binding:"omitempty,latitude"`
	Longitude    *float64        `json:"longitude" binding:"omitempty,longitude"`
	Location     json.RawMessage `json:"location"` // GeoJSON Point, alternative to latitude/longitude
	RadiusMeters *float64        `json:"radius_meters"`
	StartDate    *time.Time      `json:"start_date"`
	EndDate      *time.Time      `json:"end_date"`
}

type worksiteUpdateInput struct {
	Name         *string    `json:"name" binding:"omitempty,min=2,max=200"`
	Address      *string    `json:"address"`
	City         *string    `json:"city"`
	Latitude     *float64   `json:"latitude" binding:"omitempty,latitude"`
	Longitude    *float64   `json:"longitude" binding:"omitempty,longitude"`
	RadiusMeters *float64   `json:"radius_meters"`
	IsActive     *bool      `json:"is_active"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

type assignmentInput struct {
	UserID    uint       `json:"user_id" binding:"required"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// resolveCenter takes the worksite center from the GeoJSON location when present,
// otherwise from latitude/longitude.
func resolveCenter(location json.RawMessage, lat, lng *float64) (geo.Point, error) {
	if len(location) > 0 && string(location) != "null" {
		return geo.PointFromGeoJSON(string(location))
	}
	if lat == nil || lng == nil {
		return geo.Point{}, errors.New("latitude and longitude (or a GeoJSON location) are required")
	}
	p := geo.Point{Latitude: *lat, Longitude: *lng}
	if !geo.ValidCoordinates(p) {
		return geo.Point{}, errors.New("invalid coordinates")
	}
	return p, nil
}

func checkRadius(r float64) error {
	if r < minRadiusMeters || r > maxRadiusMeters {
		return fmt.Errorf("radius_meters must be between %d and %d", minRadiusMeters, maxRadiusMeters)
	}
	return nil
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return 0, false
	}
	return uint(id), true
}

func (wc *WorksiteController) dbError(c *gin.Context, op string, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "worksite not found"})
		return
	}
	respondError(c, fmt.Errorf("%s: %w: %w", op, attendance.ErrStoreFailure, err))
}

// ListWorksites serves GET /worksites?is_active=&city=. Workers only see the worksites
// they are assigned to.
func (wc *WorksiteController) ListWorksites(c *gin.Context) {
	q := wc.DB.WithContext(c.Request.Context()).Model(&models.Worksite{})
	if raw := c.Query("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "is_active must be true or false"})
			return
		}
		q = q.Where("is_active = ?", active)
	}
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		q = q.Where("city ILIKE ?", "%"+city+"%")
	}
	if c.GetString("role") == models.RoleWorker {
		userID, _ := c.Get("user_id")
		q = q.Where("id IN (?)", wc.DB.Model(&models.WorksiteAssignment{}).
			Select("worksite_id").
			Where("user_id = ? AND is_active = ?", userID, true))
	}

	var worksites []models.Worksite
	if err := q.Order("name asc").Find(&worksites).Error; err != nil {
		wc.dbError(c, "list worksites", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worksites": worksites})
}

func (wc *WorksiteController) GetWorksite(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var worksite models.Worksite
	if err := wc.DB.WithContext(c.Request.Context()).First(&worksite, id).Error; err != nil {
		wc.dbError(c, "get worksite", err)
		return
	}
	var assigned int64
	wc.DB.WithContext(c.Request.Context()).Model(&models.WorksiteAssignment{}).
		Where("worksite_id = ? AND is_active = ?", id, true).
		Count(&assigned)
	c.JSON(http.StatusOK, gin.H{"worksite": worksite, "assigned_workers": assigned})
}

func (wc *WorksiteController) CreateWorksite(c *gin.Context) {
	var input worksiteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	center, err := resolveCenter(input.Location, input.Latitude, input.Longitude)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	radius := wc.DefaultRadius
	if input.RadiusMeters != nil {
		radius = *input.RadiusMeters
	}
	if err := checkRadius(radius); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	worksite := models.Worksite{
		Name:         strings.TrimSpace(input.Name),
		Address:      input.Address,
		City:         input.City,
		Latitude:     center.Latitude,
		Longitude:    center.Longitude,
		RadiusMeters: radius,
		IsActive:     true,
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
	}
	if err := wc.DB.WithContext(c.Request.Context()).Create(&worksite).Error; err != nil {
		wc.dbError(c, "create worksite", err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"worksite_id": worksite.ID,
		"radius":      worksite.RadiusMeters,
	}).Info("Worksite created")
	c.JSON(http.StatusCreated, gin.H{"worksite": worksite})
}

func (wc *WorksiteController) UpdateWorksite(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input worksiteUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Address != nil {
		updates["address"] = *input.Address
	}
	if input.City != nil {
		updates["city"] = *input.City
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude must be updated together"})
		return
	}
	if input.Latitude != nil {
		updates["latitude"] = *input.Latitude
		updates["longitude"] = *input.Longitude
	}
	if input.RadiusMeters != nil {
		if err := checkRadius(*input.RadiusMeters); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updates["radius_meters"] = *input.RadiusMeters
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.StartDate != nil {
		updates["start_date"] = *input.StartDate
	}
	if input.EndDate != nil {
		updates["end_date"] = *input.EndDate
	}

	var worksite models.Worksite
	err := wc.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&worksite, id).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&worksite).Updates(updates).Error
	})
	if err != nil {
		wc.dbError(c, "update worksite", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worksite": worksite})
}

// DeactivateWorksite soft-deletes: records keep pointing at the worksite, but it no
// longer takes part in clock-in resolution.
func (wc *WorksiteController) DeactivateWorksite(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	res := wc.DB.WithContext(c.Request.Context()).Model(&models.Worksite{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		wc.dbError(c, "deactivate worksite", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "worksite not found"})
		return
	}
	logrus.WithField("worksite_id", id).Info("Worksite deactivated")
	c.JSON(http.StatusOK, gin.H{"message": "Worksite deactivated"})
}

func (wc *WorksiteController) AssignWorker(c *gin.Context) {
	worksiteID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input assignmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date is before start_date"})
		return
	}

	var assignment models.WorksiteAssignment
	err := wc.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var worksite models.Worksite
		if err := tx.Where("id = ? AND is_active = ?", worksiteID, true).First(&worksite).Error; err != nil {
			return err
		}
		var user models.User
		if err := tx.Select("id").First(&user, input.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errUserNotFound
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.WorksiteAssignment{}).
			Where("worksite_id = ? AND user_id = ? AND is_active = ?", worksiteID, input.UserID, true).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errAlreadyAssigned
		}

		assignment = models.WorksiteAssignment{
			UserID:     input.UserID,
			WorksiteID: worksiteID,
			StartDate:  time.Now(),
			EndDate:    input.EndDate,
			IsActive:   true,
		}
		if input.StartDate != nil {
			assignment.StartDate = *input.StartDate
		}
		return tx.Create(&assignment).Error
	})
	switch {
	case errors.Is(err, errUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	case errors.Is(err, errAlreadyAssigned):
		c.JSON(http.StatusConflict, gin.H{"error": "worker already assigned to this worksite"})
		return
	case err != nil:
		wc.dbError(c, "assign worker", err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"worksite_id": worksiteID,
		"user_id":     input.UserID,
	}).Info("Worker assigned to worksite")
	c.JSON(http.StatusCreated, gin.H{"assignment": assignment})
}

func (wc *WorksiteController) UnassignWorker(c *gin.Context) {
	worksiteID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	now := time.Now()
	res := wc.DB.WithContext(c.Request.Context()).Model(&models.WorksiteAssignment{}).
		Where("worksite_id = ? AND user_id = ? AND is_active = ?", worksiteID, userID, true).
		Updates(map[string]interface{}{"is_active": false, "end_date": now})
	if res.Error != nil {
		wc.dbError(c, "unassign worker", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Assignment ended"})
}

func (wc *WorksiteController) ListWorkers(c *gin.Context) {
	worksiteID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var users []models.User
	err := wc.DB.WithContext(c.Request.Context()).
		Joins("JOIN worksite_assignments a ON a.user_id = users.id AND a.deleted_at IS NULL").
		Where("a.worksite_id = ? AND a.is_active = ?", worksiteID, true).
		Order("users.last_name asc, users.first_name asc").
		Find(&users).Error
	if err != nil {
		wc.dbError(c, "list workers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": users})
}

// ListClockRecords serves GET /worksites/:id/clock-records?date=YYYY-MM-DD (default today).
func (wc *WorksiteController) ListClockRecords(c *gin.Context) {
	worksiteID, ok := parseID(c, "id")
	if !ok {
		return
	}
	day := time.Now().In(wc.Location)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, wc.Location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, wc.Location)

	records, err := wc.Reports.ListRecords(c.Request.Context(), store.RecordFilter{
		From:       start,
		To:         start.AddDate(0, 0, 1),
		WorksiteID: worksiteID,
	})
	if err != nil {
		respondError(c, fmt.Errorf("list records: %w: %w", attendance.ErrStoreFailure, err))
		return
	}

	workers := map[uint]bool{}
	outside := 0
	for _, r := range records {
		workers[r.UserID] = true
		if r.IsWithinGeofence != nil && !*r.IsWithinGeofence {
			outside++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"date":             start.Format("2006-01-02"),
		"records":          records,
		"workers_count":    len(workers),
		"outside_geofence": outside,
	})
}

var (
	errUserNotFound    = errors.New("user not found")
	errAlreadyAssigned = errors.New("already assigned")
)
