package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"soldeser/internal/attendance"
	"soldeser/internal/geo"
	"soldeser/internal/models"
)

type SyncController struct {
	Service *attendance.Service
	Hub     *AttendanceHub
	// DB lists all worksites for supervisors; nil restricts everyone to their assignments.
	DB *gorm.DB
}

func NewSyncController(svc *attendance.Service, hub *AttendanceHub, db *gorm.DB) *SyncController {
	return &SyncController{Service: svc, Hub: hub, DB: db}
}

// syncInput is one offline upload; the app sends larger queues in chunks of 500.
type syncInput struct {
	Records []attendance.OfflineEvent `json:"records" binding:"required,min=1,max=500"`
}

// SyncClockRecords reconciles a batch of events recorded while offline. Invalid events
// are reported per record; the request only fails when the body itself is malformed.
func (sc *SyncController) SyncClockRecords(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input syncInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
		return
	}

	res, err := sc.Service.Reconcile(c.Request.Context(), userID, input.Records)
	if err != nil {
		respondError(c, err)
		return
	}

	for _, s := range res.Synced {
		ev := AttendanceEvent{
			Type:             "synced",
			RecordID:         s.ServerID,
			WorkerID:         userID,
			WorksiteName:     s.WorksiteName,
			IsWithinGeofence: s.IsWithinGeofence,
			DistanceFromSite: s.DistanceFromSite,
		}
		if s.WorksiteID != nil {
			ev.WorksiteID = *s.WorksiteID
		}
		sc.Hub.Publish(ev)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Sync completed: %d new, %d duplicates, %d errors",
			len(res.Synced), len(res.Duplicates), len(res.Errors)),
		"results": res,
	})
}

// SyncStatus gives the app what it needs after reconnecting: server time, the last
// stored record and the worksites it may clock in at.
func (sc *SyncController) SyncStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	st, err := sc.Service.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	worksites, err := sc.Service.Repo.FindActiveAssignments(c.Request.Context(), userID)
	if err != nil {
		respondError(c, fmt.Errorf("load assignments: %w: %w", attendance.ErrStoreFailure, err))
		return
	}
	if worksites == nil {
		worksites = []models.Worksite{}
	}
	c.JSON(http.StatusOK, gin.H{
		"server_time":   sc.Service.Now().UTC().Format(time.RFC3339),
		"last_record":   st.LastRecord,
		"is_clocked_in": st.IsClockedIn,
		"worksites":     worksites,
		"user": gin.H{
			"id":   userID,
			"role": c.GetString("role"),
		},
	})
}

// SyncWorksites is the offline cache download. ?format=geojson returns a
// FeatureCollection instead of the JSON list.
func (sc *SyncController) SyncWorksites(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var worksites []models.Worksite
	role := c.GetString("role")
	if sc.DB != nil && (role == models.RoleSupervisor || role == models.RoleAdmin) {
		if err := sc.DB.WithContext(c.Request.Context()).Where("is_active = ?", true).Order("name asc").Find(&worksites).Error; err != nil {
			respondError(c, fmt.Errorf("list worksites: %w: %w", attendance.ErrStoreFailure, err))
			return
		}
	} else {
		var err error
		worksites, err = sc.Service.Repo.FindActiveAssignments(c.Request.Context(), userID)
		if err != nil {
			respondError(c, fmt.Errorf("load assignments: %w: %w", attendance.ErrStoreFailure, err))
			return
		}
	}
	if worksites == nil {
		worksites = []models.Worksite{}
	}

	if c.Query("format") == "geojson" {
		body, err := geo.WorksitesGeoJSON(worksites)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/geo+json", body)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"worksites": worksites,
		"synced_at": sc.Service.Now().UTC().Format(time.RFC3339),
	})
}
