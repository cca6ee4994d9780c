package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ClockKind string

const (
	ClockIn  ClockKind = "CLOCK_IN"
	ClockOut ClockKind = "CLOCK_OUT"
)

// Valid reports whether k is one of the two known event kinds.
func (k ClockKind) Valid() bool {
	return k == ClockIn || k == ClockOut
}

type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
)

// AttendanceRecord is one clock-in or clock-out event. Records are append-only:
// they are created once, by the online clock endpoints or by offline sync, and never updated.
type AttendanceRecord struct {
	gorm.Model
	UserID     uint      `json:"user_id" gorm:"index:idx_attendance_user_ts,priority:1;not null"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	WorksiteID *uint     `json:"worksite_id" gorm:"index"`
	Worksite   *Worksite `gorm:"foreignKey:WorksiteID" json:"worksite,omitempty"`
	Kind       ClockKind `json:"type" gorm:"type:varchar(16);not null"`
	Timestamp  time.Time `json:"timestamp" gorm:"column:recorded_at;index:idx_attendance_user_ts,priority:2;not null"`

	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // GPS accuracy in meters

	// Geofence verdict; both nil when no worksite could be resolved.
	IsWithinGeofence *bool `json:"is_within_geofence"`
	DistanceFromSite *int  `json:"distance_from_site"` // rounded meters

	// Client generated key, only set for events that came through offline sync
	// (or online retries that carried one). Unique when present.
	DeviceRecordID *string        `json:"device_record_id,omitempty" gorm:"uniqueIndex;size:128"`
	DeviceInfo     datatypes.JSON `json:"device_info,omitempty"`
	Notes          string         `json:"notes,omitempty" gorm:"size:500"`
	SyncStatus     SyncStatus     `json:"sync_status" gorm:"type:varchar(16);default:SYNCED"`
	SyncedAt       *time.Time     `json:"synced_at,omitempty"`
}
