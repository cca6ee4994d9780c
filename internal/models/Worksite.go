package models

import (
	"time"

	"gorm.io/gorm"
)

// Worksite is a construction site with a circular geofence around its center.
// Worksites are never hard-deleted while attendance records point at them;
// administrators deactivate them instead.
type Worksite struct {
	gorm.Model
	Name         string     `json:"name" gorm:"not null"`
	Address      string     `json:"address"`
	City         string     `json:"city"`
	Latitude     float64    `json:"latitude" gorm:"not null"`
	Longitude    float64    `json:"longitude" gorm:"not null"`
	RadiusMeters float64    `json:"radius_meters" gorm:"not null;default:100"`
	IsActive     bool       `json:"is_active" gorm:"default:true"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}
