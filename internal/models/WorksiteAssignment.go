package models

import (
	"time"

	"gorm.io/gorm"
)

// WorksiteAssignment links a worker to a worksite for a validity window.
type WorksiteAssignment struct {
	gorm.Model
	UserID     uint       `json:"user_id" gorm:"index;not null"`
	WorksiteID uint       `json:"worksite_id" gorm:"index;not null"`
	Worksite   Worksite   `gorm:"foreignKey:WorksiteID" json:"worksite,omitempty"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	IsActive   bool       `json:"is_active" gorm:"default:true"`
}

// CoversTime reports whether the assignment is active and t falls inside its window.
func (a WorksiteAssignment) CoversTime(t time.Time) bool {
	if !a.IsActive {
		return false
	}
	if t.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || !t.After(*a.EndDate)
}
