package models

import "gorm.io/gorm"

const (
	RoleWorker     = "WORKER"
	RoleSupervisor = "SUPERVISOR"
	RoleAdmin      = "ADMIN"
)

type User struct {
	gorm.Model
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" gorm:"unique;not null"`
	Password  string `json:"-"`
	Phone     string `json:"phone"`
	Role      string `json:"role" gorm:"type:varchar(16);default:WORKER"` // "WORKER", "SUPERVISOR", "ADMIN"
	IsActive  bool   `json:"is_active" gorm:"default:true"`

	Assignments []WorksiteAssignment `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"assignments,omitempty"`
}

// FullName joins first and last name for reports.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
