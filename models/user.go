package models

import (
	"gorm.io/gorm"
)

// User represents a sales user of the CRM
type User struct {
	gorm.Model
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Role     string `gorm:"default:sales" json:"role"` // sales, admin

	// Relations
	CampaignAssignments []CampaignSales `gorm:"foreignKey:UserID" json:"assignments,omitempty"`
}
