package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign represents a named, time-bounded sales campaign
type Campaign struct {
	gorm.Model
	Name      string     `gorm:"not null" json:"name"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`

	// Relations
	SalesAssignments []CampaignSales `gorm:"foreignKey:CampaignID" json:"sales_assignments,omitempty"`
	CampaignLeads    []CampaignLead  `gorm:"foreignKey:CampaignID" json:"campaign_leads,omitempty"`
}

// CampaignSales joins sales users to campaigns
type CampaignSales struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index:idx_campaign_sales,unique" json:"campaign_id"`
	UserID     uint `gorm:"not null;index:idx_campaign_sales,unique" json:"user_id"`

	User *User `json:"user,omitempty"`
}

// CampaignLead is the working unit of the tracker: one lead being pursued
// within one campaign, carrying the mutable status.
type CampaignLead struct {
	gorm.Model
	CampaignID      uint  `gorm:"not null;index:idx_campaign_lead,unique" json:"campaign_id"`
	LeadID          uint  `gorm:"not null;index:idx_campaign_lead,unique" json:"lead_id"`
	AssignedUserID  *uint `gorm:"index" json:"assigned_user_id"`
	ContactMethodID *uint `json:"contact_method_id"`
	StatusID        uint  `gorm:"not null;default:3" json:"status_id"`
	ContactCount    int   `gorm:"default:0" json:"contact_count"`

	// Relations
	Campaign      *Campaign      `json:"campaign,omitempty"`
	Lead          *Lead          `json:"lead,omitempty"`
	AssignedUser  *User          `gorm:"foreignKey:AssignedUserID" json:"assigned_user,omitempty"`
	ContactMethod *ContactMethod `json:"contact_method,omitempty"`
	Status        *LeadStatus    `gorm:"foreignKey:StatusID" json:"status,omitempty"`
}
