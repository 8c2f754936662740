package models

import (
	"time"

	"gorm.io/gorm"
)

// LeadStatusHistory is the append-only ledger of status changes on a
// campaign-lead. Rows are never updated; the only delete path is the
// admin compensating revert, which also restores the campaign-lead's
// status to the prior entry.
type LeadStatusHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CampaignLeadID uint      `gorm:"not null;index" json:"campaign_lead_id"`
	LeadID         uint      `gorm:"not null;index" json:"lead_id"`
	CampaignID     uint      `gorm:"not null;index" json:"campaign_id"`
	StatusID       uint      `gorm:"not null" json:"status_id"`
	ChangedByID    uint      `gorm:"not null" json:"changed_by_id"`
	CreatedAt      time.Time `json:"created_at"`

	Status    *LeadStatus `gorm:"foreignKey:StatusID" json:"status,omitempty"`
	ChangedBy *User       `gorm:"foreignKey:ChangedByID" json:"changed_by,omitempty"`
}

// OutboundActivity is a logged contact attempt against a campaign-lead.
// An activity with a terminal outcome (Accepted/Rejected) also drives a
// status transition in the same transaction.
type OutboundActivity struct {
	gorm.Model
	LeadID          uint      `gorm:"not null;index" json:"lead_id"`
	CampaignLeadID  uint      `gorm:"not null;index" json:"campaign_lead_id"`
	UserID          uint      `gorm:"not null" json:"user_id"`
	ActivityType    string    `gorm:"not null" json:"activity_type"` // call, email, meeting
	Outcome         string    `json:"outcome"`                       // No Answer, Call Back, Accepted, Rejected
	Duration        int       `gorm:"default:0" json:"duration"`     // seconds
	Notes           string    `gorm:"type:text" json:"notes"`
	InteractionDate time.Time `json:"interaction_date"`

	User *User `json:"user,omitempty"`
}
