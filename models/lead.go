package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead represents a prospective customer record
type Lead struct {
	gorm.Model
	Name  string `gorm:"not null" json:"name"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Phone string `json:"phone"`
	Age   int    `json:"age"`

	// Demographic foreign keys
	JobID           *uint `gorm:"index" json:"job_id"`
	MaritalStatusID *uint `json:"marital_status_id"`
	EducationID     *uint `json:"education_id"`

	// Relations
	Job           *Job           `json:"job,omitempty"`
	MaritalStatus *MaritalStatus `json:"marital_status,omitempty"`
	Education     *Education     `json:"education,omitempty"`
	Detail        *LeadDetail    `gorm:"foreignKey:LeadID" json:"detail,omitempty"`
	Scores        []LeadScore    `gorm:"foreignKey:LeadID" json:"scores,omitempty"`
	CampaignLeads []CampaignLead `gorm:"foreignKey:LeadID" json:"campaign_leads,omitempty"`
}

// LeadDetail is the 1:1 extension of a lead holding the campaign-history
// style numeric features the scoring model consumes. One row per lead,
// replaced (not appended) on update.
type LeadDetail struct {
	gorm.Model
	LeadID uint `gorm:"uniqueIndex;not null" json:"lead_id"`

	Balance          int  `gorm:"default:0" json:"balance"`
	HousingLoan      bool `gorm:"default:false" json:"housing_loan"`
	PersonalLoan     bool `gorm:"default:false" json:"personal_loan"`
	LastContactDay   int  `gorm:"default:0" json:"last_contact_day"`
	LastContactMonth int  `gorm:"default:0" json:"last_contact_month"`
	CallDuration     int  `gorm:"default:0" json:"call_duration"`
	CampaignContacts int  `gorm:"default:0" json:"campaign_contacts"`
	PreviousDays     int  `gorm:"default:-1" json:"previous_days"`
	PreviousContacts int  `gorm:"default:0" json:"previous_contacts"`

	PreviousOutcomeID *uint            `json:"previous_outcome_id"`
	PreviousOutcome   *PreviousOutcome `json:"previous_outcome,omitempty"`
}

// LeadScore is an append-only scoring fact. The current score for a lead
// is the most recent row; older rows are retained for audit and never
// mutated.
type LeadScore struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LeadID    uint      `gorm:"not null;index" json:"lead_id"`
	Score     float64   `gorm:"not null" json:"score"` // probability in [0,1]
	ModelRef  string    `gorm:"not null" json:"model_ref"`
	CreatedAt time.Time `json:"created_at"`
}
