package models

// Lookup tables used to normalize the categorical CSV columns into
// foreign keys. Each table (except contact methods and statuses) carries
// an "unknown" row so unrecognized text can still be coerced.

type Job struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

type MaritalStatus struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

type Education struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

type ContactMethod struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

type PreviousOutcome struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// LeadStatus is the fixed status enum for a campaign-lead association.
// IDs are stable: 1-2 are presentation-only states derived in listings,
// 3-6 are the states the tracker state machine moves between.
type LeadStatus struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

const (
	StatusAvailable   uint = 1
	StatusCallBack    uint = 2
	StatusUncontacted uint = 3
	StatusContacted   uint = 4
	StatusDeal        uint = 5
	StatusReject      uint = 6
)

// UnknownName is the catch-all row name in categorical lookup tables.
const UnknownName = "unknown"
