package models

import "gorm.io/gorm"

// SeedLookups fills the lookup tables during migration. Seeding is
// idempotent: existing rows are left untouched.
func SeedLookups(db *gorm.DB) error {
	statuses := []LeadStatus{
		{ID: StatusAvailable, Name: "Available"},
		{ID: StatusCallBack, Name: "Call-Back"},
		{ID: StatusUncontacted, Name: "Uncontacted"},
		{ID: StatusContacted, Name: "Contacted"},
		{ID: StatusDeal, Name: "Deal"},
		{ID: StatusReject, Name: "Reject"},
	}
	for _, status := range statuses {
		if err := db.FirstOrCreate(&status, "id = ?", status.ID).Error; err != nil {
			return err
		}
	}

	jobs := []string{
		"admin.", "blue-collar", "entrepreneur", "housemaid", "management",
		"retired", "self-employed", "services", "student", "technician",
		"unemployed", UnknownName,
	}
	for _, name := range jobs {
		if err := db.FirstOrCreate(&Job{Name: name}, "name = ?", name).Error; err != nil {
			return err
		}
	}

	maritals := []string{"divorced", "married", "single", UnknownName}
	for _, name := range maritals {
		if err := db.FirstOrCreate(&MaritalStatus{Name: name}, "name = ?", name).Error; err != nil {
			return err
		}
	}

	educations := []string{"primary", "secondary", "tertiary", UnknownName}
	for _, name := range educations {
		if err := db.FirstOrCreate(&Education{Name: name}, "name = ?", name).Error; err != nil {
			return err
		}
	}

	// Contact methods deliberately carry no "unknown" row: a row with an
	// unrecognized contact method is rejected instead of coerced.
	contacts := []string{"cellular", "telephone"}
	for _, name := range contacts {
		if err := db.FirstOrCreate(&ContactMethod{Name: name}, "name = ?", name).Error; err != nil {
			return err
		}
	}

	outcomes := []string{"failure", "other", "success", UnknownName}
	for _, name := range outcomes {
		if err := db.FirstOrCreate(&PreviousOutcome{Name: name}, "name = ?", name).Error; err != nil {
			return err
		}
	}

	return nil
}
