package pipeline

import (
	"context"
	"log"

	"leadnest/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParsedRow pairs a normalized row with its source line number.
type ParsedRow struct {
	Line  int
	Input *LeadInput
}

// RowResult is the per-row outcome of persistence. Err is nil when the
// row reached storage; LeadID then identifies the upserted lead.
type RowResult struct {
	Line   int
	Email  string
	LeadID uint
	Err    error
}

// Persister upserts validated rows against the unique email constraint.
type Persister struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewPersister(db *gorm.DB, logger *log.Logger) *Persister {
	return &Persister{DB: db, Logger: logger}
}

// PersistBatch writes one batch of normalized rows. Each row runs in its
// own transaction so a failure never corrupts sibling rows; partial batch
// success is expected. The returned error is non-nil only for a fatal,
// batch-halting condition (storage unreachable).
func (p *Persister) PersistBatch(ctx context.Context, rows []ParsedRow) ([]RowResult, error) {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return nil, &FatalIngestError{Stage: "persist", Err: err}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, &FatalIngestError{Stage: "persist", Err: err}
	}

	results := make([]RowResult, 0, len(rows))
	for _, row := range rows {
		leadID, err := p.persistRow(ctx, row.Input)
		result := RowResult{Line: row.Line, Email: row.Input.Email, LeadID: leadID}
		if err != nil {
			result.Err = &PersistError{Line: row.Line, Email: row.Input.Email, Err: err}
			p.Logger.Printf("Failed to persist row %d (%s): %v", row.Line, row.Input.Email, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// persistRow upserts the lead identity by email and replaces its detail
// row inside a single transaction.
func (p *Persister) persistRow(ctx context.Context, input *LeadInput) (uint, error) {
	lead := models.Lead{
		Name:            input.Name,
		Email:           input.Email,
		Phone:           input.Phone,
		Age:             input.Age,
		JobID:           input.JobID,
		MaritalStatusID: input.MaritalStatusID,
		EducationID:     input.EducationID,
	}

	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "email"}},
			// deleted_at is included so re-importing a soft-deleted
			// lead's email resurrects the identity instead of writing
			// to an invisible tombstone.
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "phone", "age", "job_id", "marital_status_id", "education_id", "updated_at", "deleted_at",
			}),
		}).Create(&lead).Error; err != nil {
			return err
		}

		// The conflict path does not always populate the id; resolve it by email.
		if lead.ID == 0 {
			var existing models.Lead
			if err := tx.Select("id").Where("email = ?", input.Email).First(&existing).Error; err != nil {
				return err
			}
			lead.ID = existing.ID
		}

		detail := models.LeadDetail{
			LeadID:            lead.ID,
			Balance:           input.Detail.Balance,
			HousingLoan:       input.Detail.HousingLoan,
			PersonalLoan:      input.Detail.PersonalLoan,
			LastContactDay:    input.Detail.LastContactDay,
			LastContactMonth:  input.Detail.LastContactMonth,
			CallDuration:      input.Detail.CallDuration,
			CampaignContacts:  input.Detail.CampaignContacts,
			PreviousDays:      input.Detail.PreviousDays,
			PreviousContacts:  input.Detail.PreviousContacts,
			PreviousOutcomeID: input.Detail.PreviousOutcomeID,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "lead_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"balance", "housing_loan", "personal_loan", "last_contact_day",
				"last_contact_month", "call_duration", "campaign_contacts",
				"previous_days", "previous_contacts", "previous_outcome_id", "updated_at",
			}),
		}).Create(&detail).Error
	})
	if err != nil {
		return 0, err
	}
	return lead.ID, nil
}
