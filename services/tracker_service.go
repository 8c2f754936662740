package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"leadnest/models"

	"gorm.io/gorm"
)

var (
	// ErrInvalidTransition rejects a status change the graph does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConcurrentTransition reports an optimistic-lock failure: the row's
	// status changed between read and write. The caller may retry.
	ErrConcurrentTransition = errors.New("campaign lead was updated concurrently")
	// ErrNotFound reports a missing campaign lead or history row.
	ErrNotFound = errors.New("record not found")
)

// allowedTransitions is the campaign-lead status graph:
// Uncontacted → Contacted → {Deal, Reject}. Deal and Reject are terminal.
var allowedTransitions = map[uint]map[uint]bool{
	models.StatusUncontacted: {models.StatusContacted: true},
	models.StatusContacted:   {models.StatusDeal: true, models.StatusReject: true},
}

// ValidateTransition checks one edge of the status graph. Self-loops,
// skips and moves out of a terminal state are all invalid.
func ValidateTransition(from, to uint) error {
	if allowedTransitions[from][to] {
		return nil
	}
	return ErrInvalidTransition
}

// terminalOutcomeStatus maps an outbound-activity outcome to the status
// it forces, if any.
func terminalOutcomeStatus(outcome string) (uint, bool) {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "accepted":
		return models.StatusDeal, true
	case "rejected":
		return models.StatusReject, true
	}
	return 0, false
}

// DealNotifier is told when a campaign lead reaches Deal.
type DealNotifier interface {
	NotifyDeal(user *models.User, lead *models.Lead, campaign *models.Campaign) error
}

// TrackerService owns the campaign-lead status state machine: every
// transition is validated, applied with an optimistic status guard, and
// recorded in the append-only history ledger in the same transaction.
type TrackerService struct {
	DB       *gorm.DB
	Notifier DealNotifier
	Logger   *log.Logger
}

func NewTrackerService(db *gorm.DB, notifier DealNotifier, logger *log.Logger) *TrackerService {
	return &TrackerService{DB: db, Notifier: notifier, Logger: logger}
}

// ActivityInput is one logged contact attempt.
type ActivityInput struct {
	LeadID          uint
	CampaignLeadID  uint
	UserID          uint
	ActivityType    string
	Outcome         string
	Duration        int
	Notes           string
	InteractionDate time.Time
}

// ChangeStatus applies one transition on a campaign lead, appending
// exactly one history row. No write happens on an invalid transition;
// a concurrent status change surfaces as ErrConcurrentTransition.
func (s *TrackerService) ChangeStatus(ctx context.Context, campaignLeadID, toStatus, actorID uint) (*models.CampaignLead, error) {
	var campaignLead models.CampaignLead
	if err := s.DB.WithContext(ctx).First(&campaignLead, campaignLeadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := ValidateTransition(campaignLead.StatusID, toStatus); err != nil {
		return nil, err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyTransition(tx, &campaignLead, campaignLead.StatusID, toStatus, actorID)
	})
	if err != nil {
		return nil, err
	}

	s.notifyIfDeal(ctx, &campaignLead)

	if err := s.DB.WithContext(ctx).Preload("Status").First(&campaignLead, campaignLeadID).Error; err != nil {
		return nil, err
	}
	return &campaignLead, nil
}

// applyTransition performs the guarded status write plus the ledger
// append. The WHERE on the current status is the optimistic check: zero
// rows affected means another request moved the row first.
func (s *TrackerService) applyTransition(tx *gorm.DB, campaignLead *models.CampaignLead, fromStatus, toStatus, actorID uint) error {
	result := tx.Model(&models.CampaignLead{}).
		Where("id = ? AND status_id = ?", campaignLead.ID, fromStatus).
		Update("status_id", toStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentTransition
	}

	history := models.LeadStatusHistory{
		CampaignLeadID: campaignLead.ID,
		LeadID:         campaignLead.LeadID,
		CampaignID:     campaignLead.CampaignID,
		StatusID:       toStatus,
		ChangedByID:    actorID,
	}
	if err := tx.Create(&history).Error; err != nil {
		return err
	}

	campaignLead.StatusID = toStatus
	return nil
}

// LogActivity inserts one outbound activity. A terminal outcome
// (Accepted→Deal, Rejected→Reject) also applies the status transition in
// the same transaction: the activity row must never exist without its
// status effect, and vice versa.
func (s *TrackerService) LogActivity(ctx context.Context, input ActivityInput) (*models.OutboundActivity, error) {
	var campaignLead models.CampaignLead
	if err := s.DB.WithContext(ctx).First(&campaignLead, input.CampaignLeadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	toStatus, terminal := terminalOutcomeStatus(input.Outcome)
	if terminal {
		if err := ValidateTransition(campaignLead.StatusID, toStatus); err != nil {
			return nil, err
		}
	}

	interactionDate := input.InteractionDate
	if interactionDate.IsZero() {
		interactionDate = time.Now()
	}
	activity := models.OutboundActivity{
		LeadID:          campaignLead.LeadID,
		CampaignLeadID:  campaignLead.ID,
		UserID:          input.UserID,
		ActivityType:    input.ActivityType,
		Outcome:         input.Outcome,
		Duration:        input.Duration,
		Notes:           input.Notes,
		InteractionDate: interactionDate,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&activity).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.CampaignLead{}).
			Where("id = ?", campaignLead.ID).
			Update("contact_count", gorm.Expr("contact_count + ?", 1)).Error; err != nil {
			return err
		}
		if terminal {
			return s.applyTransition(tx, &campaignLead, campaignLead.StatusID, toStatus, input.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if terminal {
		s.notifyIfDeal(ctx, &campaignLead)
	}
	return &activity, nil
}

// RevertHistory is the admin compensating operation: it deletes one
// ledger row and restores the campaign lead's status to the latest
// remaining entry's value, or Uncontacted when none remains. This is an
// explicit two-part write, deliberately not a cascade delete.
func (s *TrackerService) RevertHistory(ctx context.Context, historyID uint) (*models.CampaignLead, error) {
	var campaignLeadID uint

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.LeadStatusHistory
		if err := tx.First(&entry, historyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		campaignLeadID = entry.CampaignLeadID

		if err := tx.Delete(&models.LeadStatusHistory{}, entry.ID).Error; err != nil {
			return err
		}

		priorStatus := models.StatusUncontacted
		var previous models.LeadStatusHistory
		err := tx.Where("campaign_lead_id = ?", entry.CampaignLeadID).
			Order("id DESC").
			First(&previous).Error
		if err == nil {
			priorStatus = previous.StatusID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Model(&models.CampaignLead{}).
			Where("id = ?", entry.CampaignLeadID).
			Update("status_id", priorStatus).Error
	})
	if err != nil {
		return nil, err
	}

	var campaignLead models.CampaignLead
	if err := s.DB.WithContext(ctx).Preload("Status").First(&campaignLead, campaignLeadID).Error; err != nil {
		return nil, err
	}
	return &campaignLead, nil
}

// notifyIfDeal emails the assigned sales user after a Deal transition.
// Notification is best effort and stays outside the transaction.
func (s *TrackerService) notifyIfDeal(ctx context.Context, campaignLead *models.CampaignLead) {
	if s.Notifier == nil || campaignLead.StatusID != models.StatusDeal || campaignLead.AssignedUserID == nil {
		return
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, *campaignLead.AssignedUserID).Error; err != nil {
		s.Logger.Printf("Deal notification skipped, user %d not found: %v", *campaignLead.AssignedUserID, err)
		return
	}
	var lead models.Lead
	if err := s.DB.WithContext(ctx).First(&lead, campaignLead.LeadID).Error; err != nil {
		s.Logger.Printf("Deal notification skipped, lead %d not found: %v", campaignLead.LeadID, err)
		return
	}
	var campaign models.Campaign
	if err := s.DB.WithContext(ctx).First(&campaign, campaignLead.CampaignID).Error; err != nil {
		s.Logger.Printf("Deal notification skipped, campaign %d not found: %v", campaignLead.CampaignID, err)
		return
	}

	if err := s.Notifier.NotifyDeal(&user, &lead, &campaign); err != nil {
		s.Logger.Printf("Failed to send deal notification for lead %d: %v", lead.ID, err)
	}
}
