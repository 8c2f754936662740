package controller

import (
	"errors"
	"log"
	"time"

	"leadnest/models"
	"leadnest/services"
	"leadnest/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TrackerController struct {
	DB      *gorm.DB
	Service *services.TrackerService
	Logger  *log.Logger
}

func NewTrackerController(db *gorm.DB, service *services.TrackerService, logger *log.Logger) *TrackerController {
	return &TrackerController{
		DB:      db,
		Service: service,
		Logger:  logger,
	}
}

// trackerError maps service errors onto HTTP statuses
func trackerError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Record not found", nil)
	case errors.Is(err, services.ErrInvalidTransition):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid status transition", err)
	case errors.Is(err, services.ErrConcurrentTransition):
		return utils.ErrorResponse(c, fiber.StatusConflict, "Status was changed by another request, please retry", err)
	default:
		utils.LogError("tracker_error", err, map[string]interface{}{
			"path":   c.Path(),
			"method": c.Method(),
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Tracker operation failed", err)
	}
}

// ChangeStatus moves a campaign lead through the status state machine
func (tc *TrackerController) ChangeStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignLeadID := utils.ParseUint(c.Params("leadCampaignId"))

	var input struct {
		StatusID uint `json:"status_id" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	campaignLead, err := tc.Service.ChangeStatus(c.Context(), campaignLeadID, input.StatusID, user.ID)
	if err != nil {
		return trackerError(c, err)
	}

	tc.Logger.Printf("Campaign lead %d moved to status %d by user %d", campaignLeadID, input.StatusID, user.ID)
	return c.JSON(utils.SuccessResponse(campaignLead))
}

// LogActivity records an outbound contact attempt. A terminal outcome
// also moves the campaign lead's status in the same transaction.
func (tc *TrackerController) LogActivity(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		CampaignLeadID  uint       `json:"campaign_lead_id" validate:"required"`
		ActivityType    string     `json:"activity_type" validate:"required,oneof=call email meeting"`
		Outcome         string     `json:"outcome" validate:"omitempty,max=50"`
		Duration        int        `json:"duration" validate:"omitempty,min=0"`
		Notes           string     `json:"notes" validate:"omitempty,max=2000"`
		InteractionDate *time.Time `json:"interaction_date"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	activityInput := services.ActivityInput{
		CampaignLeadID: input.CampaignLeadID,
		UserID:         user.ID,
		ActivityType:   input.ActivityType,
		Outcome:        input.Outcome,
		Duration:       input.Duration,
		Notes:          input.Notes,
	}
	if input.InteractionDate != nil {
		activityInput.InteractionDate = *input.InteractionDate
	}

	activity, err := tc.Service.LogActivity(c.Context(), activityInput)
	if err != nil {
		return trackerError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(activity))
}

// RevertHistory deletes one status-history entry and restores the
// campaign lead to the prior recorded status
func (tc *TrackerController) RevertHistory(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	historyID := utils.ParseUint(c.Params("historyId"))

	campaignLead, err := tc.Service.RevertHistory(c.Context(), historyID)
	if err != nil {
		return trackerError(c, err)
	}

	tc.Logger.Printf("History entry %d reverted by user %d, campaign lead %d now at status %d",
		historyID, user.ID, campaignLead.ID, campaignLead.StatusID)
	return c.JSON(utils.SuccessResponse(campaignLead))
}

// GetHistory lists the status ledger for one campaign lead
func (tc *TrackerController) GetHistory(c *fiber.Ctx) error {
	campaignLeadID := utils.ParseUint(c.Params("leadCampaignId"))

	var campaignLead models.CampaignLead
	if err := tc.DB.First(&campaignLead, campaignLeadID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign lead not found", nil)
	}

	var history []models.LeadStatusHistory
	if err := tc.DB.
		Preload("Status").
		Preload("ChangedBy").
		Where("campaign_lead_id = ?", campaignLeadID).
		Order("id DESC").
		Find(&history).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch history", err)
	}
	return c.JSON(utils.SuccessResponse(history))
}

// GetActivities lists logged activities for one campaign lead
func (tc *TrackerController) GetActivities(c *fiber.Ctx) error {
	campaignLeadID := utils.ParseUint(c.Params("leadCampaignId"))

	var campaignLead models.CampaignLead
	if err := tc.DB.First(&campaignLead, campaignLeadID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign lead not found", nil)
	}

	var activities []models.OutboundActivity
	if err := tc.DB.
		Preload("User").
		Where("campaign_lead_id = ?", campaignLeadID).
		Order("interaction_date DESC").
		Find(&activities).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch activities", err)
	}
	return c.JSON(utils.SuccessResponse(activities))
}
