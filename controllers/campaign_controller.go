package controller

import (
	"errors"
	"log"
	"strconv"
	"time"

	"leadnest/models"
	"leadnest/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CampaignController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCampaignController(db *gorm.DB, logger *log.Logger) *CampaignController {
	return &CampaignController{
		DB:     db,
		Logger: logger,
	}
}

// CreateCampaign creates a new campaign
func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	var input struct {
		Name      string     `json:"name" validate:"required,max=200"`
		StartDate *time.Time `json:"start_date"`
		EndDate   *time.Time `json:"end_date"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "End date must be after start date", nil)
	}

	campaign := models.Campaign{
		Name:      input.Name,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		IsActive:  true,
	}
	if err := cc.DB.Create(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(campaign))
}

// GetCampaigns returns all campaigns with their sales assignments
func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	var campaigns []models.Campaign
	query := cc.DB.Preload("SalesAssignments").Preload("SalesAssignments.User")
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("id DESC").Find(&campaigns).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaigns", err)
	}
	return c.JSON(utils.SuccessResponse(campaigns))
}

// GetCampaign returns one campaign
func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.
		Preload("SalesAssignments").
		Preload("SalesAssignments.User").
		First(&campaign, campaignID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

// UpdateCampaign updates campaign fields
func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	var input struct {
		Name      *string    `json:"name" validate:"omitempty,max=200"`
		StartDate *time.Time `json:"start_date"`
		EndDate   *time.Time `json:"end_date"`
		IsActive  *bool      `json:"is_active"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.StartDate != nil {
		updates["start_date"] = *input.StartDate
	}
	if input.EndDate != nil {
		updates["end_date"] = *input.EndDate
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No fields to update", nil)
	}

	if err := cc.DB.Model(&campaign).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update campaign", err)
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

// DeleteCampaign removes a campaign and its lead associations
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	err := cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.LeadStatusHistory{}).Error; err != nil {
			return err
		}
		var campaignLeadIDs []uint
		if err := tx.Model(&models.CampaignLead{}).
			Where("campaign_id = ?", campaign.ID).
			Pluck("id", &campaignLeadIDs).Error; err != nil {
			return err
		}
		if len(campaignLeadIDs) > 0 {
			if err := tx.Where("campaign_lead_id IN ?", campaignLeadIDs).Delete(&models.OutboundActivity{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.CampaignLead{}).Error; err != nil {
			return err
		}
		if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.CampaignSales{}).Error; err != nil {
			return err
		}
		return tx.Delete(&campaign).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign", err)
	}

	cc.Logger.Printf("Deleted campaign %d (%s)", campaign.ID, campaign.Name)
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": campaign.ID}))
}

// AssignSales attaches sales users to a campaign
func (cc *CampaignController) AssignSales(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	var input struct {
		UserIDs []uint `json:"user_ids" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	for _, userID := range input.UserIDs {
		var user models.User
		if err := cc.DB.First(&user, userID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
		}
		assignment := models.CampaignSales{CampaignID: campaign.ID, UserID: userID}
		if err := cc.DB.
			Where("campaign_id = ? AND user_id = ?", campaign.ID, userID).
			FirstOrCreate(&assignment).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to assign user", err)
		}
	}

	var assignments []models.CampaignSales
	if err := cc.DB.Preload("User").Where("campaign_id = ?", campaign.ID).Find(&assignments).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch assignments", err)
	}
	return c.JSON(utils.SuccessResponse(assignments))
}

// AddLeadToCampaign creates the campaign-lead association at Uncontacted
func (cc *CampaignController) AddLeadToCampaign(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	var input struct {
		LeadID          uint  `json:"lead_id" validate:"required"`
		AssignedUserID  *uint `json:"assigned_user_id"`
		ContactMethodID *uint `json:"contact_method_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var lead models.Lead
	if err := cc.DB.First(&lead, input.LeadID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	var existing models.CampaignLead
	err := cc.DB.Where("campaign_id = ? AND lead_id = ?", campaign.ID, input.LeadID).First(&existing).Error
	if err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Lead already in campaign", nil)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check campaign lead", err)
	}

	campaignLead := models.CampaignLead{
		CampaignID:      campaign.ID,
		LeadID:          input.LeadID,
		AssignedUserID:  input.AssignedUserID,
		ContactMethodID: input.ContactMethodID,
		StatusID:        models.StatusUncontacted,
	}
	if err := cc.DB.Create(&campaignLead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to add lead to campaign", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(campaignLead))
}

// GetCampaignLeads returns the campaign's leads with status and score
func (cc *CampaignController) GetCampaignLeads(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := cc.DB.Model(&models.CampaignLead{}).Where("campaign_id = ?", campaign.ID)
	if statusID := c.Query("status_id"); statusID != "" {
		query = query.Where("status_id = ?", utils.ParseUint(statusID))
	}
	if userID := c.Query("assigned_user_id"); userID != "" {
		query = query.Where("assigned_user_id = ?", utils.ParseUint(userID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count campaign leads", err)
	}

	var campaignLeads []models.CampaignLead
	if err := query.
		Preload("Lead").
		Preload("Status").
		Preload("AssignedUser").
		Preload("ContactMethod").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&campaignLeads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign leads", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  campaignLeads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
