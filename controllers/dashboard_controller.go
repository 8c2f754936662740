package controller

import (
	"log"

	"leadnest/models"
	"leadnest/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

// GetStats returns headline counts plus campaign-lead totals per status
func (dc *DashboardController) GetStats(c *fiber.Ctx) error {
	var leadCount, campaignCount, activityCount int64
	if err := dc.DB.Model(&models.Lead{}).Count(&leadCount).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", err)
	}
	if err := dc.DB.Model(&models.Campaign{}).Where("is_active = ?", true).Count(&campaignCount).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count campaigns", err)
	}
	if err := dc.DB.Model(&models.OutboundActivity{}).Count(&activityCount).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count activities", err)
	}

	type statusCount struct {
		StatusID uint   `json:"status_id"`
		Name     string `json:"name"`
		Count    int64  `json:"count"`
	}
	var byStatus []statusCount
	if err := dc.DB.Model(&models.CampaignLead{}).
		Select("campaign_leads.status_id, lead_statuses.name, COUNT(*) as count").
		Joins("JOIN lead_statuses ON lead_statuses.id = campaign_leads.status_id").
		Group("campaign_leads.status_id, lead_statuses.name").
		Order("campaign_leads.status_id").
		Scan(&byStatus).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to aggregate statuses", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"leads":            leadCount,
		"active_campaigns": campaignCount,
		"activities":       activityCount,
		"by_status":        byStatus,
	}))
}
