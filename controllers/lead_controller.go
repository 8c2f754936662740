package controller

import (
	"encoding/csv"
	"log"
	"strconv"
	"strings"

	"leadnest/models"
	"leadnest/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LeadController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewLeadController(db *gorm.DB, logger *log.Logger) *LeadController {
	return &LeadController{
		DB:     db,
		Logger: logger,
	}
}

// CreateLead creates a single lead outside the CSV pipeline
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input struct {
		Name            string `json:"name" validate:"required,max=200"`
		Email           string `json:"email" validate:"required,email"`
		Phone           string `json:"phone" validate:"omitempty,max=30"`
		Age             int    `json:"age" validate:"omitempty,min=1,max=130"`
		JobID           *uint  `json:"job_id"`
		MaritalStatusID *uint  `json:"marital_status_id"`
		EducationID     *uint  `json:"education_id"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	// Check if lead already exists
	var existingLead models.Lead
	if err := lc.DB.Where("email = ?", email).First(&existingLead).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Lead with this email already exists", nil)
	}

	lead := models.Lead{
		Name:            input.Name,
		Email:           email,
		Phone:           input.Phone,
		Age:             input.Age,
		JobID:           input.JobID,
		MaritalStatusID: input.MaritalStatusID,
		EducationID:     input.EducationID,
	}
	if err := lc.DB.Create(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// GetLeads returns paginated list of leads with filters
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	// Pagination
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	// Filters
	email := c.Query("email")
	name := c.Query("name")
	jobID := c.Query("job_id")

	query := lc.DB.Model(&models.Lead{})
	if email != "" {
		query = query.Where("email LIKE ?", "%"+email+"%")
	}
	if name != "" {
		query = query.Where("name LIKE ?", "%"+name+"%")
	}
	if jobID != "" {
		query = query.Where("job_id = ?", utils.ParseUint(jobID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", err)
	}

	var leads []models.Lead
	if err := query.
		Preload("Job").
		Preload("MaritalStatus").
		Preload("Education").
		Preload("Detail").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetLead returns a single lead with its detail and score history
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	leadID := utils.ParseUint(c.Params("id"))

	var lead models.Lead
	if err := lc.DB.
		Preload("Job").
		Preload("MaritalStatus").
		Preload("Education").
		Preload("Detail").
		Preload("Detail.PreviousOutcome").
		Preload("Scores", func(db *gorm.DB) *gorm.DB {
			return db.Order("lead_scores.id DESC")
		}).
		First(&lead, leadID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	return c.JSON(utils.SuccessResponse(lead))
}

// UpdateLead updates mutable lead fields
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	leadID := utils.ParseUint(c.Params("id"))

	var lead models.Lead
	if err := lc.DB.First(&lead, leadID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	var input struct {
		Name            *string `json:"name" validate:"omitempty,max=200"`
		Phone           *string `json:"phone" validate:"omitempty,max=30"`
		Age             *int    `json:"age" validate:"omitempty,min=1,max=130"`
		JobID           *uint   `json:"job_id"`
		MaritalStatusID *uint   `json:"marital_status_id"`
		EducationID     *uint   `json:"education_id"`
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
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.Age != nil {
		updates["age"] = *input.Age
	}
	if input.JobID != nil {
		updates["job_id"] = *input.JobID
	}
	if input.MaritalStatusID != nil {
		updates["marital_status_id"] = *input.MaritalStatusID
	}
	if input.EducationID != nil {
		updates["education_id"] = *input.EducationID
	}
	if len(updates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No fields to update", nil)
	}

	if err := lc.DB.Model(&lead).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", err)
	}

	return c.JSON(utils.SuccessResponse(lead))
}

// DeleteLead removes a lead and all dependent rows in one transaction
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	leadID := utils.ParseUint(c.Params("id"))

	var lead models.Lead
	if err := lc.DB.First(&lead, leadID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	err := lc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lead_id = ?", lead.ID).Delete(&models.OutboundActivity{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lead_id = ?", lead.ID).Delete(&models.LeadStatusHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lead_id = ?", lead.ID).Delete(&models.CampaignLead{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lead_id = ?", lead.ID).Delete(&models.LeadScore{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lead_id = ?", lead.ID).Delete(&models.LeadDetail{}).Error; err != nil {
			return err
		}
		return tx.Delete(&lead).Error
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", err)
	}

	lc.Logger.Printf("Deleted lead %d (%s)", lead.ID, lead.Email)
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": lead.ID}))
}

// ExportLeads streams all leads as a CSV download
func (lc *LeadController) ExportLeads(c *fiber.Ctx) error {
	var leads []models.Lead
	if err := lc.DB.
		Preload("Job").
		Preload("MaritalStatus").
		Preload("Education").
		Preload("Detail").
		Order("id").
		Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", `attachment; filename="leads.csv"`)

	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	_ = writer.Write([]string{"id", "name", "email", "phone", "age", "job", "marital", "education", "balance"})
	for _, lead := range leads {
		balance := 0
		if lead.Detail != nil {
			balance = lead.Detail.Balance
		}
		job, marital, education := "", "", ""
		if lead.Job != nil {
			job = lead.Job.Name
		}
		if lead.MaritalStatus != nil {
			marital = lead.MaritalStatus.Name
		}
		if lead.Education != nil {
			education = lead.Education.Name
		}
		_ = writer.Write([]string{
			strconv.FormatUint(uint64(lead.ID), 10),
			lead.Name,
			lead.Email,
			lead.Phone,
			strconv.Itoa(lead.Age),
			job,
			marital,
			education,
			strconv.Itoa(balance),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to write CSV", err)
	}

	return c.SendString(sb.String())
}
