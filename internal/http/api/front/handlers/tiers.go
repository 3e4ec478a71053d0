package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/models"
	"gorm.io/gorm"
)

// PublicTierHandler serves the pricing page tier list.
type PublicTierHandler struct {
	db *gorm.DB // Database handle for tier records.
}

// NewPublicTierHandler constructs a public tier handler.
func NewPublicTierHandler(db *gorm.DB) *PublicTierHandler {
	return &PublicTierHandler{db: db}
}

// List returns enabled tiers in display order.
func (h *PublicTierHandler) List(c *gin.Context) {
	var rows []models.Tier
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_enabled = ?", true).
		Order("sort_order ASC, rank ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tiers failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"slug":                 row.Slug,
			"name":                 row.Name,
			"month_price":          row.MonthPrice,
			"annual_price":         row.AnnualPrice,
			"feature_lines":        json.RawMessage(row.FeatureLines),
			"contacts_limit":       row.ContactsLimit,
			"calls_per_month":      row.CallsPerMonth,
			"emails_per_day":       row.EmailsPerDay,
			"automations_limit":    row.AutomationsLimit,
			"canvas_scans_per_day": row.CanvasScansPerDay,
			"ai_prompts_per_day":   row.AIPromptsPerDay,
			"phone_access":         row.PhoneAccess,
			"email_access":         row.EmailAccess,
			"gmail_integration":    row.GmailIntegration,
			"white_label":          row.WhiteLabel,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tiers": out})
}

// Features returns one enabled tier's limits and marketing lines by slug.
func (h *PublicTierHandler) Features(c *gin.Context) {
	slug := strings.ToLower(strings.TrimSpace(c.Param("slug")))
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slug"})
		return
	}

	var tier models.Tier
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("slug = ? AND is_enabled = ?", slug, true).
		First(&tier).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"slug":          tier.Slug,
		"name":          tier.Name,
		"feature_lines": json.RawMessage(tier.FeatureLines),
		"limits": gin.H{
			"contacts":             tier.ContactsLimit,
			"calls_per_month":      tier.CallsPerMonth,
			"emails_per_day":       tier.EmailsPerDay,
			"automations":          tier.AutomationsLimit,
			"canvas_scans_per_day": tier.CanvasScansPerDay,
			"ai_prompts_per_day":   tier.AIPromptsPerDay,
		},
		"capabilities": gin.H{
			"phone_access":      tier.PhoneAccess,
			"email_access":      tier.EmailAccess,
			"gmail_integration": tier.GmailIntegration,
			"white_label":       tier.WhiteLabel,
		},
	})
}
