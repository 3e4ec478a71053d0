package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/access"
	"github.com/repspheres/repcore/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TierHandler manages admin CRUD endpoints for subscription tiers.
type TierHandler struct {
	db *gorm.DB // Database handle for tier records.
}

// NewTierHandler constructs a tier handler.
func NewTierHandler(db *gorm.DB) *TierHandler {
	return &TierHandler{db: db}
}

// normalizeFeatureLines validates the feature_lines JSON payload.
func normalizeFeatureLines(raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return datatypes.JSON([]byte("[]")), nil
	}
	var lines []string
	if errUnmarshal := json.Unmarshal(raw, &lines); errUnmarshal != nil {
		return nil, errors.New("invalid feature_lines")
	}
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cleaned = append(cleaned, line)
	}
	rawLines, errMarshal := json.Marshal(cleaned)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(rawLines), nil
}

// validateLimit accepts non-negative caps and the unlimited sentinel.
func validateLimit(v int64) bool {
	return v >= 0 || v == models.UnlimitedLimit
}

// createTierRequest captures the payload for creating a tier.
type createTierRequest struct {
	Slug                 string          `json:"slug"`                    // Stable tier identifier.
	Name                 string          `json:"name"`                    // Display name.
	Rank                 int             `json:"rank"`                    // Ladder position.
	MonthPrice           float64         `json:"month_price"`             // Monthly price.
	AnnualPrice          float64         `json:"annual_price"`            // Annual price.
	StripeMonthlyPriceID string          `json:"stripe_monthly_price_id"` // Stripe monthly price ID.
	StripeAnnualPriceID  string          `json:"stripe_annual_price_id"`  // Stripe annual price ID.
	FeatureLines         json.RawMessage `json:"feature_lines"`           // Marketing bullet lines.
	ContactsLimit        int64           `json:"contacts_limit"`          // Contact cap.
	CallsPerMonth        int64           `json:"calls_per_month"`         // Monthly call cap.
	EmailsPerDay         int64           `json:"emails_per_day"`          // Daily email cap.
	AutomationsLimit     int64           `json:"automations_limit"`       // Automation cap.
	CanvasScansPerDay    int64           `json:"canvas_scans_per_day"`    // Daily Canvas scan cap.
	AIPromptsPerDay      int64           `json:"ai_prompts_per_day"`      // Daily AI prompt cap.
	PhoneAccess          bool            `json:"phone_access"`            // Phone line flag.
	EmailAccess          bool            `json:"email_access"`            // Email sending flag.
	GmailIntegration     bool            `json:"gmail_integration"`       // Gmail sync flag.
	WhiteLabel           bool            `json:"white_label"`             // White-label flag.
	SendRateLimit        int             `json:"send_rate_limit"`         // Sends per second.
	SortOrder            int             `json:"sort_order"`              // Display order.
	IsEnabled            *bool           `json:"is_enabled"`              // Optional active flag.
	Force                bool            `json:"force"`                   // Skip ladder rank validation.
}

// Create validates input, checks the ladder, and inserts a new tier.
func (h *TierHandler) Create(c *gin.Context) {
	var body createTierRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	slug := strings.ToLower(strings.TrimSpace(body.Slug))
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug is required"})
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	for _, limit := range []int64{body.ContactsLimit, body.CallsPerMonth, body.EmailsPerDay, body.AutomationsLimit, body.CanvasScansPerDay, body.AIPromptsPerDay} {
		if !validateLimit(limit) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limits must be non-negative or -1 for unlimited"})
			return
		}
	}

	isEnabled := true
	if body.IsEnabled != nil {
		isEnabled = *body.IsEnabled
	}
	featureLines, errLines := normalizeFeatureLines(body.FeatureLines)
	if errLines != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feature_lines"})
		return
	}

	now := time.Now().UTC()
	tier := models.Tier{
		Slug:                 slug,
		Name:                 strings.TrimSpace(body.Name),
		Rank:                 body.Rank,
		MonthPrice:           body.MonthPrice,
		AnnualPrice:          body.AnnualPrice,
		StripeMonthlyPriceID: strings.TrimSpace(body.StripeMonthlyPriceID),
		StripeAnnualPriceID:  strings.TrimSpace(body.StripeAnnualPriceID),
		FeatureLines:         featureLines,
		ContactsLimit:        body.ContactsLimit,
		CallsPerMonth:        body.CallsPerMonth,
		EmailsPerDay:         body.EmailsPerDay,
		AutomationsLimit:     body.AutomationsLimit,
		CanvasScansPerDay:    body.CanvasScansPerDay,
		AIPromptsPerDay:      body.AIPromptsPerDay,
		PhoneAccess:          body.PhoneAccess,
		EmailAccess:          body.EmailAccess,
		GmailIntegration:     body.GmailIntegration,
		WhiteLabel:           body.WhiteLabel,
		SendRateLimit:        body.SendRateLimit,
		SortOrder:            body.SortOrder,
		IsEnabled:            isEnabled,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if !body.Force {
		if errLadder := h.validateLadderWith(c, &tier, 0); errLadder != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLadder.Error()})
			return
		}
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&tier).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create tier failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatTier(&tier))
}

// List returns all tiers, optionally filtered by enabled flag.
func (h *TierHandler) List(c *gin.Context) {
	enabledQ := strings.TrimSpace(c.Query("is_enabled"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.Tier{})
	if enabledQ != "" {
		if enabledQ == "true" || enabledQ == "1" {
			q = q.Where("is_enabled = ?", true)
		} else if enabledQ == "false" || enabledQ == "0" {
			q = q.Where("is_enabled = ?", false)
		}
	}

	var rows []models.Tier
	if errFind := q.Order("rank ASC, sort_order ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tiers failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatTier(&row))
	}
	c.JSON(http.StatusOK, gin.H{"tiers": out})
}

// Get fetches a tier by ID.
func (h *TierHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var tier models.Tier
	if errFind := h.db.WithContext(c.Request.Context()).First(&tier, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatTier(&tier))
}

// updateTierRequest captures optional fields for tier updates.
type updateTierRequest struct {
	Name                 *string          `json:"name"`                    // Optional name.
	Rank                 *int             `json:"rank"`                    // Optional ladder position.
	MonthPrice           *float64         `json:"month_price"`             // Optional monthly price.
	AnnualPrice          *float64         `json:"annual_price"`            // Optional annual price.
	StripeMonthlyPriceID *string          `json:"stripe_monthly_price_id"` // Optional Stripe monthly price ID.
	StripeAnnualPriceID  *string          `json:"stripe_annual_price_id"`  // Optional Stripe annual price ID.
	FeatureLines         *json.RawMessage `json:"feature_lines"`           // Optional bullet lines.
	ContactsLimit        *int64           `json:"contacts_limit"`          // Optional contact cap.
	CallsPerMonth        *int64           `json:"calls_per_month"`         // Optional call cap.
	EmailsPerDay         *int64           `json:"emails_per_day"`          // Optional email cap.
	AutomationsLimit     *int64           `json:"automations_limit"`       // Optional automation cap.
	CanvasScansPerDay    *int64           `json:"canvas_scans_per_day"`    // Optional Canvas scan cap.
	AIPromptsPerDay      *int64           `json:"ai_prompts_per_day"`      // Optional AI prompt cap.
	PhoneAccess          *bool            `json:"phone_access"`            // Optional phone flag.
	EmailAccess          *bool            `json:"email_access"`            // Optional email flag.
	GmailIntegration     *bool            `json:"gmail_integration"`       // Optional Gmail flag.
	WhiteLabel           *bool            `json:"white_label"`             // Optional white-label flag.
	SendRateLimit        *int             `json:"send_rate_limit"`         // Optional sends per second.
	SortOrder            *int             `json:"sort_order"`              // Optional display order.
	IsEnabled            *bool            `json:"is_enabled"`              // Optional active flag.
	Force                bool             `json:"force"`                   // Skip ladder rank validation.
}

// Update validates and applies tier field updates, re-checking the ladder.
func (h *TierHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateTierRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.Tier
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	next := existing

	if body.Name != nil {
		n := strings.TrimSpace(*body.Name)
		if n == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = n
		next.Name = n
	}
	if body.Rank != nil {
		updates["rank"] = *body.Rank
		next.Rank = *body.Rank
	}
	if body.MonthPrice != nil {
		updates["month_price"] = *body.MonthPrice
		next.MonthPrice = *body.MonthPrice
	}
	if body.AnnualPrice != nil {
		updates["annual_price"] = *body.AnnualPrice
		next.AnnualPrice = *body.AnnualPrice
	}
	if body.StripeMonthlyPriceID != nil {
		updates["stripe_monthly_price_id"] = strings.TrimSpace(*body.StripeMonthlyPriceID)
		next.StripeMonthlyPriceID = strings.TrimSpace(*body.StripeMonthlyPriceID)
	}
	if body.StripeAnnualPriceID != nil {
		updates["stripe_annual_price_id"] = strings.TrimSpace(*body.StripeAnnualPriceID)
		next.StripeAnnualPriceID = strings.TrimSpace(*body.StripeAnnualPriceID)
	}
	if body.FeatureLines != nil {
		featureLines, errLines := normalizeFeatureLines(*body.FeatureLines)
		if errLines != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feature_lines"})
			return
		}
		updates["feature_lines"] = featureLines
		next.FeatureLines = featureLines
	}
	limitFields := []struct {
		value  **int64
		column string
		dest   *int64
	}{
		{&body.ContactsLimit, "contacts_limit", &next.ContactsLimit},
		{&body.CallsPerMonth, "calls_per_month", &next.CallsPerMonth},
		{&body.EmailsPerDay, "emails_per_day", &next.EmailsPerDay},
		{&body.AutomationsLimit, "automations_limit", &next.AutomationsLimit},
		{&body.CanvasScansPerDay, "canvas_scans_per_day", &next.CanvasScansPerDay},
		{&body.AIPromptsPerDay, "ai_prompts_per_day", &next.AIPromptsPerDay},
	}
	for _, field := range limitFields {
		if *field.value == nil {
			continue
		}
		v := **field.value
		if !validateLimit(v) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limits must be non-negative or -1 for unlimited"})
			return
		}
		updates[field.column] = v
		*field.dest = v
	}
	if body.PhoneAccess != nil {
		updates["phone_access"] = *body.PhoneAccess
		next.PhoneAccess = *body.PhoneAccess
	}
	if body.EmailAccess != nil {
		updates["email_access"] = *body.EmailAccess
		next.EmailAccess = *body.EmailAccess
	}
	if body.GmailIntegration != nil {
		updates["gmail_integration"] = *body.GmailIntegration
		next.GmailIntegration = *body.GmailIntegration
	}
	if body.WhiteLabel != nil {
		updates["white_label"] = *body.WhiteLabel
		next.WhiteLabel = *body.WhiteLabel
	}
	if body.SendRateLimit != nil {
		updates["send_rate_limit"] = *body.SendRateLimit
		next.SendRateLimit = *body.SendRateLimit
	}
	if body.SortOrder != nil {
		updates["sort_order"] = *body.SortOrder
		next.SortOrder = *body.SortOrder
	}
	if body.IsEnabled != nil {
		updates["is_enabled"] = *body.IsEnabled
		next.IsEnabled = *body.IsEnabled
	}

	if !body.Force {
		if errLadder := h.validateLadderWith(c, &next, next.ID); errLadder != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLadder.Error()})
			return
		}
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Tier{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a tier that no rep is subscribed to.
func (h *TierHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var subscribed int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Rep{}).
		Where("tier_id = ?", id).Count(&subscribed).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if subscribed > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "tier has subscribed reps"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Delete(&models.Tier{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Enable marks a tier as enabled.
func (h *TierHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable marks a tier as disabled.
func (h *TierHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

// setEnabled toggles the enabled state for a tier.
func (h *TierHandler) setEnabled(c *gin.Context, enabled bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	now := time.Now().UTC()
	res := h.db.WithContext(c.Request.Context()).Model(&models.Tier{}).Where("id = ?", id).
		Updates(map[string]any{"is_enabled": enabled, "updated_at": now})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// validateLadderWith checks the ladder as it would look with the candidate
// tier applied. excludeID skips the stored row being replaced.
func (h *TierHandler) validateLadderWith(c *gin.Context, candidate *models.Tier, excludeID uint64) error {
	var rows []models.Tier
	q := h.db.WithContext(c.Request.Context()).Model(&models.Tier{})
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if errFind := q.Find(&rows).Error; errFind != nil {
		return errors.New("query failed")
	}
	rows = append(rows, *candidate)
	return access.ValidateTierOrder(rows)
}

// formatTier converts a tier model into a response payload.
func (h *TierHandler) formatTier(t *models.Tier) gin.H {
	return gin.H{
		"id":                      t.ID,
		"slug":                    t.Slug,
		"name":                    t.Name,
		"rank":                    t.Rank,
		"month_price":             t.MonthPrice,
		"annual_price":            t.AnnualPrice,
		"stripe_monthly_price_id": t.StripeMonthlyPriceID,
		"stripe_annual_price_id":  t.StripeAnnualPriceID,
		"feature_lines":           t.FeatureLines,
		"contacts_limit":          t.ContactsLimit,
		"calls_per_month":         t.CallsPerMonth,
		"emails_per_day":          t.EmailsPerDay,
		"automations_limit":       t.AutomationsLimit,
		"canvas_scans_per_day":    t.CanvasScansPerDay,
		"ai_prompts_per_day":      t.AIPromptsPerDay,
		"phone_access":            t.PhoneAccess,
		"email_access":            t.EmailAccess,
		"gmail_integration":       t.GmailIntegration,
		"white_label":             t.WhiteLabel,
		"send_rate_limit":         t.SendRateLimit,
		"sort_order":              t.SortOrder,
		"is_enabled":              t.IsEnabled,
		"created_at":              t.CreatedAt,
		"updated_at":              t.UpdatedAt,
	}
}
