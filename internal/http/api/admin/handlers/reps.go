package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	internaldb "github.com/repspheres/repcore/internal/db"
	"github.com/repspheres/repcore/internal/mailer"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/security"
	"gorm.io/gorm"
)

// RepHandler manages admin CRUD endpoints for rep accounts.
type RepHandler struct {
	db *gorm.DB // Database handle for rep records.
}

// NewRepHandler constructs a rep handler.
func NewRepHandler(db *gorm.DB) *RepHandler {
	return &RepHandler{db: db}
}

// createRepRequest captures the payload for creating a rep.
type createRepRequest struct {
	Email       string `json:"email"`        // Login email.
	DisplayName string `json:"display_name"` // Display name.
	Password    string `json:"password"`     // Plaintext password, hashed before storage.
	TierSlug    string `json:"tier_slug"`    // Optional tier by slug.
	TierID      uint64 `json:"tier_id"`      // Optional tier by ID, slug wins when both set.
}

// Create inserts a new rep account.
func (h *RepHandler) Create(c *gin.Context) {
	var body createRepRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	if !mailer.ValidAddress(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}
	if len(body.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	tierID, errTier := h.resolveTierID(c, body.TierSlug, body.TierID)
	if errTier != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errTier.Error()})
		return
	}

	hashed, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	var existing int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Rep{}).
		Where("email = ?", email).Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	now := time.Now().UTC()
	rep := models.Rep{
		Email:       email,
		DisplayName: strings.TrimSpace(body.DisplayName),
		Password:    hashed,
		TierID:      tierID,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&rep).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create rep failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatRep(&rep))
}

// List returns reps with optional search and tier filters.
func (h *RepHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Rep{}).Preload("Tier")

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := internaldb.NormalizeLikePattern(h.db, "%"+search+"%")
		expr := internaldb.CaseInsensitiveLikeExpr(h.db, "email") + " OR " + internaldb.CaseInsensitiveLikeExpr(h.db, "display_name")
		q = q.Where(expr, like, like)
	}
	if tierSlug := strings.TrimSpace(c.Query("tier")); tierSlug != "" {
		q = q.Joins("JOIN tiers ON tiers.id = reps.tier_id").Where("tiers.slug = ?", strings.ToLower(tierSlug))
	}
	if disabledQ := strings.TrimSpace(c.Query("disabled")); disabledQ != "" {
		q = q.Where("disabled = ?", disabledQ == "true" || disabledQ == "1")
	}

	var rows []models.Rep
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list reps failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatRep(&row))
	}
	c.JSON(http.StatusOK, gin.H{"reps": out})
}

// Get fetches a rep by ID.
func (h *RepHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var rep models.Rep
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Tier").First(&rep, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatRep(&rep))
}

// updateRepRequest captures optional fields for rep updates.
type updateRepRequest struct {
	Email       *string `json:"email"`        // Optional login email.
	DisplayName *string `json:"display_name"` // Optional display name.
	TierSlug    *string `json:"tier_slug"`    // Optional tier slug, empty string clears the tier.
	TierID      *uint64 `json:"tier_id"`      // Optional tier ID, zero clears the tier.
}

// Update applies partial rep updates.
func (h *RepHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateRepRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if body.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*body.Email))
		if !mailer.ValidAddress(email) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return
		}
		var taken int64
		if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Rep{}).
			Where("email = ? AND id <> ?", email, id).Count(&taken).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if taken > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		updates["email"] = email
	}
	if body.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*body.DisplayName)
	}
	if body.TierSlug != nil || body.TierID != nil {
		var slug string
		var tierID uint64
		if body.TierSlug != nil {
			slug = *body.TierSlug
		}
		if body.TierID != nil {
			tierID = *body.TierID
		}
		resolved, errTier := h.resolveTierID(c, slug, tierID)
		if errTier != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errTier.Error()})
			return
		}
		updates["tier_id"] = resolved
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Rep{}).Where("id = ?", id).Updates(updates)
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

// Delete removes a rep and its dependent rows.
func (h *RepHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errDel := tx.Where("rep_id = ?", id).Delete(&models.WorkEmailAccount{}).Error; errDel != nil {
			return errDel
		}
		if errDel := tx.Where("rep_id = ?", id).Delete(&models.UsageRecord{}).Error; errDel != nil {
			return errDel
		}
		if errDel := tx.Where("rep_id = ?", id).Delete(&models.EmailSendLog{}).Error; errDel != nil {
			return errDel
		}
		res := tx.Delete(&models.Rep{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Enable reactivates a rep.
func (h *RepHandler) Enable(c *gin.Context) {
	h.setDisabled(c, false)
}

// Disable blocks a rep from signing in and sending.
func (h *RepHandler) Disable(c *gin.Context) {
	h.setDisabled(c, true)
}

// changePasswordRequest carries a replacement password.
type changePasswordRequest struct {
	Password string `json:"password"` // New plaintext password.
}

// ChangePassword replaces the stored password hash.
func (h *RepHandler) ChangePassword(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}
	hashed, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Rep{}).Where("id = ?", id).
		Updates(map[string]any{"password": hashed, "updated_at": time.Now().UTC()})
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

// setDisabled toggles the disabled flag for a rep.
func (h *RepHandler) setDisabled(c *gin.Context, disabled bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	now := time.Now().UTC()
	res := h.db.WithContext(c.Request.Context()).Model(&models.Rep{}).Where("id = ?", id).
		Updates(map[string]any{"disabled": disabled, "active": !disabled, "updated_at": now})
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

// resolveTierID maps a slug or ID to a stored enabled tier. Returns nil when
// both inputs are empty, clearing the subscription.
func (h *RepHandler) resolveTierID(c *gin.Context, slug string, id uint64) (*uint64, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" && id == 0 {
		return nil, nil
	}

	var tier models.Tier
	q := h.db.WithContext(c.Request.Context())
	var errFind error
	if slug != "" {
		errFind = q.Where("slug = ?", slug).First(&tier).Error
	} else {
		errFind = q.First(&tier, id).Error
	}
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, errors.New("tier not found")
		}
		return nil, errors.New("query failed")
	}
	if !tier.IsEnabled {
		return nil, errors.New("tier is disabled")
	}
	return &tier.ID, nil
}

// formatRep converts a rep model into a response payload.
func (h *RepHandler) formatRep(r *models.Rep) gin.H {
	out := gin.H{
		"id":                 r.ID,
		"email":              r.Email,
		"display_name":       r.DisplayName,
		"stripe_customer_id": r.StripeCustomerID,
		"totp_enrolled":      r.TOTPSecret != "",
		"active":             r.Active,
		"disabled":           r.Disabled,
		"created_at":         r.CreatedAt,
		"updated_at":         r.UpdatedAt,
	}
	if r.Tier != nil {
		out["tier"] = gin.H{"id": r.Tier.ID, "slug": r.Tier.Slug, "name": r.Tier.Name}
	} else if r.TierID != nil {
		out["tier"] = gin.H{"id": *r.TierID}
	} else {
		out["tier"] = nil
	}
	return out
}
