package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SettingHandler manages runtime configuration stored in the database.
type SettingHandler struct {
	db *gorm.DB // Database handle for setting records.
}

// NewSettingHandler constructs a setting handler.
func NewSettingHandler(db *gorm.DB) *SettingHandler {
	return &SettingHandler{db: db}
}

// settingKeyValid reports whether a config key name is acceptable.
func settingKeyValid(key string) bool {
	if key == "" || len(key) > 255 {
		return false
	}
	for _, r := range key {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// validateSettingValue rejects malformed values for keys the server reads.
func validateSettingValue(key string, raw json.RawMessage) error {
	switch key {
	case settings.SendRateLimitKey, settings.SendRateLimitRedisDBKey:
		v, errParse := parseSettingInt(raw)
		if errParse != nil || v < 0 {
			return errors.New("value must be a non-negative integer")
		}
	case settings.SilentOAuthTimeoutSecondsKey:
		v, errParse := parseSettingInt(raw)
		if errParse != nil || v <= 0 {
			return errors.New("value must be a positive integer")
		}
	case settings.SendRateLimitRedisEnabledKey:
		var b bool
		var s string
		if json.Unmarshal(raw, &b) != nil && json.Unmarshal(raw, &s) != nil {
			return errors.New("value must be a boolean")
		}
	}
	return nil
}

// parseSettingInt accepts a JSON number or a numeric string.
func parseSettingInt(raw json.RawMessage) (int64, error) {
	var n int64
	if errNum := json.Unmarshal(raw, &n); errNum == nil {
		return n, nil
	}
	var s string
	if errStr := json.Unmarshal(raw, &s); errStr == nil {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	return 0, errors.New("not an integer")
}

// List returns all stored settings.
func (h *SettingHandler) List(c *gin.Context) {
	var rows []models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Order("key ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list settings failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatSetting(&row))
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

// Get fetches one setting by key.
func (h *SettingHandler) Get(c *gin.Context) {
	key := strings.ToUpper(strings.TrimSpace(c.Param("key")))
	if !settingKeyValid(key) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	var row models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Where("key = ?", key).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatSetting(&row))
}

// upsertSettingRequest carries a setting value.
type upsertSettingRequest struct {
	Value json.RawMessage `json:"value"` // JSON value to store.
}

// Upsert creates or replaces a setting value.
func (h *SettingHandler) Upsert(c *gin.Context) {
	key := strings.ToUpper(strings.TrimSpace(c.Param("key")))
	if !settingKeyValid(key) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	var body upsertSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.Value) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}
	if errValidate := validateSettingValue(key, body.Value); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	now := time.Now().UTC()
	var row models.Setting
	errFind := h.db.WithContext(c.Request.Context()).Where("key = ?", key).First(&row).Error
	switch {
	case errFind == nil:
		res := h.db.WithContext(c.Request.Context()).Model(&models.Setting{}).Where("key = ?", key).
			Updates(map[string]any{"value": datatypes.JSON(body.Value), "updated_at": now})
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		row = models.Setting{Key: key, Value: datatypes.JSON(body.Value), CreatedAt: now, UpdatedAt: now}
		if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
			return
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	settings.Invalidate()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a setting, reverting the server to its default.
func (h *SettingHandler) Delete(c *gin.Context) {
	key := strings.ToUpper(strings.TrimSpace(c.Param("key")))
	if !settingKeyValid(key) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Where("key = ?", key).Delete(&models.Setting{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	settings.Invalidate()
	c.Status(http.StatusNoContent)
}

// formatSetting converts a setting row into a response payload.
func formatSetting(s *models.Setting) gin.H {
	return gin.H{
		"key":        s.Key,
		"value":      json.RawMessage(s.Value),
		"created_at": s.CreatedAt,
		"updated_at": s.UpdatedAt,
	}
}
