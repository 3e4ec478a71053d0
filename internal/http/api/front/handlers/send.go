package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/sender"
	"gorm.io/gorm"
)

// SendHandler delivers rep email and serves send history.
type SendHandler struct {
	db      *gorm.DB        // Database handle for send log records.
	service *sender.Service // Delivery pipeline.
}

// NewSendHandler constructs a send handler.
func NewSendHandler(db *gorm.DB, service *sender.Service) *SendHandler {
	return &SendHandler{db: db, service: service}
}

// Send validates, gates, and delivers one message for the signed-in rep.
func (h *SendHandler) Send(c *gin.Context) {
	repID := currentRepID(c)
	if repID == 0 {
		return
	}
	var req sender.Request
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	entry, errSend := h.service.Send(c.Request.Context(), repID, req)
	if errSend != nil {
		var accessErr *sender.AccessError
		switch {
		case errors.As(errSend, &accessErr):
			c.JSON(http.StatusForbidden, gin.H{"error": accessErr.Reason, "limit": accessErr.Limit})
		case errors.Is(errSend, sender.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "send rate limit exceeded"})
		case errors.Is(errSend, sender.ErrNoVerifiedAccount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no verified sending account"})
		case entry != nil:
			c.JSON(http.StatusBadGateway, gin.H{"error": errSend.Error(), "log_id": entry.ID})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": errSend.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":                  true,
		"log_id":              entry.ID,
		"provider_message_id": entry.ProviderMessageID,
	})
}

// Logs lists the signed-in rep's send history, newest first.
func (h *SendHandler) Logs(c *gin.Context) {
	repID := currentRepID(c)
	if repID == 0 {
		return
	}

	limit := 50
	if limitQ := strings.TrimSpace(c.Query("limit")); limitQ != "" {
		parsed, errParse := strconv.Atoi(limitQ)
		if errParse != nil || parsed < 1 || parsed > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = parsed
	}
	offset := 0
	if offsetQ := strings.TrimSpace(c.Query("offset")); offsetQ != "" {
		parsed, errParse := strconv.Atoi(offsetQ)
		if errParse != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return
		}
		offset = parsed
	}

	var rows []models.EmailSendLog
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("rep_id = ?", repID).
		Order("sent_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list send logs failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":                  row.ID,
			"account_id":          row.AccountID,
			"from_email":          row.FromEmail,
			"subject":             row.Subject,
			"status":              row.Status,
			"provider_message_id": row.ProviderMessageID,
			"error":               row.ErrorText,
			"sent_at":             row.SentAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"logs": out})
}
