package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	internaldb "github.com/repspheres/repcore/internal/db"
	"github.com/repspheres/repcore/internal/models"
	"gorm.io/gorm"
)

// SendLogHandler exposes outbound send history to admins.
type SendLogHandler struct {
	db *gorm.DB // Database handle for send log records.
}

// NewSendLogHandler constructs a send log handler.
func NewSendLogHandler(db *gorm.DB) *SendLogHandler {
	return &SendLogHandler{db: db}
}

// List returns send log entries, newest first, with optional filters.
func (h *SendLogHandler) List(c *gin.Context) {
	conn := h.db.WithContext(c.Request.Context())
	q := conn.Model(&models.EmailSendLog{})

	if repQ := strings.TrimSpace(c.Query("rep_id")); repQ != "" {
		repID, errParse := strconv.ParseUint(repQ, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rep_id"})
			return
		}
		q = q.Where("rep_id = ?", repID)
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		if status != string(models.SendStatusSent) && status != string(models.SendStatusFailed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		q = q.Where("status = ?", status)
	}
	if recipient := strings.TrimSpace(c.Query("recipient")); recipient != "" {
		q = q.Where(internaldb.JSONArrayContainsExpr(conn, "to_addresses"), internaldb.JSONArrayContainsValue(conn, recipient))
	}
	if since := strings.TrimSpace(c.Query("since")); since != "" {
		ts, errParse := time.Parse(time.RFC3339, since)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since, expected RFC3339"})
			return
		}
		q = q.Where("sent_at >= ?", ts)
	}
	if until := strings.TrimSpace(c.Query("until")); until != "" {
		ts, errParse := time.Parse(time.RFC3339, until)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid until, expected RFC3339"})
			return
		}
		q = q.Where("sent_at < ?", ts)
	}

	limit := 50
	if limitQ := strings.TrimSpace(c.Query("limit")); limitQ != "" {
		parsed, errParse := strconv.Atoi(limitQ)
		if errParse != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
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

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	var rows []models.EmailSendLog
	if errFind := q.Order("sent_at DESC, id DESC").Limit(limit).Offset(offset).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list send logs failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatSendLog(&row))
	}
	c.JSON(http.StatusOK, gin.H{"logs": out, "total": total, "limit": limit, "offset": offset})
}

// Stats returns sent and failed counts, optionally scoped to one rep.
func (h *SendLogHandler) Stats(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.EmailSendLog{})
	if repQ := strings.TrimSpace(c.Query("rep_id")); repQ != "" {
		repID, errParse := strconv.ParseUint(repQ, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rep_id"})
			return
		}
		q = q.Where("rep_id = ?", repID)
	}

	type statusCount struct {
		Status string // Send outcome.
		Count  int64  // Number of rows.
	}
	var counts []statusCount
	if errScan := q.Select("status, COUNT(*) AS count").Group("status").Scan(&counts).Error; errScan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}

	out := gin.H{"sent": int64(0), "failed": int64(0)}
	for _, row := range counts {
		out[row.Status] = row.Count
	}
	c.JSON(http.StatusOK, out)
}

// formatSendLog converts a send log row into a response payload.
func formatSendLog(l *models.EmailSendLog) gin.H {
	return gin.H{
		"id":                  l.ID,
		"rep_id":              l.RepID,
		"account_id":          l.AccountID,
		"from_email":          l.FromEmail,
		"to_addresses":        json.RawMessage(l.ToAddresses),
		"cc_addresses":        json.RawMessage(l.CcAddresses),
		"bcc_addresses":       json.RawMessage(l.BccAddresses),
		"subject":             l.Subject,
		"body_preview":        l.BodyPreview,
		"status":              l.Status,
		"provider_message_id": l.ProviderMessageID,
		"error":               l.ErrorText,
		"sent_at":             l.SentAt,
	}
}
