package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/access"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/usage"
	"gorm.io/gorm"
)

// AccessHandler answers feature access questions for the signed-in rep.
type AccessHandler struct {
	db       *gorm.DB            // Database handle for rep records.
	recorder *usage.GormRecorder // Usage counter reader.
}

// NewAccessHandler constructs an access handler.
func NewAccessHandler(db *gorm.DB, recorder *usage.GormRecorder) *AccessHandler {
	return &AccessHandler{db: db, recorder: recorder}
}

// validateAccessRequest names a feature and, for entity-count features, the
// caller's current usage.
type validateAccessRequest struct {
	Feature string `json:"feature"` // Feature name to check.
	Usage   *int64 `json:"usage"`   // Current usage for features without server counters.
}

// Validate resolves whether the rep's tier grants a feature right now.
func (h *AccessHandler) Validate(c *gin.Context) {
	repID := currentRepID(c)
	if repID == 0 {
		return
	}
	var body validateAccessRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	feature := access.Feature(body.Feature)
	if !access.Known(feature) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown feature"})
		return
	}

	var rep models.Rep
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Tier").Take(&rep, repID).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "rep not found"})
		return
	}
	if rep.Tier == nil {
		c.JSON(http.StatusOK, access.Decision{
			HasAccess: false,
			Reason:    "No subscription tier assigned",
		})
		return
	}

	var used int64
	if access.Counted(feature) {
		if body.Usage != nil {
			used = *body.Usage
		} else {
			count, errCount := h.recorder.CurrentCount(c.Request.Context(), repID, feature, time.Now().UTC())
			switch {
			case errCount == nil:
				used = count
			case errors.Is(errCount, usage.ErrUntrackedFeature):
				c.JSON(http.StatusBadRequest, gin.H{"error": "usage is required for this feature"})
				return
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "usage lookup failed"})
				return
			}
		}
	}

	decision, errResolve := access.Resolve(rep.Tier, feature, used)
	if errResolve != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown feature"})
		return
	}
	c.JSON(http.StatusOK, decision)
}
