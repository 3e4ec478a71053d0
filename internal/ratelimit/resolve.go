package ratelimit

import (
	"context"
	"errors"

	"github.com/repspheres/repcore/internal/models"
	"gorm.io/gorm"
)

// ResolveSendLimit resolves the effective outbound send rate limit for a rep.
// A tier-level limit wins, then the settings default. Zero means no limit.
func ResolveSendLimit(ctx context.Context, db *gorm.DB, repID uint64) (Decision, error) {
	if db == nil || repID == 0 {
		return Decision{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tierLimit, errTier := loadTierSendLimit(ctx, db, repID)
	if errTier != nil {
		return Decision{}, errTier
	}
	if tierLimit > 0 {
		return Decision{Limit: tierLimit, Scope: ScopeRep}, nil
	}

	settingsLimit := DefaultSettingsLimit()
	if settingsLimit > 0 {
		return Decision{Limit: settingsLimit, Scope: ScopeRep}, nil
	}
	return Decision{}, nil
}

func loadTierSendLimit(ctx context.Context, db *gorm.DB, repID uint64) (int, error) {
	var rep models.Rep
	if errFind := db.WithContext(ctx).
		Model(&models.Rep{}).
		Select("tier_id").
		Where("id = ?", repID).
		Take(&rep).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, errFind
	}
	if rep.TierID == nil || *rep.TierID == 0 {
		return 0, nil
	}

	var tier models.Tier
	if errFind := db.WithContext(ctx).
		Model(&models.Tier{}).
		Select("send_rate_limit").
		Where("id = ?", *rep.TierID).
		Take(&tier).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, errFind
	}
	return tier.SendRateLimit, nil
}
