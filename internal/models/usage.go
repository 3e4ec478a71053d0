package models

import "time"

// UsagePeriod represents the reset cadence of a usage counter.
type UsagePeriod string

// UsagePeriod constants define counter reset cadences.
const (
	// UsagePeriodDaily resets at UTC midnight.
	UsagePeriodDaily UsagePeriod = "daily"
	// UsagePeriodMonthly resets at the first of the month.
	UsagePeriodMonthly UsagePeriod = "monthly"
)

// UsageRecord counts consumed actions for one rep, feature, and period.
type UsageRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RepID   uint64 `gorm:"not null;uniqueIndex:idx_usage_rep_feature_period"`                  // Owning rep ID.
	Feature string `gorm:"type:varchar(32);not null;uniqueIndex:idx_usage_rep_feature_period"` // Feature name.

	Period      UsagePeriod `gorm:"type:varchar(16);not null"`                         // Reset cadence.
	PeriodStart time.Time   `gorm:"not null;uniqueIndex:idx_usage_rep_feature_period"` // Start of the counted period.

	Count int64 `gorm:"not null;default:0"` // Consumed actions within the period.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
