package models

import (
	"time"

	"gorm.io/datatypes"
)

// UnlimitedLimit is the sentinel for a feature with no cap.
const UnlimitedLimit int64 = -1

// Tier represents a subscription level with feature limits and capabilities.
type Tier struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Slug string `gorm:"type:varchar(64);not null;uniqueIndex"` // Stable tier identifier (repx1..repx5).
	Name string `gorm:"type:varchar(255);not null"`            // Display name.
	Rank int    `gorm:"not null;default:0"`                    // Ordering position, low tier to high.

	MonthPrice  float64 `gorm:"type:decimal(10,2);not null;default:0"` // Monthly price.
	AnnualPrice float64 `gorm:"type:decimal(10,2);not null;default:0"` // Annual price.

	StripeMonthlyPriceID string `gorm:"type:varchar(255)"` // Stripe price ID for monthly billing.
	StripeAnnualPriceID  string `gorm:"type:varchar(255)"` // Stripe price ID for annual billing.

	FeatureLines datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Marketing feature bullet list.

	ContactsLimit     int64 `gorm:"not null;default:0"` // Contact cap, -1 for unlimited.
	CallsPerMonth     int64 `gorm:"not null;default:0"` // Monthly call cap, -1 for unlimited.
	EmailsPerDay      int64 `gorm:"not null;default:0"` // Daily email cap, -1 for unlimited.
	AutomationsLimit  int64 `gorm:"not null;default:0"` // Concurrent automation cap, -1 for unlimited.
	CanvasScansPerDay int64 `gorm:"not null;default:0"` // Daily Canvas scan cap, -1 for unlimited.
	AIPromptsPerDay   int64 `gorm:"not null;default:0"` // Daily AI prompt cap, -1 for unlimited.

	PhoneAccess      bool `gorm:"not null;default:false"` // Whether the tier includes the phone line.
	EmailAccess      bool `gorm:"not null;default:false"` // Whether the tier may send email.
	GmailIntegration bool `gorm:"not null;default:false"` // Whether Gmail sync is included.
	WhiteLabel       bool `gorm:"not null;default:false"` // Whether white-label branding is included.

	SendRateLimit int `gorm:"not null;default:0"` // Outbound sends per second, 0 for the settings default.

	SortOrder int  `gorm:"not null;default:0"`    // Display ordering weight.
	IsEnabled bool `gorm:"not null;default:true"` // Whether the tier can be purchased.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
