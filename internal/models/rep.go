package models

import "time"

// Rep represents a sales rep account stored in the database.
type Rep struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email       string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	DisplayName string `gorm:"type:text"`                      // Display name.
	Password    string `gorm:"type:text;not null"`             // Hashed password.

	TierID *uint64 `gorm:"index"`             // Active subscription tier ID.
	Tier   *Tier   `gorm:"foreignKey:TierID"` // Active subscription tier.

	StripeCustomerID string `gorm:"type:varchar(255)"` // Stripe customer reference.

	TOTPSecret string `gorm:"type:text"` // TOTP secret for MFA, empty when not enrolled.

	Active   bool `gorm:"not null;default:true"`  // Whether the rep can sign in.
	Disabled bool `gorm:"not null;default:false"` // Explicit disable flag.

	EmailAccounts []WorkEmailAccount `gorm:"foreignKey:RepID"` // Connected sending mailboxes.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
