package models

import "time"

// SetupMethod identifies how a work email account was connected.
type SetupMethod string

// SetupMethod constants define the supported connection paths.
const (
	// SetupMethodOAuth marks an account connected through silent OAuth.
	SetupMethodOAuth SetupMethod = "oauth"
	// SetupMethodSMTP marks an account connected through guided SMTP setup.
	SetupMethodSMTP SetupMethod = "smtp"
)

// WorkEmailAccount represents one mailbox a rep can send from.
type WorkEmailAccount struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RepID uint64 `gorm:"not null;index"`   // Owning rep ID.
	Rep   Rep    `gorm:"foreignKey:RepID"` // Owning rep record.

	EmailAddress string `gorm:"type:varchar(320);not null"` // Sending address.
	DisplayName  string `gorm:"type:varchar(255)"`          // From header display name.

	Provider string `gorm:"type:varchar(32);not null"` // Detected mail provider.

	SMTPHost   string `gorm:"type:varchar(255);not null"` // SMTP server hostname.
	SMTPPort   int    `gorm:"not null;default:587"`       // SMTP server port.
	SMTPSecure bool   `gorm:"not null;default:false"`     // Implicit TLS flag, true for port 465.

	Credential []byte `gorm:"type:bytea"` // Sealed SMTP credential bytes.

	SetupMethod SetupMethod `gorm:"type:varchar(16);not null"` // How the account was connected.

	IsPrimary  bool `gorm:"not null;default:false"` // Default sending identity, at most one per rep.
	IsVerified bool `gorm:"not null;default:false"` // Whether the connection test passed.

	LastUsedAt *time.Time // Timestamp of the last successful send.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
