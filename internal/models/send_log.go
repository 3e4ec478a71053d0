package models

import (
	"time"

	"gorm.io/datatypes"
)

// SendStatus represents the outcome of one outbound message.
type SendStatus string

// SendStatus constants define send outcomes.
const (
	// SendStatusSent marks a delivered message.
	SendStatusSent SendStatus = "sent"
	// SendStatusFailed marks a message the transport rejected.
	SendStatusFailed SendStatus = "failed"
)

// EmailSendLog records one outbound message for analytics.
type EmailSendLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RepID     uint64 `gorm:"not null;index"`             // Sending rep ID.
	AccountID uint64 `gorm:"not null;index"`             // Sending account ID.
	FromEmail string `gorm:"type:varchar(320);not null"` // Sending address at time of send.

	ToAddresses  datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // To recipient list.
	CcAddresses  datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Cc recipient list.
	BccAddresses datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Bcc recipient list.

	Subject     string `gorm:"type:text"`         // Message subject.
	BodyPreview string `gorm:"type:varchar(200)"` // First 200 characters of the body.

	Status            SendStatus `gorm:"type:varchar(16);not null"` // Send outcome.
	ProviderMessageID string     `gorm:"type:varchar(255)"`         // Message ID returned by the transport.
	ErrorText         string     `gorm:"type:text"`                 // Transport error for failed sends.

	SentAt    time.Time `gorm:"not null;index"`          // Time the send completed.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
