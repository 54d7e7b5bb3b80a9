package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionChannel is the live-communication container for one consultation,
// created lazily on first start/access/token request.
type SessionChannel struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	ConsultationID uint   `gorm:"uniqueIndex;not null" json:"consultation_id"`
	Status         string `gorm:"size:10;not null;index" json:"status"` // waiting | active | ended

	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	StartedBy string     `gorm:"size:10" json:"started_by"` // patient | provider

	CallStartedAt *time.Time `json:"call_started_at"`
	CallEndedAt   *time.Time `json:"call_ended_at"`
	CallDuration  int        `gorm:"default:0" json:"call_duration"` // seconds

	PatientUnread  int `gorm:"default:0" json:"patient_unread"`
	ProviderUnread int `gorm:"default:0" json:"provider_unread"`

	// Per-party visibility cutoffs; messages are never deleted.
	PatientClearedAt  *time.Time `json:"patient_cleared_at"`
	ProviderClearedAt *time.Time `json:"provider_cleared_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Consultation Consultation `gorm:"foreignKey:ConsultationID" json:"-"`
}

func (SessionChannel) TableName() string {
	return "session_channels"
}
