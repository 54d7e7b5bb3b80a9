package models

import (
	"time"

	"curalink/internal/domain"

	"gorm.io/gorm"
)

type Consultation struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	PatientID  uint `gorm:"not null;index" json:"patient_id"`
	ProviderID uint `gorm:"not null;index" json:"provider_id"`

	// Snapshot of the provider profile at booking time.
	ProviderName      string `gorm:"size:128" json:"provider_name"`
	ProviderSpecialty string `gorm:"size:128" json:"provider_specialty"`

	ScheduledAt time.Time `gorm:"not null;index" json:"scheduled_at"`
	Type        string    `gorm:"size:10;not null" json:"type"` // chat | audio | video
	FeeCents    int64     `gorm:"not null" json:"fee_cents"`
	Reason      string    `gorm:"type:text" json:"reason"`

	Status        string `gorm:"size:20;not null;index" json:"status"`         // upcoming | approved | completed | rejected | cancelled
	PaymentStatus string `gorm:"size:20;not null;index" json:"payment_status"` // pending | paid | refunded
	PaymentMethod string `gorm:"size:20" json:"payment_method"`

	// BookingRef links a gateway-reconciled consultation back to its draft id.
	// The unique index is what makes verification retries idempotent.
	BookingRef *string `gorm:"uniqueIndex;size:64" json:"booking_ref,omitempty"`

	SessionStarted   bool       `gorm:"default:false" json:"session_started"`
	PatientJoined    bool       `gorm:"default:false" json:"patient_joined"`
	ProviderJoined   bool       `gorm:"default:false" json:"provider_joined"`
	EnteredSessionAt *time.Time `json:"entered_session_at"`

	ExpiryStage *string    `gorm:"size:32;index" json:"expiry_stage"` // nil | expired | permanently_expired
	ExpiredAt   *time.Time `json:"expired_at"`

	ApprovedAt   *time.Time `json:"approved_at"`
	RejectedAt   *time.Time `json:"rejected_at"`
	RejectReason string     `gorm:"type:text" json:"reject_reason,omitempty"`

	Rating *int `json:"rating"` // 1..5, set once after completion

	// Set on a re-requested consultation, pointing at the expired original.
	RenewedFromID *uint `gorm:"index" json:"renewed_from_id,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Patient  User            `gorm:"foreignKey:PatientID" json:"-"`
	Provider User            `gorm:"foreignKey:ProviderID" json:"-"`
	Channel  *SessionChannel `gorm:"foreignKey:ConsultationID" json:"channel,omitempty"`
}

func (Consultation) TableName() string {
	return "consultations"
}

func (c *Consultation) IsPaid() bool { return c.PaymentStatus == domain.PaymentPaid }

func (c *Consultation) ParticipantRole(userID uint) string {
	switch userID {
	case c.PatientID:
		return domain.RolePatient
	case c.ProviderID:
		return domain.RoleProvider
	}
	return ""
}
