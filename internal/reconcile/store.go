package reconcile

import (
	"context"
	"errors"
	"time"
)

// ErrDraftNotFound is returned when a draft is absent, already consumed, or
// past its TTL. Payment without a retrievable draft never produces a
// consultation.
var ErrDraftNotFound = errors.New("booking draft not found or expired")

// Draft holds everything needed to build a consultation once the gateway
// confirms payment. It lives only in the store, never in the database.
type Draft struct {
	BookingID         string    `json:"booking_id"`
	PatientID         uint      `json:"patient_id"`
	ProviderID        uint      `json:"provider_id"`
	ProviderName      string    `json:"provider_name"`
	ProviderSpecialty string    `json:"provider_specialty"`
	ScheduledAt       time.Time `json:"scheduled_at"`
	Type              string    `json:"type"`
	FeeCents          int64     `json:"fee_cents"`
	Reason            string    `json:"reason"`
	PaymentMethod     string    `json:"payment_method"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// Store keeps booking drafts awaiting payment confirmation. Consume must be
// atomic: a draft is handed out exactly once, to exactly one caller.
type Store interface {
	Put(ctx context.Context, d *Draft, ttl time.Duration) error
	Get(ctx context.Context, bookingID string) (*Draft, error)
	Consume(ctx context.Context, bookingID string) (*Draft, error)
	Delete(ctx context.Context, bookingID string) error
}
