package models

import (
	"time"

	"curalink/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:128;not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone        string         `gorm:"size:32" json:"phone"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Role         string         `gorm:"size:20;not null;index" json:"role"` // patient | provider
	FCMToken     string         `gorm:"size:512" json:"-"`                  // for push notifications
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	ProviderProfile *ProviderProfile `gorm:"foreignKey:UserID" json:"provider_profile,omitempty"`
}

func (u *User) IsProvider() bool { return u.Role == domain.RoleProvider }
func (u *User) IsPatient() bool  { return u.Role == domain.RolePatient }

// ProviderProfile holds the provider-side fields resolved at booking time.
// Name/specialty/fee are snapshotted onto the consultation so later edits
// here never alter historical bookings.
type ProviderProfile struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	Specialty   string         `gorm:"size:128" json:"specialty"`
	FeeCents    int64          `gorm:"not null;default:0" json:"fee_cents"`
	Rating      float64        `gorm:"default:0" json:"rating"`
	RatingCount int            `gorm:"default:0" json:"rating_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (ProviderProfile) TableName() string {
	return "provider_profiles"
}
