package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is one unit of communication within a session channel. Rows are
// append-only; only the read flags are ever updated.
type Message struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ChannelID  uint   `gorm:"not null;index" json:"channel_id"`
	SenderID   uint   `gorm:"not null;index" json:"sender_id"`
	SenderRole string `gorm:"size:10;not null" json:"sender_role"` // patient | provider
	Type       string `gorm:"size:10;not null" json:"type"`        // text | file | system | audio
	Content    string `gorm:"type:text" json:"content"`
	FileURL    string `gorm:"size:512" json:"file_url,omitempty"`
	FileName   string `gorm:"size:255" json:"file_name,omitempty"`

	PatientRead    bool       `gorm:"default:false;index" json:"patient_read"`
	ProviderRead   bool       `gorm:"default:false;index" json:"provider_read"`
	PatientReadAt  *time.Time `json:"patient_read_at"`
	ProviderReadAt *time.Time `json:"provider_read_at"`

	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Channel SessionChannel `gorm:"foreignKey:ChannelID" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}
