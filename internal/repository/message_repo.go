package repository

import (
	"time"

	"curalink/internal/domain"
	"curalink/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(m *models.Message) error {
	return r.db.Create(m).Error
}

// ListForParty returns up to limit messages visible to the given role,
// newest-first from the cursor (or the end), respecting the party's
// cleared-at cutoff. Callers reverse the slice for oldest-first display.
func (r *MessageRepository) ListForParty(channelID uint, clearedAt, before *time.Time, limit int) ([]models.Message, error) {
	q := r.db.Where("channel_id = ?", channelID)
	if clearedAt != nil {
		q = q.Where("created_at > ?", *clearedAt)
	}
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}
	var list []models.Message
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&list).Error
	return list, err
}

// MarkReadForRole bulk-flips the read flag for all messages in the channel
// not authored by the role and not yet read by it. Safe to call repeatedly:
// the WHERE clause matches nothing the second time.
func (r *MessageRepository) MarkReadForRole(channelID uint, role string, at time.Time) (int64, error) {
	readCol, readAtCol := "patient_read", "patient_read_at"
	if role == domain.RoleProvider {
		readCol, readAtCol = "provider_read", "provider_read_at"
	}
	res := r.db.Model(&models.Message{}).
		Where("channel_id = ? AND sender_role != ? AND "+readCol+" = ?", channelID, role, false).
		Updates(map[string]interface{}{readCol: true, readAtCol: at})
	return res.RowsAffected, res.Error
}
