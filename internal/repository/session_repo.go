package repository

import (
	"errors"
	"time"

	"curalink/internal/domain"
	"curalink/internal/models"

	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) GetByConsultationID(consultationID uint) (*models.SessionChannel, error) {
	var ch models.SessionChannel
	err := r.db.Where("consultation_id = ?", consultationID).First(&ch).Error
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetOrCreate returns the channel for the consultation, creating it in the
// given status when absent. A duplicate-key error from a concurrent create is
// resolved by re-reading.
func (r *SessionRepository) GetOrCreate(consultationID uint, status string) (*models.SessionChannel, error) {
	ch, err := r.GetByConsultationID(consultationID)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	ch = &models.SessionChannel{ConsultationID: consultationID, Status: status}
	if createErr := r.db.Create(ch).Error; createErr != nil {
		// lost the insert race; the other writer's row is authoritative
		return r.GetByConsultationID(consultationID)
	}
	return ch, nil
}

func (r *SessionRepository) Update(ch *models.SessionChannel) error {
	return r.db.Save(ch).Error
}

// Activate moves a waiting channel to active and records who started it.
func (r *SessionRepository) Activate(channelID uint, startedBy string, at time.Time) (bool, error) {
	res := r.db.Model(&models.SessionChannel{}).
		Where("id = ? AND status = ?", channelID, domain.ChannelWaiting).
		Updates(map[string]interface{}{"status": domain.ChannelActive, "started_at": at, "started_by": startedBy})
	return res.RowsAffected > 0, res.Error
}

// StampCallStarted sets call_started_at at most once.
func (r *SessionRepository) StampCallStarted(channelID uint, at time.Time) (bool, error) {
	res := r.db.Model(&models.SessionChannel{}).
		Where("id = ? AND call_started_at IS NULL", channelID).
		Update("call_started_at", at)
	return res.RowsAffected > 0, res.Error
}

// End closes an active channel; the guard makes end idempotent under a race
// between the two parties.
func (r *SessionRepository) End(channelID uint, at time.Time, callDuration int) (bool, error) {
	updates := map[string]interface{}{"status": domain.ChannelEnded, "ended_at": at}
	if callDuration > 0 {
		updates["call_ended_at"] = at
		updates["call_duration"] = callDuration
	}
	res := r.db.Model(&models.SessionChannel{}).
		Where("id = ? AND status = ?", channelID, domain.ChannelActive).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// IncrementUnread bumps the unread counter of the given role.
func (r *SessionRepository) IncrementUnread(channelID uint, role string) error {
	col := "patient_unread"
	if role == domain.RoleProvider {
		col = "provider_unread"
	}
	return r.db.Model(&models.SessionChannel{}).
		Where("id = ?", channelID).
		Update(col, gorm.Expr(col+" + 1")).Error
}

// ResetUnread zeroes the unread counter of the given role.
func (r *SessionRepository) ResetUnread(channelID uint, role string) error {
	col := "patient_unread"
	if role == domain.RoleProvider {
		col = "provider_unread"
	}
	return r.db.Model(&models.SessionChannel{}).
		Where("id = ?", channelID).
		Update(col, 0).Error
}

// SetClearedAt records the per-party history cutoff; messages themselves are
// never touched.
func (r *SessionRepository) SetClearedAt(channelID uint, role string, at time.Time) error {
	col := "patient_cleared_at"
	if role == domain.RoleProvider {
		col = "provider_cleared_at"
	}
	return r.db.Model(&models.SessionChannel{}).
		Where("id = ?", channelID).
		Update(col, at).Error
}
