package repository

import (
	"time"

	"curalink/internal/domain"
	"curalink/internal/models"

	"gorm.io/gorm"
)

type ConsultationRepository struct {
	db *gorm.DB
}

func NewConsultationRepository(db *gorm.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

func (r *ConsultationRepository) Create(c *models.Consultation) error {
	return r.db.Create(c).Error
}

func (r *ConsultationRepository) GetByID(id uint) (*models.Consultation, error) {
	var c models.Consultation
	err := r.db.Preload("Channel").First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConsultationRepository) GetByBookingRef(ref string) (*models.Consultation, error) {
	var c models.Consultation
	err := r.db.Where("booking_ref = ?", ref).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConsultationRepository) ListByPatientID(patientID uint, limit, offset int) ([]models.Consultation, error) {
	var list []models.Consultation
	err := r.db.Where("patient_id = ?", patientID).
		Order("scheduled_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *ConsultationRepository) ListByProviderID(providerID uint, limit, offset int) ([]models.Consultation, error) {
	var list []models.Consultation
	err := r.db.Where("provider_id = ?", providerID).
		Order("scheduled_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// TransitionStatus applies updates only when the consultation is still in one
// of the expected prior states. Returns false when the guard lost the race,
// which callers surface as InvalidState.
func (r *ConsultationRepository) TransitionStatus(id uint, from []string, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&models.Consultation{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// MarkSessionStarted flips session_started exactly once for an approved,
// not-yet-started consultation.
func (r *ConsultationRepository) MarkSessionStarted(id uint) (bool, error) {
	res := r.db.Model(&models.Consultation{}).
		Where("id = ? AND status = ? AND session_started = ?", id, domain.StatusApproved, false).
		Update("session_started", true)
	return res.RowsAffected > 0, res.Error
}

// MarkJoined flips one party's join flag; a no-op when already set.
func (r *ConsultationRepository) MarkJoined(id uint, role string) error {
	col := "patient_joined"
	if role == domain.RoleProvider {
		col = "provider_joined"
	}
	return r.db.Model(&models.Consultation{}).
		Where("id = ? AND "+col+" = ?", id, false).
		Update(col, true).Error
}

// StampEnteredSession sets entered_session_at once, only when both parties
// have joined. The WHERE clause is the atomic set-only-if-null guard; under
// concurrent access exactly one caller wins.
func (r *ConsultationRepository) StampEnteredSession(id uint, at time.Time) (bool, error) {
	res := r.db.Model(&models.Consultation{}).
		Where("id = ? AND entered_session_at IS NULL AND patient_joined = ? AND provider_joined = ?", id, true, true).
		Update("entered_session_at", at)
	return res.RowsAffected > 0, res.Error
}

// SetRating records the one-time rating; fails the guard when not completed
// or already rated.
func (r *ConsultationRepository) SetRating(id uint, rating int) (bool, error) {
	res := r.db.Model(&models.Consultation{}).
		Where("id = ? AND status = ? AND rating IS NULL", id, domain.StatusCompleted).
		Update("rating", rating)
	return res.RowsAffected > 0, res.Error
}

// ProviderRatingStats returns mean and count over rated completed
// consultations for the provider.
func (r *ConsultationRepository) ProviderRatingStats(providerID uint) (float64, int, error) {
	type row struct {
		Avg   float64
		Count int
	}
	var out row
	err := r.db.Model(&models.Consultation{}).
		Select("AVG(rating) AS avg, COUNT(*) AS count").
		Where("provider_id = ? AND status = ? AND rating IS NOT NULL", providerID, domain.StatusCompleted).
		Scan(&out).Error
	return out.Avg, out.Count, err
}

// HardDelete removes the row entirely. Only used for unpaid cancellations,
// where no money moved and no audit trail is kept.
func (r *ConsultationRepository) HardDelete(id uint) error {
	return r.db.Unscoped().Delete(&models.Consultation{}, id).Error
}

// ListMissedStartBefore returns approved consultations with no expiry stage
// whose scheduled time predates the cutoff.
func (r *ConsultationRepository) ListMissedStartBefore(cutoff time.Time, limit int) ([]models.Consultation, error) {
	var list []models.Consultation
	err := r.db.Where("status = ? AND session_started = ? AND expiry_stage IS NULL AND scheduled_at < ?",
		domain.StatusApproved, false, cutoff).
		Limit(limit).Find(&list).Error
	return list, err
}

// ListExpiredBefore returns consultations stuck in the expired stage since
// before the cutoff.
func (r *ConsultationRepository) ListExpiredBefore(cutoff time.Time, limit int) ([]models.Consultation, error) {
	var list []models.Consultation
	err := r.db.Where("expiry_stage = ? AND expired_at < ?", domain.ExpiryStageExpired, cutoff).
		Limit(limit).Find(&list).Error
	return list, err
}

// MarkExpired advances a consultation into the expired stage, guarded so a
// racing user action (cancel, start) cannot be overwritten.
func (r *ConsultationRepository) MarkExpired(id uint, at time.Time) (bool, error) {
	res := r.db.Model(&models.Consultation{}).
		Where("id = ? AND status = ? AND session_started = ? AND expiry_stage IS NULL", id, domain.StatusApproved, false).
		Updates(map[string]interface{}{"expiry_stage": domain.ExpiryStageExpired, "expired_at": at})
	return res.RowsAffected > 0, res.Error
}

// MarkPermanentlyExpired promotes an expired consultation and flips payment
// to refunded in the same conditional write.
func (r *ConsultationRepository) MarkPermanentlyExpired(id uint) (bool, error) {
	res := r.db.Model(&models.Consultation{}).
		Where("id = ? AND expiry_stage = ?", id, domain.ExpiryStageExpired).
		Updates(map[string]interface{}{"expiry_stage": domain.ExpiryStagePermanent, "payment_status": domain.PaymentRefunded})
	return res.RowsAffected > 0, res.Error
}
