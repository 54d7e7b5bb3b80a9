package service

import (
	"errors"
	"log"
	"time"

	"curalink/internal/domain"
	"curalink/internal/models"
	"curalink/internal/repository"

	"gorm.io/gorm"
)

// ConsultationService owns the booking state machine. Every transition is a
// conditional write guarded on the expected prior state; a lost guard
// surfaces as InvalidState.
type ConsultationService struct {
	consultRepo *repository.ConsultationRepository
	userRepo    *repository.UserRepository
	notifSvc    *NotificationService
}

func NewConsultationService(consultRepo *repository.ConsultationRepository, userRepo *repository.UserRepository, notifSvc *NotificationService) *ConsultationService {
	return &ConsultationService{consultRepo: consultRepo, userRepo: userRepo, notifSvc: notifSvc}
}

type BookingInput struct {
	ProviderID  uint
	ScheduledAt time.Time
	Type        string
	FeeCents    int64
	Reason      string
}

// ValidateBooking checks the booking fields and resolves the provider
// snapshot. Shared by direct booking and the payment reconciliation flow.
func (s *ConsultationService) ValidateBooking(in BookingInput) (*models.User, error) {
	if in.FeeCents <= 0 {
		return nil, domain.Validationf("fee must be positive")
	}
	if !domain.ValidConsultationType(in.Type) {
		return nil, domain.Validationf("type must be chat, audio or video")
	}
	if in.ScheduledAt.IsZero() {
		return nil, domain.Validationf("scheduled_at is required")
	}
	provider, err := s.userRepo.GetByID(in.ProviderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.Validationf("provider %d does not exist", in.ProviderID)
		}
		return nil, err
	}
	if !provider.IsProvider() {
		return nil, domain.Validationf("user %d is not a provider", in.ProviderID)
	}
	return provider, nil
}

// Book creates an upcoming consultation paid at creation time.
func (s *ConsultationService) Book(patientID uint, in BookingInput) (*models.Consultation, error) {
	provider, err := s.ValidateBooking(in)
	if err != nil {
		return nil, err
	}
	specialty := ""
	if provider.ProviderProfile != nil {
		specialty = provider.ProviderProfile.Specialty
	}
	c := &models.Consultation{
		PatientID:         patientID,
		ProviderID:        in.ProviderID,
		ProviderName:      provider.Name,
		ProviderSpecialty: specialty,
		ScheduledAt:       in.ScheduledAt,
		Type:              in.Type,
		FeeCents:          in.FeeCents,
		Reason:            in.Reason,
		Status:            domain.StatusUpcoming,
		PaymentStatus:     domain.PaymentPaid,
		PaymentMethod:     domain.PaymentMethodDirect,
	}
	if err := s.consultRepo.Create(c); err != nil {
		return nil, err
	}
	if patient, err := s.userRepo.GetByID(patientID); err == nil {
		_ = s.notifSvc.NotifyNewBooking(in.ProviderID, c.ID, patient.Name)
	}
	return c, nil
}

// Approve moves upcoming to approved; only the assigned provider may do it.
func (s *ConsultationService) Approve(providerID, consultationID uint) (*models.Consultation, error) {
	c, err := s.get(consultationID)
	if err != nil {
		return nil, err
	}
	if c.ProviderID != providerID {
		return nil, domain.Forbiddenf("not the assigned provider")
	}
	ok, err := s.consultRepo.TransitionStatus(consultationID,
		[]string{domain.StatusUpcoming},
		map[string]interface{}{"status": domain.StatusApproved, "approved_at": time.Now()})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.InvalidStatef("consultation is not upcoming")
	}
	_ = s.notifSvc.NotifyApproved(c.PatientID, c.ID, c.ProviderName)
	return s.get(consultationID)
}

// Reject moves upcoming to rejected, flips payment to refunded and fires the
// refund-initiated notification.
func (s *ConsultationService) Reject(providerID, consultationID uint, reason string) (*models.Consultation, error) {
	if reason == "" {
		return nil, domain.Validationf("a rejection reason is required")
	}
	c, err := s.get(consultationID)
	if err != nil {
		return nil, err
	}
	if c.ProviderID != providerID {
		return nil, domain.Forbiddenf("not the assigned provider")
	}
	ok, err := s.consultRepo.TransitionStatus(consultationID,
		[]string{domain.StatusUpcoming},
		map[string]interface{}{
			"status":         domain.StatusRejected,
			"payment_status": domain.PaymentRefunded,
			"rejected_at":    time.Now(),
			"reject_reason":  reason,
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.InvalidStatef("consultation is not upcoming")
	}
	_ = s.notifSvc.NotifyRefundInitiated(c.PatientID, c.ID, reason)
	return s.get(consultationID)
}

// Cancel is patient-initiated. Unpaid records are removed outright (no money
// moved, no audit trail kept); paid ones transition to cancelled and are
// retained for refund reconciliation.
func (s *ConsultationService) Cancel(patientID, consultationID uint) error {
	c, err := s.get(consultationID)
	if err != nil {
		return err
	}
	if c.PatientID != patientID {
		return domain.Forbiddenf("not the owning patient")
	}
	if !c.IsPaid() {
		return s.consultRepo.HardDelete(consultationID)
	}
	ok, err := s.consultRepo.TransitionStatus(consultationID,
		[]string{domain.StatusUpcoming, domain.StatusApproved},
		map[string]interface{}{"status": domain.StatusCancelled})
	if err != nil {
		return err
	}
	if !ok {
		return domain.InvalidStatef("consultation can no longer be cancelled")
	}
	return nil
}

// Rate records a one-time 1..5 rating on a completed consultation and
// recomputes the provider's aggregate.
func (s *ConsultationService) Rate(patientID, consultationID uint, rating int) error {
	if rating < 1 || rating > 5 {
		return domain.Validationf("rating must be between 1 and 5")
	}
	c, err := s.get(consultationID)
	if err != nil {
		return err
	}
	if c.PatientID != patientID {
		return domain.Forbiddenf("not the owning patient")
	}
	ok, err := s.consultRepo.SetRating(consultationID, rating)
	if err != nil {
		return err
	}
	if !ok {
		return domain.InvalidStatef("consultation is not completed or already rated")
	}
	avg, count, err := s.consultRepo.ProviderRatingStats(c.ProviderID)
	if err != nil {
		log.Printf("[Consultation] rating stats for provider %d: %v", c.ProviderID, err)
		return nil
	}
	if err := s.userRepo.UpdateProviderRating(c.ProviderID, avg, count); err != nil {
		log.Printf("[Consultation] rating update for provider %d: %v", c.ProviderID, err)
	}
	return nil
}

// ReRequest creates a fresh consultation from one stuck in the expired
// stage, carrying the payment over so the patient is not charged again.
func (s *ConsultationService) ReRequest(patientID, consultationID uint) (*models.Consultation, error) {
	orig, err := s.get(consultationID)
	if err != nil {
		return nil, err
	}
	if orig.PatientID != patientID {
		return nil, domain.Forbiddenf("not the owning patient")
	}
	if orig.ExpiryStage == nil || *orig.ExpiryStage != domain.ExpiryStageExpired {
		return nil, domain.InvalidStatef("consultation is not in the expired stage")
	}
	origID := orig.ID
	c := &models.Consultation{
		PatientID:         orig.PatientID,
		ProviderID:        orig.ProviderID,
		ProviderName:      orig.ProviderName,
		ProviderSpecialty: orig.ProviderSpecialty,
		ScheduledAt:       orig.ScheduledAt,
		Type:              orig.Type,
		FeeCents:          orig.FeeCents,
		Reason:            orig.Reason,
		Status:            domain.StatusUpcoming,
		PaymentStatus:     domain.PaymentPaid,
		PaymentMethod:     orig.PaymentMethod,
		RenewedFromID:     &origID,
	}
	if err := s.consultRepo.Create(c); err != nil {
		return nil, err
	}
	if patient, err := s.userRepo.GetByID(patientID); err == nil {
		_ = s.notifSvc.NotifyNewBooking(c.ProviderID, c.ID, patient.Name)
	}
	return c, nil
}

func (s *ConsultationService) Get(consultationID uint) (*models.Consultation, error) {
	return s.get(consultationID)
}

func (s *ConsultationService) ListForUser(userID uint, role string, limit, offset int) ([]models.Consultation, error) {
	if role == domain.RoleProvider {
		return s.consultRepo.ListByProviderID(userID, limit, offset)
	}
	return s.consultRepo.ListByPatientID(userID, limit, offset)
}

func (s *ConsultationService) get(id uint) (*models.Consultation, error) {
	c, err := s.consultRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundf("consultation %d", id)
		}
		return nil, err
	}
	return c, nil
}
