package service

import (
	"context"
	"errors"
	"log"
	"time"

	"curalink/internal/domain"
	"curalink/internal/models"
	"curalink/internal/reconcile"
	"curalink/internal/repository"
	"curalink/pkg/payment"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentService orchestrates the redirect-style payment flow: a TTL-bound
// draft goes into the reconciliation store, the gateway confirms out of
// band, and verification turns the draft into a durable consultation exactly
// once.
type PaymentService struct {
	store       reconcile.Store
	providers   map[string]payment.Provider
	consultRepo *repository.ConsultationRepository
	consultSvc  *ConsultationService
	notifSvc    *NotificationService
	draftTTL    time.Duration
}

func NewPaymentService(
	store reconcile.Store,
	providers map[string]payment.Provider,
	consultRepo *repository.ConsultationRepository,
	consultSvc *ConsultationService,
	notifSvc *NotificationService,
	draftTTL time.Duration,
) *PaymentService {
	if draftTTL <= 0 {
		draftTTL = 30 * time.Minute
	}
	return &PaymentService{
		store:       store,
		providers:   providers,
		consultRepo: consultRepo,
		consultSvc:  consultSvc,
		notifSvc:    notifSvc,
		draftTTL:    draftTTL,
	}
}

type InitiateInput struct {
	ProviderID  uint
	ScheduledAt time.Time
	Type        string
	FeeCents    int64
	Reason      string
	Method      string // razorpay | checkout
}

type InitiateResult struct {
	BookingID   string    `json:"booking_id"`
	Reference   string    `json:"reference"`
	CheckoutURL string    `json:"checkout_url,omitempty"`
	Signature   string    `json:"signature,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Initiate validates the booking, stores a TTL-bound draft and hands the
// signed payload to the gateway. No durable record exists yet.
func (s *PaymentService) Initiate(ctx context.Context, patientID uint, in InitiateInput) (*InitiateResult, error) {
	provider, ok := s.providers[in.Method]
	if !ok {
		return nil, domain.Validationf("unknown payment method %q", in.Method)
	}
	prov, err := s.consultSvc.ValidateBooking(BookingInput{
		ProviderID:  in.ProviderID,
		ScheduledAt: in.ScheduledAt,
		Type:        in.Type,
		FeeCents:    in.FeeCents,
		Reason:      in.Reason,
	})
	if err != nil {
		return nil, err
	}
	specialty := ""
	if prov.ProviderProfile != nil {
		specialty = prov.ProviderProfile.Specialty
	}
	bookingID := uuid.New().String()
	now := time.Now()
	draft := &reconcile.Draft{
		BookingID:         bookingID,
		PatientID:         patientID,
		ProviderID:        in.ProviderID,
		ProviderName:      prov.Name,
		ProviderSpecialty: specialty,
		ScheduledAt:       in.ScheduledAt,
		Type:              in.Type,
		FeeCents:          in.FeeCents,
		Reason:            in.Reason,
		PaymentMethod:     in.Method,
		CreatedAt:         now,
	}
	if err := s.store.Put(ctx, draft, s.draftTTL); err != nil {
		return nil, err
	}
	resp, err := provider.InitiatePayment(ctx, payment.PaymentRequest{
		AmountCents: in.FeeCents,
		OrderID:     bookingID,
		Description: "Consultation with " + prov.Name,
		Product:     "consultation",
	})
	if err != nil {
		// keep the draft; the patient can retry initiation against the
		// gateway until the TTL runs out
		return nil, domain.Externalf("payment initiation: %v", err)
	}
	return &InitiateResult{
		BookingID:   bookingID,
		Reference:   resp.Reference,
		CheckoutURL: resp.CheckoutURL,
		Signature:   resp.Signature,
		ExpiresAt:   now.Add(s.draftTTL),
	}, nil
}

// Verify reconciles a gateway confirmation with the stored draft. The
// gateway's own verification endpoint is authoritative; the redirect payload
// alone is never trusted. Retries after the draft was consumed return the
// already-created consultation.
func (s *PaymentService) Verify(ctx context.Context, bookingID, gatewayRef string) (*models.Consultation, error) {
	if bookingID == "" || gatewayRef == "" {
		return nil, domain.Validationf("booking_id and reference are required")
	}
	// gateway retry after successful consumption: idempotent answer
	existing, err := s.consultRepo.GetByBookingRef(bookingID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	draft, err := s.store.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, reconcile.ErrDraftNotFound) {
			return nil, domain.NotFoundf("booking expired, please retry")
		}
		return nil, err
	}
	provider, ok := s.providers[draft.PaymentMethod]
	if !ok {
		return nil, domain.Externalf("payment provider %q unavailable", draft.PaymentMethod)
	}
	confirmed, err := provider.VerifyPayment(ctx, gatewayRef)
	if err != nil {
		// the draft stays claimable until its TTL
		return nil, domain.Externalf("payment verification: %v", err)
	}
	if !confirmed {
		return nil, domain.Externalf("payment not completed")
	}
	// single consumption: exactly one concurrent verifier gets the draft
	draft, err = s.store.Consume(ctx, bookingID)
	if err != nil {
		if errors.Is(err, reconcile.ErrDraftNotFound) {
			// lost the race; the winner created the consultation
			if c, refErr := s.consultRepo.GetByBookingRef(bookingID); refErr == nil {
				return c, nil
			}
			return nil, domain.NotFoundf("booking expired, please retry")
		}
		return nil, err
	}
	ref := draft.BookingID
	c := &models.Consultation{
		PatientID:         draft.PatientID,
		ProviderID:        draft.ProviderID,
		ProviderName:      draft.ProviderName,
		ProviderSpecialty: draft.ProviderSpecialty,
		ScheduledAt:       draft.ScheduledAt,
		Type:              draft.Type,
		FeeCents:          draft.FeeCents,
		Reason:            draft.Reason,
		Status:            domain.StatusUpcoming,
		PaymentStatus:     domain.PaymentPaid,
		PaymentMethod:     draft.PaymentMethod,
		BookingRef:        &ref,
	}
	if err := s.consultRepo.Create(c); err != nil {
		// draft consumed but no consultation: put it back for whatever is
		// left of its original window so the gateway's next retry can
		// complete the reconciliation without extending the TTL
		if remaining := time.Until(draft.ExpiresAt); remaining > 0 {
			if putErr := s.store.Put(ctx, draft, remaining); putErr != nil {
				log.Printf("[Payment] draft %s restore failed: %v", bookingID, putErr)
			}
		}
		return nil, err
	}
	_ = s.notifSvc.NotifyBookingConfirmed(c.PatientID, c.ID, c.ProviderName)
	return c, nil
}
