package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"curalink/internal/domain"
	"curalink/internal/models"
	"curalink/internal/reconcile"
	"curalink/pkg/payment"
)

// fakeGateway scripts the provider's answers for a test.
type fakeGateway struct {
	initErr    error
	confirmed  bool
	verifyErr  error
	verifyHook func()
	references []string
}

func (f *fakeGateway) InitiatePayment(_ context.Context, req payment.PaymentRequest) (*payment.PaymentResponse, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &payment.PaymentResponse{Reference: "ref_" + req.OrderID, CheckoutURL: "https://pay.example/" + req.OrderID}, nil
}

func (f *fakeGateway) VerifyPayment(_ context.Context, reference string) (bool, error) {
	f.references = append(f.references, reference)
	if f.verifyHook != nil {
		f.verifyHook()
	}
	if f.verifyErr != nil {
		return false, f.verifyErr
	}
	return f.confirmed, nil
}

func newPaymentEnv(t *testing.T, gw *fakeGateway) (*testEnv, *PaymentService, *reconcile.MemStore) {
	t.Helper()
	env := newTestEnv(t)
	store := reconcile.NewMemStore()
	svc := NewPaymentService(
		store,
		map[string]payment.Provider{domain.PaymentMethodCheckout: gw},
		env.consultRepo,
		env.consultSvc(),
		env.notifSvc,
		30*time.Minute,
	)
	return env, svc, store
}

func (env *testEnv) initiateInput() InitiateInput {
	return InitiateInput{
		ProviderID:  env.provider.ID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
		Type:        domain.ConsultationTypeVideo,
		FeeCents:    50000,
		Reason:      "follow-up",
		Method:      domain.PaymentMethodCheckout,
	}
}

func TestInitiateCreatesNoConsultation(t *testing.T) {
	gw := &fakeGateway{confirmed: true}
	env, svc, store := newPaymentEnv(t, gw)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, env.patient.ID, env.initiateInput())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if res.BookingID == "" || res.CheckoutURL == "" {
		t.Errorf("result = %+v", res)
	}
	if _, err := env.consultRepo.GetByBookingRef(res.BookingID); err == nil {
		t.Fatal("consultation created before payment confirmation")
	}
	draft, err := store.Get(ctx, res.BookingID)
	if err != nil {
		t.Fatalf("draft not stored: %v", err)
	}
	if draft.ProviderName != "Dr. Mehta" || draft.FeeCents != 50000 {
		t.Errorf("draft = %+v", draft)
	}
}

func TestInitiateUnknownMethod(t *testing.T) {
	env, svc, _ := newPaymentEnv(t, &fakeGateway{})
	in := env.initiateInput()
	in.Method = "cheque"
	if _, err := svc.Initiate(context.Background(), env.patient.ID, in); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown method: %v, want validation", err)
	}
}

func TestInitiateGatewayDownKeepsDraft(t *testing.T) {
	gw := &fakeGateway{initErr: errors.New("gateway timeout")}
	env, svc, store := newPaymentEnv(t, gw)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, env.patient.ID, env.initiateInput())
	if !errors.Is(err, domain.ErrExternal) {
		t.Fatalf("gateway down: %v, want external", err)
	}
	// the draft survives so a retry within the TTL can still succeed
	if store.Len() != 1 {
		t.Errorf("drafts = %d, want 1", store.Len())
	}
	var count int64
	env.db.Table("consultations").Count(&count)
	if count != 0 {
		t.Errorf("consultations = %d, want 0", count)
	}
}

func TestVerifyHappyPath(t *testing.T) {
	gw := &fakeGateway{confirmed: true}
	env, svc, store := newPaymentEnv(t, gw)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, env.patient.ID, env.initiateInput())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	c, err := svc.Verify(ctx, res.BookingID, res.Reference)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.Status != domain.StatusUpcoming || c.PaymentStatus != domain.PaymentPaid {
		t.Errorf("consultation = %s/%s, want upcoming/paid", c.Status, c.PaymentStatus)
	}
	if c.BookingRef == nil || *c.BookingRef != res.BookingID {
		t.Errorf("booking_ref = %v, want %s", c.BookingRef, res.BookingID)
	}
	if _, err := store.Get(ctx, res.BookingID); !errors.Is(err, reconcile.ErrDraftNotFound) {
		t.Error("draft not consumed after verification")
	}
	// patient got the booking-confirmed notification
	notifs, _ := env.notifRepo.ListByUserID(env.patient.ID, 10, 0)
	if len(notifs) != 1 {
		t.Errorf("patient notifications = %d, want 1", len(notifs))
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	gw := &fakeGateway{confirmed: true}
	env, svc, _ := newPaymentEnv(t, gw)
	ctx := context.Background()

	res, _ := svc.Initiate(ctx, env.patient.ID, env.initiateInput())
	first, err := svc.Verify(ctx, res.BookingID, res.Reference)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	second, err := svc.Verify(ctx, res.BookingID, res.Reference)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("retry created a second consultation: %d vs %d", first.ID, second.ID)
	}
	var count int64
	env.db.Table("consultations").Count(&count)
	if count != 1 {
		t.Errorf("consultations = %d, want 1", count)
	}
}

func TestVerifyUnconfirmedKeepsDraft(t *testing.T) {
	gw := &fakeGateway{confirmed: false}
	env, svc, store := newPaymentEnv(t, gw)
	ctx := context.Background()

	res, _ := svc.Initiate(ctx, env.patient.ID, env.initiateInput())
	if _, err := svc.Verify(ctx, res.BookingID, res.Reference); !errors.Is(err, domain.ErrExternal) {
		t.Fatalf("unconfirmed payment: %v, want external", err)
	}
	if _, err := store.Get(ctx, res.BookingID); err != nil {
		t.Fatal("draft consumed despite unconfirmed payment")
	}
	// gateway recovers: the same booking id still completes
	gw.confirmed = true
	if _, err := svc.Verify(ctx, res.BookingID, res.Reference); err != nil {
		t.Fatalf("verify after recovery: %v", err)
	}
}

func TestVerifyExpiredDraft(t *testing.T) {
	gw := &fakeGateway{confirmed: true}
	env, svc, store := newPaymentEnv(t, gw)
	ctx := context.Background()

	res, _ := svc.Initiate(ctx, env.patient.ID, env.initiateInput())
	store.SetClock(func() time.Time { return time.Now().Add(31 * time.Minute) })

	if _, err := svc.Verify(ctx, res.BookingID, res.Reference); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expired draft: %v, want not found", err)
	}
	if _, err := env.consultRepo.GetByBookingRef(res.BookingID); err == nil {
		t.Fatal("consultation created from expired draft")
	}
}

func TestFailedCreateRestoresRemainingWindow(t *testing.T) {
	gw := &fakeGateway{confirmed: true}
	env, svc, store := newPaymentEnv(t, gw)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, env.patient.ID, env.initiateInput())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	// shrink the draft's window so a restore with the full TTL is detectable
	draft, err := store.Get(ctx, res.BookingID)
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if err := store.Put(ctx, draft, 2*time.Minute); err != nil {
		t.Fatalf("reput draft: %v", err)
	}
	// collide on the unique booking ref so the post-consume create fails
	gw.verifyHook = func() {
		ref := res.BookingID
		squatter := &models.Consultation{
			PatientID:     env.patient.ID,
			ProviderID:    env.provider.ID,
			ProviderName:  env.provider.Name,
			ScheduledAt:   time.Now().Add(24 * time.Hour),
			Type:          domain.ConsultationTypeVideo,
			FeeCents:      50000,
			Status:        domain.StatusUpcoming,
			PaymentStatus: domain.PaymentPaid,
			BookingRef:    &ref,
		}
		if err := env.db.Create(squatter).Error; err != nil {
			t.Fatalf("insert colliding consultation: %v", err)
		}
	}

	if _, err := svc.Verify(ctx, res.BookingID, res.Reference); err == nil {
		t.Fatal("verify succeeded despite colliding booking ref")
	}
	restored, err := store.Get(ctx, res.BookingID)
	if err != nil {
		t.Fatalf("draft not restored after failed create: %v", err)
	}
	// the restore must not hand the draft a fresh full TTL
	if restored.ExpiresAt.After(time.Now().Add(2*time.Minute + time.Second)) {
		t.Errorf("restore extended the draft window: expires %v", restored.ExpiresAt)
	}
}

func TestVerifyMissingParams(t *testing.T) {
	_, svc, _ := newPaymentEnv(t, &fakeGateway{})
	if _, err := svc.Verify(context.Background(), "", "ref"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing booking_id: %v, want validation", err)
	}
	if _, err := svc.Verify(context.Background(), "b1", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing reference: %v, want validation", err)
	}
}
