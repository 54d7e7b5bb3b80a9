package service

import (
	"errors"
	"testing"
	"time"

	"curalink/internal/domain"
)

func TestBookValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.consultSvc()

	cases := []struct {
		name   string
		mutate func(*BookingInput)
	}{
		{"zero fee", func(in *BookingInput) { in.FeeCents = 0 }},
		{"negative fee", func(in *BookingInput) { in.FeeCents = -100 }},
		{"bad type", func(in *BookingInput) { in.Type = "telepathy" }},
		{"no schedule", func(in *BookingInput) { in.ScheduledAt = time.Time{} }},
		{"missing provider", func(in *BookingInput) { in.ProviderID = 9999 }},
		{"provider is a patient", func(in *BookingInput) { in.ProviderID = env.patient.ID }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := env.booking()
			tc.mutate(&in)
			if _, err := svc.Book(env.patient.ID, in); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestBookSnapshotsProvider(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.consultSvc().Book(env.patient.ID, env.booking())
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if c.Status != domain.StatusUpcoming {
		t.Errorf("status = %q, want upcoming", c.Status)
	}
	if c.PaymentStatus != domain.PaymentPaid {
		t.Errorf("payment_status = %q, want paid", c.PaymentStatus)
	}
	if c.ProviderName != "Dr. Mehta" || c.ProviderSpecialty != "Dermatology" {
		t.Errorf("snapshot = %q/%q", c.ProviderName, c.ProviderSpecialty)
	}
	// provider got a new-booking notification
	notifs, err := env.notifRepo.ListByUserID(env.provider.ID, 10, 0)
	if err != nil || len(notifs) != 1 {
		t.Fatalf("provider notifications = %d (%v), want 1", len(notifs), err)
	}
}

func TestApprove(t *testing.T) {
	env := newTestEnv(t)
	svc := env.consultSvc()
	c, _ := svc.Book(env.patient.ID, env.booking())

	if _, err := svc.Approve(env.patient.ID, c.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("approve by stranger: %v, want forbidden", err)
	}
	c2, err := svc.Approve(env.provider.ID, c.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if c2.Status != domain.StatusApproved || c2.ApprovedAt == nil {
		t.Errorf("status = %q, approved_at = %v", c2.Status, c2.ApprovedAt)
	}
	if _, err := svc.Approve(env.provider.ID, c.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("double approve: %v, want invalid state", err)
	}
}

func TestRejectRefunds(t *testing.T) {
	env := newTestEnv(t)
	svc := env.consultSvc()
	c, _ := svc.Book(env.patient.ID, env.booking())

	if _, err := svc.Reject(env.provider.ID, c.ID, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("reject without reason: %v, want validation", err)
	}
	c2, err := svc.Reject(env.provider.ID, c.ID, "fully booked that day")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if c2.Status != domain.StatusRejected {
		t.Errorf("status = %q, want rejected", c2.Status)
	}
	if c2.PaymentStatus != domain.PaymentRefunded {
		t.Errorf("payment_status = %q, want refunded", c2.PaymentStatus)
	}
	if c2.RejectReason != "fully booked that day" {
		t.Errorf("reject_reason = %q", c2.RejectReason)
	}
	if _, err := svc.Approve(env.provider.ID, c.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("approve after reject: %v, want invalid state", err)
	}
}

func TestCancelPaidKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	svc := env.consultSvc()
	c, _ := svc.Book(env.patient.ID, env.booking())

	if err := svc.Cancel(env.provider.ID, c.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("cancel by non-owner: %v, want forbidden", err)
	}
	if err := svc.Cancel(env.patient.ID, c.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	c2, err := svc.Get(c.ID)
	if err != nil {
		t.Fatalf("get after cancel: %v", err)
	}
	if c2.Status != domain.StatusCancelled {
		t.Errorf("status = %q, want cancelled", c2.Status)
	}
}

func TestCancelUnpaidDeletes(t *testing.T) {
	env := newTestEnv(t)
	svc := env.consultSvc()
	c, _ := svc.Book(env.patient.ID, env.booking())
	env.db.Model(c).Update("payment_status", domain.PaymentPending)

	if err := svc.Cancel(env.patient.ID, c.ID); err != nil {
		t.Fatalf("cancel unpaid: %v", err)
	}
	if _, err := svc.Get(c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after unpaid cancel: %v, want not found", err)
	}
}

func TestRate(t *testing.T) {
	env := newTestEnv(t)
	svc := env.consultSvc()
	c := env.bookApproved(t)

	if err := svc.Rate(env.patient.ID, c.ID, 5); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("rate before completion: %v, want invalid state", err)
	}
	env.db.Model(c).Update("status", domain.StatusCompleted)

	if err := svc.Rate(env.patient.ID, c.ID, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("rate 0: %v, want validation", err)
	}
	if err := svc.Rate(env.patient.ID, c.ID, 4); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if err := svc.Rate(env.patient.ID, c.ID, 5); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("double rate: %v, want invalid state", err)
	}
	prof, err := env.userRepo.GetProviderProfile(env.provider.ID)
	if err != nil {
		t.Fatalf("provider profile: %v", err)
	}
	if prof.Rating != 4 || prof.RatingCount != 1 {
		t.Errorf("aggregate = %.1f/%d, want 4.0/1", prof.Rating, prof.RatingCount)
	}
}

func TestReRequestOnlyFromExpiredStage(t *testing.T) {
	env := newTestEnv(t)
	svc := env.consultSvc()
	c := env.bookApproved(t)

	if _, err := svc.ReRequest(env.patient.ID, c.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("re-request before expiry: %v, want invalid state", err)
	}
	if ok, err := env.consultRepo.MarkExpired(c.ID, time.Now()); err != nil || !ok {
		t.Fatalf("mark expired: ok=%v err=%v", ok, err)
	}
	renewed, err := svc.ReRequest(env.patient.ID, c.ID)
	if err != nil {
		t.Fatalf("re-request: %v", err)
	}
	if renewed.ID == c.ID {
		t.Fatal("re-request must create a new consultation")
	}
	if renewed.Status != domain.StatusUpcoming || renewed.PaymentStatus != domain.PaymentPaid {
		t.Errorf("renewed = %s/%s, want upcoming/paid", renewed.Status, renewed.PaymentStatus)
	}
	if renewed.RenewedFromID == nil || *renewed.RenewedFromID != c.ID {
		t.Errorf("renewed_from_id = %v, want %d", renewed.RenewedFromID, c.ID)
	}
	if renewed.FeeCents != c.FeeCents || renewed.Type != c.Type {
		t.Errorf("terms not carried over: %d/%s", renewed.FeeCents, renewed.Type)
	}
}

func TestReRequestBlockedAfterPermanentExpiry(t *testing.T) {
	env := newTestEnv(t)
	svc := env.consultSvc()
	c := env.bookApproved(t)
	if ok, _ := env.consultRepo.MarkExpired(c.ID, time.Now()); !ok {
		t.Fatal("mark expired failed")
	}
	if ok, _ := env.consultRepo.MarkPermanentlyExpired(c.ID); !ok {
		t.Fatal("mark permanently expired failed")
	}
	if _, err := svc.ReRequest(env.patient.ID, c.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("re-request after permanent expiry: %v, want invalid state", err)
	}
}
