package service

import (
	"errors"
	"testing"

	"curalink/internal/domain"
	"curalink/internal/models"
	"curalink/pkg/rtctoken"
)

func TestStartSession(t *testing.T) {
	env := newTestEnv(t)
	svc := env.sessionSvc()
	c, _ := env.consultSvc().Book(env.patient.ID, env.booking())

	if _, err := svc.Start(env.provider.ID, c.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("start before approval: %v, want invalid state", err)
	}
	if _, err := env.consultSvc().Approve(env.provider.ID, c.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Start(env.patient.ID, c.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("start by patient: %v, want forbidden", err)
	}
	ch, err := svc.Start(env.provider.ID, c.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if ch.Status != domain.ChannelActive || ch.StartedAt == nil || ch.StartedBy != domain.RoleProvider {
		t.Errorf("channel = %s started_by %q", ch.Status, ch.StartedBy)
	}
	if _, err := svc.Start(env.provider.ID, c.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("double start: %v, want invalid state", err)
	}
	// starting leaves an opening system message
	msgs, err := env.messageRepo.ListForParty(ch.ID, nil, nil, 10)
	if err != nil || len(msgs) != 1 || msgs[0].Type != domain.MessageTypeSystem {
		t.Errorf("system messages = %d (%v)", len(msgs), err)
	}
}

func TestJoinGate(t *testing.T) {
	env := newTestEnv(t)
	svc := env.sessionSvc()
	c := env.bookApproved(t)

	allowed, err := svc.JoinAllowed(env.patient.ID, c.ID)
	if err != nil || allowed {
		t.Fatalf("join before start = %v (%v), want false", allowed, err)
	}
	if _, err := svc.JoinAllowed(9999, c.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("join gate for stranger: %v, want forbidden", err)
	}
	if _, err := svc.Start(env.provider.ID, c.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	allowed, err = svc.JoinAllowed(env.patient.ID, c.ID)
	if err != nil || !allowed {
		t.Fatalf("join after start = %v (%v), want true", allowed, err)
	}
}

func TestEnteredSessionStampedOnce(t *testing.T) {
	env := newTestEnv(t)
	svc := env.sessionSvc()
	c := env.startedSession(t)

	view, err := svc.AccessChannel(env.provider.ID, c.ID)
	if err != nil {
		t.Fatalf("provider access: %v", err)
	}
	if !view.Consultation.ProviderJoined {
		t.Error("provider_joined not set")
	}
	if view.Consultation.EnteredSessionAt != nil {
		t.Error("entered_session_at set before both parties joined")
	}

	view, err = svc.AccessChannel(env.patient.ID, c.ID)
	if err != nil {
		t.Fatalf("patient access: %v", err)
	}
	if view.Consultation.EnteredSessionAt == nil {
		t.Fatal("entered_session_at not stamped after both joined")
	}
	first := *view.Consultation.EnteredSessionAt

	// repeat visits never move the stamp
	view, err = svc.AccessChannel(env.patient.ID, c.ID)
	if err != nil {
		t.Fatalf("repeat access: %v", err)
	}
	if !view.Consultation.EnteredSessionAt.Equal(first) {
		t.Errorf("entered_session_at moved: %v -> %v", first, view.Consultation.EnteredSessionAt)
	}
}

func TestCallTimerStampedOnce(t *testing.T) {
	env := newTestEnv(t)
	svc := env.sessionSvc()
	c := env.startedSession(t)

	// the patient's call reads the channel but never stamps it
	ch, err := svc.StartCallTimer(env.patient.ID, c.ID)
	if err != nil {
		t.Fatalf("patient call timer: %v", err)
	}
	if ch.CallStartedAt != nil {
		t.Fatal("patient stamped call_started_at")
	}
	ch, err = svc.StartCallTimer(env.provider.ID, c.ID)
	if err != nil {
		t.Fatalf("call timer: %v", err)
	}
	if ch.CallStartedAt == nil {
		t.Fatal("call_started_at not stamped")
	}
	first := *ch.CallStartedAt
	ch, err = svc.StartCallTimer(env.patient.ID, c.ID)
	if err != nil {
		t.Fatalf("second call timer: %v", err)
	}
	if !ch.CallStartedAt.Equal(first) {
		t.Errorf("call_started_at moved: %v -> %v", first, ch.CallStartedAt)
	}
}

func TestPatientCannotUnlockCall(t *testing.T) {
	env := newTestEnv(t)
	svc := env.sessionSvc()
	c := env.bookApprovedVideo(t)

	// before the provider starts the session, the timer cannot be touched,
	// not even after the channel exists from a channel fetch
	if _, err := svc.StartCallTimer(env.patient.ID, c.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("call timer before start: %v, want invalid state", err)
	}
	if _, err := svc.AccessChannel(env.patient.ID, c.ID); err != nil {
		t.Fatalf("access channel: %v", err)
	}
	if _, err := svc.StartCallTimer(env.patient.ID, c.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("call timer after channel fetch: %v, want invalid state", err)
	}

	if _, err := svc.Start(env.provider.ID, c.ID); err != nil {
		t.Fatalf("start session: %v", err)
	}

	// a started session still leaves the gate closed to the patient
	if _, err := svc.AccessChannel(env.patient.ID, c.ID); err != nil {
		t.Fatalf("access channel: %v", err)
	}
	ch, err := svc.StartCallTimer(env.patient.ID, c.ID)
	if err != nil {
		t.Fatalf("patient call timer: %v", err)
	}
	if ch.CallStartedAt != nil {
		t.Fatal("patient opened the call gate")
	}
	if _, err := svc.RequestToken(env.patient.ID, c.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("patient token with no provider action: %v, want forbidden", err)
	}
}

func TestCallTimerRequiresStartedSession(t *testing.T) {
	env := newTestEnv(t)
	svc := env.sessionSvc()
	c := env.bookApproved(t)
	if _, err := svc.StartCallTimer(env.provider.ID, c.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("call timer before start: %v, want invalid state", err)
	}
}

func TestTokenRules(t *testing.T) {
	env := newTestEnv(t)
	svc := env.sessionSvc()
	c := env.startedSession(t)

	// chat consultations never get a media token
	if _, err := svc.RequestToken(env.provider.ID, c.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("token for chat consultation: %v, want validation", err)
	}
}

func TestPatientTokenGatedOnCallStart(t *testing.T) {
	env := newTestEnv(t)
	svc := env.sessionSvc()
	c := env.startedVideoSession(t)

	// the provider gets a credential right away, with the full call budget
	grant, err := svc.RequestToken(env.provider.ID, c.ID)
	if err != nil {
		t.Fatalf("provider token: %v", err)
	}
	if grant.Token == "" || grant.Channel != rtctoken.ChannelName(c.ID) {
		t.Errorf("grant = %q channel %q", grant.Token, grant.Channel)
	}
	if grant.UID != uint32(env.provider.ID) {
		t.Errorf("uid = %d, want %d", grant.UID, env.provider.ID)
	}
	if grant.RemainingSeconds != domain.CallBudgetSeconds {
		t.Errorf("remaining = %d, want %d", grant.RemainingSeconds, domain.CallBudgetSeconds)
	}

	// the patient is refused until the provider starts the call
	if _, err := svc.RequestToken(env.patient.ID, c.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("patient token before call start: %v, want forbidden", err)
	}
	if _, err := svc.StartCallTimer(env.provider.ID, c.ID); err != nil {
		t.Fatalf("call timer: %v", err)
	}
	grant, err = svc.RequestToken(env.patient.ID, c.ID)
	if err != nil {
		t.Fatalf("patient token after call start: %v", err)
	}
	if grant.Token == "" || grant.UID != uint32(env.patient.ID) {
		t.Errorf("grant = %q uid %d", grant.Token, grant.UID)
	}
	if grant.RemainingSeconds <= 0 || grant.RemainingSeconds > domain.CallBudgetSeconds {
		t.Errorf("remaining = %d, want within (0, %d]", grant.RemainingSeconds, domain.CallBudgetSeconds)
	}
}

func TestEndSession(t *testing.T) {
	env := newTestEnv(t)
	svc := env.sessionSvc()
	c := env.startedSession(t)

	if err := svc.End(9999, c.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("end by stranger: %v, want forbidden", err)
	}
	if err := svc.End(env.patient.ID, c.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	ch, err := env.sessionRepo.GetByConsultationID(c.ID)
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	if ch.Status != domain.ChannelEnded || ch.EndedAt == nil {
		t.Errorf("channel = %s, ended_at = %v", ch.Status, ch.EndedAt)
	}
	c2, err := env.consultRepo.GetByID(c.ID)
	if err != nil {
		t.Fatalf("consultation: %v", err)
	}
	if c2.Status != domain.StatusCompleted {
		t.Errorf("status = %q, want completed", c2.Status)
	}
	if err := svc.End(env.provider.ID, c.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("double end: %v, want invalid state", err)
	}
}

func TestEndRequiresApprovedConsultation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.sessionSvc()
	c := env.startedSession(t)

	if err := env.db.Model(&models.Consultation{}).Where("id = ?", c.ID).
		Update("status", domain.StatusCancelled).Error; err != nil {
		t.Fatalf("force status: %v", err)
	}
	if err := svc.End(env.patient.ID, c.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("end of non-approved consultation: %v, want invalid state", err)
	}
}
