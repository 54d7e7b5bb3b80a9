package service

import (
	"errors"
	"time"

	"curalink/internal/domain"
	"curalink/internal/models"
	"curalink/internal/repository"
	"curalink/internal/ws"
	"curalink/pkg/rtctoken"

	"gorm.io/gorm"
)

// SessionService drives the session channel lifecycle: waiting → active →
// ended, the both-parties-joined timer origin, and media token issuance.
type SessionService struct {
	consultRepo *repository.ConsultationRepository
	sessionRepo *repository.SessionRepository
	messageRepo *repository.MessageRepository
	notifSvc    *NotificationService
	hub         *ws.SessionHub
	tokens      *rtctoken.Builder
}

func NewSessionService(
	consultRepo *repository.ConsultationRepository,
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	notifSvc *NotificationService,
	hub *ws.SessionHub,
	tokens *rtctoken.Builder,
) *SessionService {
	return &SessionService{
		consultRepo: consultRepo,
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		notifSvc:    notifSvc,
		hub:         hub,
		tokens:      tokens,
	}
}

// ChannelView is what either party sees when fetching the channel.
type ChannelView struct {
	Consultation     *models.Consultation  `json:"consultation"`
	Channel          *models.SessionChannel `json:"channel"`
	JoinPermitted    bool                  `json:"join_permitted"`
	RemainingSeconds int                   `json:"remaining_seconds"`
}

// TokenGrant is a short-lived media credential bound to the consultation's
// channel.
type TokenGrant struct {
	Token            string `json:"token"`
	Channel          string `json:"channel"`
	UID              uint32 `json:"uid"`
	ElapsedSeconds   int    `json:"elapsed_seconds"`
	RemainingSeconds int    `json:"remaining_seconds"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// Start activates the session. Provider only, and only from approved.
func (s *SessionService) Start(providerID, consultationID uint) (*models.SessionChannel, error) {
	c, err := s.getConsultation(consultationID)
	if err != nil {
		return nil, err
	}
	if c.ProviderID != providerID {
		return nil, domain.Forbiddenf("not the assigned provider")
	}
	ok, err := s.consultRepo.MarkSessionStarted(consultationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if c.SessionStarted {
			return nil, domain.InvalidStatef("session already started")
		}
		return nil, domain.InvalidStatef("consultation is not approved")
	}
	ch, err := s.sessionRepo.GetOrCreate(consultationID, domain.ChannelWaiting)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if _, err := s.sessionRepo.Activate(ch.ID, domain.RoleProvider, now); err != nil {
		return nil, err
	}
	s.appendSystemMessage(c, ch.ID, domain.RoleProvider, "Consultation session started")
	_ = s.notifSvc.NotifySessionStarted(c.PatientID, c.ID, c.ProviderName)
	return s.sessionRepo.GetByConsultationID(consultationID)
}

// JoinAllowed is the gate that keeps a patient out of the room until the
// provider has started the session.
func (s *SessionService) JoinAllowed(userID, consultationID uint) (bool, error) {
	c, err := s.getConsultation(consultationID)
	if err != nil {
		return false, err
	}
	if c.ParticipantRole(userID) == "" {
		return false, domain.Forbiddenf("not a participant of this consultation")
	}
	return c.SessionStarted, nil
}

// AccessChannel lazily creates the channel on first fetch, flips the
// caller's join flag and, when this is the moment both flags become true,
// stamps entered_session_at. The stamp is a storage-level conditional write,
// so two concurrent accessors produce exactly one timestamp.
func (s *SessionService) AccessChannel(userID, consultationID uint) (*ChannelView, error) {
	c, err := s.getConsultation(consultationID)
	if err != nil {
		return nil, err
	}
	role := c.ParticipantRole(userID)
	if role == "" {
		return nil, domain.Forbiddenf("not a participant of this consultation")
	}
	status := domain.ChannelWaiting
	if c.SessionStarted {
		status = domain.ChannelActive
	}
	ch, err := s.sessionRepo.GetOrCreate(consultationID, status)
	if err != nil {
		return nil, err
	}
	if err := s.touchJoin(consultationID, role); err != nil {
		return nil, err
	}
	c, err = s.getConsultation(consultationID)
	if err != nil {
		return nil, err
	}
	ch, err = s.sessionRepo.GetByConsultationID(consultationID)
	if err != nil {
		return nil, err
	}
	return &ChannelView{
		Consultation:     c,
		Channel:          ch,
		JoinPermitted:    c.SessionStarted,
		RemainingSeconds: remainingSeconds(ch.CallStartedAt, time.Now()),
	}, nil
}

// RequestToken issues the media credential for audio/video consultations.
// Patients are refused until the provider has started the call timer.
func (s *SessionService) RequestToken(userID, consultationID uint) (*TokenGrant, error) {
	c, err := s.getConsultation(consultationID)
	if err != nil {
		return nil, err
	}
	role := c.ParticipantRole(userID)
	if role == "" {
		return nil, domain.Forbiddenf("not a participant of this consultation")
	}
	if c.Type != domain.ConsultationTypeAudio && c.Type != domain.ConsultationTypeVideo {
		return nil, domain.Validationf("consultation type %s has no call", c.Type)
	}
	if s.tokens == nil || !s.tokens.Configured() {
		return nil, domain.Externalf("media token service not configured")
	}
	status := domain.ChannelWaiting
	if c.SessionStarted {
		status = domain.ChannelActive
	}
	ch, err := s.sessionRepo.GetOrCreate(consultationID, status)
	if err != nil {
		return nil, err
	}
	if err := s.touchJoin(consultationID, role); err != nil {
		return nil, err
	}
	ch, err = s.sessionRepo.GetByConsultationID(consultationID)
	if err != nil {
		return nil, err
	}
	if role == domain.RolePatient && ch.CallStartedAt == nil {
		return nil, domain.Forbiddenf("provider has not started the call yet")
	}
	token, uid, channel, err := s.tokens.Build(consultationID, userID)
	if err != nil {
		return nil, domain.Externalf("media token: %v", err)
	}
	now := time.Now()
	elapsed := elapsedSeconds(ch.CallStartedAt, now)
	return &TokenGrant{
		Token:            token,
		Channel:          channel,
		UID:              uid,
		ElapsedSeconds:   elapsed,
		RemainingSeconds: remainingSeconds(ch.CallStartedAt, now),
		ExpiresInSeconds: 3600,
	}, nil
}

// StartCallTimer fixes the call timer origin at most once; repeat calls are
// no-ops. Only the assigned provider can stamp it; a patient's call reads
// the channel without opening the gate. When the provider's stamp wins, the
// patient gets a one-time session-started notification.
func (s *SessionService) StartCallTimer(userID, consultationID uint) (*models.SessionChannel, error) {
	c, err := s.getConsultation(consultationID)
	if err != nil {
		return nil, err
	}
	role := c.ParticipantRole(userID)
	if role == "" {
		return nil, domain.Forbiddenf("not a participant of this consultation")
	}
	if !c.SessionStarted {
		return nil, domain.InvalidStatef("session has not been started")
	}
	ch, err := s.sessionRepo.GetByConsultationID(consultationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.InvalidStatef("session has not been started")
		}
		return nil, err
	}
	if role == domain.RoleProvider {
		stamped, err := s.sessionRepo.StampCallStarted(ch.ID, time.Now())
		if err != nil {
			return nil, err
		}
		if stamped {
			_ = s.notifSvc.NotifySessionStarted(c.PatientID, c.ID, c.ProviderName)
		}
	}
	return s.sessionRepo.GetByConsultationID(consultationID)
}

// End closes the session from either side: channel → ended, consultation →
// completed, with a closing system message.
func (s *SessionService) End(userID, consultationID uint) error {
	c, err := s.getConsultation(consultationID)
	if err != nil {
		return err
	}
	role := c.ParticipantRole(userID)
	if role == "" {
		return domain.Forbiddenf("not a participant of this consultation")
	}
	ch, err := s.sessionRepo.GetByConsultationID(consultationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.InvalidStatef("session has not been started")
		}
		return err
	}
	now := time.Now()
	duration := 0
	if ch.CallStartedAt != nil {
		duration = int(now.Sub(*ch.CallStartedAt) / time.Second)
	}
	ok, err := s.sessionRepo.End(ch.ID, now, duration)
	if err != nil {
		return err
	}
	if !ok {
		return domain.InvalidStatef("session is not active")
	}
	ok, err = s.consultRepo.TransitionStatus(consultationID,
		[]string{domain.StatusApproved},
		map[string]interface{}{"status": domain.StatusCompleted})
	if err != nil {
		return err
	}
	if !ok {
		return domain.InvalidStatef("consultation is not approved")
	}
	s.appendSystemMessage(c, ch.ID, role, "Consultation session ended")
	return nil
}

// touchJoin flips the caller's join flag and attempts the exactly-once
// entered_session_at stamp.
func (s *SessionService) touchJoin(consultationID uint, role string) error {
	if err := s.consultRepo.MarkJoined(consultationID, role); err != nil {
		return err
	}
	_, err := s.consultRepo.StampEnteredSession(consultationID, time.Now())
	return err
}

func (s *SessionService) appendSystemMessage(c *models.Consultation, channelID uint, actorRole, content string) {
	now := time.Now()
	m := &models.Message{
		ChannelID:      channelID,
		SenderID:       0,
		SenderRole:     actorRole,
		Type:           domain.MessageTypeSystem,
		Content:        content,
		PatientRead:    true,
		ProviderRead:   true,
		PatientReadAt:  &now,
		ProviderReadAt: &now,
	}
	if err := s.messageRepo.Create(m); err != nil {
		return
	}
	if room := s.hub.GetRoom(c.ID); room != nil {
		room.Broadcast(map[string]interface{}{
			"type":       ws.EventSystem,
			"id":         m.ID,
			"content":    m.Content,
			"created_at": m.CreatedAt,
		})
	}
}

func (s *SessionService) getConsultation(id uint) (*models.Consultation, error) {
	c, err := s.consultRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundf("consultation %d", id)
		}
		return nil, err
	}
	return c, nil
}

func elapsedSeconds(callStartedAt *time.Time, now time.Time) int {
	if callStartedAt == nil {
		return 0
	}
	e := int(now.Sub(*callStartedAt) / time.Second)
	if e < 0 {
		return 0
	}
	return e
}

func remainingSeconds(callStartedAt *time.Time, now time.Time) int {
	if callStartedAt == nil {
		return domain.CallBudgetSeconds
	}
	r := domain.CallBudgetSeconds - elapsedSeconds(callStartedAt, now)
	if r < 0 {
		return 0
	}
	return r
}
