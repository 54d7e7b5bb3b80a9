package service

import (
	"errors"
	"time"

	"curalink/internal/domain"
	"curalink/internal/models"
	"curalink/internal/repository"
	"curalink/internal/ws"

	"gorm.io/gorm"
)

// ChatService owns the messaging log of a session channel: append-only
// sends, per-party visibility, bulk reads and non-destructive clears.
type ChatService struct {
	consultRepo *repository.ConsultationRepository
	sessionRepo *repository.SessionRepository
	messageRepo *repository.MessageRepository
	hub         *ws.SessionHub
}

func NewChatService(
	consultRepo *repository.ConsultationRepository,
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	hub *ws.SessionHub,
) *ChatService {
	return &ChatService{consultRepo: consultRepo, sessionRepo: sessionRepo, messageRepo: messageRepo, hub: hub}
}

type SendInput struct {
	Type     string
	Content  string
	FileURL  string
	FileName string
}

// Send persists the message with the sender's own read flag pre-set, bumps
// the other party's unread counter and broadcasts to the session room.
func (s *ChatService) Send(userID, consultationID uint, in SendInput) (*models.Message, error) {
	c, ch, role, err := s.resolve(userID, consultationID)
	if err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = domain.MessageTypeText
	}
	if !domain.ValidMessageType(in.Type) || in.Type == domain.MessageTypeSystem {
		return nil, domain.Validationf("invalid message type %q", in.Type)
	}
	if in.Type == domain.MessageTypeText && in.Content == "" {
		return nil, domain.Validationf("message content is required")
	}
	if (in.Type == domain.MessageTypeFile || in.Type == domain.MessageTypeAudio) && in.FileURL == "" {
		return nil, domain.Validationf("file_url is required for %s messages", in.Type)
	}
	now := time.Now()
	m := &models.Message{
		ChannelID:  ch.ID,
		SenderID:   userID,
		SenderRole: role,
		Type:       in.Type,
		Content:    in.Content,
		FileURL:    in.FileURL,
		FileName:   in.FileName,
	}
	// sender reads their own message at creation time
	if role == domain.RolePatient {
		m.PatientRead = true
		m.PatientReadAt = &now
	} else {
		m.ProviderRead = true
		m.ProviderReadAt = &now
	}
	if err := s.messageRepo.Create(m); err != nil {
		return nil, err
	}
	other := domain.RolePatient
	if role == domain.RolePatient {
		other = domain.RoleProvider
	}
	if err := s.sessionRepo.IncrementUnread(ch.ID, other); err != nil {
		return nil, err
	}
	if room := s.hub.GetRoom(c.ID); room != nil {
		room.Broadcast(map[string]interface{}{
			"type":        ws.EventMessage,
			"id":          m.ID,
			"sender_id":   m.SenderID,
			"sender_role": m.SenderRole,
			"msg_type":    m.Type,
			"content":     m.Content,
			"file_url":    m.FileURL,
			"file_name":   m.FileName,
			"created_at":  m.CreatedAt,
		})
	}
	return m, nil
}

// History returns messages visible to the caller, oldest-first, optionally
// paginated backward from a cursor timestamp.
func (s *ChatService) History(userID, consultationID uint, before *time.Time, limit int) ([]models.Message, error) {
	_, ch, role, err := s.resolve(userID, consultationID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	clearedAt := ch.PatientClearedAt
	if role == domain.RoleProvider {
		clearedAt = ch.ProviderClearedAt
	}
	list, err := s.messageRepo.ListForParty(ch.ID, clearedAt, before, limit)
	if err != nil {
		return nil, err
	}
	// repo returns newest-first; flip for display
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// MarkRead bulk-flips the caller's read flags and zeroes their unread
// counter. Calling it twice changes nothing the second time.
func (s *ChatService) MarkRead(userID, consultationID uint) (int64, error) {
	c, ch, role, err := s.resolve(userID, consultationID)
	if err != nil {
		return 0, err
	}
	n, err := s.messageRepo.MarkReadForRole(ch.ID, role, time.Now())
	if err != nil {
		return 0, err
	}
	if err := s.sessionRepo.ResetUnread(ch.ID, role); err != nil {
		return n, err
	}
	if n > 0 {
		if room := s.hub.GetRoom(c.ID); room != nil {
			room.Broadcast(map[string]interface{}{
				"type":      ws.EventRead,
				"reader_id": userID,
				"role":      role,
				"count":     n,
			})
		}
	}
	return n, nil
}

// ClearHistory hides existing messages from the caller only. Nothing is
// deleted; the other party's view is untouched.
func (s *ChatService) ClearHistory(userID, consultationID uint) error {
	_, ch, role, err := s.resolve(userID, consultationID)
	if err != nil {
		return err
	}
	return s.sessionRepo.SetClearedAt(ch.ID, role, time.Now())
}

func (s *ChatService) resolve(userID, consultationID uint) (*models.Consultation, *models.SessionChannel, string, error) {
	c, err := s.consultRepo.GetByID(consultationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, "", domain.NotFoundf("consultation %d", consultationID)
		}
		return nil, nil, "", err
	}
	role := c.ParticipantRole(userID)
	if role == "" {
		return nil, nil, "", domain.Forbiddenf("not a participant of this consultation")
	}
	ch, err := s.sessionRepo.GetByConsultationID(consultationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, "", domain.InvalidStatef("session has not been started")
		}
		return nil, nil, "", err
	}
	return c, ch, role, nil
}
