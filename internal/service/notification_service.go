package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"curalink/internal/models"
	"curalink/internal/repository"
	"curalink/internal/ws"
	"curalink/pkg/mailer"
)

// NotificationService persists notification rows and dispatches email, FCM
// push and live WebSocket events. Dispatch is fire-and-forget: delivery
// failures are logged and never fail the triggering operation.
type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	fcm      *FCMService
	mail     *mailer.Mailer
	hub      *ws.Hub
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, fcm *FCMService, mail *mailer.Mailer) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, fcm: fcm, mail: mail}
}

// AttachHub enables live delivery to the user's open notification sockets.
func (s *NotificationService) AttachHub(hub *ws.Hub) { s.hub = hub }

func (s *NotificationService) Notify(userID uint, notifType, title, body string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.repo.Create(&models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   dataJSON,
	})
	if err != nil {
		return err
	}
	s.dispatch(userID, notifType, title, body, data)
	return nil
}

func (s *NotificationService) dispatch(userID uint, notifType, title, body string, data map[string]interface{}) {
	if s.hub != nil {
		s.hub.BroadcastToUser(userID, map[string]interface{}{
			"type":  notifType,
			"title": title,
			"body":  body,
			"data":  data,
		})
	}
	if s.userRepo == nil {
		return
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil || u == nil {
		log.Printf("[Notify] user %d not found, skipping %s", userID, notifType)
		return
	}
	if s.fcm != nil && u.FCMToken != "" {
		strData := map[string]string{"type": notifType}
		for k, v := range data {
			strData[k] = fmt.Sprint(v)
		}
		if err := s.fcm.Send(context.Background(), u.FCMToken, title, body, strData); err != nil {
			log.Printf("[Notify] push to user %d failed: %v", userID, err)
		}
	}
	if err := s.mail.Send(u.Email, title, body); err != nil {
		log.Printf("[Notify] email to user %d failed: %v", userID, err)
	}
}

func (s *NotificationService) NotifyBookingConfirmed(patientID uint, consultationID uint, providerName string) error {
	return s.Notify(patientID, "BOOKING_CONFIRMED", "Booking confirmed",
		"Your consultation with "+providerName+" is booked.",
		map[string]interface{}{"consultation_id": consultationID})
}

func (s *NotificationService) NotifyNewBooking(providerID uint, consultationID uint, patientName string) error {
	return s.Notify(providerID, "NEW_BOOKING", "New consultation request",
		patientName+" booked a consultation. Approve or reject it.",
		map[string]interface{}{"consultation_id": consultationID})
}

func (s *NotificationService) NotifyApproved(patientID uint, consultationID uint, providerName string) error {
	return s.Notify(patientID, "BOOKING_APPROVED", "Consultation approved",
		providerName+" approved your consultation.",
		map[string]interface{}{"consultation_id": consultationID})
}

// NotifyRefundInitiated is sent when a rejection or permanent expiry flips
// the payment to refunded.
func (s *NotificationService) NotifyRefundInitiated(userID uint, consultationID uint, reason string) error {
	return s.Notify(userID, "REFUND_INITIATED", "Refund initiated",
		"Your consultation payment is being refunded: "+reason,
		map[string]interface{}{"consultation_id": consultationID})
}

func (s *NotificationService) NotifySessionStarted(patientID uint, consultationID uint, providerName string) error {
	return s.Notify(patientID, "SESSION_STARTED", "Session started",
		providerName+" has started your consultation session.",
		map[string]interface{}{"consultation_id": consultationID})
}
