package service

import (
	"testing"
	"time"

	"curalink/internal/domain"
	"curalink/internal/models"
	"curalink/internal/repository"
	"curalink/internal/ws"
	"curalink/pkg/rtctoken"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.ProviderProfile{},
		&models.Consultation{},
		&models.SessionChannel{},
		&models.Message{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	consultRepo *repository.ConsultationRepository
	sessionRepo *repository.SessionRepository
	messageRepo *repository.MessageRepository
	notifRepo   *repository.NotificationRepository
	notifSvc    *NotificationService
	hub         *ws.SessionHub

	patient  *models.User
	provider *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	env := &testEnv{
		db:          db,
		userRepo:    repository.NewUserRepository(db),
		consultRepo: repository.NewConsultationRepository(db),
		sessionRepo: repository.NewSessionRepository(db),
		messageRepo: repository.NewMessageRepository(db),
		notifRepo:   repository.NewNotificationRepository(db),
		hub:         ws.NewSessionHub(),
	}
	env.notifSvc = NewNotificationService(env.notifRepo, env.userRepo, nil, nil)

	env.patient = &models.User{Name: "Asha Patel", Email: "asha@example.com", Role: domain.RolePatient}
	if err := env.userRepo.Create(env.patient); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	env.provider = &models.User{Name: "Dr. Mehta", Email: "mehta@example.com", Role: domain.RoleProvider}
	if err := env.userRepo.Create(env.provider); err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if err := env.userRepo.CreateProviderProfile(&models.ProviderProfile{
		UserID:    env.provider.ID,
		Specialty: "Dermatology",
		FeeCents:  50000,
	}); err != nil {
		t.Fatalf("create provider profile: %v", err)
	}
	return env
}

func (env *testEnv) consultSvc() *ConsultationService {
	return NewConsultationService(env.consultRepo, env.userRepo, env.notifSvc)
}

func (env *testEnv) sessionSvc() *SessionService {
	// token building is a pure offline computation, so tests run the real thing
	tokens := rtctoken.NewBuilder("970CA35de60c44645bbae8a215061b33", "5CFd2fd1755d40ecb72977518be15d3b", time.Hour)
	return NewSessionService(env.consultRepo, env.sessionRepo, env.messageRepo, env.notifSvc, env.hub, tokens)
}

func (env *testEnv) chatSvc() *ChatService {
	return NewChatService(env.consultRepo, env.sessionRepo, env.messageRepo, env.hub)
}

func (env *testEnv) booking() BookingInput {
	return BookingInput{
		ProviderID:  env.provider.ID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
		Type:        domain.ConsultationTypeChat,
		FeeCents:    50000,
		Reason:      "recurring rash",
	}
}

// bookApproved creates a paid consultation already moved to approved.
func (env *testEnv) bookApproved(t *testing.T) *models.Consultation {
	t.Helper()
	svc := env.consultSvc()
	c, err := svc.Book(env.patient.ID, env.booking())
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	c, err = svc.Approve(env.provider.ID, c.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return c
}

// bookApprovedVideo creates a paid, approved video consultation.
func (env *testEnv) bookApprovedVideo(t *testing.T) *models.Consultation {
	t.Helper()
	svc := env.consultSvc()
	in := env.booking()
	in.Type = domain.ConsultationTypeVideo
	c, err := svc.Book(env.patient.ID, in)
	if err != nil {
		t.Fatalf("book video: %v", err)
	}
	c, err = svc.Approve(env.provider.ID, c.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return c
}

// startedVideoSession books and approves a video consultation, then starts it.
func (env *testEnv) startedVideoSession(t *testing.T) *models.Consultation {
	t.Helper()
	c := env.bookApprovedVideo(t)
	if _, err := env.sessionSvc().Start(env.provider.ID, c.ID); err != nil {
		t.Fatalf("start session: %v", err)
	}
	c2, err := env.consultRepo.GetByID(c.ID)
	if err != nil {
		t.Fatalf("reload consultation: %v", err)
	}
	return c2
}

// startedSession books, approves and starts the session channel.
func (env *testEnv) startedSession(t *testing.T) *models.Consultation {
	t.Helper()
	c := env.bookApproved(t)
	if _, err := env.sessionSvc().Start(env.provider.ID, c.ID); err != nil {
		t.Fatalf("start session: %v", err)
	}
	c2, err := env.consultRepo.GetByID(c.ID)
	if err != nil {
		t.Fatalf("reload consultation: %v", err)
	}
	return c2
}
