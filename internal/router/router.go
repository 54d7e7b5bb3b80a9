package router

import (
	"log"
	"time"

	"curalink/config"
	"curalink/internal/domain"
	"curalink/internal/handler"
	"curalink/internal/middleware"
	"curalink/internal/reconcile"
	"curalink/internal/repository"
	"curalink/internal/service"
	"curalink/internal/ws"
	"curalink/pkg/cloudinary"
	"curalink/pkg/mailer"
	"curalink/pkg/payment"
	"curalink/pkg/rtctoken"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, store reconcile.Store, cloud cloudinary.Client) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	consultRepo := repository.NewConsultationRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	sessionHub := ws.NewSessionHub()
	notifyHub := ws.NewHub()

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	fcmSvc := service.NewFCMService(cfg.Firebase.ServiceAccountPath)
	if fcmSvc != nil {
		log.Printf("[FCM] Push notifications enabled")
	} else if cfg.Firebase.ServiceAccountPath != "" {
		log.Printf("[FCM] Push notifications disabled: failed to init (check service account file)")
	} else {
		log.Printf("[FCM] Push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}
	mail := mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Password)
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, fcmSvc, mail)
	notifSvc.AttachHub(notifyHub)
	consultSvc := service.NewConsultationService(consultRepo, userRepo, notifSvc)

	tokens := rtctoken.NewBuilder(cfg.Agora.AppID, cfg.Agora.AppCertificate, cfg.Agora.TokenTTL)
	sessionSvc := service.NewSessionService(consultRepo, sessionRepo, messageRepo, notifSvc, sessionHub, tokens)
	chatSvc := service.NewChatService(consultRepo, sessionRepo, messageRepo, sessionHub)

	providers := map[string]payment.Provider{
		domain.PaymentMethodCheckout: payment.NewCheckoutProvider(cfg.Checkout.BaseURL, cfg.Checkout.MerchantID, cfg.Checkout.Secret, cfg.Checkout.ReturnURL),
	}
	if cfg.Razorpay.KeyID != "" {
		providers[domain.PaymentMethodRazorpay] = payment.NewRazorpayProvider(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	}
	paymentSvc := service.NewPaymentService(store, providers, consultRepo, consultSvc, notifSvc, cfg.Payment.DraftTTL)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, userRepo)
	bookingHandler := handler.NewBookingHandler(consultSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	paymentWebhookHandler := handler.NewPaymentWebhookHandler(paymentSvc, cfg)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	chatHandler := handler.NewChatHandler(chatSvc)
	uploadHandler := handler.NewUploadHandler(cloud)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.GET("/me", authMw, authHandler.Me)
			authGroup.POST("/fcm-token", authMw, authHandler.UpdateFCMToken)
		}

		consultations := api.Group("/consultations")
		consultations.Use(authMw)
		{
			consultations.POST("", middleware.RequireRole(domain.RolePatient), bookingHandler.Create)
			consultations.GET("", bookingHandler.List)
			consultations.GET("/:id", bookingHandler.Get)
			consultations.POST("/:id/approve", middleware.RequireRole(domain.RoleProvider), bookingHandler.Approve)
			consultations.POST("/:id/reject", middleware.RequireRole(domain.RoleProvider), bookingHandler.Reject)
			consultations.POST("/:id/cancel", middleware.RequireRole(domain.RolePatient), bookingHandler.Cancel)
			consultations.POST("/:id/rate", middleware.RequireRole(domain.RolePatient), bookingHandler.Rate)
			consultations.POST("/:id/re-request", middleware.RequireRole(domain.RolePatient), bookingHandler.ReRequest)

			consultations.POST("/:id/session/start", middleware.RequireRole(domain.RoleProvider), sessionHandler.Start)
			consultations.GET("/:id/session/join", sessionHandler.Join)
			consultations.GET("/:id/session", sessionHandler.Channel)
			consultations.POST("/:id/session/call-timer", sessionHandler.CallTimer)
			consultations.GET("/:id/session/token", sessionHandler.Token)
			consultations.POST("/:id/session/end", sessionHandler.End)

			consultations.POST("/:id/messages", chatHandler.Send)
			consultations.GET("/:id/messages", chatHandler.History)
			consultations.POST("/:id/messages/read", chatHandler.MarkRead)
			consultations.POST("/:id/messages/clear", chatHandler.Clear)
		}

		api.POST("/payments/initiate", authMw, middleware.RequireRole(domain.RolePatient), paymentHandler.Initiate)
		api.GET("/payments/verify", authMw, paymentHandler.Verify)
		api.POST("/webhooks/payment", paymentWebhookHandler.Handle)

		api.POST("/uploads/attachment", authMw, uploadHandler.UploadAttachment)

		api.GET("/notifications", authMw, notificationHandler.List)
		api.PUT("/notifications/:id/read", authMw, notificationHandler.MarkRead)
	}

	r.GET("/ws/session", handler.UpgradeSessionWS(&cfg.JWT, sessionHub, consultRepo, sessionSvc, chatSvc))
	r.GET("/ws/notifications", handler.UpgradeNotifyWS(&cfg.JWT, notifyHub))

	return r
}
