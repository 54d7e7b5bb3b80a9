package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"curalink/config"
	"curalink/internal/database"
	"curalink/internal/reconcile"
	"curalink/internal/repository"
	"curalink/internal/router"
	"curalink/internal/service"
	"curalink/internal/sweeper"
	"curalink/pkg/cloudinary"
	"curalink/pkg/mailer"

	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var store reconcile.Store
	redisClient, err := reconcile.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("[Redis] unavailable (%v), booking drafts held in memory", err)
		store = reconcile.NewMemStore()
	} else {
		store = reconcile.NewRedisStore(redisClient)
	}

	var cloud cloudinary.Client
	if cfg.Cloudinary.CloudName != "" {
		cloud, err = cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.Fatalf("cloudinary: %v", err)
		}
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go newSweeper(cfg, db).Run(sweepCtx)

	engine := router.Setup(cfg, db, store, cloud)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")
	stopSweeper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server shutdown:", err)
	}
	fmt.Println("server stopped")
}

func newSweeper(cfg *config.Config, db *gorm.DB) *sweeper.Sweeper {
	userRepo := repository.NewUserRepository(db)
	consultRepo := repository.NewConsultationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	fcmSvc := service.NewFCMService(cfg.Firebase.ServiceAccountPath)
	mail := mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Password)
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, fcmSvc, mail)
	return sweeper.New(consultRepo, notifSvc, cfg.Session.StartGrace, cfg.Session.ExpiryHold, cfg.Session.SweepInterval)
}
