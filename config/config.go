package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Session    SessionConfig
	Payment    PaymentConfig
	Razorpay   RazorpayConfig
	Checkout   CheckoutConfig
	Agora      AgoraConfig
	SMTP       SMTPConfig
	Firebase   FirebaseConfig
	Cloudinary CloudinaryConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type SessionConfig struct {
	// StartGrace is how long after the scheduled time a provider may still
	// start before the sweeper marks the consultation expired.
	StartGrace time.Duration
	// ExpiryHold is how long a consultation sits in the expired stage before
	// it is promoted to permanently expired and refunded.
	ExpiryHold time.Duration
	// SweepInterval is how often the expiry sweeper runs.
	SweepInterval time.Duration
}

type PaymentConfig struct {
	// DraftTTL bounds how long a redirect-style booking draft stays claimable.
	DraftTTL      time.Duration
	WebhookSecret string
}

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
}

// CheckoutConfig is the redirect-style gateway: we sign the payload, the
// gateway redirects back, and we verify server-to-server.
type CheckoutConfig struct {
	BaseURL    string
	MerchantID string
	Secret     string
	ReturnURL  string
}

type AgoraConfig struct {
	AppID          string
	AppCertificate string
	TokenTTL       time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

func Load() *Config {
	_ = godotenv.Load()
	return &Config{
		Server: ServerConfig{
			Port:         getenv("PORT", "8080"),
			Env:          getenv("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getenv("DATABASE_DSN", "curalink:curalink@tcp(localhost:3306)/curalink?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		JWT: JWTConfig{
			AccessSecret:  getenv("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: getenv("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "curalink",
		},
		Session: SessionConfig{
			StartGrace:    30 * time.Minute,
			ExpiryHold:    6 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Payment: PaymentConfig{
			DraftTTL:      30 * time.Minute,
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		},
		Razorpay: RazorpayConfig{
			KeyID:     os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		},
		Checkout: CheckoutConfig{
			BaseURL:    getenv("CHECKOUT_BASE_URL", "https://pay.curalink.example"),
			MerchantID: os.Getenv("CHECKOUT_MERCHANT_ID"),
			Secret:     os.Getenv("CHECKOUT_SECRET"),
			ReturnURL:  getenv("CHECKOUT_RETURN_URL", "https://curalink.example/api/v1/payments/verify"),
		},
		Agora: AgoraConfig{
			AppID:          os.Getenv("AGORA_APP_ID"),
			AppCertificate: os.Getenv("AGORA_APP_CERTIFICATE"),
			TokenTTL:       time.Hour,
		},
		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", "smtp.gmail.com"),
			Port:     587,
			From:     os.Getenv("SMTP_FROM"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
