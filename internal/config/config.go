package config

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/unitradehq/unitrade-backend/internal/models"
)

type Config struct {
	DB_HOST                 string
	DB_PORT                 string
	DB_USER                 string
	DB_PASSWORD             string
	DB_NAME                 string
	JWT_SECRET              string
	KAFKA_ADDRESS           string
	PAYSTACK_SECRET_KEY     string
	PAYSTACK_WEBHOOK_SECRET string
	PAYSTACK_BASE_URL       string
	PAYMENT_CALLBACK_URL    string
	EXPO_PUSH_URL           string
	SMS_API_KEY             string
	SMS_SENDER_ID           string
	LOG_LEVEL               string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:                 os.Getenv("DB_HOST"),
		DB_PORT:                 os.Getenv("DB_PORT"),
		DB_USER:                 os.Getenv("DB_USER"),
		DB_PASSWORD:             os.Getenv("DB_PASSWORD"),
		DB_NAME:                 os.Getenv("DB_NAME"),
		JWT_SECRET:              os.Getenv("JWT_SECRET"),
		KAFKA_ADDRESS:           os.Getenv("KAFKA_ADDRESS"),
		PAYSTACK_SECRET_KEY:     os.Getenv("PAYSTACK_SECRET_KEY"),
		PAYSTACK_WEBHOOK_SECRET: os.Getenv("PAYSTACK_WEBHOOK_SECRET"),
		PAYSTACK_BASE_URL:       os.Getenv("PAYSTACK_BASE_URL"),
		PAYMENT_CALLBACK_URL:    os.Getenv("PAYMENT_CALLBACK_URL"),
		EXPO_PUSH_URL:           os.Getenv("EXPO_PUSH_URL"),
		SMS_API_KEY:             os.Getenv("SMS_API_KEY"),
		SMS_SENDER_ID:           os.Getenv("SMS_SENDER_ID"),
		LOG_LEVEL:               os.Getenv("LOG_LEVEL"),
	}

	// Paystack signs webhook payloads with the account secret key unless a
	// dedicated webhook secret is configured.
	if config.PAYSTACK_WEBHOOK_SECRET == "" {
		config.PAYSTACK_WEBHOOK_SECRET = config.PAYSTACK_SECRET_KEY
	}
	if config.PAYMENT_CALLBACK_URL == "" {
		config.PAYMENT_CALLBACK_URL = "http://localhost:3000"
	}

	return config, nil
}

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

func InitDB(configuration *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		configuration.DB_USER, configuration.DB_PASSWORD,
		configuration.DB_HOST, configuration.DB_PORT, configuration.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql.DB: %w", err)
	}
	configurePool(sqlDB)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.PushToken{},
		&models.NotificationLog{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
