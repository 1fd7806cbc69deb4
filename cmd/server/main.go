package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/unitradehq/unitrade-backend/internal/config"
	"github.com/unitradehq/unitrade-backend/internal/expo"
	"github.com/unitradehq/unitrade-backend/internal/handlers"
	"github.com/unitradehq/unitrade-backend/internal/logging"
	loggingmw "github.com/unitradehq/unitrade-backend/internal/middleware/logging"
	"github.com/unitradehq/unitrade-backend/internal/mykafka"
	"github.com/unitradehq/unitrade-backend/internal/paystack"
	"github.com/unitradehq/unitrade-backend/internal/service"
	"github.com/unitradehq/unitrade-backend/internal/sms"
	httpserver "github.com/unitradehq/unitrade-backend/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	} else {
		logger.Warn("KAFKA_ADDRESS not set, event publishing disabled")
	}

	pushClient := expo.NewClient(configuration.EXPO_PUSH_URL)
	payClient := paystack.NewClient(configuration.PAYSTACK_SECRET_KEY, configuration.PAYSTACK_BASE_URL)
	smsNotifier := sms.New(configuration.SMS_API_KEY, configuration.SMS_SENDER_ID, "")

	dispatcher := &service.NotificationService{DB: db, Push: pushClient}
	triggers := &service.NotificationTriggers{DB: db, Dispatcher: dispatcher, SMS: smsNotifier}
	orders := &service.OrderService{DB: db, Triggers: triggers}
	payments := &service.PaymentService{
		DB:              db,
		Gateway:         payClient,
		CallbackBaseURL: configuration.PAYMENT_CALLBACK_URL,
		Triggers:        triggers,
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB: db,
		OrderHandler: &handlers.OrderHandler{
			Orders:        orders,
			Payments:      payments,
			Producer:      prod,
			WebhookSecret: []byte(configuration.PAYSTACK_WEBHOOK_SECRET),
		},
		PushTokenHandler: &handlers.PushTokenHandler{DB: db, Dispatcher: dispatcher, Producer: prod},
		JWTSecret:        []byte(configuration.JWT_SECRET),
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if prod != nil {
		if err := prod.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
