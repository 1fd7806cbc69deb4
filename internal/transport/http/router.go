package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/unitradehq/unitrade-backend/internal/handlers"
	"github.com/unitradehq/unitrade-backend/internal/jwtmiddleware"
)

type Deps struct {
	DB               *gorm.DB
	OrderHandler     *handlers.OrderHandler
	PushTokenHandler *handlers.PushTokenHandler
	JWTSecret        []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	// Provider callback: no auth, integrity comes from the payload signature.
	v1.POST("/orders/paystack-webhook", d.OrderHandler.PaystackWebhook)

	auth := v1.Group("", jwtmiddleware.RequireAuth(d.JWTSecret))

	auth.GET("/orders", d.OrderHandler.ListOrders)
	auth.POST("/orders", d.OrderHandler.CreateOrder)
	auth.GET("/orders/:id", d.OrderHandler.GetOrder)
	auth.POST("/orders/verify-payment", d.OrderHandler.VerifyPayment)
	auth.POST("/orders/paystack-init", d.OrderHandler.PaystackInit)

	auth.POST("/push-tokens", d.PushTokenHandler.SavePushToken)
	auth.POST("/push-tokens/remove", d.PushTokenHandler.RemovePushToken)
	auth.POST("/push-tokens/test", d.PushTokenHandler.SendTestNotification)
}
