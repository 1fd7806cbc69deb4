package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/unitradehq/unitrade-backend/internal/logging"
	"github.com/unitradehq/unitrade-backend/internal/mykafka"
	"github.com/unitradehq/unitrade-backend/internal/paystack"
	"github.com/unitradehq/unitrade-backend/internal/service"
)

type OrderHandler struct {
	Orders        *service.OrderService
	Payments      *service.PaymentService
	Producer      *mykafka.Producer
	WebhookSecret []byte
}

func requester(c echo.Context) (service.Requester, error) {
	userID, ok := c.Get("userID").(uint)
	if !ok {
		return service.Requester{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	role, _ := c.Get("role").(string)
	return service.Requester{UserID: userID, Role: role}, nil
}

// publish is best-effort: a nil producer (no broker configured) and a failed
// write are both non-fatal to the request.
func publish(c echo.Context, p *mykafka.Producer, topic, key string, event map[string]interface{}) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Warn("kafka_publish_failed", "topic", topic, "error", err)
	}
}

type createOrderItem struct {
	ProductID  *uint           `json:"product"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	Image      string          `json:"image"`
	SellerName string          `json:"seller_name"`
	Category   string          `json:"category"`
}

type createOrderRequest struct {
	Total           decimal.Decimal   `json:"total"`
	DeliveryAddress string            `json:"delivery_address"`
	Items           []createOrderItem `json:"items"`
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	req, err := requester(c)
	if err != nil {
		return err
	}

	var body createOrderRequest
	if err := c.Bind(&body); err != nil {
		l.Warn("create_order_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	input := service.CreateOrderInput{
		Total:           body.Total,
		DeliveryAddress: body.DeliveryAddress,
	}
	for _, it := range body.Items {
		input.Items = append(input.Items, service.OrderItemInput{
			ProductID:  it.ProductID,
			Name:       it.Name,
			Price:      it.Price,
			Quantity:   it.Quantity,
			Image:      it.Image,
			SellerName: it.SellerName,
			Category:   it.Category,
		})
	}

	order, err := h.Orders.CreateOrder(ctx, req.UserID, input)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			l.Warn("create_order_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		l.Error("create_order_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	publish(c, h.Producer, mykafka.TopicOrderEvents, strconv.FormatUint(uint64(order.ID), 10), map[string]interface{}{
		"type":     "order_created",
		"order_id": order.ID,
		"buyer_id": order.BuyerID,
		"total":    order.Total,
	})

	l.Info("create_order_success", "order_id", order.ID)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := requester(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	order, err := h.Orders.GetOrder(ctx, uint(id), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := requester(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))

	orders, err := h.Orders.ListOrders(ctx, req, page, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.verify_payment")

	if _, err := requester(c); err != nil {
		return err
	}

	var body struct {
		Reference string `json:"reference"`
	}
	if err := c.Bind(&body); err != nil || body.Reference == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"detail": "Reference is required."})
	}

	result, err := h.Payments.VerifyPayment(ctx, body.Reference)
	if err != nil {
		var provider *paystack.ProviderError
		switch {
		case errors.As(err, &provider):
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"detail":   "Verification failed.",
				"paystack": provider.Raw,
			})
		case errors.Is(err, service.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]interface{}{"detail": "Order not found for this reference."})
		}
		l.Error("verify_payment_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if !result.Paid {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"detail":   "Payment not successful.",
			"paystack": json.RawMessage(result.Raw),
		})
	}

	publish(c, h.Producer, mykafka.TopicPaymentEvents, body.Reference, map[string]interface{}{
		"type":     "payment_verified",
		"order_id": result.OrderID,
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"detail":   "Payment verified and order updated.",
		"order_id": result.OrderID,
	})
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// PaystackWebhook is the unauthenticated provider callback. When a webhook
// secret is configured the x-paystack-signature header must carry the
// HMAC-SHA512 of the raw body; internal failures still acknowledge so the
// provider's retry loop doesn't hammer a broken deployment.
func (h *OrderHandler) PaystackWebhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.paystack_webhook")

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"detail": "Unreadable body."})
	}

	if len(h.WebhookSecret) > 0 {
		sig := c.Request().Header.Get("x-paystack-signature")
		mac := hmac.New(sha512.New, h.WebhookSecret)
		mac.Write(raw)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(expected), []byte(sig)) {
			l.Warn("webhook_signature_mismatch")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"detail": "Invalid payload."})
	}

	result, err := h.Payments.HandleWebhook(ctx, payload.Event, payload.Data.Reference, payload.Data.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return c.JSON(http.StatusBadRequest, map[string]interface{}{"detail": "No reference provided."})
		case errors.Is(err, service.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]interface{}{"detail": "Order not found."})
		}
		// Acknowledge anyway: the provider retries on non-2xx and a transient
		// DB error here must not leak internal state.
		l.Error("webhook_internal_error", "error", err)
		return c.JSON(http.StatusOK, map[string]interface{}{"detail": "Webhook received."})
	}

	if result.Transitioned {
		publish(c, h.Producer, mykafka.TopicPaymentEvents, payload.Data.Reference, map[string]interface{}{
			"type":     "payment_webhook",
			"event":    payload.Event,
			"order_id": result.OrderID,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"detail": "Webhook received."})
}

func (h *OrderHandler) PaystackInit(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.paystack_init")

	req, err := requester(c)
	if err != nil {
		return err
	}

	var body struct {
		Amount  decimal.Decimal `json:"amount"`
		Email   string          `json:"email"`
		OrderID uint            `json:"order_id"`
	}
	if err := c.Bind(&body); err != nil || body.Amount.IsZero() || body.Email == "" || body.OrderID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"detail": "amount, email, and order_id are required."})
	}

	authURL, err := h.Payments.InitPayment(ctx, body.OrderID, req, body.Amount, body.Email)
	if err != nil {
		var provider *paystack.ProviderError
		switch {
		case errors.Is(err, service.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]interface{}{"detail": "Order not found."})
		case errors.As(err, &provider):
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"detail":   "Paystack initialization failed.",
				"paystack": provider.Raw,
			})
		}
		l.Error("paystack_init_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"authorization_url": authURL})
}
