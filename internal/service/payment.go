package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/unitradehq/unitrade-backend/internal/logging"
	"github.com/unitradehq/unitrade-backend/internal/models"
	"github.com/unitradehq/unitrade-backend/internal/paystack"
)

type PaymentService struct {
	DB              *gorm.DB
	Gateway         *paystack.Client
	CallbackBaseURL string
	Triggers        *NotificationTriggers
}

type VerifyResult struct {
	OrderID        uint
	Paid           bool
	ProviderStatus string
	Raw            json.RawMessage
}

type WebhookResult struct {
	OrderID      uint
	Transitioned bool
}

// InitPayment opens a provider payment session for the order and returns the
// redirect URL. The order's reference is minted once and reused on retries so
// a replayed request lands on the same provider session.
func (svc *PaymentService) InitPayment(ctx context.Context, orderID uint, req Requester, amount decimal.Decimal, email string) (string, error) {
	var order models.Order
	err := svc.DB.WithContext(ctx).
		Where("id = ? AND buyer_id = ?", orderID, req.UserID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return "", err
	}

	if order.PaystackReference == nil || *order.PaystackReference == "" {
		ref := uuid.NewString()
		res := svc.DB.WithContext(ctx).Model(&models.Order{}).
			Where("id = ? AND paystack_reference IS NULL", order.ID).
			Update("paystack_reference", ref)
		if res.Error != nil {
			return "", res.Error
		}
		// Lost the race to another init attempt: re-read the winner's value.
		if res.RowsAffected == 0 {
			if err := svc.DB.WithContext(ctx).First(&order, order.ID).Error; err != nil {
				return "", err
			}
		} else {
			order.PaystackReference = &ref
		}
	}

	// Paystack takes amounts in the minor unit (kobo/pesewas), truncated.
	minor := amount.Mul(decimal.NewFromInt(100)).IntPart()

	data, err := svc.Gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Amount:      minor,
		Email:       email,
		Reference:   *order.PaystackReference,
		CallbackURL: fmt.Sprintf("%s/order-confirmation/%d", svc.CallbackBaseURL, order.ID),
	})
	if err != nil {
		return "", err
	}
	return data.AuthorizationURL, nil
}

// VerifyPayment asks the provider for the charge outcome by reference and, on
// success, applies the same idempotent transition the webhook does.
func (svc *PaymentService) VerifyPayment(ctx context.Context, reference string) (*VerifyResult, error) {
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrValidation)
	}

	data, raw, err := svc.Gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}

	var order models.Order
	if err := svc.DB.WithContext(ctx).Where("paystack_reference = ?", reference).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no order for reference %s", ErrNotFound, reference)
		}
		return nil, err
	}

	if data.Status != "success" {
		return &VerifyResult{OrderID: order.ID, Paid: false, ProviderStatus: data.Status, Raw: raw}, nil
	}

	if _, err := svc.markPaid(ctx, &order); err != nil {
		return nil, err
	}
	return &VerifyResult{OrderID: order.ID, Paid: true, ProviderStatus: data.Status, Raw: raw}, nil
}

// HandleWebhook applies the provider's asynchronous charge outcome. Unmatched
// references are reported to the caller for a soft 404; unknown event names
// are acknowledged untouched so new provider events don't break delivery.
func (svc *PaymentService) HandleWebhook(ctx context.Context, event, reference, status string) (*WebhookResult, error) {
	l := logging.FromContext(ctx)
	l.Info("paystack_webhook_received", "event", event, "reference", reference)

	if reference == "" {
		return nil, fmt.Errorf("%w: no reference provided", ErrValidation)
	}

	var order models.Order
	if err := svc.DB.WithContext(ctx).Where("paystack_reference = ?", reference).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("order_not_found_for_reference", "reference", reference)
			return nil, fmt.Errorf("%w: no order for reference %s", ErrNotFound, reference)
		}
		return nil, err
	}

	result := &WebhookResult{OrderID: order.ID}

	switch {
	case event == "charge.success" && status == "success":
		transitioned, err := svc.markPaid(ctx, &order)
		if err != nil {
			return nil, err
		}
		result.Transitioned = transitioned
		l.Info("order_marked_paid_via_webhook", "order_id", order.ID)
	case event == "charge.failed":
		res := svc.DB.WithContext(ctx).Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", order.ID, models.PaymentStatusPending).
			Update("payment_status", models.PaymentStatusFailed)
		if res.Error != nil {
			return nil, res.Error
		}
		result.Transitioned = res.RowsAffected == 1
		l.Info("order_marked_failed_via_webhook", "order_id", order.ID)
	default:
		// Other events are accepted and acknowledged without state change.
	}

	return result, nil
}

// markPaid is the single pending→paid transition. The guarded UPDATE makes it
// idempotent, so a webhook racing a manual verify converges on the same state
// and only the first writer fires notifications.
func (svc *PaymentService) markPaid(ctx context.Context, order *models.Order) (bool, error) {
	res := svc.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", order.ID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusPaid,
			"status":         models.OrderStatusProcessing,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}

	order.PaymentStatus = models.PaymentStatusPaid
	order.Status = models.OrderStatusProcessing
	if svc.Triggers != nil {
		svc.Triggers.PaymentConfirmed(ctx, order)
		svc.Triggers.OrderStatusUpdate(ctx, order, models.OrderStatusProcessing)
	}
	return true, nil
}
