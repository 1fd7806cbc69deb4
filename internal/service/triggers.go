package service

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/unitradehq/unitrade-backend/internal/logging"
	"github.com/unitradehq/unitrade-backend/internal/models"
	"github.com/unitradehq/unitrade-backend/internal/sms"
)

// NotificationTriggers maps domain events to notifications. Every method is
// fire-and-forget: a delivery problem is logged inside the dispatcher and
// must never surface into the transaction that raised the event.
type NotificationTriggers struct {
	DB         *gorm.DB
	Dispatcher *NotificationService
	SMS        sms.Notifier
}

func (t *NotificationTriggers) NewOrder(ctx context.Context, sellerID uint, buyerName, productName string, orderID uint) {
	t.Dispatcher.Send(ctx, sellerID,
		"New Order! 🎉",
		fmt.Sprintf("%s ordered %s", buyerName, productName),
		orderData(orderID),
		models.NotificationTypeOrder,
	)
}

var statusMessages = map[string]string{
	models.OrderStatusProcessing: "Your order is being processed",
	models.OrderStatusShipped:    "Your order has been shipped 📦",
	models.OrderStatusDelivered:  "Your order has been delivered ✅",
	models.OrderStatusCancelled:  "Your order has been cancelled",
}

func (t *NotificationTriggers) OrderStatusUpdate(ctx context.Context, order *models.Order, status string) {
	body, ok := statusMessages[status]
	if !ok {
		body = fmt.Sprintf("Order status: %s", status)
	}
	t.Dispatcher.Send(ctx, order.BuyerID,
		"Order Update",
		body,
		orderData(order.ID),
		models.NotificationTypeOrder,
	)
}

// NewMessage deliberately omits the message content: push and SMS are less
// trusted channels than the in-app thread.
func (t *NotificationTriggers) NewMessage(ctx context.Context, recipient *models.User, senderName string, threadID uint, productName string) {
	t.Dispatcher.Send(ctx, recipient.ID,
		fmt.Sprintf("New message from %s 💬", senderName),
		"Tap to view message",
		map[string]interface{}{"type": "message", "threadId": strconv.FormatUint(uint64(threadID), 10)},
		models.NotificationTypeMessage,
	)

	if recipient.PhoneNumber == "" {
		return
	}
	var text string
	if productName != "" {
		text = fmt.Sprintf("You have a new message from %s about your product '%s'. Log in to UniTrade to reply.", senderName, productName)
	} else {
		text = fmt.Sprintf("You have a new message from %s on UniTrade. Log in to reply.", senderName)
	}
	if err := t.SMS.Send(ctx, recipient.PhoneNumber, text); err != nil {
		logging.FromContext(ctx).Warn("sms_send_failed", "user_id", recipient.ID, "error", err)
	}
}

func (t *NotificationTriggers) PaymentConfirmed(ctx context.Context, order *models.Order) {
	t.Dispatcher.Send(ctx, order.BuyerID,
		"Payment Confirmed ✅",
		fmt.Sprintf("Payment for %s was successful", t.orderSubject(ctx, order)),
		map[string]interface{}{"type": "payment", "orderId": strconv.FormatUint(uint64(order.ID), 10)},
		models.NotificationTypePayment,
	)
}

func (t *NotificationTriggers) NewReview(ctx context.Context, sellerID, productID uint, productName string, rating int) {
	t.Dispatcher.Send(ctx, sellerID,
		"New Review ⭐",
		fmt.Sprintf("Your product %q received a %d-star review", productName, rating),
		map[string]interface{}{"type": "review", "productId": strconv.FormatUint(uint64(productID), 10)},
		models.NotificationTypeReview,
	)
}

func (t *NotificationTriggers) ProductApproved(ctx context.Context, sellerID, productID uint, productName string) {
	t.Dispatcher.Send(ctx, sellerID,
		"Product Approved ✅",
		fmt.Sprintf("Your product %q has been approved and is now live!", productName),
		map[string]interface{}{"type": "product", "productId": strconv.FormatUint(uint64(productID), 10)},
		models.NotificationTypeProduct,
	)
}

// orderSubject names the order in notification copy: first item's snapshot
// name when available, a generic fallback otherwise.
func (t *NotificationTriggers) orderSubject(ctx context.Context, order *models.Order) string {
	if len(order.Items) > 0 {
		return order.Items[0].Name
	}
	var item models.OrderItem
	if err := t.DB.WithContext(ctx).Where("order_id = ?", order.ID).First(&item).Error; err == nil {
		return item.Name
	}
	return fmt.Sprintf("order #%d", order.ID)
}

func orderData(orderID uint) map[string]interface{} {
	return map[string]interface{}{
		"type":    "order",
		"orderId": strconv.FormatUint(uint64(orderID), 10),
	}
}
