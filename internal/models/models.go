package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusDelivered  = "delivered"
	OrderStatusShipped    = "shipped"

	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
	PaymentStatusFailed   = "failed"

	PaymentMethodPaystack = "paystack"
)

const (
	DeviceTypeIOS     = "ios"
	DeviceTypeAndroid = "android"
)

const (
	NotificationTypeOrder   = "order"
	NotificationTypeMessage = "message"
	NotificationTypePayment = "payment"
	NotificationTypeProduct = "product"
	NotificationTypeReview  = "review"
	NotificationTypeSystem  = "system"
)

type Order struct {
	ID                uint            `gorm:"primaryKey"                   json:"id"`
	BuyerID           uint            `gorm:"index;not null"               json:"buyer_id"`
	Total             decimal.Decimal `gorm:"type:numeric(10,2);not null"  json:"total"`
	Status            string          `gorm:"not null;default:pending"     json:"status"`
	PaymentMethod     string          `gorm:"not null;default:paystack"    json:"payment_method"`
	PaymentStatus     string          `gorm:"not null;default:pending"     json:"payment_status"`
	PaystackReference *string         `gorm:"uniqueIndex;size:100"         json:"paystack_reference"`
	DeliveryAddress   string          `gorm:"type:text"                    json:"delivery_address"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Items             []OrderItem     `gorm:"constraint:OnDelete:CASCADE"  json:"items"`
}

// OrderItem is a snapshot taken at order creation: name, price, seller and
// category stay as they were even if the product is later edited or deleted.
type OrderItem struct {
	ID         uint            `gorm:"primaryKey"                   json:"id"`
	OrderID    uint            `gorm:"index;not null"               json:"order_id"`
	ProductID  *uint           `gorm:"index"                        json:"product_id"`
	Name       string          `gorm:"size:100;not null"            json:"name"`
	Price      decimal.Decimal `gorm:"type:numeric(10,2);not null"  json:"price"`
	Quantity   uint            `gorm:"not null;check:quantity>0"    json:"quantity"`
	Image      string          `gorm:"size:1000"                    json:"image"`
	SellerName string          `gorm:"size:255"                     json:"seller_name"`
	Category   string          `gorm:"size:50"                      json:"category"`
}

type PushToken struct {
	ID         uint      `gorm:"primaryKey"                          json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_user_token" json:"user_id"`
	Token      string    `gorm:"size:255;uniqueIndex;uniqueIndex:idx_user_token" json:"token"`
	DeviceType string    `gorm:"size:10;not null"                    json:"device_type"`
	IsActive   bool      `gorm:"default:true"                        json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NotificationLog rows are written once per dispatch attempt and never updated.
type NotificationLog struct {
	ID           uint      `gorm:"primaryKey"        json:"id"`
	UserID       uint      `gorm:"index;not null"    json:"user_id"`
	Type         string    `gorm:"size:20;not null"  json:"type"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Body         string    `gorm:"type:text"         json:"body"`
	Data         string    `gorm:"type:text"         json:"data"`
	SentToTokens int       `gorm:"default:0"         json:"sent_to_tokens"`
	Successful   bool      `gorm:"default:false"     json:"successful"`
	ErrorMessage string    `gorm:"type:text"         json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}

// User and Product are owned by the account and catalog services; only the
// columns the order and notification flows read are mapped here.
type User struct {
	ID          uint   `gorm:"primaryKey"            json:"id"`
	Email       string `gorm:"unique;not null"       json:"email"`
	FirstName   string `gorm:"size:150"              json:"first_name"`
	LastName    string `gorm:"size:150"              json:"last_name"`
	Role        string `gorm:"size:10;default:buyer" json:"role"`
	PhoneNumber string `gorm:"size:20"               json:"phone_number"`
}

type Product struct {
	ID         uint            `gorm:"primaryKey"                  json:"id"`
	Name       string          `gorm:"size:100;not null"           json:"name"`
	Price      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	SellerID   uint            `gorm:"index;not null"              json:"seller_id"`
	SellerName string          `gorm:"size:255"                    json:"seller_name"`
	Category   string          `gorm:"size:50"                     json:"category"`
	Image      string          `gorm:"size:1000"                   json:"image"`
}
