package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/unitradehq/unitrade-backend/internal/logging"
	"github.com/unitradehq/unitrade-backend/internal/models"
	"github.com/unitradehq/unitrade-backend/internal/util"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrForbidden  = errors.New("forbidden")  // 403
	ErrNotFound   = errors.New("not found")  // 404
	ErrGateway    = errors.New("gateway")    // 400, provider said no
)

// Requester is the authenticated caller as seen by the services.
type Requester struct {
	UserID uint
	Role   string
}

func (r Requester) Elevated() bool {
	return r.Role == "admin"
}

type OrderItemInput struct {
	ProductID  *uint
	Name       string
	Price      decimal.Decimal
	Quantity   int
	Image      string
	SellerName string
	Category   string
}

type CreateOrderInput struct {
	Total           decimal.Decimal
	DeliveryAddress string
	Items           []OrderItemInput
}

type OrderService struct {
	DB       *gorm.DB
	Triggers *NotificationTriggers
}

// CreateOrder writes the order plus item snapshots in one transaction and
// notifies each distinct seller afterwards. The total comes from the caller.
func (svc *OrderService) CreateOrder(ctx context.Context, buyerID uint, req CreateOrderInput) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}

	var items []models.OrderItem
	sellers := make(map[uint]bool)

	for i := range req.Items {
		in := req.Items[i]
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
		if in.Price.IsNegative() {
			return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
		}

		item := models.OrderItem{
			ProductID:  in.ProductID,
			Name:       in.Name,
			Price:      in.Price,
			Quantity:   uint(in.Quantity),
			Image:      in.Image,
			SellerName: in.SellerName,
			Category:   in.Category,
		}

		if in.ProductID != nil {
			var product models.Product
			if err := svc.DB.WithContext(ctx).First(&product, *in.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, fmt.Errorf("%w: product %d not found", ErrValidation, *in.ProductID)
				}
				return nil, err
			}
			if item.Name == "" {
				item.Name = product.Name
			}
			if item.Image == "" {
				item.Image = product.Image
			}
			if item.SellerName == "" {
				item.SellerName = product.SellerName
			}
			if item.Category == "" {
				item.Category = product.Category
			}
			sellers[product.SellerID] = true
		} else if in.Name == "" {
			return nil, fmt.Errorf("%w: name required for free-form item", ErrValidation)
		}

		items = append(items, item)
	}

	order := &models.Order{
		BuyerID:         buyerID,
		Total:           req.Total,
		Status:          models.OrderStatusPending,
		PaymentMethod:   models.PaymentMethodPaystack,
		PaymentStatus:   models.PaymentStatusPending,
		DeliveryAddress: req.DeliveryAddress,
		Items:           items,
	}

	if err := svc.DB.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}

	svc.notifySellers(ctx, order, sellers)

	return order, nil
}

func (svc *OrderService) notifySellers(ctx context.Context, order *models.Order, sellers map[uint]bool) {
	if svc.Triggers == nil || len(sellers) == 0 {
		return
	}

	var buyer models.User
	if err := svc.DB.WithContext(ctx).First(&buyer, order.BuyerID).Error; err != nil {
		logging.FromContext(ctx).Warn("order_buyer_lookup_failed", "order_id", order.ID, "error", err)
		return
	}
	buyerName := DisplayName(&buyer)

	productName := order.Items[0].Name
	for sellerID := range sellers {
		svc.Triggers.NewOrder(ctx, sellerID, buyerName, productName, order.ID)
	}
}

func (svc *OrderService) GetOrder(ctx context.Context, id uint, req Requester) (*models.Order, error) {
	var order models.Order
	if err := svc.DB.WithContext(ctx).Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
		}
		return nil, err
	}
	if order.BuyerID != req.UserID && !req.Elevated() {
		return nil, fmt.Errorf("%w: not your order", ErrForbidden)
	}
	return &order, nil
}

func (svc *OrderService) ListOrders(ctx context.Context, req Requester, page, size int) ([]models.Order, error) {
	offset, limit := util.Calculate(page, size)

	q := svc.DB.WithContext(ctx).Model(&models.Order{}).Preload("Items")
	if !req.Elevated() {
		q = q.Where("buyer_id = ?", req.UserID)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// DeleteOrder exists for staff tooling only; items go with the order in one
// transaction even when the backing store lacks native cascade.
func (svc *OrderService) DeleteOrder(ctx context.Context, id uint) error {
	return svc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Order{}, id).Error
	})
}

// DisplayName mirrors the mobile client's fallback chain for user names.
func DisplayName(u *models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
