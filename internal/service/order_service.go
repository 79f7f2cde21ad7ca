package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "autoparts/internal/errors"
	"autoparts/internal/events"
	"autoparts/internal/logger"
	"autoparts/internal/model"
	"autoparts/internal/repository"
)

// publishTimeout bounds one order event delivery, retries included.
const publishTimeout = 10 * time.Second

// OrderItemInput is one requested cart line.
type OrderItemInput struct {
	ProductID uint
	Quantity  int
}

// CreateOrderInput is a checkout request.
type CreateOrderInput struct {
	Items           []OrderItemInput
	ShippingAddress model.Address
	PaymentMethod   string
}

// UpdateOrderStatusInput changes the fields an admin may edit. Nil fields are
// left untouched.
type UpdateOrderStatusInput struct {
	Status        *model.OrderStatus
	PaymentStatus *model.PaymentStatus
	TrackingCode  *string
}

// OrderMetrics records order outcomes.
type OrderMetrics interface {
	OrderCreated(total decimal.Decimal)
	OrderFailed(reason string)
}

// ProductCache drops cached catalog entries after stock changes.
type ProductCache interface {
	InvalidateProducts(ctx context.Context, ids ...uint)
}

// OrderService handles checkout and order queries.
type OrderService interface {
	CreateOrder(ctx context.Context, userID uint, in CreateOrderInput) (*model.Order, error)
	ListOrders(ctx context.Context, userID uint) ([]model.Order, error)
	GetOrder(ctx context.Context, userID, orderID uint) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uint, in UpdateOrderStatusInput) (*model.Order, error)
	// Drain waits for order events still being published. Call it before
	// closing the publisher.
	Drain(ctx context.Context) error
}

type orderService struct {
	orderRepo repository.OrderRepository
	products  ProductCache
	metrics   OrderMetrics
	publisher events.Publisher

	inflight sync.WaitGroup
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	products ProductCache,
	metrics OrderMetrics,
	publisher events.Publisher,
) OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &orderService{
		orderRepo: orderRepo,
		products:  products,
		metrics:   metrics,
		publisher: publisher,
	}
}

func validateOrderInput(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", apperrors.ErrValidation)
	}
	for i, item := range in.Items {
		if item.ProductID == 0 {
			return fmt.Errorf("%w: items[%d].product_id is required", apperrors.ErrValidation, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: items[%d].quantity must be at least 1", apperrors.ErrValidation, i)
		}
	}

	addr := in.ShippingAddress
	for _, f := range []struct{ name, value string }{
		{"street", addr.Street},
		{"city", addr.City},
		{"state", addr.State},
		{"zip_code", addr.ZipCode},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: shipping_address.%s is required", apperrors.ErrValidation, f.name)
		}
	}

	if strings.TrimSpace(in.PaymentMethod) == "" {
		return fmt.Errorf("%w: payment_method is required", apperrors.ErrValidation)
	}
	return nil
}

// failureReason is the metrics label for a failed order.
func failureReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return "validation"
	case errors.Is(err, apperrors.ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, apperrors.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "internal"
	}
}

// CreateOrder prices the cart from locked product rows, reserves stock and
// stores the order, all in one transaction.
func (s *orderService) CreateOrder(ctx context.Context, userID uint, in CreateOrderInput) (*model.Order, error) {
	log := logger.FromContext(ctx)

	order, err := s.createOrder(ctx, userID, in)
	if err != nil {
		s.metrics.OrderFailed(failureReason(err))
		return nil, err
	}

	productIDs := make([]uint, 0, len(order.Items))
	evt := events.OrderCreated{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total,
		Items:     make([]events.OrderItem, 0, len(order.Items)),
		CreatedAt: order.CreatedAt,
	}
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
		evt.Items = append(evt.Items, events.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	s.products.InvalidateProducts(ctx, productIDs...)
	s.metrics.OrderCreated(order.Total)
	s.publishAsync(ctx, evt)

	log.Info("order created", "order_id", order.ID, "user_id", userID, "total", order.Total.StringFixed(2))
	return order, nil
}

// publishAsync delivers evt off the request path. The order is already
// committed, so a failed delivery is only logged.
func (s *orderService) publishAsync(ctx context.Context, evt events.OrderCreated) {
	log := logger.FromContext(ctx)
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if err := s.publisher.PublishOrderCreated(pubCtx, evt); err != nil {
			log.Error("publish order event", "order_id", evt.OrderID, "error", err)
		}
	}()
}

// Drain blocks until pending order events are published or ctx is done.
func (s *orderService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *orderService) createOrder(ctx context.Context, userID uint, in CreateOrderInput) (*model.Order, error) {
	if err := validateOrderInput(in); err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(in.Items))
	seen := make(map[uint]bool, len(in.Items))
	for _, item := range in.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	var order *model.Order
	err := s.orderRepo.WithTransaction(ctx, func(ctx context.Context, orders repository.OrderRepository, products repository.ProductRepository) error {
		locked, err := products.FindByIDsForUpdate(ctx, ids)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		byID := make(map[uint]model.Product, len(locked))
		for _, p := range locked {
			byID[p.ID] = p
		}

		// Total and item snapshots come from the same locked prices.
		total := decimal.Zero
		items := make([]model.OrderItem, 0, len(in.Items))
		for _, item := range in.Items {
			p, ok := byID[item.ProductID]
			if !ok || !p.Active {
				return fmt.Errorf("%w: product %d", apperrors.ErrProductUnavailable, item.ProductID)
			}
			line := model.OrderItem{
				ProductID:   p.ID,
				Quantity:    item.Quantity,
				Price:       p.Price,
				ProductName: p.Name,
			}
			total = total.Add(line.Subtotal())
			items = append(items, line)
		}

		for _, item := range items {
			ok, err := products.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("reserve stock: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w for %s", apperrors.ErrInsufficientStock, item.ProductName)
			}
		}

		order = &model.Order{
			UserID:          userID,
			Total:           total,
			Status:          model.OrderStatusPending,
			PaymentStatus:   model.PaymentStatusPending,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
			Items:           items,
		}
		if err := orders.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders lists the orders of a user, newest first.
func (s *orderService) ListOrders(ctx context.Context, userID uint) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// GetOrder returns an order owned by userID.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

// UpdateOrderStatus applies an admin status change. Cancelled orders cannot be
// reopened; cancelling returns the items to stock.
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID uint, in UpdateOrderStatusInput) (*model.Order, error) {
	if in.Status == nil && in.PaymentStatus == nil && in.TrackingCode == nil {
		return nil, fmt.Errorf("%w: nothing to update", apperrors.ErrValidation)
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, *in.Status)
	}
	if in.PaymentStatus != nil && !in.PaymentStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown payment_status %q", apperrors.ErrValidation, *in.PaymentStatus)
	}

	var (
		order     *model.Order
		restocked []uint
	)
	err := s.orderRepo.WithTransaction(ctx, func(ctx context.Context, orders repository.OrderRepository, products repository.ProductRepository) error {
		var err error
		order, err = orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrOrderNotFound
			}
			return fmt.Errorf("find order: %w", err)
		}

		if in.Status != nil && *in.Status != order.Status {
			if order.Status == model.OrderStatusCancelled {
				return fmt.Errorf("%w: order %d is cancelled", apperrors.ErrInvalidStatusTransition, order.ID)
			}
			if *in.Status == model.OrderStatusCancelled {
				for _, item := range order.Items {
					if err := products.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
						return fmt.Errorf("restock product %d: %w", item.ProductID, err)
					}
					restocked = append(restocked, item.ProductID)
				}
			}
			order.Status = *in.Status
		}
		if in.PaymentStatus != nil {
			order.PaymentStatus = *in.PaymentStatus
		}
		if in.TrackingCode != nil {
			order.TrackingCode = strings.TrimSpace(*in.TrackingCode)
		}

		if err := orders.Update(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(restocked) > 0 {
		s.products.InvalidateProducts(ctx, restocked...)
	}
	logger.FromContext(ctx).Info("order updated", "order_id", order.ID, "status", order.Status, "payment_status", order.PaymentStatus)
	return order, nil
}
