package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"autoparts/internal/model"
)

// OrderRepository defines order persistence operations.
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	ListByUser(ctx context.Context, userID uint) ([]model.Order, error)
	FindByIDForUser(ctx context.Context, id, userID uint) (*model.Order, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.Order, error)
	Update(ctx context.Context, order *model.Order) error
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, orders OrderRepository, products ProductRepository) error) error
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// preloadItems loads order lines with the current product name.
func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Select("order_items.*, products.name AS product_name").
			Joins("LEFT JOIN products ON products.id = order_items.product_id").
			Order("order_items.id")
	})
}

// Create inserts the order header and its items.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// ListByUser lists the orders of a user, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID uint) ([]model.Order, error) {
	orders := []model.Order{}
	if err := r.db.WithContext(ctx).
		Scopes(preloadItems).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// FindByIDForUser finds an order owned by userID.
func (r *orderRepository) FindByIDForUser(ctx context.Context, id, userID uint) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).
		Scopes(preloadItems).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate finds an order with a row-level lock.
func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(preloadItems).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Update writes the order header. Items are never rewritten.
func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

// WithTransaction executes fn within a database transaction, handing it order
// and product repositories bound to that transaction.
func (r *orderRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, orders OrderRepository, products ProductRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &orderRepository{db: tx}, &productRepository{db: tx})
	})
}
