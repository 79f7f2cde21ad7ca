package repository

import (
	"context"

	"gorm.io/gorm"

	"autoparts/internal/model"
)

// CategoryRepository defines category persistence operations.
type CategoryRepository interface {
	ListActive(ctx context.Context) ([]model.Category, error)
	FindActiveBySlug(ctx context.Context, slug string) (*model.Category, error)
	Exists(ctx context.Context, id uint) (bool, error)
}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository creates a new category repository.
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

// ListActive returns active categories ordered by name, each with the number of
// active products it holds.
func (r *categoryRepository) ListActive(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := r.db.WithContext(ctx).
		Model(&model.Category{}).
		Select("categories.*, COUNT(products.id) AS product_count").
		Joins("LEFT JOIN products ON products.category_id = categories.id AND products.active = ?", true).
		Where("categories.active = ?", true).
		Group("categories.id").
		Order("categories.name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// FindActiveBySlug finds an active category by slug.
func (r *categoryRepository) FindActiveBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).
		Where("slug = ? AND active = ?", slug, true).
		First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// Exists reports whether a category row with id exists, active or not.
func (r *categoryRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
