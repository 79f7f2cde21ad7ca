package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"autoparts/internal/model"
)

const (
	// DefaultPageLimit is used when a listing request omits the limit.
	DefaultPageLimit = 20
	// MaxPageLimit caps the page size of product listings.
	MaxPageLimit = 100
)

// ProductFilter selects a page of active products.
type ProductFilter struct {
	CategorySlug string
	Search       string
	Page         int
	Limit        int
}

// Normalize applies paging defaults and bounds.
func (f ProductFilter) Normalize() ProductFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultPageLimit
	case f.Limit > MaxPageLimit:
		f.Limit = MaxPageLimit
	}
	f.Search = strings.TrimSpace(f.Search)
	f.CategorySlug = strings.TrimSpace(f.CategorySlug)
	return f
}

// Offset returns the number of rows skipped before the page.
func (f ProductFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// ProductRepository defines product persistence operations.
type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	FindActiveByID(ctx context.Context, id uint) (*model.Product, error)
	FindByID(ctx context.Context, id uint) (*model.Product, error)
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	UpdateImages(ctx context.Context, id uint, images model.StringList) error
	Deactivate(ctx context.Context, id uint) error
	// Used inside order transactions.
	FindByIDsForUpdate(ctx context.Context, ids []uint) ([]model.Product, error)
	DecrementStock(ctx context.Context, id uint, quantity int) (bool, error)
	IncrementStock(ctx context.Context, id uint, quantity int) error
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

const (
	joinCategories   = "LEFT JOIN categories ON categories.id = products.category_id"
	selectWithLabels = "products.*, categories.name AS category_name, categories.slug AS category_slug"
)

// ActiveOnly keeps products that are still for sale.
func ActiveOnly(db *gorm.DB) *gorm.DB {
	return db.Where("products.active = ?", true)
}

// ByCategorySlug keeps products of the category with slug. An empty slug
// matches everything.
func ByCategorySlug(slug string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if slug == "" {
			return db
		}
		return db.Where("categories.slug = ?", slug)
	}
}

// BySearch keeps products whose name, description or brand contains term,
// ignoring case. An empty term matches everything.
func BySearch(term string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if term == "" {
			return db
		}
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		return db.Where(
			"(LOWER(products.name) LIKE ? ESCAPE '!' OR LOWER(products.description) LIKE ? ESCAPE '!' OR LOWER(products.brand) LIKE ? ESCAPE '!')",
			pattern, pattern, pattern,
		)
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *productRepository) filtered(ctx context.Context, filter ProductFilter) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Joins(joinCategories).
		Scopes(ActiveOnly, ByCategorySlug(filter.CategorySlug), BySearch(filter.Search))
}

// List returns one page of active products matching filter, newest first,
// along with the total number of matches.
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	filter = filter.Normalize()

	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	products := []model.Product{}
	if err := r.filtered(ctx, filter).
		Select(selectWithLabels).
		Order("products.created_at DESC, products.id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset()).
		Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// FindActiveByID finds an active product with its category labels.
func (r *productRepository) FindActiveByID(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Select(selectWithLabels).
		Joins(joinCategories).
		Scopes(ActiveOnly).
		Where("products.id = ?", id).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByID finds a product regardless of its active flag.
func (r *productRepository) FindByID(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Create creates a new product. A false Active is zero-valued and would fall
// back to the column default on insert, so it is written separately.
func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	active := product.Active
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(product).Error; err != nil {
			return err
		}
		if active {
			return nil
		}
		return tx.Model(product).Update("active", false).Error
	})
}

// Update writes every column of product.
func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(product).Error
}

// UpdateImages replaces the image list of a product.
func (r *productRepository) UpdateImages(ctx context.Context, id uint, images model.StringList) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Update("images", images).Error
}

// Deactivate soft-deletes a product.
func (r *productRepository) Deactivate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Update("active", false).Error
}

// FindByIDsForUpdate loads the products with row-level locks. Missing ids are
// simply absent from the result.
func (r *productRepository) FindByIDsForUpdate(ctx context.Context, ids []uint) ([]model.Product, error) {
	var products []model.Product
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// DecrementStock removes quantity units if that many are in stock. It reports
// false when the stock was too low and nothing changed.
func (r *productRepository) DecrementStock(ctx context.Context, id uint, quantity int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", id, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementStock returns quantity units to stock.
func (r *productRepository) IncrementStock(ctx context.Context, id uint, quantity int) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + ?", quantity)).Error
}
