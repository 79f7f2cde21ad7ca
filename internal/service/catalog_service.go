package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"autoparts/internal/cache"
	apperrors "autoparts/internal/errors"
	"autoparts/internal/logger"
	"autoparts/internal/model"
	"autoparts/internal/repository"
	"autoparts/internal/storage"
)

const (
	catalogCacheTTL     = 5 * time.Minute
	invalidationHold    = 10 * time.Second
	categoriesCacheKey  = "catalog:categories"
	productCachePrefix  = "catalog:product:"
	maxProductImageSize = 5 << 20
)

// invalidatedMarker replaces a cache entry on invalidation. Reads treat it as a
// miss, and refills use SetNX, so a read that fetched the row before a write
// cannot put the old row back until the marker expires.
var invalidatedMarker = []byte("\x00invalidated")

// CatalogCache is the subset of cache.Client the catalog uses.
type CatalogCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ProductInput carries every mutable product field. Update replaces all of
// them.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  uint
	Brand       string
	Model       string
	PartNumber  string
	Images      []string
	Active      *bool // nil means true
}

// ImageUpload is a product image received from a client.
type ImageUpload struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// Pagination describes the page returned by a listing.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products   []model.Product `json:"products"`
	Pagination Pagination      `json:"pagination"`
}

// CatalogService handles categories and products.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, slug string) (*model.Category, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error)
	GetProduct(ctx context.Context, id uint) (*model.Product, error)
	CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uint, in ProductInput) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uint) error
	AddProductImage(ctx context.Context, id uint, img ImageUpload) (*model.Product, error)
	InvalidateProducts(ctx context.Context, ids ...uint)
}

type catalogService struct {
	categoryRepo repository.CategoryRepository
	productRepo  repository.ProductRepository
	cache        CatalogCache
	disk         storage.Disk
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(
	categoryRepo repository.CategoryRepository,
	productRepo repository.ProductRepository,
	c CatalogCache,
	disk storage.Disk,
) CatalogService {
	if c == nil {
		c = cache.New("", "", 0)
	}
	return &catalogService{
		categoryRepo: categoryRepo,
		productRepo:  productRepo,
		cache:        c,
		disk:         disk,
	}
}

func productCacheKey(id uint) string {
	return productCachePrefix + strconv.FormatUint(uint64(id), 10)
}

// getCached decodes a cached value into dst and reports whether it was found.
func (s *catalogService) getCached(ctx context.Context, key string, dst interface{}) bool {
	data, _ := s.cache.Get(ctx, key)
	if data == nil || bytes.Equal(data, invalidatedMarker) {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		logger.FromContext(ctx).Warn("discarding corrupt cache entry", "key", key, "error", err)
		_ = s.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (s *catalogService) setCached(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = s.cache.SetNX(ctx, key, data, catalogCacheTTL)
}

// ListCategories returns active categories with their active product counts.
func (s *catalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if s.getCached(ctx, categoriesCacheKey, &categories) {
		return categories, nil
	}

	categories, err := s.categoryRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if categories == nil {
		categories = []model.Category{}
	}
	s.setCached(ctx, categoriesCacheKey, categories)
	return categories, nil
}

// GetCategory finds an active category by slug.
func (s *catalogService) GetCategory(ctx context.Context, slug string) (*model.Category, error) {
	category, err := s.categoryRepo.FindActiveBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return category, nil
}

// ListProducts returns one page of active products.
func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error) {
	filter = filter.Normalize()

	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []model.Product{}
	}

	pages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &ProductPage{
		Products: products,
		Pagination: Pagination{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}

// GetProduct finds an active product.
func (s *catalogService) GetProduct(ctx context.Context, id uint) (*model.Product, error) {
	key := productCacheKey(id)
	var cached model.Product
	if s.getCached(ctx, key, &cached) {
		return &cached, nil
	}

	product, err := s.productRepo.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	s.setCached(ctx, key, product)
	return product, nil
}

func (s *catalogService) validateProduct(ctx context.Context, in ProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", apperrors.ErrValidation)
	}
	if in.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", apperrors.ErrValidation)
	}
	if in.CategoryID == 0 {
		return fmt.Errorf("%w: category_id is required", apperrors.ErrValidation)
	}
	exists, err := s.categoryRepo.Exists(ctx, in.CategoryID)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: unknown category %d", apperrors.ErrValidation, in.CategoryID)
	}
	return nil
}

func applyProductInput(p *model.Product, in ProductInput) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	p.Stock = in.Stock
	p.CategoryID = in.CategoryID
	p.Brand = in.Brand
	p.VehicleModel = in.Model
	p.PartNumber = in.PartNumber
	p.Images = model.StringList(in.Images)
	if p.Images == nil {
		p.Images = model.StringList{}
	}
	p.Active = in.Active == nil || *in.Active
}

// CreateProduct adds a product to the catalog.
func (s *catalogService) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	if err := s.validateProduct(ctx, in); err != nil {
		return nil, err
	}

	product := &model.Product{}
	applyProductInput(product, in)
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.InvalidateProducts(ctx)
	logger.FromContext(ctx).Info("product created", "product_id", product.ID)
	return product, nil
}

// UpdateProduct replaces every mutable field of a product.
func (s *catalogService) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	if err := s.validateProduct(ctx, in); err != nil {
		return nil, err
	}

	applyProductInput(product, in)
	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.InvalidateProducts(ctx, id)
	return product, nil
}

// DeleteProduct soft-deletes a product.
func (s *catalogService) DeleteProduct(ctx context.Context, id uint) error {
	if _, err := s.productRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrProductNotFound
		}
		return fmt.Errorf("find product: %w", err)
	}
	if err := s.productRepo.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}

	s.InvalidateProducts(ctx, id)
	logger.FromContext(ctx).Info("product deactivated", "product_id", id)
	return nil
}

// AddProductImage stores an image and appends its URL to the product.
func (s *catalogService) AddProductImage(ctx context.Context, id uint, img ImageUpload) (*model.Product, error) {
	ext, ok := imageExtensions[strings.ToLower(img.ContentType)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image type %q", apperrors.ErrValidation, img.ContentType)
	}
	if img.Size <= 0 || img.Size > maxProductImageSize {
		return nil, fmt.Errorf("%w: image must be between 1 byte and 5 MiB", apperrors.ErrValidation)
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}

	path := fmt.Sprintf("products/%d/%s%s", id, uuid.NewString(), ext)
	body := io.LimitReader(img.Body, maxProductImageSize)
	if err := s.disk.PutStream(ctx, path, body, img.ContentType); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	images := append(model.StringList{}, product.Images...)
	images = append(images, s.disk.URL(path))
	if err := s.productRepo.UpdateImages(ctx, id, images); err != nil {
		if delErr := s.disk.Delete(ctx, path); delErr != nil {
			logger.FromContext(ctx).Warn("orphaned product image", "path", path, "error", delErr)
		}
		return nil, fmt.Errorf("save image url: %w", err)
	}
	product.Images = images

	s.InvalidateProducts(ctx, id)
	return product, nil
}

// InvalidateProducts drops cached products and the category listing, whose
// counts depend on them.
func (s *catalogService) InvalidateProducts(ctx context.Context, ids ...uint) {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, categoriesCacheKey)
	for _, id := range ids {
		keys = append(keys, productCacheKey(id))
	}
	for _, key := range keys {
		_ = s.cache.Set(ctx, key, invalidatedMarker, invalidationHold)
	}
}
