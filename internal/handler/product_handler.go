package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	apperrors "autoparts/internal/errors"
	"autoparts/internal/model"
	"autoparts/internal/repository"
	"autoparts/internal/service"
)

// ProductHandler serves product listing and the admin product endpoints.
type ProductHandler struct {
	catalog service.CatalogService
}

// NewProductHandler creates a new product handler.
func NewProductHandler(catalog service.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// ProductRequest is the full set of editable product fields. PUT replaces all
// of them.
type ProductRequest struct {
	Name        string           `json:"name" validate:"required,max=255"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"required" swaggertype:"string" example:"129.90"`
	Stock       int              `json:"stock" validate:"gte=0"`
	CategoryID  uint             `json:"category_id" validate:"required"`
	Brand       string           `json:"brand" validate:"max=100"`
	Model       string           `json:"model" validate:"max=100"`
	PartNumber  string           `json:"part_number" validate:"max=100"`
	Images      []string         `json:"images"`
	Active      *bool            `json:"active"`
}

func (r ProductRequest) input() service.ProductInput {
	in := service.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Stock:       r.Stock,
		CategoryID:  r.CategoryID,
		Brand:       r.Brand,
		Model:       r.Model,
		PartNumber:  r.PartNumber,
		Images:      r.Images,
		Active:      r.Active,
	}
	if r.Price != nil {
		in.Price = *r.Price
	}
	return in
}

// ProductResponse wraps a product after a mutation.
type ProductResponse struct {
	Message string         `json:"message"`
	Product *model.Product `json:"product"`
}

// queryInt reads an integer query parameter. Missing or malformed values are
// zero so the listing falls back to its defaults.
func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}

// ListProducts godoc
// @Summary List active products
// @Tags products
// @Produce json
// @Param category query string false "Category slug"
// @Param search query string false "Matches name, description or brand"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(20)
// @Success 200 {object} service.ProductPage
// @Failure 500 {object} errors.ErrorResponse
// @Router /products [get]
func (h *ProductHandler) ListProducts(c echo.Context) error {
	page, err := h.catalog.ListProducts(c.Request().Context(), repository.ProductFilter{
		CategorySlug: c.QueryParam("category"),
		Search:       c.QueryParam("search"),
		Page:         queryInt(c, "page"),
		Limit:        queryInt(c, "limit"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// GetProduct godoc
// @Summary Get a product
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} model.Product
// @Failure 404 {object} errors.ErrorResponse
// @Router /products/{id} [get]
func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return apperrors.ErrProductNotFound
	}

	product, err := h.catalog.GetProduct(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, product)
}

// CreateProduct godoc
// @Summary Create a product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProductRequest true "Product"
// @Success 201 {object} ProductResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /products [post]
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req ProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	product, err := h.catalog.CreateProduct(c.Request().Context(), req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ProductResponse{Message: "product created successfully", Product: product})
}

// UpdateProduct godoc
// @Summary Replace a product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Param request body ProductRequest true "Product"
// @Success 200 {object} ProductResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /products/{id} [put]
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req ProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	product, err := h.catalog.UpdateProduct(c.Request().Context(), id, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProductResponse{Message: "product updated successfully", Product: product})
}

// DeleteProduct godoc
// @Summary Deactivate a product
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /products/{id} [delete]
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.catalog.DeleteProduct(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "product deleted successfully"})
}

// UploadImage godoc
// @Summary Upload a product image
// @Tags products
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Param image formData file true "JPEG, PNG, WebP or GIF, up to 5 MiB"
// @Success 201 {object} ProductResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /products/{id}/images [post]
func (h *ProductHandler) UploadImage(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	file, err := c.FormFile("image")
	if err != nil {
		return fmt.Errorf("%w: image file is required", apperrors.ErrValidation)
	}
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	product, err := h.catalog.AddProductImage(c.Request().Context(), id, service.ImageUpload{
		ContentType: file.Header.Get(echo.HeaderContentType),
		Size:        file.Size,
		Body:        src,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ProductResponse{Message: "image uploaded successfully", Product: product})
}
