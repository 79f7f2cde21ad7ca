package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"autoparts/internal/service"
)

// CategoryHandler serves the public category endpoints.
type CategoryHandler struct {
	catalog service.CatalogService
}

// NewCategoryHandler creates a new category handler.
func NewCategoryHandler(catalog service.CatalogService) *CategoryHandler {
	return &CategoryHandler{catalog: catalog}
}

// ListCategories godoc
// @Summary List active categories
// @Description Ordered by name, each with its number of active products.
// @Tags categories
// @Produce json
// @Success 200 {array} model.Category
// @Failure 500 {object} errors.ErrorResponse
// @Router /categories [get]
func (h *CategoryHandler) ListCategories(c echo.Context) error {
	categories, err := h.catalog.ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categories)
}

// GetCategory godoc
// @Summary Get a category by slug
// @Tags categories
// @Produce json
// @Param slug path string true "Category slug"
// @Success 200 {object} model.Category
// @Failure 404 {object} errors.ErrorResponse
// @Router /categories/{slug} [get]
func (h *CategoryHandler) GetCategory(c echo.Context) error {
	category, err := h.catalog.GetCategory(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}
