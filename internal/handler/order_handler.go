package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"autoparts/internal/model"
	"autoparts/internal/service"
)

// OrderHandler handles checkout and order history.
type OrderHandler struct {
	orders service.OrderService
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orders service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// OrderItemRequest is one cart line.
type OrderItemRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,min=1"`
}

// CreateOrderRequest represents a checkout request.
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress model.Address      `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method" validate:"required,max=50"`
}

// UpdateOrderStatusRequest carries the admin-editable order fields. Omitted
// fields are left unchanged.
type UpdateOrderStatusRequest struct {
	Status        *model.OrderStatus   `json:"status" swaggertype:"string" enums:"pending,confirmed,shipped,delivered,cancelled"`
	PaymentStatus *model.PaymentStatus `json:"payment_status" swaggertype:"string" enums:"pending,paid,failed,refunded"`
	TrackingCode  *string              `json:"tracking_code" validate:"omitempty,max=100"`
}

// OrderResponse wraps an order after a mutation.
type OrderResponse struct {
	Message string       `json:"message"`
	Order   *model.Order `json:"order"`
}

// CreateOrder godoc
// @Summary Place an order
// @Description Reserves stock for every item atomically; the whole order fails if any item is unavailable.
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateOrderRequest true "Order"
// @Success 201 {object} OrderResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return err
	}
	var req CreateOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	items := make([]service.OrderItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := h.orders.CreateOrder(c.Request().Context(), claims.UserID, service.CreateOrderInput{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, OrderResponse{Message: "order created successfully", Order: order})
}

// ListOrders godoc
// @Summary List the caller's orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Order
// @Failure 401 {object} errors.ErrorResponse
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return err
	}

	orders, err := h.orders.ListOrders(c.Request().Context(), claims.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orders)
}

// GetOrder godoc
// @Summary Get one of the caller's orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Success 200 {object} model.Order
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.GetOrder(c.Request().Context(), claims.UserID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus godoc
// @Summary Update order, payment or tracking status
// @Description Cancelling an order returns its items to stock. Cancelled orders cannot change status again.
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Param request body UpdateOrderStatusRequest true "Fields to change"
// @Success 200 {object} OrderResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /orders/{id}/status [patch]
func (h *OrderHandler) UpdateOrderStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateOrderStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	order, err := h.orders.UpdateOrderStatus(c.Request().Context(), id, service.UpdateOrderStatusInput{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		TrackingCode:  req.TrackingCode,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OrderResponse{Message: "order updated successfully", Order: order})
}
