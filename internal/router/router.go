package router

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"autoparts/internal/config"
	"autoparts/internal/handler"
	"autoparts/internal/metrics"
	"autoparts/internal/middleware"
	"autoparts/internal/model"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Category *handler.CategoryHandler
	Product  *handler.ProductHandler
	Order    *handler.OrderHandler
	Health   *handler.HealthHandler
}

// Deps are the shared components the middleware chain needs.
type Deps struct {
	Tokens     middleware.TokenParser
	RateLimit  echomw.RateLimiterStore
	Metrics    *metrics.Metrics
	UploadsDir string // served at /uploads when set
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, h Handlers, deps Deps) {
	e.HTTPErrorHandler = middleware.ErrorHandler(cfg.IsProduction())
	e.Validator = NewValidator()

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.ContextLogger())
	e.Use(middleware.AccessLog())
	if deps.Metrics != nil {
		e.Use(deps.Metrics.Middleware())
	}
	e.Use(echomw.Secure())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.BodyLimit("10M"))
	if deps.RateLimit != nil {
		e.Use(middleware.RateLimit(deps.RateLimit))
	}

	e.GET("/healthz", h.Health.Liveness)
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}
	if deps.UploadsDir != "" {
		e.Static("/uploads", deps.UploadsDir)
	}

	requireAuth := middleware.JWT(deps.Tokens)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	api := e.Group("/api")
	api.GET("/health", h.Health.Health)

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.GET("/categories", h.Category.ListCategories)
	api.GET("/categories/:slug", h.Category.GetCategory)
	api.GET("/products", h.Product.ListProducts)
	api.GET("/products/:id", h.Product.GetProduct)

	// Authenticated routes
	api.GET("/auth/verify", h.Auth.Verify, requireAuth)
	api.POST("/auth/logout", h.Auth.Logout, requireAuth)

	orders := api.Group("/orders", requireAuth)
	orders.POST("", h.Order.CreateOrder)
	orders.GET("", h.Order.ListOrders)
	orders.GET("/:id", h.Order.GetOrder)
	orders.PATCH("/:id/status", h.Order.UpdateOrderStatus, adminOnly)

	// Admin catalog routes
	api.POST("/products", h.Product.CreateProduct, requireAuth, adminOnly)
	api.PUT("/products/:id", h.Product.UpdateProduct, requireAuth, adminOnly)
	api.DELETE("/products/:id", h.Product.DeleteProduct, requireAuth, adminOnly)
	api.POST("/products/:id/images", h.Product.UploadImage, requireAuth, adminOnly)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator reports fields by their JSON names.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
