package middleware

import (
	"context"
	"errors"
	"fmt"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"autoparts/internal/auth"
	apperrors "autoparts/internal/errors"
	"autoparts/internal/model"
)

const claimsContextKey = "user"

// TokenParser verifies a raw bearer token.
type TokenParser interface {
	ParseToken(ctx context.Context, token string) (*auth.Claims, error)
}

// JWT authenticates requests with an `Authorization: Bearer <token>` header and
// stores the parsed claims in the context.
func JWT(parser TokenParser) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  claimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return parser.ParseToken(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if errors.Is(err, apperrors.ErrInvalidToken) {
				return err
			}
			if err == nil {
				return apperrors.ErrInvalidToken
			}
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
		},
	})
}

// ClaimsFromContext returns the claims stored by JWT.
func ClaimsFromContext(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(claimsContextKey).(*auth.Claims)
	return claims, ok && claims != nil
}

// RequireRole rejects authenticated users whose role is not in roles. It must
// run after JWT.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFromContext(c)
			if !ok {
				return apperrors.ErrInvalidToken
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(c)
				}
			}
			return apperrors.ErrForbidden
		}
	}
}
