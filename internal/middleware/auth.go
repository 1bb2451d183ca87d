package middleware

import (
	"context"
	"net/http"

	"errand-marketplace/internal/models"
	"errand-marketplace/internal/modules/auth"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWT returns the echo-jwt middleware configured for our access claims.
func JWT(secret []byte) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: secret,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse("Invalid or expired token"))
		},
	})
}

// UserLoader is the slice of the auth service the per-request account gate
// needs.
type UserLoader interface {
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// LoadUser resolves the authenticated account behind the token on every
// request, so deactivations and pending verifications take effect
// immediately rather than at token expiry. It sets userID and userRole on
// the context for the handlers.
func LoadUser(svc UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse("Invalid or expired token"))
			}
			claims, ok := token.Claims.(*auth.Claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse("Invalid or expired token"))
			}

			u, err := svc.CurrentUser(c.Request().Context(), claims.UserID)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse("Invalid or expired token"))
			}
			if !u.IsActive {
				return c.JSON(http.StatusForbidden, models.ErrorResponse("This account has been deactivated"))
			}
			if !u.IsVerified {
				return c.JSON(http.StatusForbidden, models.ErrorResponse("Please verify your email address to continue"))
			}

			c.Set("userID", u.ID)
			c.Set("userRole", u.Role)
			return next(c)
		}
	}
}

// RequireRole gates a route to the given roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("userRole").(string)
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, models.ErrorResponse("You do not have permission to perform this action"))
		}
	}
}
