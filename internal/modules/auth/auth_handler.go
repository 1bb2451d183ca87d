package auth

import (
	"errors"
	"net/http"

	"errand-marketplace/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler exposes the auth endpoints.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts the public auth routes on g and the admin-only
// runner approval route behind requireAdmin.
func (h *Handler) RegisterRoutes(g *echo.Group, admin *echo.Group, requireAdmin echo.MiddlewareFunc) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/verify-email/:token", h.VerifyEmail)
	g.POST("/forgot-password", h.ForgotPassword)
	g.PATCH("/reset-password/:token", h.ResetPassword)
	g.POST("/refresh-token", h.Refresh)

	admin.PATCH("/runners/:id/approve", h.ApproveRunner, requireAdmin)
}

func (h *Handler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request body"))
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
	}

	user, pair, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return c.JSON(http.StatusConflict, models.ErrorResponse("An account with this email already exists"))
		}
		c.Logger().Errorf("register: %v", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to create account"))
	}

	return c.JSON(http.StatusCreated, models.SuccessResponse(echo.Map{
		"user":          user,
		"token":         pair.Token,
		"refresh_token": pair.RefreshToken,
	}))
}

func (h *Handler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request body"))
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
	}

	user, pair, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse("Invalid email or password"))
		case errors.Is(err, models.ErrAccountInactive):
			return c.JSON(http.StatusForbidden, models.ErrorResponse("This account has been deactivated"))
		case errors.Is(err, models.ErrAccountUnverified):
			return c.JSON(http.StatusForbidden, models.ErrorResponse("Please verify your email before logging in"))
		default:
			c.Logger().Errorf("login: %v", err)
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to log in"))
		}
	}

	return c.JSON(http.StatusOK, models.SuccessResponse(echo.Map{
		"user":          user,
		"token":         pair.Token,
		"refresh_token": pair.RefreshToken,
	}))
}

func (h *Handler) VerifyEmail(c echo.Context) error {
	token := c.Param("token")
	if err := h.svc.VerifyEmail(c.Request().Context(), token); err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse("Verification link is invalid or has expired"))
		}
		c.Logger().Errorf("verify email: %v", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to verify email"))
	}
	return c.JSON(http.StatusOK, models.MessageResponse("Email verified successfully"))
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req models.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request body"))
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
	}

	if err := h.svc.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Do not reveal whether the address exists.
			return c.JSON(http.StatusOK, models.MessageResponse("If that email is registered, a reset link has been sent"))
		}
		c.Logger().Errorf("forgot password: %v", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to send reset email"))
	}
	return c.JSON(http.StatusOK, models.MessageResponse("If that email is registered, a reset link has been sent"))
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request body"))
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
	}

	pair, err := h.svc.ResetPassword(c.Request().Context(), c.Param("token"), req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse("Reset link is invalid or has expired"))
		}
		c.Logger().Errorf("reset password: %v", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to reset password"))
	}
	return c.JSON(http.StatusOK, models.SuccessResponse(pair))
}

func (h *Handler) Refresh(c echo.Context) error {
	var req models.RefreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request body"))
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
	}

	pair, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse("Refresh token is invalid or has expired"))
		}
		c.Logger().Errorf("refresh token: %v", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to refresh token"))
	}
	return c.JSON(http.StatusOK, models.SuccessResponse(pair))
}

func (h *Handler) ApproveRunner(c echo.Context) error {
	if err := h.svc.ApproveRunner(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse("Runner not found"))
		}
		c.Logger().Errorf("approve runner: %v", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to approve runner"))
	}
	return c.JSON(http.StatusOK, models.MessageResponse("Runner approved"))
}
