package handler

import (
	"net/http"
	"portfolio-api/internal/dto"
	"portfolio-api/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return bindError()
	}
	if req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, dto.ErrorResponse{Error: "Password is required"})
	}

	token, expiresAt, err := h.authService.Login(ctx, c.RealIP(), req.Password)
	if err != nil {
		return httpError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, dto.LoginResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
