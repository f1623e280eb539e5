package middleware

import (
	"net/http"
	"portfolio-api/internal/dto"
	"portfolio-api/internal/logger"
	"portfolio-api/internal/service"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	AdminAuthHeader = "X-Admin-Auth"
	bearerPrefix    = "Bearer "
)

// AdminAuth guards operator routes. A bearer token from /api/login is
// preferred; the shared X-Admin-Auth secret is still accepted.
func AdminAuth(authService service.AuthService, base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c, base)

			if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
				if !strings.HasPrefix(header, bearerPrefix) {
					return unauthorized("Invalid authorization header format")
				}
				if err := authService.VerifyToken(strings.TrimPrefix(header, bearerPrefix)); err != nil {
					log.Info("admin token rejected", zap.Error(err))
					return unauthorized("Unauthorized")
				}
				return next(c)
			}

			if authService.VerifySharedSecret(c.Request().Header.Get(AdminAuthHeader)) {
				return next(c)
			}

			return unauthorized("Unauthorized")
		}
	}
}

func unauthorized(msg string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, dto.ErrorResponse{Error: msg})
}
