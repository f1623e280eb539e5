package handler

import (
	"errors"
	"net/http"
	"portfolio-api/internal/client"
	"portfolio-api/internal/dto"
	"portfolio-api/internal/logger"
	"portfolio-api/internal/service"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// httpError maps service errors onto the response codes the frontend expects.
// Anything unrecognised is logged and becomes a 500 carrying the error text.
func httpError(c echo.Context, base *zap.Logger, err error) error {
	var (
		incomplete *service.PaymentIncompleteError
		locked     *service.LockedOutError
	)

	switch {
	case errors.As(err, &incomplete):
		return echo.NewHTTPError(http.StatusBadRequest, dto.ErrorResponse{
			Error: "Payment not successful",
			Details: map[string]string{
				"payment_status": incomplete.PaymentStatus,
				"mode":           incomplete.Mode,
			},
		})
	case errors.As(err, &locked):
		return echo.NewHTTPError(http.StatusTooManyRequests, dto.ErrorResponse{Error: locked.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, dto.ErrorResponse{Error: inputMessage(err)})
	case errors.Is(err, service.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusBadRequest, dto.ErrorResponse{Error: "Webhook Error: " + err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid password"})
	case errors.Is(err, service.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, dto.ErrorResponse{Error: "Order not found"})
	case errors.Is(err, service.ErrPostNotFound):
		return echo.NewHTTPError(http.StatusNotFound, dto.ErrorResponse{Error: "Post not found"})
	case errors.Is(err, service.ErrSlugTaken):
		return echo.NewHTTPError(http.StatusConflict, dto.ErrorResponse{Error: "Slug already in use"})
	case errors.Is(err, client.ErrStorageNotConfigured), errors.Is(err, client.ErrTrackerNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()})
	}

	logger.FromEcho(c, base).Error("request failed",
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return echo.NewHTTPError(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "Internal Server Error",
		Details: err.Error(),
	})
}

// inputMessage drops the sentinel prefix so only the field detail reaches the client.
func inputMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, service.ErrInvalidInput.Error()+": "); i >= 0 {
		return msg[i+len(service.ErrInvalidInput.Error())+2:]
	}
	return msg
}

func bindError() error {
	return echo.NewHTTPError(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
}
