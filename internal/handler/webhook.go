package handler

import (
	"errors"
	"io"
	"net/http"
	"portfolio-api/internal/dto"
	"portfolio-api/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	webhookService service.WebhookService
	logger         *zap.Logger
}

func NewWebhookHandler(webhookService service.WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		logger:         logger,
	}
}

// StripeWebhook must see the body exactly as sent, so it never goes through c.Bind.
func (h *WebhookHandler) StripeWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, dto.ErrorResponse{Error: "cannot read body"})
	}
	if len(payload) > maxWebhookBody {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "payload too large"})
	}

	err = h.webhookService.HandleWebhook(ctx, payload, c.Request().Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, dto.WebhookResponse{Received: true})
	case errors.Is(err, service.ErrReconciliation):
		return echo.NewHTTPError(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal Server Error",
			Details: err.Error(),
		})
	default:
		return httpError(c, h.logger, err)
	}
}
