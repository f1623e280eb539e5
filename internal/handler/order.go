package handler

import (
	"net/http"
	"portfolio-api/internal/dto"
	"portfolio-api/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type OrderHandler struct {
	checkoutService service.CheckoutService
	orderService    service.OrderService
	baseURL         string
	logger          *zap.Logger
}

func NewOrderHandler(checkoutService service.CheckoutService, orderService service.OrderService, baseURL string, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		checkoutService: checkoutService,
		orderService:    orderService,
		baseURL:         baseURL,
		logger:          logger,
	}
}

func (h *OrderHandler) CreateCheckoutSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return bindError()
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	origin := c.Request().Header.Get(echo.HeaderOrigin)
	if origin == "" {
		origin = h.baseURL
	}

	resp, err := h.checkoutService.CreateCheckoutSession(ctx, &req, origin)
	if err != nil {
		return httpError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) VerifyOrder(c echo.Context) error {
	ctx := c.Request().Context()

	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, dto.ErrorResponse{Error: "Missing session_id"})
	}

	order, err := h.orderService.VerifyOrder(ctx, sessionID)
	if err != nil {
		return httpError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, dto.VerifyOrderResponse{Order: order})
}

func (h *OrderHandler) GetBlockedDates(c echo.Context) error {
	dates, err := h.orderService.BlockedDates(c.Request().Context())
	if err != nil {
		return httpError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, dto.BlockedDatesResponse{BlockedDates: dates})
}
