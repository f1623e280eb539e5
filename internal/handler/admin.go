package handler

import (
	"net/http"
	"portfolio-api/internal/dto"
	"portfolio-api/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type AdminHandler struct {
	adminService  service.AdminService
	uploadService service.UploadService
	logger        *zap.Logger
}

func NewAdminHandler(adminService service.AdminService, uploadService service.UploadService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		adminService:  adminService,
		uploadService: uploadService,
		logger:        logger,
	}
}

func (h *AdminHandler) Upload(c echo.Context) error {
	var req dto.UploadRequest
	if err := c.Bind(&req); err != nil {
		return bindError()
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	upload, err := h.uploadService.PresignImageUpload(c.Request().Context(), req.Filename, req.ContentType)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, upload)
}

func (h *AdminHandler) LatestOrder(c echo.Context) error {
	report, err := h.adminService.LatestOrderReport(c.Request().Context(), c.QueryParam("trigger") == "true")
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) TestNotification(c echo.Context) error {
	resp, err := h.adminService.SendTestNotification(c.Request().Context())
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, resp)
}
