package handler

import (
	"net/http"
	"portfolio-api/internal/dto"
	"portfolio-api/internal/service"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type BlogHandler struct {
	blogService service.BlogService
	logger      *zap.Logger
}

func NewBlogHandler(blogService service.BlogService, logger *zap.Logger) *BlogHandler {
	return &BlogHandler{
		blogService: blogService,
		logger:      logger,
	}
}

func postIDFromQuery(c echo.Context) (uint, error) {
	raw := c.QueryParam("id")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid id"})
	}
	return uint(id), nil
}

func (h *BlogHandler) ListPosts(c echo.Context) error {
	posts, err := h.blogService.ListPosts(c.Request().Context())
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, posts)
}

func (h *BlogHandler) GetPost(c echo.Context) error {
	id, err := postIDFromQuery(c)
	if err != nil {
		return err
	}

	post, err := h.blogService.GetPost(c.Request().Context(), id, c.QueryParam("slug"))
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, post)
}

func (h *BlogHandler) CreatePost(c echo.Context) error {
	var req dto.PostRequest
	if err := c.Bind(&req); err != nil {
		return bindError()
	}

	post, err := h.blogService.CreatePost(c.Request().Context(), &req)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, post)
}

func (h *BlogHandler) UpdatePost(c echo.Context) error {
	id, err := postIDFromQuery(c)
	if err != nil {
		return err
	}

	var req dto.PostRequest
	if err := c.Bind(&req); err != nil {
		return bindError()
	}

	post, err := h.blogService.UpdatePost(c.Request().Context(), id, &req)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, post)
}

func (h *BlogHandler) DeletePost(c echo.Context) error {
	id, err := postIDFromQuery(c)
	if err != nil {
		return err
	}

	if err := h.blogService.DeletePost(c.Request().Context(), id); err != nil {
		return httpError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "Post deleted"})
}
