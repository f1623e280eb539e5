package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"portfolio-api/internal/handler"
	"portfolio-api/internal/logger"
	"portfolio-api/internal/metrics"
	appmiddleware "portfolio-api/internal/middleware"
	"portfolio-api/internal/service"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Services struct {
	Checkout service.CheckoutService
	Order    service.OrderService
	Webhook  service.WebhookService
	Auth     service.AuthService
	Blog     service.BlogService
	Upload   service.UploadService
	Admin    service.AdminService
}

type Options struct {
	BaseURL        string
	TrustedProxies []string
}

type Server struct {
	echo           *echo.Echo
	logger         *zap.Logger
	authService    service.AuthService
	orderHandler   *handler.OrderHandler
	webhookHandler *handler.WebhookHandler
	authHandler    *handler.AuthHandler
	blogHandler    *handler.BlogHandler
	adminHandler   *handler.AdminHandler
}

func NewServer(services Services, opts Options, log *zap.Logger) (*Server, error) {
	extractIP, err := ipExtractor(opts.TrustedProxies)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = extractIP
	e.Validator = appmiddleware.NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			appmiddleware.AdminAuthHeader,
		},
	}))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(logger.Middleware(log))
	e.Use(metrics.Middleware())

	s := &Server{
		echo:           e,
		logger:         log,
		authService:    services.Auth,
		orderHandler:   handler.NewOrderHandler(services.Checkout, services.Order, opts.BaseURL, log),
		webhookHandler: handler.NewWebhookHandler(services.Webhook, log),
		authHandler:    handler.NewAuthHandler(services.Auth, log),
		blogHandler:    handler.NewBlogHandler(services.Blog, log),
		adminHandler:   handler.NewAdminHandler(services.Admin, services.Upload, log),
	}

	s.setupRoutes()
	return s, nil
}

// ipExtractor resolves the client address used for login throttling.
// X-Forwarded-For is only read when the request comes from a trusted proxy.
func ipExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	if len(trustedProxies) == 0 {
		return echo.ExtractIPDirect(), nil
	}

	options := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("parse trusted proxy %q: %w", cidr, err)
		}
		options = append(options, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(options...), nil
}

func (s *Server) setupRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := s.echo.Group("/api")
	adminOnly := appmiddleware.AdminAuth(s.authService, s.logger)

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- checkout --------
	api.POST("/create-checkout-session", s.orderHandler.CreateCheckoutSession)
	api.GET("/verify-order", s.orderHandler.VerifyOrder)
	api.GET("/get-blocked-dates", s.orderHandler.GetBlockedDates)

	// -------- stripe webhooks --------
	api.POST("/stripe-webhook", s.webhookHandler.StripeWebhook)

	// -------- admin --------
	api.POST("/login", s.authHandler.Login)
	api.POST("/upload", s.adminHandler.Upload, adminOnly)

	admin := api.Group("/admin", adminOnly)
	admin.GET("/orders/latest", s.adminHandler.LatestOrder)
	admin.POST("/notifications/test", s.adminHandler.TestNotification)

	// -------- blog --------
	api.GET("/posts", s.blogHandler.ListPosts)
	api.POST("/posts", s.blogHandler.CreatePost, adminOnly)
	api.GET("/post", s.blogHandler.GetPost)
	api.PUT("/post", s.blogHandler.UpdatePost, adminOnly)
	api.DELETE("/post", s.blogHandler.DeletePost, adminOnly)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
