package dto

import (
	"portfolio-api/internal/model"
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutRequest struct {
	TierID         string          `json:"tierId"`
	TierName       string          `json:"tierName" validate:"required"`
	Price          decimal.Decimal `json:"price" validate:"gt=0"`
	ClientName     string          `json:"clientName" validate:"required"`
	ClientEmail    string          `json:"clientEmail" validate:"required,email"`
	ProjectDetails string          `json:"projectDetails"`
	Deadline       string          `json:"deadline"`

	HostingTier  string          `json:"hostingTier"`
	HostingName  string          `json:"hostingName" validate:"required_with=HostingTier"`
	HostingPrice decimal.Decimal `json:"hostingPrice" validate:"gte=0"`
}

func (r *CheckoutRequest) HasHosting() bool {
	return r.HostingTier != ""
}

type CheckoutResponse struct {
	URL     string `json:"url"`
	OrderID uint   `json:"orderId"`
}

type VerifyOrderResponse struct {
	Order *model.Order `json:"order"`
}

type BlockedDatesResponse struct {
	BlockedDates []string `json:"blockedDates"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type PostRequest struct {
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Excerpt  string `json:"excerpt"`
	Content  string `json:"content"`
	Image    string `json:"image"`
	Category string `json:"category"`
	Keywords string `json:"keywords"`
}

type UploadRequest struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"contentType" validate:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type OrderSummary struct {
	ID        uint      `json:"id"`
	Client    string    `json:"client"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type EnvCheck struct {
	HasLinearKey bool `json:"has_linear_key"`
	HasTeamID    bool `json:"has_team_id"`
}

type LatestOrderReport struct {
	Status             string       `json:"status"`
	LatestOrder        OrderSummary `json:"latest_order"`
	EnvCheck           EnvCheck     `json:"env_check"`
	LinearDebugAttempt any          `json:"linear_debug_attempt"`
}

type TestNotificationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url"`
}
