package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusPaid              OrderStatus = "paid"
	OrderStatusOnboardingStarted OrderStatus = "onboarding_started"
	OrderStatusHostingCanceled   OrderStatus = "hosting_canceled"

	// set by the operator directly in the database, never by this service
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
)

// transitions lists, for every target status, the statuses it may be reached from.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPaid:              {OrderStatusPending},
	OrderStatusOnboardingStarted: {OrderStatusPaid},
	OrderStatusHostingCanceled:   {OrderStatusPaid, OrderStatusOnboardingStarted},
}

// AllowedFrom returns the statuses an order must be in to move to status.
// It returns nil for statuses that cannot be entered by a transition.
func AllowedFrom(to OrderStatus) []OrderStatus {
	return transitions[to]
}

func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Confirmed reports whether payment for the order has already been recorded.
func (s OrderStatus) Confirmed() bool {
	return s != OrderStatusPending
}

// InactiveStatuses are excluded from the blocked-dates feed.
var InactiveStatuses = []OrderStatus{OrderStatusCanceled, OrderStatusRejected, OrderStatusHostingCanceled}

type Order struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	TierName         string          `gorm:"size:255;not null" json:"tier_name"`
	Price            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	ClientName       string          `gorm:"size:255;not null" json:"client_name"`
	ClientEmail      string          `gorm:"size:255;not null" json:"client_email"`
	ProjectDetails   string          `gorm:"type:text" json:"project_details"`
	Deadline         *string         `gorm:"size:255" json:"deadline"`
	Status           OrderStatus     `gorm:"size:50;index;not null" json:"status"`
	StripeSessionID  *string         `gorm:"size:255;index" json:"stripe_session_id"`
	AgreementContent string          `gorm:"type:text" json:"agreement_content"`
	HostingTier      *string         `gorm:"size:100" json:"hosting_tier"`
	HostingPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"hosting_price"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (o *Order) HasHosting() bool {
	return o.HostingTier != nil && *o.HostingTier != ""
}

func (o *Order) SessionID() string {
	if o.StripeSessionID == nil {
		return ""
	}
	return *o.StripeSessionID
}
