package service

import (
	"errors"
	"fmt"
	"math"
	"portfolio-api/internal/client"
	"time"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrOrderNotFound       = errors.New("order not found")
	ErrPostNotFound        = errors.New("post not found")
	ErrSlugTaken           = errors.New("slug already in use")
	ErrPaymentNotCompleted = errors.New("payment not successful")
	ErrInvalidSignature    = client.ErrInvalidSignature
	ErrUnauthorized        = errors.New("unauthorized")
	ErrLockedOut           = errors.New("too many attempts")
	// ErrReconciliation marks fee-removal failures. These must reach the
	// provider as a non-2xx so the event is redelivered.
	ErrReconciliation = errors.New("one-time fee reconciliation failed")
)

type PaymentIncompleteError struct {
	PaymentStatus string
	Mode          string
}

func (e *PaymentIncompleteError) Error() string {
	return fmt.Sprintf("payment not successful: payment_status=%s mode=%s", e.PaymentStatus, e.Mode)
}

func (e *PaymentIncompleteError) Is(target error) bool {
	return target == ErrPaymentNotCompleted
}

type LockedOutError struct {
	Until time.Time
	Now   time.Time
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("Too many attempts. Please try again in %d minutes.", e.WaitMinutes())
}

func (e *LockedOutError) Is(target error) bool {
	return target == ErrLockedOut
}

// WaitMinutes rounds the remaining lock up to whole minutes.
func (e *LockedOutError) WaitMinutes() int {
	return int(math.Ceil(e.Until.Sub(e.Now).Minutes()))
}
