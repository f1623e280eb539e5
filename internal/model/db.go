package model

import "time"

type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	Slug      string    `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Excerpt   string    `gorm:"type:text" json:"excerpt"`
	Content   string    `gorm:"type:text" json:"content"`
	Image     string    `gorm:"type:text" json:"image"`
	Category  string    `gorm:"size:255" json:"category"`
	Keywords  string    `gorm:"type:text" json:"keywords"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoginAttempt is the per-IP throttle record for the admin login endpoint.
type LoginAttempt struct {
	IPAddress   string     `gorm:"primaryKey;size:64;not null"`
	Attempts    int        `gorm:"not null;default:0"`
	LastAttempt time.Time  `gorm:"not null"`
	LockedUntil *time.Time
}

func (a *LoginAttempt) LockedAt(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// WebhookEvent is the append-only log of verified provider events.
type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ObjectID    string `gorm:"size:128;index"`
	Error       string `gorm:"type:text"`
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

func (e *WebhookEvent) Processed() bool {
	return e.ProcessedAt != nil
}
