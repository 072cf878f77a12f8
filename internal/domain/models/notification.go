package models

import "time"

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// NotificationLog is one delivery attempt of a rendered notification. Rows are
// never deleted; a resend overwrites Status, Error and SentAt of the same row.
type NotificationLog struct {
	ID           int64  `gorm:"primaryKey"`
	Type         string `gorm:"size:64;index"`
	Recipient    string `gorm:"size:255"`
	Subject      string
	Body         string
	Variables    map[string]string  `gorm:"type:text;serializer:json"`
	Status       NotificationStatus `gorm:"size:16;index"`
	ErrorMessage string
	Attempts     int    `gorm:"default:1"`
	EventID      string `gorm:"size:36;index"`
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Option is a flat key-value setting.
type Option struct {
	Name      string `gorm:"primaryKey;size:128"`
	Value     string
	UpdatedAt time.Time
}
