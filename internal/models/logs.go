package models

import "time"

const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

type EmailLog struct {
	ID           int64     `json:"id"`
	BookingID    *int64    `json:"booking_id"`
	Recipient    string    `json:"recipient"`
	Subject      string    `json:"subject"`
	Template     string    `json:"template"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}

type ErrorLog struct {
	ID        int64          `json:"id"`
	Level     string         `json:"level"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	CreatedAt time.Time      `json:"created_at"`
}
