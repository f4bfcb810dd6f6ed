package models

import "time"

const (
	ConsultationTypeStatusActive   = "active"
	ConsultationTypeStatusInactive = "inactive"
)

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ConsultationType struct {
	ID              int64     `json:"id"`
	CategoryID      *int64    `json:"category_id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Description     *string   `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           float64   `json:"price"`
	BufferBefore    int       `json:"buffer_before"`
	BufferAfter     int       `json:"buffer_after"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (t *ConsultationType) IsActive() bool {
	return t != nil && t.Status == ConsultationTypeStatusActive
}

func (t *ConsultationType) IsFree() bool {
	return t != nil && t.Price <= 0
}
