package models

import "time"

const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
	BookingStatusNoShow    = "no-show"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
	PaymentStatusFailed   = "failed"
)

// Booking dates are business-local wall clock values: BookingDate is
// YYYY-MM-DD and BookingTime is HH:MM.
type Booking struct {
	ID                 int64      `json:"id"`
	ReferenceNumber    string     `json:"reference_number"`
	ConsultationTypeID int64      `json:"consultation_type_id"`
	CustomerName       string     `json:"customer_name"`
	CustomerEmail      string     `json:"customer_email"`
	CustomerPhone      *string    `json:"customer_phone"`
	CustomerNotes      *string    `json:"customer_notes"`
	BookingDate        string     `json:"booking_date"`
	BookingTime        string     `json:"booking_time"`
	DurationMinutes    int        `json:"duration_minutes"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"payment_status"`
	PaymentAmount      float64    `json:"payment_amount"`
	PaymentIntentID    *string    `json:"payment_intent_id,omitempty"`
	GoogleEventID      *string    `json:"google_event_id,omitempty"`
	MicrosoftEventID   *string    `json:"microsoft_event_id,omitempty"`
	ReminderSentAt     *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// BookedInterval is an active booking together with the buffers of its
// consultation type, used for overlap checks.
type BookedInterval struct {
	BookingID       int64
	BookingDate     string
	BookingTime     string
	DurationMinutes int
	BufferBefore    int
	BufferAfter     int
}

type BookingDetail struct {
	Booking
	ConsultationType *ConsultationType `json:"consultation_type,omitempty"`
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
