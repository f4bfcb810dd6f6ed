package models

import "time"

const (
	RuleTypeWeekly       = "weekly"
	RuleTypeSpecificDate = "specific_date"
	RuleTypeBlock        = "block"
)

type AvailabilityRule struct {
	ID                 int64     `json:"id"`
	RuleType           string    `json:"rule_type"`
	DayOfWeek          *int      `json:"day_of_week"`
	SpecificDate       *string   `json:"specific_date"`
	StartTime          string    `json:"start_time"`
	EndTime            string    `json:"end_time"`
	IsAvailable        bool      `json:"is_available"`
	ConsultationTypeID *int64    `json:"consultation_type_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
