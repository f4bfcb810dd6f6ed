package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReferenceNumber builds the customer-facing booking reference,
// BN-YYYYMMDD-XXXXXXXX, from the booking date and a random suffix.
func NewReferenceNumber(bookingDate time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "BN-" + bookingDate.Format("20060102") + "-" + suffix
}
