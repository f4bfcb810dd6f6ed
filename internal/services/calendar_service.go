package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/saeid-a/ConsultBookBack/internal/availability"
	"github.com/saeid-a/ConsultBookBack/internal/logging"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	CalendarGoogle    = "google"
	CalendarMicrosoft = "microsoft"
)

type TimeRange struct {
	Start time.Time
	End   time.Time
}

type CalendarEvent struct {
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	TimeZone      string
	AttendeeName  string
	AttendeeEmail string
}

type CalendarProvider interface {
	Name() string
	BusyRanges(ctx context.Context, from, to time.Time) ([]TimeRange, error)
	CreateEvent(ctx context.Context, event CalendarEvent) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

type calendarEventStore interface {
	SetCalendarEventID(ctx context.Context, id int64, provider string, eventID *string) error
}

// CalendarService keeps bookings mirrored into the connected calendars and
// reports their busy time back to the slot calculation.
type CalendarService struct {
	providers    []CalendarProvider
	bookings     calendarEventStore
	reporter     *ErrorReporter
	logger       *zap.Logger
	loc          *time.Location
	businessName string
}

func NewCalendarService(
	providers []CalendarProvider,
	bookings calendarEventStore,
	reporter *ErrorReporter,
	logger *zap.Logger,
	loc *time.Location,
	businessName string,
) *CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarService{
		providers:    providers,
		bookings:     bookings,
		reporter:     reporter,
		logger:       logging.OrNop(logger),
		loc:          loc,
		businessName: businessName,
	}
}

func (s *CalendarService) Enabled() bool {
	return s != nil && len(s.providers) > 0
}

// BusyIntervals merges busy time from every provider for the business day.
// A failing provider is reported and skipped.
func (s *CalendarService) BusyIntervals(ctx context.Context, date time.Time) ([]availability.Interval, error) {
	byDate, err := s.BusyIntervalsBetween(ctx, date, date)
	if err != nil {
		return nil, err
	}
	intervals := byDate[availability.Clock(0).On(date, s.loc).Format(time.DateOnly)]
	if intervals == nil {
		intervals = make([]availability.Interval, 0)
	}
	return intervals, nil
}

// BusyIntervalsBetween asks each provider once for the days first..last and
// splits the answer into wall-clock intervals per business day.
func (s *CalendarService) BusyIntervalsBetween(ctx context.Context, first, last time.Time) (map[string][]availability.Interval, error) {
	byDate := make(map[string][]availability.Interval)
	if len(s.providers) == 0 {
		return byDate, nil
	}
	from := availability.Clock(0).On(first, s.loc)
	to := availability.Clock(0).On(last, s.loc).AddDate(0, 0, 1)

	for _, provider := range s.providers {
		ranges, err := provider.BusyRanges(ctx, from, to)
		if err != nil {
			s.reporter.Warn(ctx, "calendar."+provider.Name()+".busy", err, map[string]any{
				"from": from.Format(time.DateOnly),
				"to":   last.Format(time.DateOnly),
			})
			continue
		}
		for _, r := range ranges {
			for day := from; day.Before(to) && day.Before(r.End); day = day.AddDate(0, 0, 1) {
				if interval, ok := availability.ClipToDay(r.Start, r.End, day, s.loc); ok {
					date := day.Format(time.DateOnly)
					byDate[date] = append(byDate[date], interval)
				}
			}
		}
	}
	return byDate, nil
}

// SyncBooking creates the missing calendar events of a booking and stores
// their ids.
func (s *CalendarService) SyncBooking(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error {
	start, err := BookingStart(booking, s.loc)
	if err != nil {
		return err
	}
	event := CalendarEvent{
		Summary:       s.eventSummary(booking, ctype),
		Description:   eventDescription(booking),
		Start:         start,
		End:           start.Add(time.Duration(booking.DurationMinutes) * time.Minute),
		TimeZone:      s.loc.String(),
		AttendeeName:  booking.CustomerName,
		AttendeeEmail: booking.CustomerEmail,
	}

	var errs []error
	for _, provider := range s.providers {
		if existing := eventIDFor(booking, provider.Name()); existing != nil {
			continue
		}
		eventID, err := provider.CreateEvent(ctx, event)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
			continue
		}
		if err := s.bookings.SetCalendarEventID(ctx, booking.ID, provider.Name(), &eventID); err != nil {
			errs = append(errs, fmt.Errorf("%s: store event id: %w", provider.Name(), err))
			continue
		}
		setEventID(booking, provider.Name(), &eventID)
		s.logger.Info("calendar event created",
			zap.String("provider", provider.Name()),
			zap.Int64("booking_id", booking.ID),
			zap.String("event_id", eventID),
		)
	}
	return errors.Join(errs...)
}

// RemoveBooking deletes the calendar events of a booking and clears their ids.
func (s *CalendarService) RemoveBooking(ctx context.Context, booking *models.Booking) error {
	var errs []error
	for _, provider := range s.providers {
		existing := eventIDFor(booking, provider.Name())
		if existing == nil {
			continue
		}
		if err := provider.DeleteEvent(ctx, *existing); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
			continue
		}
		if err := s.bookings.SetCalendarEventID(ctx, booking.ID, provider.Name(), nil); err != nil {
			errs = append(errs, fmt.Errorf("%s: clear event id: %w", provider.Name(), err))
			continue
		}
		setEventID(booking, provider.Name(), nil)
	}
	return errors.Join(errs...)
}

func (s *CalendarService) eventSummary(booking *models.Booking, ctype *models.ConsultationType) string {
	name := "Consultation"
	if ctype != nil {
		name = ctype.Name
	}
	return fmt.Sprintf("%s with %s", name, booking.CustomerName)
}

func eventDescription(booking *models.Booking) string {
	description := fmt.Sprintf("Reference: %s\nEmail: %s", booking.ReferenceNumber, booking.CustomerEmail)
	if booking.CustomerPhone != nil {
		description += "\nPhone: " + *booking.CustomerPhone
	}
	if booking.CustomerNotes != nil {
		description += "\n\n" + *booking.CustomerNotes
	}
	return description
}

func eventIDFor(booking *models.Booking, provider string) *string {
	switch provider {
	case CalendarGoogle:
		return booking.GoogleEventID
	case CalendarMicrosoft:
		return booking.MicrosoftEventID
	default:
		return nil
	}
}

func setEventID(booking *models.Booking, provider string, eventID *string) {
	switch provider {
	case CalendarGoogle:
		booking.GoogleEventID = eventID
	case CalendarMicrosoft:
		booking.MicrosoftEventID = eventID
	}
}

type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TenantID     string
}

// GoogleOAuthClient returns an HTTP client that refreshes Google access
// tokens from a long-lived refresh token.
func GoogleOAuthClient(ctx context.Context, creds OAuthCredentials) *http.Client {
	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoints.Google,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar"},
	}
	return cfg.Client(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
}

func MicrosoftOAuthClient(ctx context.Context, creds OAuthCredentials) *http.Client {
	tenant := creds.TenantID
	if tenant == "" {
		tenant = "common"
	}
	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoints.AzureAD(tenant),
		Scopes:       []string{"offline_access", "https://graph.microsoft.com/Calendars.ReadWrite"},
	}
	return cfg.Client(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
}
