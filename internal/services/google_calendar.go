package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleCalendar wraps the Calendar v3 client. The HTTP client must carry
// OAuth credentials, see GoogleOAuthClient.
type GoogleCalendar struct {
	calendarID string
	service    *calendar.Service
}

func NewGoogleCalendar(ctx context.Context, httpClient *http.Client, calendarID string, opts ...option.ClientOption) (*GoogleCalendar, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google calendar client: %w", err)
	}
	return &GoogleCalendar{calendarID: calendarID, service: service}, nil
}

func (g *GoogleCalendar) Name() string {
	return CalendarGoogle
}

func (g *GoogleCalendar) BusyRanges(ctx context.Context, from, to time.Time) ([]TimeRange, error) {
	response, err := g.service.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: from.UTC().Format(time.RFC3339),
		TimeMax: to.UTC().Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google freebusy: %w", err)
	}

	busy, ok := response.Calendars[g.calendarID]
	if !ok {
		return nil, nil
	}
	if len(busy.Errors) > 0 {
		return nil, fmt.Errorf("google freebusy: %s", busy.Errors[0].Reason)
	}
	ranges := make([]TimeRange, 0, len(busy.Busy))
	for _, period := range busy.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("google freebusy: parse start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("google freebusy: parse end: %w", err)
		}
		ranges = append(ranges, TimeRange{Start: start, End: end})
	}
	return ranges, nil
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, event CalendarEvent) (string, error) {
	request := &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start:       &calendar.EventDateTime{DateTime: event.Start.Format(time.RFC3339), TimeZone: event.TimeZone},
		End:         &calendar.EventDateTime{DateTime: event.End.Format(time.RFC3339), TimeZone: event.TimeZone},
	}
	if event.AttendeeEmail != "" {
		request.Attendees = []*calendar.EventAttendee{{
			Email:       event.AttendeeEmail,
			DisplayName: event.AttendeeName,
		}}
	}

	created, err := g.service.Events.Insert(g.calendarID, request).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google create event: %w", err)
	}
	if created.Id == "" {
		return "", fmt.Errorf("google create event: missing event id")
	}
	return created.Id, nil
}

// DeleteEvent treats an event that is already gone as deleted.
func (g *GoogleCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	err := g.service.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("google delete event: %w", err)
	}
	return nil
}
