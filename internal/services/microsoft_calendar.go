package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	microsoftGraphAPIBase = "https://graph.microsoft.com/v1.0"
	graphDateTimeLayout   = "2006-01-02T15:04:05.9999999"
)

// MicrosoftCalendar talks to Microsoft Graph. An empty mailbox uses /me.
type MicrosoftCalendar struct {
	baseURL    string
	mailbox    string
	httpClient *http.Client
}

func NewMicrosoftCalendar(httpClient *http.Client, mailbox string) *MicrosoftCalendar {
	return &MicrosoftCalendar{
		baseURL:    microsoftGraphAPIBase,
		mailbox:    mailbox,
		httpClient: httpClient,
	}
}

func (m *MicrosoftCalendar) WithBaseURL(baseURL string) *MicrosoftCalendar {
	m.baseURL = strings.TrimRight(baseURL, "/")
	return m
}

func (m *MicrosoftCalendar) Name() string {
	return CalendarMicrosoft
}

func (m *MicrosoftCalendar) userPath() string {
	if m.mailbox == "" {
		return m.baseURL + "/me"
	}
	return m.baseURL + "/users/" + url.PathEscape(m.mailbox)
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// utcHeaders makes Graph answer in UTC so the naive dateTime strings can be
// parsed without a zone lookup.
var utcHeaders = map[string]string{"Prefer": `outlook.timezone="UTC"`}

func (m *MicrosoftCalendar) BusyRanges(ctx context.Context, from, to time.Time) ([]TimeRange, error) {
	schedule := m.mailbox
	if schedule == "" {
		schedule = "me"
	}
	request := map[string]any{
		"schedules":                []string{schedule},
		"startTime":                graphDateTime{DateTime: from.UTC().Format(graphDateTimeLayout), TimeZone: "UTC"},
		"endTime":                  graphDateTime{DateTime: to.UTC().Format(graphDateTimeLayout), TimeZone: "UTC"},
		"availabilityViewInterval": 15,
	}
	var response struct {
		Value []struct {
			ScheduleItems []struct {
				Status string        `json:"status"`
				Start  graphDateTime `json:"start"`
				End    graphDateTime `json:"end"`
			} `json:"scheduleItems"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"value"`
	}
	if err := doJSON(ctx, m.httpClient, http.MethodPost, m.userPath()+"/calendar/getSchedule", utcHeaders, request, &response); err != nil {
		return nil, fmt.Errorf("microsoft getSchedule: %w", err)
	}

	ranges := make([]TimeRange, 0)
	for _, schedule := range response.Value {
		if schedule.Error != nil {
			return nil, fmt.Errorf("microsoft getSchedule: %s", schedule.Error.Message)
		}
		for _, item := range schedule.ScheduleItems {
			if strings.EqualFold(item.Status, "free") {
				continue
			}
			start, err := time.ParseInLocation(graphDateTimeLayout, item.Start.DateTime, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("microsoft getSchedule: parse start: %w", err)
			}
			end, err := time.ParseInLocation(graphDateTimeLayout, item.End.DateTime, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("microsoft getSchedule: parse end: %w", err)
			}
			ranges = append(ranges, TimeRange{Start: start, End: end})
		}
	}
	return ranges, nil
}

func (m *MicrosoftCalendar) CreateEvent(ctx context.Context, event CalendarEvent) (string, error) {
	request := map[string]any{
		"subject": event.Summary,
		"body": map[string]string{
			"contentType": "text",
			"content":     event.Description,
		},
		"start": graphDateTime{DateTime: event.Start.UTC().Format(graphDateTimeLayout), TimeZone: "UTC"},
		"end":   graphDateTime{DateTime: event.End.UTC().Format(graphDateTimeLayout), TimeZone: "UTC"},
	}
	if event.AttendeeEmail != "" {
		request["attendees"] = []map[string]any{{
			"emailAddress": map[string]string{"address": event.AttendeeEmail, "name": event.AttendeeName},
			"type":         "required",
		}}
	}

	var response struct {
		ID string `json:"id"`
	}
	if err := doJSON(ctx, m.httpClient, http.MethodPost, m.userPath()+"/events", utcHeaders, request, &response); err != nil {
		return "", fmt.Errorf("microsoft create event: %w", err)
	}
	if response.ID == "" {
		return "", fmt.Errorf("microsoft create event: missing event id")
	}
	return response.ID, nil
}

func (m *MicrosoftCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	if err := doJSON(ctx, m.httpClient, http.MethodDelete, m.userPath()+"/events/"+url.PathEscape(eventID), nil, nil, nil); err != nil {
		return fmt.Errorf("microsoft delete event: %w", err)
	}
	return nil
}
