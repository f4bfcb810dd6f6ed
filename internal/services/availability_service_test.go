package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/saeid-a/ConsultBookBack/internal/availability"
	"github.com/saeid-a/ConsultBookBack/internal/models"
)

func slotStarts(slots []models.TimeSlot) []string {
	starts := make([]string, 0, len(slots))
	for _, slot := range slots {
		starts = append(starts, slot.Start)
	}
	return starts
}

func TestGetSlotsExcludesExistingBooking(t *testing.T) {
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{weeklyRule(1, "09:00", "12:00")}}
	bookings := newBookingRepo(models.Booking{
		ID: 1, BookingDate: testDate, BookingTime: "10:00", DurationMinutes: 30, Status: models.BookingStatusConfirmed,
	})
	types := newTypeRepo(activeType(7, 30, 50))
	service := newTestAvailabilityService(rules, bookings, types, nil)

	slots, err := service.GetSlots(context.Background(), testDate, int64Ptr(7))
	if err != nil {
		t.Fatalf("GetSlots: %v", err)
	}

	want := []string{"09:00", "09:30", "10:30", "11:00", "11:30"}
	if got := slotStarts(slots); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if slots[0].End != "09:30" {
		t.Fatalf("expected first slot to end at 09:30, got %s", slots[0].End)
	}
}

func TestGetSlotsIgnoresCancelledBookings(t *testing.T) {
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{weeklyRule(1, "09:00", "10:00")}}
	bookings := newBookingRepo(models.Booking{
		ID: 1, BookingDate: testDate, BookingTime: "09:00", DurationMinutes: 30, Status: models.BookingStatusCancelled,
	})
	service := newTestAvailabilityService(rules, bookings, newTypeRepo(), nil)

	slots, err := service.GetSlots(context.Background(), testDate, nil)
	if err != nil {
		t.Fatalf("GetSlots: %v", err)
	}
	if got := slotStarts(slots); !reflect.DeepEqual(got, []string{"09:00", "09:30"}) {
		t.Fatalf("unexpected slots %v", got)
	}
}

func TestGetSlotsUnionsExternalBusyTime(t *testing.T) {
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{weeklyRule(1, "09:00", "11:00")}}
	busy := &stubBusySource{intervals: []availability.Interval{{
		Start: availability.MustParseClock("09:15"),
		End:   availability.MustParseClock("09:45"),
	}}}
	service := newTestAvailabilityService(rules, newBookingRepo(), newTypeRepo(), busy)

	slots, err := service.GetSlots(context.Background(), testDate, nil)
	if err != nil {
		t.Fatalf("GetSlots: %v", err)
	}
	if got := slotStarts(slots); !reflect.DeepEqual(got, []string{"10:00", "10:30"}) {
		t.Fatalf("unexpected slots %v", got)
	}
}

func TestGetSlotsSurvivesBusySourceFailure(t *testing.T) {
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{weeklyRule(1, "09:00", "10:00")}}
	busy := &stubBusySource{err: errors.New("calendar down")}
	service := newTestAvailabilityService(rules, newBookingRepo(), newTypeRepo(), busy)

	slots, err := service.GetSlots(context.Background(), testDate, nil)
	if err != nil {
		t.Fatalf("GetSlots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected local slots despite calendar failure, got %v", slotStarts(slots))
	}
}

func TestGetSlotsBookingHorizon(t *testing.T) {
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{
		weeklyRule(0, "09:00", "12:00"),
		weeklyRule(1, "09:00", "12:00"),
		weeklyRule(5, "09:00", "12:00"),
	}}

	tests := []struct {
		name      string
		date      string
		minNotice int
		want      int
	}{
		{"past date", "2030-02-25", 0, 0},
		{"beyond max advance", "2030-06-03", 0, 0},
		{"today before notice cut", "2030-03-01", 0, 6},
		{"today with notice", "2030-03-01", 150, 3},
		{"future day ignores notice", testDate, 150, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestAvailabilityService(rules, newBookingRepo(), newTypeRepo(), nil)
			service.settings.MinNoticeMinutes = tt.minNotice

			slots, err := service.GetSlots(context.Background(), tt.date, nil)
			if err != nil {
				t.Fatalf("GetSlots: %v", err)
			}
			if len(slots) != tt.want {
				t.Fatalf("expected %d slots, got %v", tt.want, slotStarts(slots))
			}
		})
	}
}

func TestGetSlotsNotBeforeRoundsUpPartialMinutes(t *testing.T) {
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{weeklyRule(5, "09:00", "10:00")}}
	service := newTestAvailabilityService(rules, newBookingRepo(), newTypeRepo(), nil)
	service.now = func() time.Time { return time.Date(2030, 3, 1, 9, 0, 30, 0, time.UTC) }

	slots, err := service.GetSlots(context.Background(), "2030-03-01", nil)
	if err != nil {
		t.Fatalf("GetSlots: %v", err)
	}
	if got := slotStarts(slots); !reflect.DeepEqual(got, []string{"09:30"}) {
		t.Fatalf("expected only 09:30, got %v", got)
	}
}

func TestGetSlotsRejectsBadInput(t *testing.T) {
	types := newTypeRepo(models.ConsultationType{ID: 9, DurationMinutes: 30, Status: models.ConsultationTypeStatusInactive})
	service := newTestAvailabilityService(&stubRuleRepo{}, newBookingRepo(), types, nil)

	if _, err := service.GetSlots(context.Background(), "18/03/2030", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := service.GetSlots(context.Background(), testDate, int64Ptr(404)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.GetSlots(context.Background(), testDate, int64Ptr(9)); !errors.Is(err, ErrInactiveType) {
		t.Fatalf("expected inactive type, got %v", err)
	}
}

func TestGetSlotsReturnsEmptyListForClosedDay(t *testing.T) {
	service := newTestAvailabilityService(&stubRuleRepo{}, newBookingRepo(), newTypeRepo(), nil)

	slots, err := service.GetSlots(context.Background(), testDate, nil)
	if err != nil {
		t.Fatalf("GetSlots: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slots, got %#v", slots)
	}
}

func TestGetAvailableDatesListsOpenDays(t *testing.T) {
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{
		weeklyRule(1, "09:00", "10:00"),
		{
			RuleType:     models.RuleTypeBlock,
			SpecificDate: strPtr("2030-03-11"),
			StartTime:    "00:00",
			EndTime:      "24:00",
		},
	}}
	service := newTestAvailabilityService(rules, newBookingRepo(), newTypeRepo(), nil)

	dates, err := service.GetAvailableDates(context.Background(), "2030-03", nil)
	if err != nil {
		t.Fatalf("GetAvailableDates: %v", err)
	}
	want := []string{"2030-03-04", "2030-03-18", "2030-03-25"}
	if !reflect.DeepEqual(dates, want) {
		t.Fatalf("expected %v, got %v", want, dates)
	}

	if _, err := service.GetAvailableDates(context.Background(), "March", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid month error, got %v", err)
	}
}

func TestGetAvailableDatesLoadsMonthOnce(t *testing.T) {
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{
		weeklyRule(1, "09:00", "10:00"),
		weeklyRule(3, "09:00", "09:30"),
	}}
	bookings := newBookingRepo(models.Booking{
		ID: 1, BookingDate: "2030-03-06", BookingTime: "09:00", DurationMinutes: 30, Status: models.BookingStatusConfirmed,
	})
	busy := &stubBusySource{intervals: []availability.Interval{{
		Start: availability.MustParseClock("09:30"),
		End:   availability.MustParseClock("10:00"),
	}}}
	service := newTestAvailabilityService(rules, bookings, newTypeRepo(), busy)

	dates, err := service.GetAvailableDates(context.Background(), "2030-03", nil)
	if err != nil {
		t.Fatalf("GetAvailableDates: %v", err)
	}
	want := []string{
		"2030-03-04", "2030-03-11", "2030-03-13", "2030-03-18",
		"2030-03-20", "2030-03-25", "2030-03-27",
	}
	if !reflect.DeepEqual(dates, want) {
		t.Fatalf("expected %v, got %v", want, dates)
	}
	if rules.rangeCalls != 1 || rules.dayCalls != 0 {
		t.Fatalf("expected one rule query, got %d ranged and %d daily", rules.rangeCalls, rules.dayCalls)
	}
	if bookings.intervalRangeCalls != 1 || bookings.intervalDayCalls != 0 {
		t.Fatalf("expected one booking query, got %d ranged and %d daily", bookings.intervalRangeCalls, bookings.intervalDayCalls)
	}
	if busy.rangeCalls != 1 || busy.dayCalls != 0 {
		t.Fatalf("expected one busy lookup, got %d ranged and %d daily", busy.rangeCalls, busy.dayCalls)
	}
}

func TestGetAvailableDatesSkipsQueriesForPastMonth(t *testing.T) {
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{weeklyRule(1, "09:00", "10:00")}}
	bookings := newBookingRepo()
	busy := &stubBusySource{}
	service := newTestAvailabilityService(rules, bookings, newTypeRepo(), busy)

	dates, err := service.GetAvailableDates(context.Background(), "2030-02", nil)
	if err != nil {
		t.Fatalf("GetAvailableDates: %v", err)
	}
	if dates == nil || len(dates) != 0 {
		t.Fatalf("expected empty non-nil dates, got %#v", dates)
	}
	if rules.rangeCalls+bookings.intervalRangeCalls+busy.rangeCalls != 0 {
		t.Fatalf("expected no lookups for a month outside the horizon")
	}
}

func TestGetAvailableDatesSurvivesBusySourceFailure(t *testing.T) {
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{weeklyRule(1, "09:00", "10:00")}}
	busy := &stubBusySource{err: errors.New("calendar down")}
	service := newTestAvailabilityService(rules, newBookingRepo(), newTypeRepo(), busy)

	dates, err := service.GetAvailableDates(context.Background(), "2030-03", nil)
	if err != nil {
		t.Fatalf("GetAvailableDates: %v", err)
	}
	if len(dates) != 4 {
		t.Fatalf("expected the four Mondays, got %v", dates)
	}
}

func TestIsSlotAvailable(t *testing.T) {
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{weeklyRule(1, "09:00", "10:00")}}
	ctype := activeType(7, 60, 0)
	service := newTestAvailabilityService(rules, newBookingRepo(), newTypeRepo(ctype), nil)

	ok, err := service.IsSlotAvailable(context.Background(), testDate, availability.MustParseClock("09:00"), &ctype)
	if err != nil || !ok {
		t.Fatalf("expected 09:00 available, got %v %v", ok, err)
	}
	ok, err = service.IsSlotAvailable(context.Background(), testDate, availability.MustParseClock("09:30"), &ctype)
	if err != nil || ok {
		t.Fatalf("expected 09:30 unavailable for a 60 minute type, got %v %v", ok, err)
	}
}

func TestOccupiedIntervalsPadsByOwnBuffers(t *testing.T) {
	occupied, err := OccupiedIntervals([]models.BookedInterval{{
		BookingTime: "10:00", DurationMinutes: 30, BufferBefore: 15, BufferAfter: 10,
	}})
	if err != nil {
		t.Fatalf("OccupiedIntervals: %v", err)
	}
	want := availability.Interval{Start: availability.MustParseClock("09:45"), End: availability.MustParseClock("10:40")}
	if occupied[0] != want {
		t.Fatalf("expected %+v, got %+v", want, occupied[0])
	}
}
