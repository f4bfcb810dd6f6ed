package services

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/saeid-a/ConsultBookBack/internal/availability"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
)

type bookingFixture struct {
	service   *BookingService
	bookings  *stubBookingRepo
	publisher *recordingPublisher
}

func newBookingFixture(t *testing.T, types *stubTypeRepo, existing ...models.Booking) bookingFixture {
	t.Helper()
	rules := &stubRuleRepo{rules: []models.AvailabilityRule{weeklyRule(1, "09:00", "12:00")}}
	bookings := newBookingRepo(existing...)
	slots := newTestAvailabilityService(rules, bookings, types, nil)
	publisher := &recordingPublisher{}

	service := NewBookingService(bookings, types, slots, publisher, NewErrorReporter(nil, nil), nil)
	service.now = testNow
	return bookingFixture{service: service, bookings: bookings, publisher: publisher}
}

func validBookingRequest() CreateBookingRequest {
	return CreateBookingRequest{
		ConsultationTypeID: 7,
		CustomerName:       "  Ada Lovelace ",
		CustomerEmail:      "Ada@Example.com",
		CustomerPhone:      strPtr(" "),
		BookingDate:        testDate,
		BookingTime:        "10:00",
	}
}

func TestCreateBookingPendingForPaidType(t *testing.T) {
	fx := newBookingFixture(t, newTypeRepo(activeType(7, 30, 49.999)))

	detail, err := fx.service.CreateBooking(context.Background(), validBookingRequest())
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if detail.Status != models.BookingStatusPending || detail.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("expected pending/pending, got %s/%s", detail.Status, detail.PaymentStatus)
	}
	if detail.CustomerName != "Ada Lovelace" || detail.CustomerEmail != "ada@example.com" {
		t.Fatalf("expected normalized customer, got %q %q", detail.CustomerName, detail.CustomerEmail)
	}
	if detail.CustomerPhone != nil {
		t.Fatalf("expected blank phone to be dropped")
	}
	if detail.PaymentAmount != 50 {
		t.Fatalf("expected rounded amount 50, got %v", detail.PaymentAmount)
	}
	if !regexp.MustCompile(`^BN-20300318-[0-9A-F]{8}$`).MatchString(detail.ReferenceNumber) {
		t.Fatalf("unexpected reference %q", detail.ReferenceNumber)
	}
	if detail.ConsultationType == nil || detail.ConsultationType.ID != 7 {
		t.Fatalf("expected consultation type attached")
	}
	if got := fx.publisher.types(); !reflect.DeepEqual(got, []string{EventBookingCreated}) {
		t.Fatalf("expected created event, got %v", got)
	}
}

func TestCreateBookingFreeTypeIsConfirmed(t *testing.T) {
	fx := newBookingFixture(t, newTypeRepo(activeType(7, 30, 0)))

	detail, err := fx.service.CreateBooking(context.Background(), validBookingRequest())
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if detail.Status != models.BookingStatusConfirmed || detail.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("expected confirmed/paid, got %s/%s", detail.Status, detail.PaymentStatus)
	}
	want := []string{EventBookingCreated, EventBookingConfirmed}
	if got := fx.publisher.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCreateBookingRejectsUnavailableSlot(t *testing.T) {
	existing := models.Booking{
		ID: 1, BookingDate: testDate, BookingTime: "10:00", DurationMinutes: 30, Status: models.BookingStatusPending,
	}
	fx := newBookingFixture(t, newTypeRepo(activeType(7, 30, 0)), existing)

	tests := []struct {
		name string
		time string
	}{
		{"taken", "10:00"},
		{"off grid", "10:15"},
		{"outside window", "12:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validBookingRequest()
			req.BookingTime = tt.time
			if _, err := fx.service.CreateBooking(context.Background(), req); !errors.Is(err, ErrSlotUnavailable) {
				t.Fatalf("expected slot unavailable, got %v", err)
			}
		})
	}
	if len(fx.publisher.types()) != 0 {
		t.Fatalf("expected no events for rejected bookings")
	}
}

func TestCreateBookingGuardRejectsRaceLoser(t *testing.T) {
	ctype := activeType(7, 30, 0)
	ctype.BufferAfter = 30
	fx := newBookingFixture(t, newTypeRepo(ctype))

	// another request commits 10:30 between the pre-check and the locked insert
	fx.service.slots = slotCheckerFunc(func() {
		fx.bookings.bookings[999] = &models.Booking{
			ID: 999, BookingDate: testDate, BookingTime: "10:30", DurationMinutes: 30, Status: models.BookingStatusConfirmed,
		}
	})

	if _, err := fx.service.CreateBooking(context.Background(), validBookingRequest()); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected guard to reject buffered overlap, got %v", err)
	}
}

type slotCheckerFunc func()

func (f slotCheckerFunc) IsSlotAvailable(context.Context, string, availability.Clock, *models.ConsultationType) (bool, error) {
	f()
	return true, nil
}

func (f slotCheckerFunc) Location() *time.Location { return time.UTC }

func TestCreateBookingMapsUniqueViolationToConflict(t *testing.T) {
	fx := newBookingFixture(t, newTypeRepo(activeType(7, 30, 0)))
	fx.bookings.createErr = &pgconn.PgError{Code: "23505"}

	if _, err := fx.service.CreateBooking(context.Background(), validBookingRequest()); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	inactive := activeType(8, 30, 0)
	inactive.Status = models.ConsultationTypeStatusInactive
	fx := newBookingFixture(t, newTypeRepo(activeType(7, 30, 0), inactive))

	var validation *ValidationError
	_, err := fx.service.CreateBooking(context.Background(), CreateBookingRequest{
		CustomerEmail: "not-an-email",
		BookingDate:   "2030-13-01",
		BookingTime:   "25:00",
	})
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"customer_name", "customer_email", "consultation_type_id", "booking_date", "booking_time"} {
		if _, ok := validation.Fields[field]; !ok {
			t.Fatalf("expected %s to be reported, got %v", field, validation.Fields)
		}
	}

	req := validBookingRequest()
	req.ConsultationTypeID = 404
	if _, err := fx.service.CreateBooking(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected unknown type to be invalid input, got %v", err)
	}

	req.ConsultationTypeID = 8
	if _, err := fx.service.CreateBooking(context.Background(), req); !errors.Is(err, ErrInactiveType) {
		t.Fatalf("expected inactive type error, got %v", err)
	}
}

func TestConcurrentCreatesNeverDoubleBook(t *testing.T) {
	fx := newBookingFixture(t, newTypeRepo(activeType(7, 30, 0)))

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.service.CreateBooking(context.Background(), validBookingRequest())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSlotUnavailable):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one booking, got %d", succeeded)
	}
}

func customerBooking(status string, date string) models.Booking {
	return models.Booking{
		ID:                 1,
		ReferenceNumber:    "BN-20300318-ABCDEF12",
		ConsultationTypeID: 7,
		CustomerName:       "Ada",
		CustomerEmail:      "ada@example.com",
		BookingDate:        date,
		BookingTime:        "10:00",
		DurationMinutes:    30,
		Status:             status,
		PaymentStatus:      models.PaymentStatusPending,
	}
}

func TestLookupBookingRequiresMatchingEmail(t *testing.T) {
	fx := newBookingFixture(t, newTypeRepo(activeType(7, 30, 0)), customerBooking(models.BookingStatusPending, testDate))

	detail, err := fx.service.LookupBooking(context.Background(), " bn-20300318-abcdef12 ", "ADA@example.com")
	if err != nil {
		t.Fatalf("LookupBooking: %v", err)
	}
	if detail.ID != 1 {
		t.Fatalf("expected booking 1, got %d", detail.ID)
	}

	if _, err := fx.service.LookupBooking(context.Background(), "BN-20300318-ABCDEF12", "eve@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for wrong email, got %v", err)
	}
	if _, err := fx.service.LookupBooking(context.Background(), "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCancelByCustomer(t *testing.T) {
	tests := []struct {
		name    string
		booking models.Booking
		wantErr error
	}{
		{"pending future", customerBooking(models.BookingStatusPending, testDate), nil},
		{"confirmed future", customerBooking(models.BookingStatusConfirmed, testDate), nil},
		{"already completed", customerBooking(models.BookingStatusCompleted, testDate), ErrInvalidStateTransition},
		{"already started", customerBooking(models.BookingStatusConfirmed, "2030-02-28"), ErrInvalidStateTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newBookingFixture(t, newTypeRepo(activeType(7, 30, 0)), tt.booking)

			detail, err := fx.service.CancelByCustomer(context.Background(), tt.booking.ReferenceNumber, tt.booking.CustomerEmail)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr != nil {
				return
			}
			if detail.Status != models.BookingStatusCancelled {
				t.Fatalf("expected cancelled, got %s", detail.Status)
			}
			if got := fx.publisher.types(); !reflect.DeepEqual(got, []string{EventBookingCancelled}) {
				t.Fatalf("expected cancelled event, got %v", got)
			}
		})
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		from      string
		requested string
		wantErr   error
		wantEvent string
	}{
		{models.BookingStatusPending, "confirm", nil, EventBookingConfirmed},
		{models.BookingStatusPending, "cancelled", nil, EventBookingCancelled},
		{models.BookingStatusPending, "completed", ErrInvalidStateTransition, ""},
		{models.BookingStatusConfirmed, "complete", nil, EventBookingCompleted},
		{models.BookingStatusConfirmed, "no-show", nil, EventBookingNoShow},
		{models.BookingStatusCancelled, "confirmed", ErrInvalidStateTransition, ""},
		{models.BookingStatusCompleted, "cancelled", ErrInvalidStateTransition, ""},
		{models.BookingStatusPending, "archived", ErrInvalidStatus, ""},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.requested, func(t *testing.T) {
			fx := newBookingFixture(t, newTypeRepo(activeType(7, 30, 0)), customerBooking(tt.from, testDate))

			_, err := fx.service.UpdateStatus(context.Background(), 1, tt.requested)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			events := fx.publisher.types()
			if tt.wantEvent == "" {
				if len(events) != 0 {
					t.Fatalf("expected no events, got %v", events)
				}
				return
			}
			if !reflect.DeepEqual(events, []string{tt.wantEvent}) {
				t.Fatalf("expected %s, got %v", tt.wantEvent, events)
			}
		})
	}
}

func TestUpdateStatusSameStatusIsNoop(t *testing.T) {
	fx := newBookingFixture(t, newTypeRepo(activeType(7, 30, 0)), customerBooking(models.BookingStatusConfirmed, testDate))

	detail, err := fx.service.UpdateStatus(context.Background(), 1, "confirmed")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if detail.Status != models.BookingStatusConfirmed || len(fx.publisher.types()) != 0 {
		t.Fatalf("expected unchanged booking without events")
	}
}

func TestUpdateStatusUnknownBooking(t *testing.T) {
	fx := newBookingFixture(t, newTypeRepo())
	if _, err := fx.service.UpdateStatus(context.Background(), 42, "confirmed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := fx.service.DeleteBooking(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestListBookingsPagination(t *testing.T) {
	fx := newBookingFixture(t, newTypeRepo(),
		customerBooking(models.BookingStatusPending, testDate),
	)

	result, err := fx.service.ListBookings(context.Background(), repository.BookingListFilter{}, 2, 10)
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if fx.bookings.lastList.Offset != 10 || fx.bookings.lastList.Limit != 10 {
		t.Fatalf("expected offset 10 limit 10, got %+v", fx.bookings.lastList)
	}
	if result.Meta.Total != 1 || result.Meta.TotalPages != 1 {
		t.Fatalf("unexpected meta %+v", result.Meta)
	}

	if _, err := fx.service.ListBookings(context.Background(), repository.BookingListFilter{Status: "lost"}, 1, 10); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestPublishFailureDoesNotFailBooking(t *testing.T) {
	logs := &stubErrorLogs{}
	fx := newBookingFixture(t, newTypeRepo(activeType(7, 30, 0)))
	fx.publisher.err = errors.New("broker down")
	fx.service.reporter = NewErrorReporter(nil, logs)

	if _, err := fx.service.CreateBooking(context.Background(), validBookingRequest()); err != nil {
		t.Fatalf("expected booking to succeed, got %v", err)
	}
	if len(logs.entries) == 0 || logs.entries[0].Source != "events.publish" {
		t.Fatalf("expected publish failure to be recorded, got %+v", logs.entries)
	}
}
