package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

const testWebhookSecret = "whsec_test"

type stubGateway struct {
	intent      *PaymentIntent
	err         error
	refundErr   error
	lastParams  CreateIntentParams
	refundedIDs []string
}

func (g *stubGateway) CreatePaymentIntent(_ context.Context, params CreateIntentParams) (*PaymentIntent, error) {
	g.lastParams = params
	return g.intent, g.err
}

func (g *stubGateway) Refund(_ context.Context, paymentIntentID string) error {
	g.refundedIDs = append(g.refundedIDs, paymentIntentID)
	return g.refundErr
}

func paidBooking(status, paymentStatus string) models.Booking {
	booking := customerBooking(status, testDate)
	booking.PaymentStatus = paymentStatus
	booking.PaymentAmount = 75.5
	booking.PaymentIntentID = strPtr("pi_123")
	return booking
}

func newPaymentFixture(gateway PaymentGateway, bookings ...models.Booking) (*PaymentService, *stubBookingRepo, *recordingPublisher) {
	repo := newBookingRepo(bookings...)
	publisher := &recordingPublisher{}
	service := NewPaymentService(repo, gateway, testWebhookSecret, "usd", publisher, NewErrorReporter(nil, nil), nil)
	return service, repo, publisher
}

func stripeEvent(eventType, objectID, paymentIntent string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_1","object":"event","api_version":"2020-08-27","type":%q,"data":{"object":{"id":%q,"payment_intent":%q,"metadata":{"booking_id":"1"}}}}`,
		eventType, objectID, paymentIntent,
	))
}

func signStripePayload(payload []byte, secret string, at time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	})
	return signed.Header
}

func TestCreateIntentStoresIntentOnBooking(t *testing.T) {
	booking := paidBooking(models.BookingStatusPending, models.PaymentStatusPending)
	booking.PaymentIntentID = nil
	gateway := &stubGateway{intent: &PaymentIntent{ID: "pi_new", ClientSecret: "pi_new_secret"}}
	service, repo, _ := newPaymentFixture(gateway, booking)

	result, err := service.CreateIntent(context.Background(), booking.ReferenceNumber, "ADA@example.com")
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if result.ClientSecret != "pi_new_secret" || result.Currency != "usd" {
		t.Fatalf("unexpected result %+v", result)
	}
	if gateway.lastParams.AmountMinor != 7550 || gateway.lastParams.BookingID != 1 {
		t.Fatalf("unexpected gateway params %+v", gateway.lastParams)
	}
	if stored := repo.get(1); stored.PaymentIntentID == nil || *stored.PaymentIntentID != "pi_new" {
		t.Fatalf("expected intent id stored, got %v", stored.PaymentIntentID)
	}
}

func TestCreateIntentRejections(t *testing.T) {
	free := paidBooking(models.BookingStatusConfirmed, models.PaymentStatusPaid)
	free.PaymentAmount = 0

	tests := []struct {
		name    string
		booking models.Booking
		email   string
		gateway PaymentGateway
		wantErr error
	}{
		{"gateway missing", paidBooking(models.BookingStatusPending, models.PaymentStatusPending), "ada@example.com", nil, ErrPaymentUnavailable},
		{"wrong email", paidBooking(models.BookingStatusPending, models.PaymentStatusPending), "eve@example.com", &stubGateway{}, ErrNotFound},
		{"free booking", free, "ada@example.com", &stubGateway{}, ErrPaymentNotRequired},
		{"already paid", paidBooking(models.BookingStatusPending, models.PaymentStatusPaid), "ada@example.com", &stubGateway{}, ErrInvalidStateTransition},
		{"cancelled", paidBooking(models.BookingStatusCancelled, models.PaymentStatusPending), "ada@example.com", &stubGateway{}, ErrInvalidStateTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, _ := newPaymentFixture(tt.gateway, tt.booking)
			_, err := service.CreateIntent(context.Background(), tt.booking.ReferenceNumber, tt.email)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHandleWebhookSucceededConfirmsOnce(t *testing.T) {
	service, repo, publisher := newPaymentFixture(&stubGateway{}, paidBooking(models.BookingStatusPending, models.PaymentStatusPending))
	payload := stripeEvent(stripeEventIntentSucceeded, "pi_123", "")
	header := signStripePayload(payload, testWebhookSecret, time.Now())

	for i := 0; i < 2; i++ {
		if err := service.HandleWebhook(context.Background(), payload, header); err != nil {
			t.Fatalf("HandleWebhook #%d: %v", i, err)
		}
	}

	stored := repo.get(1)
	if stored.Status != models.BookingStatusConfirmed || stored.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("expected confirmed/paid, got %s/%s", stored.Status, stored.PaymentStatus)
	}
	if got := publisher.types(); !reflect.DeepEqual(got, []string{EventBookingConfirmed}) {
		t.Fatalf("expected a single confirmed event, got %v", got)
	}
}

func TestHandleWebhookPaymentFailed(t *testing.T) {
	service, repo, publisher := newPaymentFixture(&stubGateway{}, paidBooking(models.BookingStatusPending, models.PaymentStatusPending))
	payload := stripeEvent(stripeEventIntentFailed, "pi_123", "")

	if err := service.HandleWebhook(context.Background(), payload, signStripePayload(payload, testWebhookSecret, time.Now())); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if stored := repo.get(1); stored.PaymentStatus != models.PaymentStatusFailed || stored.Status != models.BookingStatusPending {
		t.Fatalf("expected pending/failed, got %s/%s", stored.Status, stored.PaymentStatus)
	}
	if got := publisher.types(); !reflect.DeepEqual(got, []string{EventBookingPaymentFailed}) {
		t.Fatalf("expected payment failed event, got %v", got)
	}
}

func TestHandleWebhookRefundCancelsBooking(t *testing.T) {
	service, repo, publisher := newPaymentFixture(&stubGateway{}, paidBooking(models.BookingStatusConfirmed, models.PaymentStatusPaid))
	payload := stripeEvent(stripeEventChargeRefunded, "ch_1", "pi_123")

	if err := service.HandleWebhook(context.Background(), payload, signStripePayload(payload, testWebhookSecret, time.Now())); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	stored := repo.get(1)
	if stored.PaymentStatus != models.PaymentStatusRefunded || stored.Status != models.BookingStatusCancelled {
		t.Fatalf("expected cancelled/refunded, got %s/%s", stored.Status, stored.PaymentStatus)
	}
	if got := publisher.types(); !reflect.DeepEqual(got, []string{EventBookingCancelled}) {
		t.Fatalf("expected cancelled event, got %v", got)
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	service, _, _ := newPaymentFixture(&stubGateway{}, paidBooking(models.BookingStatusPending, models.PaymentStatusPending))
	payload := stripeEvent(stripeEventIntentSucceeded, "pi_123", "")

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong secret", signStripePayload(payload, "whsec_other", time.Now())},
		{"stale", signStripePayload(payload, testWebhookSecret, time.Now().Add(-10*time.Minute))},
		{"garbage", "t=abc,v1=zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := service.HandleWebhook(context.Background(), payload, tt.header); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("expected invalid signature, got %v", err)
			}
		})
	}
}

func TestHandleWebhookIgnoresUnknownBookingsAndEvents(t *testing.T) {
	service, _, publisher := newPaymentFixture(&stubGateway{})

	for _, payload := range [][]byte{
		stripeEvent(stripeEventIntentSucceeded, "pi_unknown", ""),
		stripeEvent("customer.created", "cus_1", ""),
	} {
		if err := service.HandleWebhook(context.Background(), payload, signStripePayload(payload, testWebhookSecret, time.Now())); err != nil {
			t.Fatalf("HandleWebhook: %v", err)
		}
	}
	if len(publisher.types()) != 0 {
		t.Fatalf("expected no events")
	}
}

func TestRefundByAdmin(t *testing.T) {
	gateway := &stubGateway{}
	service, _, publisher := newPaymentFixture(gateway, paidBooking(models.BookingStatusConfirmed, models.PaymentStatusPaid))

	booking, err := service.Refund(context.Background(), 1)
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if !reflect.DeepEqual(gateway.refundedIDs, []string{"pi_123"}) {
		t.Fatalf("expected refund of pi_123, got %v", gateway.refundedIDs)
	}
	if booking.PaymentStatus != models.PaymentStatusRefunded || booking.Status != models.BookingStatusCancelled {
		t.Fatalf("expected cancelled/refunded, got %s/%s", booking.Status, booking.PaymentStatus)
	}
	if got := publisher.types(); !reflect.DeepEqual(got, []string{EventBookingCancelled}) {
		t.Fatalf("expected cancelled event, got %v", got)
	}

	if _, err := service.Refund(context.Background(), 1); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected second refund to be rejected, got %v", err)
	}
}

func TestStripeGatewayCreatePaymentIntent(t *testing.T) {
	var gotForm url.Values
	var gotAuth, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_9","object":"payment_intent","client_secret":"pi_9_secret","amount":7550,"currency":"usd","status":"requires_payment_method"}`))
	}))
	defer server.Close()

	gateway := NewStripeGateway("sk_test").WithBaseURL(server.URL)
	intent, err := gateway.CreatePaymentIntent(context.Background(), CreateIntentParams{
		AmountMinor:     7550,
		Currency:        "usd",
		BookingID:       1,
		ReferenceNumber: "BN-20300318-ABCDEF12",
		CustomerEmail:   "ada@example.com",
	})
	if err != nil {
		t.Fatalf("CreatePaymentIntent: %v", err)
	}
	if intent.ID != "pi_9" || intent.ClientSecret != "pi_9_secret" || intent.Status != "requires_payment_method" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if gotAuth != "Bearer sk_test" || gotKey != "booking-intent-BN-20300318-ABCDEF12" {
		t.Fatalf("unexpected auth %q or idempotency key %q", gotAuth, gotKey)
	}
	if gotForm.Get("amount") != "7550" || gotForm.Get("metadata[booking_id]") != "1" ||
		gotForm.Get("automatic_payment_methods[enabled]") != "true" || gotForm.Get("receipt_email") != "ada@example.com" {
		t.Fatalf("unexpected form %v", gotForm)
	}
}

func TestStripeGatewayRefund(t *testing.T) {
	var gotForm url.Values
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/refunds" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		gotKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_1","object":"refund","payment_intent":"pi_1","status":"succeeded"}`))
	}))
	defer server.Close()

	if err := NewStripeGateway("sk_test").WithBaseURL(server.URL).Refund(context.Background(), "pi_1"); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if gotForm.Get("payment_intent") != "pi_1" || gotKey != "refund-pi_1" {
		t.Fatalf("unexpected refund request %v / %q", gotForm, gotKey)
	}
}

func TestStripeGatewaySurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	}))
	defer server.Close()

	err := NewStripeGateway("sk_test").WithBaseURL(server.URL).Refund(context.Background(), "pi_1")
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) || stripeErr.Code != stripe.ErrorCodeCardDeclined {
		t.Fatalf("expected card_declined stripe error, got %v", err)
	}
	if !strings.Contains(err.Error(), "declined") {
		t.Fatalf("expected decline message, got %v", err)
	}
}

func TestHandleWebhookRejectsMalformedSignedPayload(t *testing.T) {
	service, _, _ := newPaymentFixture(&stubGateway{})
	payload := []byte(`{"id":"evt_1","type":`)

	err := service.HandleWebhook(context.Background(), payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMinorUnits(t *testing.T) {
	tests := map[float64]int64{0: 0, 10: 1000, 19.99: 1999, 0.1 + 0.2: 30, 75.5: 7550}
	for amount, want := range tests {
		if got := MinorUnits(amount); got != want {
			t.Fatalf("MinorUnits(%v) = %d, want %d", amount, got, want)
		}
	}
}
