package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

type CreateIntentParams struct {
	AmountMinor     int64
	Currency        string
	BookingID       int64
	ReferenceNumber string
	CustomerEmail   string
	Description     string
}

type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error)
	Refund(ctx context.Context, paymentIntentID string) error
}

// StripeGateway creates intents and refunds through the Stripe API client.
type StripeGateway struct {
	secretKey string
	api       *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return newStripeGateway(secretKey, nil)
}

// WithBaseURL points the gateway at another API host, e.g. stripe-mock.
func (g *StripeGateway) WithBaseURL(baseURL string) *StripeGateway {
	return newStripeGateway(g.secretKey, stripe.String(baseURL))
}

func newStripeGateway(secretKey string, baseURL *string) *StripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               baseURL,
		HTTPClient:        &http.Client{Timeout: 15 * time.Second},
		MaxNetworkRetries: stripe.Int64(1),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	})
	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeGateway{secretKey: secretKey, api: api}
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error) {
	request := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountMinor),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	request.Context = ctx
	request.SetIdempotencyKey("booking-intent-" + params.ReferenceNumber)
	request.AddMetadata("booking_id", strconv.FormatInt(params.BookingID, 10))
	request.AddMetadata("reference_number", params.ReferenceNumber)
	if params.CustomerEmail != "" {
		request.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	if params.Description != "" {
		request.Description = stripe.String(params.Description)
	}

	intent, err := g.api.PaymentIntents.New(request)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	if intent.ID == "" || intent.ClientSecret == "" {
		return nil, fmt.Errorf("create payment intent: incomplete response")
	}
	return &PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     string(intent.Currency),
		Status:       string(intent.Status),
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, paymentIntentID string) error {
	request := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	request.Context = ctx
	request.SetIdempotencyKey("refund-" + paymentIntentID)
	if _, err := g.api.Refunds.New(request); err != nil {
		return fmt.Errorf("refund payment: %w", err)
	}
	return nil
}

// stripeObject is the part of a webhook's data.object the booking flow reads.
// Charges carry the intent id in payment_intent, intents in id.
type stripeObject struct {
	ID            string            `json:"id"`
	Object        string            `json:"object"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// constructStripeEvent verifies the Stripe-Signature header and decodes the
// event. Events from other API versions are accepted since only a few stable
// fields are read.
func constructStripeEvent(payload []byte, signatureHeader, secret string) (stripe.Event, stripeObject, error) {
	if secret == "" || signatureHeader == "" {
		return stripe.Event{}, stripeObject{}, ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isStripeSignatureError(err) {
			return stripe.Event{}, stripeObject{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return stripe.Event{}, stripeObject{}, &ValidationError{Fields: map[string]string{"payload": "malformed event"}}
	}

	var object stripeObject
	if event.Data != nil && len(event.Data.Raw) > 0 {
		if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
			return stripe.Event{}, stripeObject{}, &ValidationError{Fields: map[string]string{"payload": "malformed event object"}}
		}
	}
	return event, object, nil
}

func isStripeSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// MinorUnits converts a decimal amount to the smallest currency unit.
func MinorUnits(amount float64) int64 {
	return int64(roundMoney(amount)*100 + 0.5)
}
