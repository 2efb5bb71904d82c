package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/storefront/config"
	apphttp "github.com/shashiranjanraj/storefront/pkg/http"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/money"
)

// ErrPaymentNotConfigured means no processor secret is set.
var ErrPaymentNotConfigured = errors.New("payment processor is not configured")

// PaymentIntent is what the client needs to confirm a card payment.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// PaymentService obtains client-side confirmation tokens from the payment
// processor. Settlement is not tracked here.
type PaymentService struct {
	baseURL string
	secret  string
}

func NewPaymentService() *PaymentService {
	return &PaymentService{baseURL: config.PaymentAPIURL(), secret: config.PaymentSecretKey()}
}

// CreateIntent asks the processor for a payment intent for amount.
func (s *PaymentService) CreateIntent(ctx context.Context, amount money.Amount, currency string) (PaymentIntent, error) {
	if !amount.IsPositive() {
		return PaymentIntent{}, invalid("amount", "The amount must be greater than 0.")
	}
	if s.secret == "" {
		return PaymentIntent{}, ErrPaymentNotConfigured
	}
	if currency == "" {
		currency = config.Currency()
	}

	form := url.Values{
		"amount":                             {strconv.FormatInt(int64(amount), 10)},
		"currency":                           {strings.ToLower(currency)},
		"automatic_payment_methods[enabled]": {"true"},
	}
	resp, err := apphttp.Post(strings.TrimRight(s.baseURL, "/") + "/v1/payment_intents").
		WithContext(ctx).
		Bearer(s.secret).
		IdempotencyKey(uuid.NewString()).
		Form(form).
		Timeout(10 * time.Second).
		Retry(3, 200*time.Millisecond).
		Send()
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("payment: create intent: %w", err)
	}
	if err := resp.Err(); err != nil {
		logger.WithCtx(ctx).Error("payment: processor rejected intent", "status", resp.StatusCode)
		return PaymentIntent{}, fmt.Errorf("payment: create intent: %w", err)
	}

	var intent PaymentIntent
	if err := resp.Decode(&intent); err != nil {
		return PaymentIntent{}, fmt.Errorf("payment: create intent: %w", err)
	}
	if intent.ClientSecret == "" {
		return PaymentIntent{}, errors.New("payment: processor returned no client secret")
	}
	return intent, nil
}
