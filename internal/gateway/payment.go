package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// IntentStatus mirrors the payment processor's view of an intent.
type IntentStatus string

const (
	IntentStatusRequiresAction IntentStatus = "requires_action"
	IntentStatusProcessing     IntentStatus = "processing"
	IntentStatusSucceeded      IntentStatus = "succeeded"
	IntentStatusCanceled       IntentStatus = "canceled"
	IntentStatusFailed         IntentStatus = "failed"
)

// Settled reports whether the status needs no further action to count as paid.
func (s IntentStatus) Settled() bool {
	return s == IntentStatusSucceeded
}

// Terminal reports whether the gateway will never move this intent again.
func (s IntentStatus) Terminal() bool {
	return s == IntentStatusSucceeded || s == IntentStatusCanceled || s == IntentStatusFailed
}

var (
	// ErrUnavailable covers network failures, timeouts and 5xx responses. The
	// outcome at the gateway is unknown; callers retry with the same
	// idempotency key or fall back to reconciliation.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected covers definitive gateway refusals (card declined and the
	// like). Retrying the same request will not help.
	ErrRejected = errors.New("payment rejected by gateway")
	// ErrIntentNotFound is returned when the gateway does not know the intent.
	ErrIntentNotFound = errors.New("payment intent not found at gateway")
)

// Intent is the gateway's handle for a pending or completed charge.
type Intent struct {
	Ref    string
	Status IntentStatus
}

// PaymentClient is the narrow interface the reconciler consumes. Implemented
// by the Stripe HTTP client; tests substitute a mock.
type PaymentClient interface {
	// CreateIntent creates (or, under the same idempotency key, returns the
	// previously created) payment intent for the given amount.
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey, description string) (*Intent, error)
	Confirm(ctx context.Context, intentRef string) (IntentStatus, error)
	Cancel(ctx context.Context, intentRef string) (IntentStatus, error)
	Retrieve(ctx context.Context, intentRef string) (IntentStatus, error)
}
