package payment

import "context"

// Hold is an authorized charge that can later be partially refunded.
type Hold struct {
	ID           string
	ClientSecret string
}

// Provider abstracts the payment collaborator: create a hold, create a refund.
type Provider interface {
	CreateIntent(ctx context.Context, amount float64) (Hold, error)
	Refund(ctx context.Context, paymentIntentID string, amount float64) (string, error)
}
