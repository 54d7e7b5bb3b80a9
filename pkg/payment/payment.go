package payment

import (
	"context"
	"time"
)

type PaymentRequest struct {
	AmountCents   int64
	Currency      string
	OrderID       string // unique booking draft id, echoed back by the gateway
	Description   string
	Product       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ReturnURL     string
}

type PaymentResponse struct {
	Reference   string // gateway-side reference for later verification
	Status      string
	CheckoutURL string
	Signature   string // tamper-evident signature over amount/id/product
	ExpiresAt   time.Time
}

// Provider abstracts one payment gateway. VerifyPayment must hit the
// gateway's own verification endpoint; client-supplied redirect payloads are
// never trusted on their own.
type Provider interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	VerifyPayment(ctx context.Context, reference string) (bool, error)
}
