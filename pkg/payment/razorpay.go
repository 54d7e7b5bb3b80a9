package payment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/razorpay/razorpay-go"
)

// RazorpayProvider creates gateway orders and verifies captured payments
// against the Razorpay API.
type RazorpayProvider struct {
	client *razorpay.Client
}

func NewRazorpayProvider(keyID, keySecret string) *RazorpayProvider {
	return &RazorpayProvider{client: razorpay.NewClient(keyID, keySecret)}
}

func (p *RazorpayProvider) InitiatePayment(_ context.Context, req PaymentRequest) (*PaymentResponse, error) {
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	data := map[string]interface{}{
		"amount":   req.AmountCents,
		"currency": currency,
		"receipt":  req.OrderID,
		"notes": map[string]interface{}{
			"booking_id": req.OrderID,
			"product":    req.Product,
		},
	}
	body, err := p.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create: %w", err)
	}
	orderID, _ := body["id"].(string)
	if orderID == "" {
		return nil, fmt.Errorf("razorpay order create: missing id in response")
	}
	log.Printf("[Razorpay] order created id=%s receipt=%s amount=%d", orderID, req.OrderID, req.AmountCents)
	return &PaymentResponse{
		Reference: orderID,
		Status:    "PENDING",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}, nil
}

// VerifyPayment fetches the payment by id and trusts only a captured status.
func (p *RazorpayProvider) VerifyPayment(_ context.Context, reference string) (bool, error) {
	body, err := p.client.Payment.Fetch(reference, nil, nil)
	if err != nil {
		return false, fmt.Errorf("razorpay payment fetch: %w", err)
	}
	status, _ := body["status"].(string)
	log.Printf("[Razorpay] verify payment_id=%s status=%s", reference, status)
	return status == "captured", nil
}
