package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// CheckoutProvider is the redirect-style gateway: we hand the patient a
// signed checkout URL, the gateway calls back, and we re-verify the
// transaction server-to-server before trusting it.
type CheckoutProvider struct {
	BaseURL    string
	MerchantID string
	Secret     string
	ReturnURL  string
	client     *http.Client
}

func NewCheckoutProvider(baseURL, merchantID, secret, returnURL string) *CheckoutProvider {
	return &CheckoutProvider{
		BaseURL:    baseURL,
		MerchantID: merchantID,
		Secret:     secret,
		ReturnURL:  returnURL,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Sign computes the tamper-evident signature over amount, order id and
// product, the fields the gateway echoes back on redirect.
func (p *CheckoutProvider) Sign(amountCents int64, orderID, product string) string {
	mac := hmac.New(sha256.New, []byte(p.Secret))
	fmt.Fprintf(mac, "%d|%s|%s", amountCents, orderID, product)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a redirect payload signature in constant time.
func (p *CheckoutProvider) VerifySignature(amountCents int64, orderID, product, signature string) bool {
	expected := p.Sign(amountCents, orderID, product)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (p *CheckoutProvider) InitiatePayment(_ context.Context, req PaymentRequest) (*PaymentResponse, error) {
	sig := p.Sign(req.AmountCents, req.OrderID, req.Product)
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = p.ReturnURL
	}
	q := url.Values{}
	q.Set("merchant_id", p.MerchantID)
	q.Set("order_id", req.OrderID)
	q.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	q.Set("currency", req.Currency)
	q.Set("product", req.Product)
	q.Set("return_url", returnURL)
	q.Set("signature", sig)
	checkoutURL := p.BaseURL + "/checkout?" + q.Encode()
	log.Printf("[Checkout] initiated order_id=%s amount=%d", req.OrderID, req.AmountCents)
	return &PaymentResponse{
		Reference:   req.OrderID,
		Status:      "PENDING",
		CheckoutURL: checkoutURL,
		Signature:   sig,
		ExpiresAt:   time.Now().Add(30 * time.Minute),
	}, nil
}

type checkoutVerifyResp struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
}

// VerifyPayment asks the gateway directly whether the transaction completed.
func (p *CheckoutProvider) VerifyPayment(ctx context.Context, reference string) (bool, error) {
	u := fmt.Sprintf("%s/api/v1/transactions/%s?merchant_id=%s", p.BaseURL, url.PathEscape(reference), url.QueryEscape(p.MerchantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+p.Sign(0, reference, "verify"))
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("checkout verify: %d", resp.StatusCode)
	}
	var out checkoutVerifyResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	log.Printf("[Checkout] verify order_id=%s status=%s", out.OrderID, out.Status)
	return out.Status == "COMPLETED", nil
}
