package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Provider is the boundary to the redirect-checkout provider.  CreateOrder
// registers an order under a merchant reference (the reservation ID) and
// returns where to send the customer; OrderStatus polls the provider for
// the current status of an order.  Both happen before any state-mutating
// transaction is entered.
type Provider interface {
	CreateOrder(ctx context.Context, merchantRef string, amountCents uint32, currency string) (*CheckoutOrder, error)
	OrderStatus(ctx context.Context, merchantRef string) (string, error)
}

// CheckoutOrder is the provider's view of a created order.
type CheckoutOrder struct {
	OrderID     string `json:"order_id"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}

// HTTPProvider talks JSON over HTTP to the checkout provider's REST API.
// Requests are authenticated with the shared API key.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider returns a provider client for the given base URL and API
// key.  Calls are bounded by a 10 second timeout on top of any context
// deadline.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateOrder registers a checkout order with the provider.  The merchant
// reference correlates the provider's order with the local reservation.
func (p *HTTPProvider) CreateOrder(ctx context.Context, merchantRef string, amountCents uint32, currency string) (*CheckoutOrder, error) {
	payload, err := json.Marshal(map[string]any{
		"merchant_reference": merchantRef,
		"amount_cents":       amountCents,
		"currency":           currency,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider create order: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("provider create order: unexpected status %d", resp.StatusCode)
	}
	var order CheckoutOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("provider create order: decode: %w", err)
	}
	return &order, nil
}

// OrderStatus fetches the provider-side status of the order registered
// under the merchant reference.  The returned string is fed to
// ApplyProvider unmodified; unknown values are simply ignored there.
func (p *HTTPProvider) OrderStatus(ctx context.Context, merchantRef string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/orders/"+merchantRef, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider order status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider order status: unexpected status %d", resp.StatusCode)
	}
	var order CheckoutOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return "", fmt.Errorf("provider order status: decode: %w", err)
	}
	return order.Status, nil
}
