package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pixel-asset-store/models"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// PayPalVerifier confirms that a PayPal order was captured. The tx reference
// posted by the client is the order id.
type PayPalVerifier struct {
	apiBase string
	client  *http.Client
}

// NewPayPalVerifier authenticates with the client-credentials grant; tokens
// are cached and refreshed by the oauth2 transport.
func NewPayPalVerifier(apiBase, clientID, clientSecret string, httpClient *http.Client) *PayPalVerifier {
	apiBase = strings.TrimRight(apiBase, "/")
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     apiBase + "/v1/oauth2/token",
	}
	ctx := context.Background()
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	client := cc.Client(ctx)
	if httpClient != nil {
		client.Timeout = httpClient.Timeout
	}
	return &PayPalVerifier{apiBase: apiBase, client: client}
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Amount paypalAmount `json:"amount"`
	} `json:"purchase_units"`
}

func (v *PayPalVerifier) Verify(ctx context.Context, req *models.PurchaseRequest) error {
	orderID := strings.TrimSpace(req.TxHash)
	if orderID == "" {
		return fmt.Errorf("%w: missing PayPal order id", ErrPaymentNotVerified)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		v.apiBase+"/v2/checkout/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return fmt.Errorf("paypal: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("paypal: API call failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: order %s not found", ErrPaymentNotVerified, orderID)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("paypal: API returned status %d: %s", resp.StatusCode, string(msg))
	}

	var order paypalOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return fmt.Errorf("paypal: decode order: %w", err)
	}
	if order.Status != "COMPLETED" {
		return fmt.Errorf("%w: order %s is %s", ErrPaymentNotVerified, orderID, order.Status)
	}
	if len(order.PurchaseUnits) == 0 {
		return fmt.Errorf("%w: order %s has no purchase units", ErrPaymentNotVerified, orderID)
	}

	amt := order.PurchaseUnits[0].Amount
	if req.Symbol != "" && !strings.EqualFold(req.Symbol, amt.CurrencyCode) {
		return fmt.Errorf("%w: order %s is in %s, claimed %s", ErrPaymentNotVerified, orderID, amt.CurrencyCode, req.Symbol)
	}
	// Fiat is compared in major units; cents must match exactly.
	want, err := baseUnits(req.Amount, 2)
	if err != nil {
		return err
	}
	paid, err := decimal.NewFromString(amt.Value)
	if err != nil {
		return fmt.Errorf("paypal: order %s has invalid amount %q", orderID, amt.Value)
	}
	if paid.Shift(2).LessThan(want) {
		return fmt.Errorf("%w: order %s paid %s, claimed %s", ErrPaymentNotVerified, orderID, paid, req.Amount)
	}
	return nil
}
