// models/purchase.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Purchase is the stored claim that a wallet bought a product.
// Optional fields are pointers so an absent value is written as an explicit null.
type Purchase struct {
	Wallet      string      `json:"wallet"`
	ProductID   string      `json:"productId"`
	PurchasedAt int64       `json:"purchasedAt"` // ms since epoch
	TxHash      *string     `json:"txHash"`
	ChainID     any         `json:"chainId"` // "solana", "bitcoin", 137, ...
	ChainName   *string     `json:"chainName"`
	Amount      *FlexString `json:"amount"`
	Symbol      *string     `json:"symbol"`
}

// PurchaseRequest is the body clients post after completing an external payment.
type PurchaseRequest struct {
	Wallet    string     `json:"wallet"`
	ProductID string     `json:"productId"`
	TxHash    string     `json:"txHash"`
	ChainID   any        `json:"chainId"`
	ChainName string     `json:"chainName"`
	Amount    FlexString `json:"amount"`
	Symbol    string     `json:"symbol"`
}

// DecodePurchaseRequest parses a request body, keeping numeric chain ids as
// their literal instead of float64.
func DecodePurchaseRequest(body []byte) (*PurchaseRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var req PurchaseRequest
	if err := dec.Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// NewPurchase builds the record for an already validated request.
func NewPurchase(req *PurchaseRequest, now time.Time) *Purchase {
	return &Purchase{
		Wallet:      NormalizeWallet(req.Wallet),
		ProductID:   req.ProductID,
		PurchasedAt: now.UnixMilli(),
		TxHash:      optString(req.TxHash),
		ChainID:     optChainID(req.ChainID),
		ChainName:   optString(req.ChainName),
		Amount:      req.Amount.ptr(),
		Symbol:      optString(req.Symbol),
	}
}

// NormalizeWallet lowercases a wallet identifier with full Unicode case mapping.
// A Caser is stateful, so one is built per call.
func NormalizeWallet(wallet string) string {
	return cases.Lower(language.Und).String(wallet)
}

// PurchaseKey is the record key for a (wallet, product) pair. wallet must already be normalized.
func PurchaseKey(wallet, productID string) string {
	return fmt.Sprintf("purchase:%s:%s", wallet, productID)
}

// UserPurchasesKey is the membership set key for a wallet.
func UserPurchasesKey(wallet string) string {
	return fmt.Sprintf("user:%s:purchases", wallet)
}

// PurchaseKeyPrefix prefixes every record key.
const PurchaseKeyPrefix = "purchase:"

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// optChainID drops the falsy values a JS client would have coerced to null.
func optChainID(v any) any {
	switch id := v.(type) {
	case nil:
		return nil
	case string:
		if id == "" {
			return nil
		}
	case json.Number:
		if f, err := id.Float64(); err == nil && f == 0 {
			return nil
		}
	case float64:
		if id == 0 {
			return nil
		}
	case bool:
		if !id {
			return nil
		}
	}
	return v
}

// FlexString accepts either a JSON string or a JSON number and keeps the literal text.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	if v, err := n.Float64(); err == nil && v == 0 {
		*f = ""
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) ptr() *FlexString {
	if f == "" {
		return nil
	}
	return &f
}

// ChainKey renders a chain id as a lowercase string for dispatch.
func ChainKey(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(id))
	case json.Number:
		return id.String()
	default:
		return strings.ToLower(fmt.Sprint(id))
	}
}
