package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pixel-asset-store/models"

	"github.com/shopspring/decimal"
)

// ErrPaymentNotVerified means the payment rail was consulted and the claim did
// not hold up (unknown tx, failed tx, wrong payee, short amount...).
// Any other error from a verifier means the rail could not be consulted.
var ErrPaymentNotVerified = errors.New("payment not verified")

// PaymentVerifier checks a claimed payment before it is recorded.
// It receives the request as posted; wallet casing is untouched because
// base58 addresses are case sensitive.
type PaymentVerifier interface {
	Verify(ctx context.Context, req *models.PurchaseRequest) error
}

// VerifierFunc adapts a function to PaymentVerifier.
type VerifierFunc func(ctx context.Context, req *models.PurchaseRequest) error

func (f VerifierFunc) Verify(ctx context.Context, req *models.PurchaseRequest) error {
	return f(ctx, req)
}

// TrustingVerifier accepts every claim. It keeps the storefront's historical
// behaviour: the client-reported tx reference is taken at face value.
type TrustingVerifier struct{}

func (TrustingVerifier) Verify(context.Context, *models.PurchaseRequest) error { return nil }

// Chain keys understood by ChainRouter besides numeric EVM chain ids.
const (
	ChainSolana  = "solana"
	ChainBitcoin = "bitcoin"
	ChainPayPal  = "paypal"
)

// ChainRouter picks a verifier from the request's chain id.
//
//	"solana"         -> Solana
//	"bitcoin"        -> Bitcoin
//	"paypal"         -> PayPal
//	1, "137", "0x89" -> EVM, keyed by decimal chain id
//
// A nil rail, an unknown chain or a missing tx reference is rejected.
type ChainRouter struct {
	Solana  PaymentVerifier
	Bitcoin PaymentVerifier
	PayPal  PaymentVerifier
	EVM     *EVMVerifier
}

func (r *ChainRouter) Verify(ctx context.Context, req *models.PurchaseRequest) error {
	if strings.TrimSpace(req.TxHash) == "" {
		return fmt.Errorf("%w: missing transaction reference", ErrPaymentNotVerified)
	}

	chain := models.ChainKey(req.ChainID)
	var v PaymentVerifier
	switch chain {
	case ChainSolana:
		v = r.Solana
	case ChainBitcoin:
		v = r.Bitcoin
	case ChainPayPal:
		v = r.PayPal
	default:
		if id, ok := evmChainID(chain); ok && r.EVM != nil && r.EVM.Supports(id) {
			return r.EVM.VerifyChain(ctx, id, req)
		}
	}
	if v == nil {
		return fmt.Errorf("%w: unsupported chain %q", ErrPaymentNotVerified, chain)
	}
	return v.Verify(ctx, req)
}

// evmChainID parses a decimal or 0x-prefixed chain id into its decimal form.
func evmChainID(chain string) (string, bool) {
	if chain == "" {
		return "", false
	}
	base := 10
	digits := chain
	if strings.HasPrefix(chain, "0x") {
		base, digits = 16, chain[2:]
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil || n == 0 {
		return "", false
	}
	return strconv.FormatUint(n, 10), true
}

// baseUnits converts a claimed decimal amount ("0.0012") into the chain's
// smallest unit. An empty claim yields zero, meaning "any amount".
func baseUnits(amount models.FlexString, decimals int32) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(amount))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrPaymentNotVerified, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative amount %q", ErrPaymentNotVerified, s)
	}
	return d.Shift(decimals).Floor(), nil
}
