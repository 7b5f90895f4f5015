package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pixel-asset-store/models"

	"github.com/shopspring/decimal"
)

// BitcoinVerifier checks manually submitted transaction ids against an
// Esplora-compatible REST API (blockstream.info, mempool.space).
type BitcoinVerifier struct {
	APIURL string
	// Payee is the address the outputs must pay. Empty skips the output check.
	Payee  string
	Client *http.Client
}

func NewBitcoinVerifier(apiURL, payee string, client *http.Client) *BitcoinVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &BitcoinVerifier{APIURL: strings.TrimRight(apiURL, "/"), Payee: payee, Client: client}
}

type esploraTx struct {
	TxID string `json:"txid"`
	Vout []struct {
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               int64  `json:"value"` // satoshis
	} `json:"vout"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
	} `json:"status"`
}

func (v *BitcoinVerifier) Verify(ctx context.Context, req *models.PurchaseRequest) error {
	txid := strings.ToLower(strings.TrimSpace(req.TxHash))
	if raw, err := hex.DecodeString(txid); err != nil || len(raw) != 32 {
		return fmt.Errorf("%w: malformed bitcoin txid", ErrPaymentNotVerified)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, v.APIURL+"/tx/"+txid, nil)
	if err != nil {
		return fmt.Errorf("bitcoin: build request: %w", err)
	}
	resp, err := v.Client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("bitcoin: API call failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: transaction %s not found", ErrPaymentNotVerified, txid)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("bitcoin: API returned status %d: %s", resp.StatusCode, string(msg))
	}

	var tx esploraTx
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return fmt.Errorf("bitcoin: decode response: %w", err)
	}
	if !tx.Status.Confirmed {
		return fmt.Errorf("%w: transaction %s is not confirmed yet", ErrPaymentNotVerified, txid)
	}

	if v.Payee == "" {
		return nil
	}

	var paid int64
	for _, out := range tx.Vout {
		if out.ScriptPubKeyAddress == v.Payee {
			paid += out.Value
		}
	}
	want, err := baseUnits(req.Amount, 8)
	if err != nil {
		return err
	}
	if paid <= 0 || decimal.NewFromInt(paid).LessThan(want) {
		return fmt.Errorf("%w: paid %d sats to %s, claimed %s", ErrPaymentNotVerified, paid, v.Payee, want)
	}
	return nil
}
