package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"pixel-asset-store/models"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

const solMethodGetTransaction = "getTransaction"

// SolanaVerifier looks a transaction signature up over Solana JSON-RPC.
type SolanaVerifier struct {
	RPCURL string
	// Payee is the base58 address that must receive the claimed lamports.
	// Empty means only the transaction's success is checked.
	Payee  string
	Client *http.Client
}

func NewSolanaVerifier(rpcURL, payee string, client *http.Client) *SolanaVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &SolanaVerifier{RPCURL: rpcURL, Payee: payee, Client: client}
}

type solRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type solRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type solTransaction struct {
	Meta *struct {
		Err          json.RawMessage `json:"err"`
		PreBalances  []uint64        `json:"preBalances"`
		PostBalances []uint64        `json:"postBalances"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []struct {
				Pubkey string `json:"pubkey"`
			} `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

func (v *SolanaVerifier) Verify(ctx context.Context, req *models.PurchaseRequest) error {
	sig, err := base58.Decode(req.TxHash)
	if err != nil || len(sig) != 64 {
		return fmt.Errorf("%w: malformed Solana signature", ErrPaymentNotVerified)
	}

	tx, err := v.getTransaction(ctx, req.TxHash)
	if err != nil {
		return err
	}
	if tx == nil || tx.Meta == nil {
		return fmt.Errorf("%w: signature %s not found", ErrPaymentNotVerified, req.TxHash)
	}
	if len(tx.Meta.Err) > 0 && string(tx.Meta.Err) != "null" {
		return fmt.Errorf("%w: transaction %s failed: %s", ErrPaymentNotVerified, req.TxHash, tx.Meta.Err)
	}

	if v.Payee == "" {
		return nil
	}

	idx := -1
	for i, k := range tx.Transaction.Message.AccountKeys {
		if k.Pubkey == v.Payee {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(tx.Meta.PreBalances) || idx >= len(tx.Meta.PostBalances) {
		return fmt.Errorf("%w: transaction %s did not touch %s", ErrPaymentNotVerified, req.TxHash, v.Payee)
	}

	received := lamports(tx.Meta.PostBalances[idx]).Sub(lamports(tx.Meta.PreBalances[idx]))
	want, err := baseUnits(req.Amount, 9)
	if err != nil {
		return err
	}
	if !received.IsPositive() || received.LessThan(want) {
		return fmt.Errorf("%w: received %s lamports, claimed %s", ErrPaymentNotVerified, received, want)
	}
	return nil
}

func (v *SolanaVerifier) getTransaction(ctx context.Context, signature string) (*solTransaction, error) {
	body, err := json.Marshal(solRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  solMethodGetTransaction,
		Params: []any{signature, map[string]any{
			"encoding":                       "jsonParsed",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		}},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.RPCURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("solana: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("solana: RPC call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("solana: RPC returned status %d: %s", resp.StatusCode, string(msg))
	}

	var out struct {
		Result *solTransaction `json:"result"`
		Error  *solRPCError    `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("solana: decode response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("solana: RPC error %d: %s", out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}

func lamports(n uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)
}
