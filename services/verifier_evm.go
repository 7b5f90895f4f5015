package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pixel-asset-store/models"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// EVMChainReader is the part of ethclient.Client the verifier needs.
type EVMChainReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

// EVMVerifier checks native-coin payments on any EVM chain it has an RPC
// endpoint for. Clients are dialled lazily and kept for the process lifetime.
type EVMVerifier struct {
	payee *common.Address

	mu      sync.Mutex
	urls    map[string]string
	clients map[string]EVMChainReader
	dial    func(ctx context.Context, url string) (EVMChainReader, error)
}

// NewEVMVerifier takes chain id (decimal) -> RPC URL. payee may be empty, in
// which case only the receipt status is checked.
func NewEVMVerifier(rpcURLs map[string]string, payee string) (*EVMVerifier, error) {
	v := &EVMVerifier{
		urls:    make(map[string]string, len(rpcURLs)),
		clients: make(map[string]EVMChainReader),
		dial: func(ctx context.Context, url string) (EVMChainReader, error) {
			return ethclient.DialContext(ctx, url)
		},
	}
	for id, url := range rpcURLs {
		v.urls[id] = url
	}
	if payee != "" {
		if !common.IsHexAddress(payee) {
			return nil, fmt.Errorf("invalid EVM payee address %q", payee)
		}
		addr := common.HexToAddress(payee)
		v.payee = &addr
	}
	return v, nil
}

// UseClient registers a ready client for chainID, replacing any URL.
func (v *EVMVerifier) UseClient(chainID string, c EVMChainReader) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clients[chainID] = c
}

// Supports reports whether chainID (decimal) can be verified.
func (v *EVMVerifier) Supports(chainID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, hasClient := v.clients[chainID]
	_, hasURL := v.urls[chainID]
	return hasClient || hasURL
}

func (v *EVMVerifier) client(ctx context.Context, chainID string) (EVMChainReader, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if c, ok := v.clients[chainID]; ok {
		return c, nil
	}
	url, ok := v.urls[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: no RPC endpoint for chain %s", ErrPaymentNotVerified, chainID)
	}
	c, err := v.dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial chain %s: %w", chainID, err)
	}
	v.clients[chainID] = c
	return c, nil
}

// VerifyChain checks that req.TxHash succeeded on chainID and, when a payee is
// configured, that it paid the payee at least the claimed amount of ether.
func (v *EVMVerifier) VerifyChain(ctx context.Context, chainID string, req *models.PurchaseRequest) error {
	raw, err := hexutil.Decode(req.TxHash)
	if err != nil || len(raw) != common.HashLength {
		return fmt.Errorf("%w: malformed transaction hash", ErrPaymentNotVerified)
	}
	hash := common.BytesToHash(raw)

	c, err := v.client(ctx, chainID)
	if err != nil {
		return err
	}

	receipt, err := c.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return fmt.Errorf("%w: transaction %s not found on chain %s", ErrPaymentNotVerified, hash.Hex(), chainID)
	}
	if err != nil {
		return fmt.Errorf("chain %s receipt: %w", chainID, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: transaction %s reverted", ErrPaymentNotVerified, hash.Hex())
	}

	if v.payee == nil {
		return nil
	}

	tx, _, err := c.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return fmt.Errorf("%w: transaction %s not found on chain %s", ErrPaymentNotVerified, hash.Hex(), chainID)
	}
	if err != nil {
		return fmt.Errorf("chain %s transaction: %w", chainID, err)
	}
	if tx.To() == nil || *tx.To() != *v.payee {
		return fmt.Errorf("%w: transaction %s did not pay %s", ErrPaymentNotVerified, hash.Hex(), v.payee.Hex())
	}

	want, err := baseUnits(req.Amount, 18)
	if err != nil {
		return err
	}
	if decimal.NewFromBigInt(tx.Value(), 0).LessThan(want) {
		return fmt.Errorf("%w: paid %s wei, claimed %s", ErrPaymentNotVerified, tx.Value(), want)
	}
	return nil
}
