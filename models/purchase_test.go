package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPurchaseNullsFalsyFields(t *testing.T) {
	req, err := DecodePurchaseRequest([]byte(`{"wallet":"0xAAA","productId":"red-ghost-specter","txHash":"","chainId":0,"amount":0,"symbol":""}`))
	require.NoError(t, err)

	now := time.UnixMilli(1700000000123)
	raw, err := json.Marshal(NewPurchase(req, now))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"wallet":"0xaaa","productId":"red-ghost-specter","purchasedAt":1700000000123,
		"txHash":null,"chainId":null,"chainName":null,"amount":null,"symbol":null
	}`, string(raw))
}

func TestNewPurchaseKeepsValues(t *testing.T) {
	req, err := DecodePurchaseRequest([]byte(`{"wallet":"bitcoin","productId":"p","txHash":"abc","chainId":"solana","chainName":"Solana","amount":"0","symbol":"SOL"}`))
	require.NoError(t, err)

	raw, err := json.Marshal(NewPurchase(req, time.UnixMilli(1)))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"wallet":"bitcoin","productId":"p","purchasedAt":1,
		"txHash":"abc","chainId":"solana","chainName":"Solana","amount":"0","symbol":"SOL"
	}`, string(raw))
}

func TestFlexString(t *testing.T) {
	tests := map[string]FlexString{
		`"0.25"`: "0.25",
		`0.25`:   "0.25",
		`12`:     "12",
		`0`:      "",
		`null`:   "",
		`"0"`:    "0",
	}
	for in, want := range tests {
		var f FlexString
		require.NoError(t, json.Unmarshal([]byte(in), &f), in)
		assert.Equal(t, want, f, in)
	}

	var f FlexString
	assert.Error(t, json.Unmarshal([]byte(`{"v":1}`), &f))
}

func TestNumericChainIDIsKeptVerbatim(t *testing.T) {
	req, err := DecodePurchaseRequest([]byte(`{"chainId":8453}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("8453"), req.ChainID)
	assert.Equal(t, "8453", ChainKey(req.ChainID))
}

func TestKeys(t *testing.T) {
	w := NormalizeWallet("0xAbC")
	assert.Equal(t, "0xabc", w)
	assert.Equal(t, "purchase:0xabc:red-ghost-specter", PurchaseKey(w, "red-ghost-specter"))
	assert.Equal(t, "user:0xabc:purchases", UserPurchasesKey(w))
	assert.Equal(t, "ädam.sol", NormalizeWallet("ÄDAM.sol"))
}

func TestChainKey(t *testing.T) {
	assert.Equal(t, "", ChainKey(nil))
	assert.Equal(t, "solana", ChainKey(" Solana "))
	assert.Equal(t, "0x89", ChainKey("0X89"))
	assert.Equal(t, "137", ChainKey(json.Number("137")))
	assert.Equal(t, "true", ChainKey(true))
}
