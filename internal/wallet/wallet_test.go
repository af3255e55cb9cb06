// internal/wallet/wallet_test.go
package wallet

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known test vector: key 0x..01 derives this address.
const (
	testKeyHex  = "0000000000000000000000000000000000000000000000000000000000000001"
	testKeyAddr = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
)

func TestNewWalletDerivesAddress(t *testing.T) {
	w, err := NewWallet(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testKeyAddr), w.From())

	prefixed, err := NewWallet("0x" + testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, w.Address, prefixed.Address)
}

func TestNewWalletRejectsBadKey(t *testing.T) {
	_, err := NewWallet("not-a-key")
	assert.Error(t, err)
}

func TestLoadWallets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.csv")
	body := "Name,PrivateKeyHex\n" +
		"main," + testKeyHex + "\n" +
		"broken,zzzz\n" +
		"short-row\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	wallets, err := LoadWallets(path)
	require.NoError(t, err)

	// Malformed rows are skipped, not fatal.
	require.Len(t, wallets, 1)
	require.Contains(t, wallets, "main")
	assert.Equal(t, common.HexToAddress(testKeyAddr), wallets["main"].From())
}

func TestLoadWalletsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name,PrivateKeyHex\n"), 0o600))

	_, err := LoadWallets(path)
	assert.Error(t, err)
}

func TestSignTx(t *testing.T) {
	w, err := NewWallet(testKeyHex)
	require.NoError(t, err)

	chainID := big.NewInt(1)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &common.Address{},
		Value:    big.NewInt(0),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})

	signed, err := w.SignTx(tx, chainID)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, w.From(), from)
}
