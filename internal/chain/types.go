// internal/chain/types.go
package chain

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")
	ErrNotOwner            = errors.New("wallet is not the contract owner")
	ErrReverted            = errors.New("transaction reverted on chain")
)

// Config tunes transaction submission and confirmation polling.
type Config struct {
	GasLimit         uint64 // 0 means estimate
	MaxSendTime      time.Duration
	ConfirmationTime time.Duration
	PollInterval     time.Duration
}

// DefaultConfig mirrors the gas-limit guard the web client used.
func DefaultConfig() Config {
	return Config{
		GasLimit:         300_000,
		MaxSendTime:      15 * time.Second,
		ConfirmationTime: 2 * time.Minute,
		PollInterval:     500 * time.Millisecond,
	}
}

// Backend is the subset of ethclient.Client the package depends on.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Signer signs transactions for a single address. A remote signer may refuse,
// in which case the returned error carries the provider's decline message.
type Signer interface {
	From() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Status describes a submitted transaction at a point in time.
type Status struct {
	Hash        string
	State       string // "pending", "confirmed", "failed"
	BlockNumber uint64
	GasUsed     uint64
	Error       string
	Timestamp   time.Time
}
