// internal/chain/client.go
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// portfolioABI covers the three contract entry points the daemon uses.
const portfolioABI = `[
	{"name":"getAllocations","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"categories","type":"string[]"},{"name":"percentages","type":"uint256[]"}]},
	{"name":"updateAllocations","type":"function","stateMutability":"nonpayable","inputs":[{"name":"categories","type":"string[]"},{"name":"percentages","type":"uint256[]"}],"outputs":[]},
	{"name":"owner","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// Client talks to the portfolio allocation contract.
type Client struct {
	backend  Backend
	contract common.Address
	signer   Signer
	abi      abi.ABI
	cfg      Config
	logger   *zap.Logger
}

// NewClient builds a contract client. The signer may be nil for read-only use.
func NewClient(backend Backend, contract common.Address, signer Signer, cfg Config, logger *zap.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(portfolioABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.ConfirmationTime <= 0 {
		cfg.ConfirmationTime = DefaultConfig().ConfirmationTime
	}
	if cfg.MaxSendTime <= 0 {
		cfg.MaxSendTime = DefaultConfig().MaxSendTime
	}
	return &Client{
		backend:  backend,
		contract: contract,
		signer:   signer,
		abi:      parsed,
		cfg:      cfg,
		logger:   logger.Named("chain"),
	}, nil
}

// GetAllocations reads the current category/percentage pairs from the contract.
func (c *Client) GetAllocations(ctx context.Context) ([]string, []int64, error) {
	data, err := c.abi.Pack("getAllocations")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pack getAllocations call: %w", err)
	}

	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("getAllocations call failed: %w", err)
	}

	values, err := c.abi.Unpack("getAllocations", out)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to unpack getAllocations result: %w", err)
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("unexpected getAllocations result arity: %d", len(values))
	}

	categories, ok := values[0].([]string)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected categories type %T", values[0])
	}
	rawPcts, ok := values[1].([]*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected percentages type %T", values[1])
	}
	if len(categories) != len(rawPcts) {
		return nil, nil, fmt.Errorf("categories/percentages length mismatch: %d vs %d", len(categories), len(rawPcts))
	}

	percentages := make([]int64, len(rawPcts))
	for i, p := range rawPcts {
		percentages[i] = p.Int64()
	}

	c.logger.Debug("Read allocations from contract",
		zap.Int("categories", len(categories)))
	return categories, percentages, nil
}

// Owner returns the contract owner address.
func (c *Client) Owner(ctx context.Context) (common.Address, error) {
	data, err := c.abi.Pack("owner")
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack owner call: %w", err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("owner call failed: %w", err)
	}
	values, err := c.abi.Unpack("owner", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack owner result: %w", err)
	}
	owner, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected owner type %T", values[0])
	}
	return owner, nil
}

// CheckOwnership verifies the signer address is the contract owner.
func (c *Client) CheckOwnership(ctx context.Context) error {
	if c.signer == nil {
		return fmt.Errorf("no signer configured")
	}
	owner, err := c.Owner(ctx)
	if err != nil {
		return err
	}
	if owner != c.signer.From() {
		c.logger.Warn("Signer is not the contract owner",
			zap.String("signer", c.signer.From().Hex()),
			zap.String("owner", owner.Hex()))
		return ErrNotOwner
	}
	return nil
}

// UpdateAllocations writes the full allocation set to the contract and returns
// the transaction hash. Broadcasting retries transient RPC errors with
// exponential backoff; signing refusals and encoding errors are permanent.
func (c *Client) UpdateAllocations(ctx context.Context, categories []string, percentages []int64) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("no signer configured")
	}
	if len(categories) != len(percentages) {
		return "", fmt.Errorf("categories/percentages length mismatch: %d vs %d", len(categories), len(percentages))
	}

	pcts := make([]*big.Int, len(percentages))
	for i, p := range percentages {
		pcts[i] = big.NewInt(p)
	}
	data, err := c.abi.Pack("updateAllocations", categories, pcts)
	if err != nil {
		return "", fmt.Errorf("failed to pack updateAllocations call: %w", err)
	}

	from := c.signer.From()

	operation := func() (string, error) {
		chainID, err := c.backend.ChainID(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get chain ID: %w", err)
		}
		nonce, err := c.backend.PendingNonceAt(ctx, from)
		if err != nil {
			return "", fmt.Errorf("failed to get nonce: %w", err)
		}
		gasPrice, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get gas price: %w", err)
		}

		// Estimate first so reverts surface before broadcast, then send
		// with the configured limit.
		gasLimit := c.cfg.GasLimit
		estimated, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
			From: from,
			To:   &c.contract,
			Data: data,
		})
		if err != nil {
			return "", backoff.Permanent(fmt.Errorf("gas estimation failed: %w", err))
		}
		if gasLimit == 0 || estimated > gasLimit {
			gasLimit = estimated
		}

		tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), gasLimit, gasPrice, data)
		signed, err := c.signer.SignTx(tx, chainID)
		if err != nil {
			return "", backoff.Permanent(fmt.Errorf("failed to sign transaction: %w", err))
		}

		if err := c.backend.SendTransaction(ctx, signed); err != nil {
			return "", fmt.Errorf("failed to broadcast transaction: %w", err)
		}
		return signed.Hash().Hex(), nil
	}

	hash, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.cfg.MaxSendTime))
	if err != nil {
		return "", err
	}

	c.logger.Info("Broadcast allocation update",
		zap.String("tx_hash", hash),
		zap.Int("categories", len(categories)))
	return hash, nil
}
