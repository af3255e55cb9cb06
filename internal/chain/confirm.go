// internal/chain/confirm.go
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Monitor polls for transaction receipts until confirmation or timeout.
type Monitor struct {
	backend Backend
	logger  *zap.Logger
	cfg     Config
}

func NewMonitor(backend Backend, logger *zap.Logger, cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.ConfirmationTime <= 0 {
		cfg.ConfirmationTime = DefaultConfig().ConfirmationTime
	}
	return &Monitor{
		backend: backend,
		logger:  logger.Named("tx-monitor"),
		cfg:     cfg,
	}
}

// GetTransactionStatus reports the current state of a transaction without
// waiting.
func (m *Monitor) GetTransactionStatus(ctx context.Context, hash common.Hash) (*Status, error) {
	receipt, err := m.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return &Status{
				Hash:      hash.Hex(),
				State:     "pending",
				Timestamp: time.Now(),
			}, nil
		}
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	status := &Status{
		Hash:        hash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Timestamp:   time.Now(),
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		status.State = "confirmed"
	} else {
		status.State = "failed"
		status.Error = ErrReverted.Error()
	}
	return status, nil
}

// AwaitConfirmation blocks until the transaction is mined, the confirmation
// window elapses, or the context is cancelled. A mined-but-reverted
// transaction returns ErrReverted.
func (m *Monitor) AwaitConfirmation(ctx context.Context, hash string) error {
	txHash := common.HexToHash(hash)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	deadline := time.After(m.cfg.ConfirmationTime)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			m.logger.Warn("Transaction confirmation timed out",
				zap.String("tx_hash", hash),
				zap.Duration("window", m.cfg.ConfirmationTime))
			return ErrConfirmationTimeout
		case <-ticker.C:
			receipt, err := m.backend.TransactionReceipt(ctx, txHash)
			if err != nil {
				if !errors.Is(err, ethereum.NotFound) {
					m.logger.Warn("Receipt check failed", zap.Error(err))
				}
				continue
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				m.logger.Error("Transaction reverted",
					zap.String("tx_hash", hash),
					zap.Uint64("block", receipt.BlockNumber.Uint64()))
				return ErrReverted
			}
			m.logger.Info("Transaction confirmed",
				zap.String("tx_hash", hash),
				zap.Uint64("block", receipt.BlockNumber.Uint64()),
				zap.Uint64("gas_used", receipt.GasUsed))
			return nil
		}
	}
}
