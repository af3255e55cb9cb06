// internal/chain/pool.go
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const healthCheckTimeout = 5 * time.Second

// BackendPool rotates requests across several RPC endpoints. It satisfies
// Backend, so it can stand in wherever a single endpoint would.
type BackendPool struct {
	mu      sync.Mutex
	clients []*ethclient.Client
	index   int
	logger  *zap.Logger
}

// NewBackendPool dials every URL in the list. Endpoints that fail to dial are
// skipped with a warning; at least one must succeed.
func NewBackendPool(urls []string, logger *zap.Logger) (*BackendPool, error) {
	log := logger.Named("rpc-pool")

	var clients []*ethclient.Client
	for _, url := range urls {
		client, err := ethclient.Dial(url)
		if err != nil {
			log.Warn("Skipping unreachable RPC endpoint", zap.String("url", url), zap.Error(err))
			continue
		}
		clients = append(clients, client)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no reachable RPC endpoints out of %d", len(urls))
	}

	log.Info("RPC pool ready", zap.Int("endpoints", len(clients)))
	return &BackendPool{clients: clients, logger: log}, nil
}

func (p *BackendPool) next() *ethclient.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	client := p.clients[p.index]
	p.index = (p.index + 1) % len(p.clients)
	return client
}

// PerformHealthChecks drops endpoints that stop answering. The last endpoint
// is kept even when unhealthy so the pool never goes empty.
func (p *BackendPool) PerformHealthChecks() {
	p.mu.Lock()
	defer p.mu.Unlock()

	healthy := make([]bool, len(p.clients))
	alive := 0
	for i, client := range p.clients {
		if p.healthy(client) {
			healthy[i] = true
			alive++
		}
	}
	if alive == 0 || alive == len(p.clients) {
		return
	}

	kept := p.clients[:0]
	for i, client := range p.clients {
		if healthy[i] {
			kept = append(kept, client)
			continue
		}
		p.logger.Warn("Dropping unhealthy RPC endpoint", zap.Int("endpoint", i))
		client.Close()
	}
	p.clients = kept
	p.index %= len(p.clients)
}

func (p *BackendPool) healthy(client *ethclient.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	_, err := client.ChainID(ctx)
	return err == nil
}

// Close releases every endpoint connection.
func (p *BackendPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, client := range p.clients {
		client.Close()
	}
	p.clients = nil
}

func (p *BackendPool) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return p.next().CallContract(ctx, call, blockNumber)
}

func (p *BackendPool) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return p.next().EstimateGas(ctx, call)
}

func (p *BackendPool) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return p.next().PendingNonceAt(ctx, account)
}

func (p *BackendPool) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return p.next().SuggestGasPrice(ctx)
}

func (p *BackendPool) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return p.next().SendTransaction(ctx, tx)
}

func (p *BackendPool) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return p.next().TransactionReceipt(ctx, txHash)
}

func (p *BackendPool) ChainID(ctx context.Context) (*big.Int, error) {
	return p.next().ChainID(ctx)
}
