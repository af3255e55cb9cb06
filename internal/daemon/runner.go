// internal/daemon/runner.go
package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/monofi/monofid/internal/advisor"
	"github.com/monofi/monofid/internal/allocation"
	"github.com/monofi/monofid/internal/chain"
	"github.com/monofi/monofid/internal/config"
	"github.com/monofi/monofid/internal/events"
	"github.com/monofi/monofid/internal/explorer"
	"github.com/monofi/monofid/internal/export"
	"github.com/monofi/monofid/internal/portfolio"
	"github.com/monofi/monofid/internal/prices"
	"github.com/monofi/monofid/internal/server"
	"github.com/monofi/monofid/internal/storage"
	"github.com/monofi/monofid/internal/storage/models"
	"github.com/monofi/monofid/internal/storage/postgres"
	"github.com/monofi/monofid/internal/wallet"
	"github.com/monofi/monofid/internal/whales"
)

// defaultSymbols are the tokens the price feed tracks out of the box.
var defaultSymbols = []string{"eth", "btc", "sol", "link", "uni", "aave"}

const nativeCoinID = "ethereum"

// Runner wires every component of the daemon together and owns their
// lifecycles.
type Runner struct {
	logger   *zap.Logger
	config   *config.Config
	bus      *events.Bus
	store    storage.Storage // nil when postgres is not configured
	service  *portfolio.Service
	feed     *prices.Feed
	tracker  *whales.Tracker
	server   *server.Server
	advisor  *advisor.Client
	explorer *explorer.Client
	backend  *chain.BackendPool
	audit    *portfolio.CSVAuditSink
	subs     []events.Subscription

	shutdownCh chan os.Signal
}

func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	wallets, err := wallet.LoadWallets(cfg.WalletsFile)
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}
	var signer *wallet.Wallet
	for _, w := range wallets {
		signer = w
		break
	}
	if signer == nil {
		return nil, fmt.Errorf("no wallets in %s", cfg.WalletsFile)
	}

	backend, err := chain.NewBackendPool(cfg.RPCURLs(), logger)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	chainCfg := chain.Config{ConfirmationTime: cfg.ConfirmTimeout}
	chainClient, err := chain.NewClient(backend, common.HexToAddress(cfg.ContractAddress), signer, chainCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("chain client: %w", err)
	}
	monitor := chain.NewMonitor(backend, logger, chainCfg)

	bus := events.NewBus(logger, 64)

	var store storage.Storage
	if cfg.PostgresURL != "" {
		store, err = postgres.NewStorage(cfg.PostgresURL, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := store.RunMigrations(); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	catalog, err := allocation.LoadCatalog(cfg.CategoriesFile, logger)
	if err != nil {
		logger.Warn("Falling back to built-in category catalog", zap.Error(err))
		catalog = allocation.DefaultSet()
	}

	audit, err := portfolio.NewCSVAuditSink(filepath.Join(cfg.ExportDir, "submissions_audit.csv"), logger)
	if err != nil {
		return nil, fmt.Errorf("audit sink: %w", err)
	}

	sink := allocation.RecordSink(audit)
	if store != nil {
		sink = portfolio.MultiSink(portfolio.NewStorageSink(store, signer.From().Hex()), audit)
	}

	service := portfolio.NewService(portfolio.Config{
		Reader:         chainClient,
		Writer:         chainClient,
		Waiter:         monitor,
		Sink:           sink,
		Bus:            bus,
		Catalog:        catalog,
		RefreshDelay:   cfg.RefreshInterval(),
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})

	explorerClient := explorer.NewClient(cfg.ExplorerURL, cfg.ExplorerAPIKey, logger)
	priceClient := prices.NewClient(cfg.PriceAPIURL, logger)
	feed := prices.NewFeed(priceClient, bus, defaultSymbols, cfg.PriceInterval(), logger)

	tracker := whales.NewTracker(whales.Config{
		Explorer:   explorerClient,
		Prices:     priceClient,
		Bus:        bus,
		Logger:     logger,
		Interval:   cfg.WhaleInterval(),
		NativeCoin: nativeCoinID,
	})

	advisorClient := advisor.NewClient(cfg.AdvisorAPIKey, cfg.AdvisorModel, logger)

	srv := server.New(server.Config{
		Port:      listenPort(cfg.ListenAddr),
		Portfolio: service,
		Whales:    tracker,
		Prices:    feed,
		Advisor:   advisorClient,
		Explorer:  explorerClient,
		Exporter:  export.NewSubmissionExporter(logger),
		Bus:       bus,
		Logger:    logger,
	})

	return &Runner{
		logger:     logger.Named("daemon"),
		config:     cfg,
		bus:        bus,
		store:      store,
		service:    service,
		feed:       feed,
		tracker:    tracker,
		server:     srv,
		advisor:    advisorClient,
		explorer:   explorerClient,
		backend:    backend,
		audit:      audit,
		shutdownCh: make(chan os.Signal, 1),
	}, nil
}

// Run starts every component and blocks until the context is cancelled or a
// termination signal arrives.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case sig := <-r.shutdownCh:
			r.logger.Info("Signal received", zap.String("signal", sig.String()))
			cancel()
		case <-runCtx.Done():
		}
	}()

	if r.store != nil {
		r.persistMarketEvents()
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { r.service.Start(); return nil })
	g.Go(func() error { r.feed.Start(); return nil })
	g.Go(func() error { r.tracker.Start(); return nil })
	g.Go(func() error {
		if err := r.server.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.backend.PerformHealthChecks()
			case <-gctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		r.shutdown()
		return nil
	})

	r.logger.Info("Daemon started",
		zap.String("listen", r.config.ListenAddr),
		zap.Bool("storage", r.store != nil),
		zap.Bool("advisor", r.advisor.Available()))

	return g.Wait()
}

// persistMarketEvents subscribes the storage layer to whale and price events
// so the dashboard keeps history across restarts.
func (r *Runner) persistMarketEvents() {
	whaleSub := r.bus.SubscribeFunc(events.WhaleDetected, func(ctx context.Context, e events.Event) error {
		detected, ok := e.(*events.WhaleDetectedEvent)
		if !ok {
			return nil
		}
		return r.store.SaveWhaleSighting(ctx, &models.WhaleSighting{
			TxHash:      detected.Hash,
			FromAddress: detected.From,
			ToAddress:   detected.To,
			ValueUSD:    detected.ValueUSD,
			Size:        detected.Size,
			ObservedAt:  detected.Timestamp(),
		})
	})

	priceSub := r.bus.SubscribeFunc(events.PriceUpdated, func(ctx context.Context, e events.Event) error {
		updated, ok := e.(*events.PriceUpdatedEvent)
		if !ok {
			return nil
		}
		return r.store.SavePriceSample(ctx, &models.PriceSample{
			Symbol:    updated.Symbol,
			PriceUSD:  updated.PriceUSD,
			Change24h: updated.Change24hPct,
			SampledAt: updated.Timestamp(),
		})
	})

	r.subs = append(r.subs, whaleSub, priceSub)
}

func (r *Runner) shutdown() {
	r.logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.server.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("HTTP server shutdown failed", zap.Error(err))
	}

	r.tracker.Stop()
	r.feed.Stop()
	r.service.Stop()

	for _, sub := range r.subs {
		sub.Unsubscribe()
	}
	if err := r.bus.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("Event bus shutdown failed", zap.Error(err))
	}

	if err := r.audit.Close(); err != nil {
		r.logger.Warn("Audit sink close failed", zap.Error(err))
	}

	r.backend.Close()
	r.logger.Info("Shutdown complete")
}

func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 8084
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return 8084
	}
	return port
}
