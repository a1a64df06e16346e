package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ammPool/internal/access"
	"ammPool/internal/amm"
	"ammPool/internal/asset"
	"ammPool/internal/chain"
	"ammPool/internal/config"
	"ammPool/internal/dex"
	"ammPool/internal/events"
	"ammPool/internal/metrics"
	"ammPool/internal/storage"
	"ammPool/internal/storage/memory"
	"ammPool/internal/storage/postgres"
	"ammPool/internal/storage/redis"
	"ammPool/internal/upgrade"
)

// Default custody and chain id for the in-process ledger; 31337 is the local dev chain id.
var (
	defaultCustody = common.HexToAddress("0x0000000000000000000000000000000000001000")
	devChainID     = big.NewInt(31337)
)

// app wires the store, ledger and components for one command invocation.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    storage.Store
	ledger   asset.Ledger
	chain    *chain.Client
	events   *events.Log
	history  *storage.JsonlStorage
	registry *prometheus.Registry
	access   *access.Control
	engine   *amm.Engine
	gate     *upgrade.Gate
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = store

	custody := defaultCustody
	chainID := devChainID
	switch cfg.Ledger {
	case config.LedgerERC20:
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		a.chain = client
		chainID, err = client.GetChainID(ctx)
		if err != nil {
			a.close()
			return nil, err
		}
		ledger, err := asset.NewERC20Ledger(client, cfg.CustodyKey, asset.ERC20Config{
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		custody = ledger.Custody()
		a.ledger = ledger
	default:
		if cfg.Custody != "" {
			if !common.IsHexAddress(cfg.Custody) {
				a.close()
				return nil, fmt.Errorf("invalid custody address: %s", cfg.Custody)
			}
			custody = common.HexToAddress(cfg.Custody)
		}
		a.ledger = asset.NewMemoryLedger()
	}

	contract := custody
	if cfg.Contract != "" {
		if !common.IsHexAddress(cfg.Contract) {
			a.close()
			return nil, fmt.Errorf("invalid contract address: %s", cfg.Contract)
		}
		contract = common.HexToAddress(cfg.Contract)
	}

	var sinks []storage.EventSink
	if cfg.EventsOut != "" {
		a.history = storage.NewJsonlStorage(cfg.EventsOut)
		sinks = append(sinks, a.history)
	}
	if cfg.LogsOut != "" {
		encoder := dex.Encoder{ChainID: chainID.Uint64(), Contract: contract}
		sinks = append(sinks, dex.NewLogWriter(encoder, storage.NewJsonlStorage(cfg.LogsOut)))
	}
	a.events = events.NewLog(logger, sinks...)
	if a.history != nil {
		if err := a.events.Resume(a.history); err != nil {
			a.close()
			return nil, fmt.Errorf("resume event sequence: %w", err)
		}
	}

	a.access = access.New(store, a.events, logger)
	a.gate = upgrade.NewGate(a.access, storage.Layouts, logger)
	a.engine, err = amm.NewEngine(amm.Config{FeeBps: cfg.FeeBps, Custody: custody}, store, a.ledger, a.events, metrics.New(a.registry), logger)
	if err != nil {
		a.close()
		return nil, err
	}

	logger.Debug("app ready",
		zap.String("store", cfg.Store),
		zap.String("ledger", cfg.Ledger),
		zap.String("custody", custody.Hex()),
		zap.Uint32("fee_bps", cfg.FeeBps),
	)
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.PGInstance)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case config.StoreRedis:
		store, err := redis.NewStore(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		logger.Debug("using in-memory store; state ends with the process")
		return memory.NewStore(), nil
	}
}

// requireDurableLedger rejects mutating commands on the in-process ledger, whose
// balances do not outlive the command.
func (a *app) requireDurableLedger() error {
	if a.cfg.Ledger == config.LedgerMemory {
		return fmt.Errorf("ledger %q holds no balances between commands; use --ledger %s or the demo command", config.LedgerMemory, config.LedgerERC20)
	}
	return nil
}

// caller resolves --caller, defaulting to the custody signer on the erc20 ledger.
func (a *app) caller() (common.Address, error) {
	if a.cfg.Caller == "" {
		if a.cfg.Ledger == config.LedgerERC20 {
			return a.engine.Custody(), nil
		}
		return common.Address{}, fmt.Errorf("caller is required")
	}
	return parseAddress(a.cfg.Caller, "caller")
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	if a.chain != nil {
		a.chain.Close()
	}
}

func parseAddress(value, name string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", name, value)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(value, name string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %s", name, value)
	}
	return amount, nil
}
