// Package amm implements the constant-product pool manager: deposits, withdrawals and swaps
// over the persistent store, with asset custody delegated to a ledger.
package amm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammPool/internal/asset"
	"ammPool/internal/events"
	"ammPool/internal/metrics"
	"ammPool/internal/model"
	"ammPool/internal/storage"
)

// Config configures the engine.
type Config struct {
	// FeeBps is deducted from every swap input before pricing, in basis points.
	FeeBps uint32
	// Custody holds the pooled assets on the ledger.
	Custody common.Address
}

// Engine runs liquidity and swap operations one at a time.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	store   storage.Store
	ledger  asset.Ledger
	events  *events.Log
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewEngine builds an engine. metrics may be nil.
func NewEngine(cfg Config, store storage.Store, ledger asset.Ledger, eventLog *events.Log, m *metrics.Metrics, logger *zap.Logger) (*Engine, error) {
	if cfg.FeeBps >= bpsDenominator {
		return nil, fmt.Errorf("fee-bps must be below %d, got %d", bpsDenominator, cfg.FeeBps)
	}
	if store == nil || ledger == nil {
		return nil, fmt.Errorf("store and ledger are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if eventLog == nil {
		eventLog = events.NewLog(logger)
	}
	return &Engine{
		cfg:     cfg,
		store:   store,
		ledger:  ledger,
		events:  eventLog,
		metrics: m,
		logger:  logger,
	}, nil
}

// Custody returns the address holding pooled assets.
func (e *Engine) Custody() common.Address {
	return e.cfg.Custody
}

// AddLiquidity deposits amountA of assetA and amountB of assetB from caller and
// returns the shares minted to caller.
func (e *Engine) AddLiquidity(ctx context.Context, caller, assetA, assetB common.Address, amountA, amountB *big.Int) (minted *big.Int, err error) {
	started := time.Now()
	defer func() { e.finish("add_liquidity", started, caller, err) }()

	if assetA == assetB {
		return nil, model.NewValidationError(model.ReasonIdenticalTokens)
	}
	if !positive(amountA) || !positive(amountB) {
		return nil, model.NewValidationError(model.ReasonAmountsPositive)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx := storage.Begin(e.store)
	key, flipped := model.NewPairKey(assetA, assetB)
	pool, _, err := tx.Pool(ctx, key)
	if err != nil {
		return nil, err
	}
	reserveA, reserveB := pool.Reserves(flipped)

	minted = mintShares(reserveA, reserveB, pool.TotalShares, amountA, amountB)
	if minted.Sign() == 0 {
		return nil, model.NewValidationError(model.ReasonInsufficientMinted)
	}

	held, err := tx.Position(ctx, key, caller)
	if err != nil {
		return nil, err
	}
	setReserves(&pool, flipped, reserveA.Add(reserveA, amountA), reserveB.Add(reserveB, amountB))
	pool.TotalShares.Add(pool.TotalShares, minted)
	tx.PutPool(key, pool)
	tx.PutPosition(key, caller, held.Add(held, minted))

	j := newJournal(ctx, e.ledger, e.cfg.Custody, e.logger)
	if err := j.pull(assetA, caller, amountA); err != nil {
		return nil, e.abort(j, err)
	}
	if err := j.pull(assetB, caller, amountB); err != nil {
		return nil, e.abort(j, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, e.abort(j, fmt.Errorf("commit: %w", err))
	}

	e.metrics.SetPool(key, pool)
	e.events.Emit(model.EventLiquidityAdded, model.LiquidityAddedEvent{
		Provider:     caller,
		AssetA:       assetA,
		AssetB:       assetB,
		AmountA:      new(big.Int).Set(amountA),
		AmountB:      new(big.Int).Set(amountB),
		SharesMinted: new(big.Int).Set(minted),
	})
	e.logger.Info("liquidity added",
		zap.String("provider", caller.Hex()),
		zap.String("pool", key.String()),
		zap.String("amount_a", amountA.String()),
		zap.String("amount_b", amountB.String()),
		zap.String("minted", minted.String()),
	)
	return minted, nil
}

// RemoveLiquidity burns shares of caller's position and returns the withdrawn amounts
// in caller order.
func (e *Engine) RemoveLiquidity(ctx context.Context, caller, assetA, assetB common.Address, shares *big.Int) (amountA, amountB *big.Int, err error) {
	started := time.Now()
	defer func() { e.finish("remove_liquidity", started, caller, err) }()

	if assetA == assetB {
		return nil, nil, model.NewValidationError(model.ReasonIdenticalTokens)
	}
	if !positive(shares) {
		return nil, nil, model.NewValidationError(model.ReasonSharesPositive)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx := storage.Begin(e.store)
	key, flipped := model.NewPairKey(assetA, assetB)
	held, err := tx.Position(ctx, key, caller)
	if err != nil {
		return nil, nil, err
	}
	if held.Cmp(shares) < 0 {
		return nil, nil, model.NewInsufficientBalanceError(model.ReasonUserLiquidity)
	}
	pool, _, err := tx.Pool(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if pool.TotalShares.Cmp(shares) < 0 {
		return nil, nil, fmt.Errorf("pool %s holds %s shares, position claims %s", key, pool.TotalShares, held)
	}
	reserveA, reserveB := pool.Reserves(flipped)

	amountA, amountB = withdrawAmounts(reserveA, reserveB, pool.TotalShares, shares)
	setReserves(&pool, flipped, reserveA.Sub(reserveA, amountA), reserveB.Sub(reserveB, amountB))
	pool.TotalShares.Sub(pool.TotalShares, shares)
	tx.PutPool(key, pool)
	tx.PutPosition(key, caller, held.Sub(held, shares))

	j := newJournal(ctx, e.ledger, e.cfg.Custody, e.logger)
	if err := j.push(assetA, caller, amountA); err != nil {
		return nil, nil, e.abort(j, err)
	}
	if err := j.push(assetB, caller, amountB); err != nil {
		return nil, nil, e.abort(j, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, e.abort(j, fmt.Errorf("commit: %w", err))
	}

	e.metrics.SetPool(key, pool)
	e.events.Emit(model.EventLiquidityRemoved, model.LiquidityRemovedEvent{
		Provider:     caller,
		AssetA:       assetA,
		AssetB:       assetB,
		AmountA:      new(big.Int).Set(amountA),
		AmountB:      new(big.Int).Set(amountB),
		SharesBurned: new(big.Int).Set(shares),
	})
	e.logger.Info("liquidity removed",
		zap.String("provider", caller.Hex()),
		zap.String("pool", key.String()),
		zap.String("amount_a", amountA.String()),
		zap.String("amount_b", amountB.String()),
		zap.String("burned", shares.String()),
	)
	return amountA, amountB, nil
}

// Swap sells amountIn of assetIn for assetOut and returns the amount sent to caller.
func (e *Engine) Swap(ctx context.Context, caller, assetIn, assetOut common.Address, amountIn *big.Int) (amountOut *big.Int, err error) {
	started := time.Now()
	defer func() { e.finish("swap", started, caller, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	tx := storage.Begin(e.store)
	key, flipped, pool, amountOut, err := e.price(ctx, tx, assetIn, assetOut, amountIn)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut := pool.Reserves(flipped)
	setReserves(&pool, flipped, reserveIn.Add(reserveIn, amountIn), reserveOut.Sub(reserveOut, amountOut))
	tx.PutPool(key, pool)

	j := newJournal(ctx, e.ledger, e.cfg.Custody, e.logger)
	if err := j.pull(assetIn, caller, amountIn); err != nil {
		return nil, e.abort(j, err)
	}
	if err := j.push(assetOut, caller, amountOut); err != nil {
		return nil, e.abort(j, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, e.abort(j, fmt.Errorf("commit: %w", err))
	}

	e.metrics.SetPool(key, pool)
	e.metrics.ObserveSwap(assetIn.Hex(), amountIn)
	e.events.Emit(model.EventSwap, model.SwapEvent{
		Trader:    caller,
		AssetIn:   assetIn,
		AssetOut:  assetOut,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: new(big.Int).Set(amountOut),
	})
	e.logger.Info("swap",
		zap.String("trader", caller.Hex()),
		zap.String("pool", key.String()),
		zap.String("asset_in", assetIn.Hex()),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", amountOut.String()),
	)
	return amountOut, nil
}

// Quote prices a swap against the current reserves without executing it.
func (e *Engine) Quote(ctx context.Context, assetIn, assetOut common.Address, amountIn *big.Int) (*big.Int, error) {
	tx := storage.Begin(e.store)
	_, _, _, amountOut, err := e.price(ctx, tx, assetIn, assetOut, amountIn)
	return amountOut, err
}

// PoolState reports a pool in caller order. Unknown pools report zeros.
func (e *Engine) PoolState(ctx context.Context, assetA, assetB common.Address) (model.PoolState, error) {
	key, flipped := model.NewPairKey(assetA, assetB)
	pool, ok, err := e.store.Pool(ctx, key)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("read pool %s: %w", key, err)
	}
	if !ok {
		pool = model.NewPool()
	}
	reserveA, reserveB := pool.Reserves(flipped)
	return model.PoolState{
		AssetA:      assetA,
		AssetB:      assetB,
		ReserveA:    reserveA,
		ReserveB:    reserveB,
		TotalShares: model.CopyInt(pool.TotalShares),
	}, nil
}

// Position returns provider's shares in the pool of assetA and assetB.
func (e *Engine) Position(ctx context.Context, assetA, assetB, provider common.Address) (*big.Int, error) {
	key, _ := model.NewPairKey(assetA, assetB)
	shares, err := e.store.Position(ctx, key, provider)
	if err != nil {
		return nil, fmt.Errorf("read position %s/%s: %w", key, provider.Hex(), err)
	}
	return model.CopyInt(shares), nil
}

// RefreshMetrics republishes the gauges of every stored pool, including pools changed by
// other processes. Stores that cannot list pools are skipped.
func (e *Engine) RefreshMetrics(ctx context.Context) (int, error) {
	lister, ok := e.store.(storage.Lister)
	if !ok || e.metrics == nil {
		return 0, nil
	}
	pools, err := lister.ListPools(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pools: %w", err)
	}
	for key, pool := range pools {
		e.metrics.SetPool(key, pool)
	}
	return len(pools), nil
}

// RefreshMetricsEvery calls RefreshMetrics on every tick until ctx is done.
func (e *Engine) RefreshMetricsEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.RefreshMetrics(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn("refresh pool gauges failed", zap.Error(err))
			}
		}
	}
}

func (e *Engine) price(ctx context.Context, tx *storage.Tx, assetIn, assetOut common.Address, amountIn *big.Int) (model.PairKey, bool, model.Pool, *big.Int, error) {
	if assetIn == assetOut {
		return model.PairKey{}, false, model.Pool{}, nil, model.NewValidationError(model.ReasonIdenticalTokens)
	}
	if !positive(amountIn) {
		return model.PairKey{}, false, model.Pool{}, nil, model.NewValidationError(model.ReasonAmountPositive)
	}

	key, flipped := model.NewPairKey(assetIn, assetOut)
	pool, _, err := tx.Pool(ctx, key)
	if err != nil {
		return model.PairKey{}, false, model.Pool{}, nil, err
	}
	reserveIn, reserveOut := pool.Reserves(flipped)
	if pool.IsEmpty() || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return model.PairKey{}, false, model.Pool{}, nil, model.NewInsufficientBalanceError(model.ReasonPoolLiquidity)
	}

	amountOut := swapOutput(reserveIn, reserveOut, amountIn, e.cfg.FeeBps)
	if amountOut.Sign() <= 0 || amountOut.Cmp(reserveOut) >= 0 {
		return model.PairKey{}, false, model.Pool{}, nil, model.NewInsufficientBalanceError(model.ReasonOutputAmount)
	}
	return key, flipped, pool, amountOut, nil
}

func (e *Engine) abort(j *journal, cause error) error {
	if err := j.rollback(); err != nil {
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}

func (e *Engine) finish(op string, started time.Time, caller common.Address, err error) {
	e.metrics.ObserveOperation(op, started, err)
	if err != nil {
		e.logger.Warn("operation aborted",
			zap.String("op", op),
			zap.String("caller", caller.Hex()),
			zap.String("kind", model.ErrorKind(err)),
			zap.Error(err),
		)
	}
}

// setReserves writes caller-ordered reserves back into canonical order.
func setReserves(pool *model.Pool, flipped bool, reserveA, reserveB *big.Int) {
	if flipped {
		pool.Reserve0, pool.Reserve1 = reserveB, reserveA
		return
	}
	pool.Reserve0, pool.Reserve1 = reserveA, reserveB
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
