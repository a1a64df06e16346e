package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPool/internal/asset"
	"ammPool/internal/model"
)

var demoDeployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cfFFb92266")

// ether scales n by 10^18.
func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func demoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Initialize, mint two mock tokens, add liquidity and swap on the in-process ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ledger, ok := a.ledger.(*asset.MemoryLedger)
				if !ok {
					return fmt.Errorf("demo needs the memory ledger")
				}
				return runDemo(ctx, cmd, a, ledger)
			})
		},
	}
}

func runDemo(ctx context.Context, cmd *cobra.Command, a *app, ledger *asset.MemoryLedger) error {
	deployer := demoDeployer
	if a.cfg.Caller != "" {
		var err error
		if deployer, err = parseAddress(a.cfg.Caller, "caller"); err != nil {
			return err
		}
	}
	custody := a.engine.Custody()

	if err := a.access.Initialize(ctx, deployer); err != nil {
		var initErr *model.AlreadyInitializedError
		if !errors.As(err, &initErr) {
			return err
		}
		a.logger.Info("already initialized", zap.String("deployer", deployer.Hex()))
	}

	token0 := crypto.CreateAddress(deployer, 1)
	token1 := crypto.CreateAddress(deployer, 2)
	for _, token := range []common.Address{token0, token1} {
		if err := ledger.Mint(token, deployer, ether(1000)); err != nil {
			return err
		}
		if err := ledger.Approve(ctx, token, deployer, custody, ether(100)); err != nil {
			return err
		}
	}

	minted, err := a.engine.AddLiquidity(ctx, deployer, token0, token1, ether(100), ether(100))
	if err != nil {
		return fmt.Errorf("add liquidity: %w", err)
	}
	a.logger.Info("liquidity added", zap.String("minted", minted.String()))

	if err := ledger.Approve(ctx, token0, deployer, custody, ether(10)); err != nil {
		return err
	}
	amountOut, err := a.engine.Swap(ctx, deployer, token0, token1, ether(10))
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	a.logger.Info("swap executed", zap.String("amount_out", amountOut.String()))

	state, err := a.engine.PoolState(ctx, token0, token1)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{
		"deployer": deployer,
		"custody":  custody,
		"token0":   token0,
		"token1":   token1,
		"pool":     state,
		"events":   a.events.Since(0),
	})
}
