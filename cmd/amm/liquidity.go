package main

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func liquidityCommands() []*cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add-liquidity <assetA> <assetB> <amountA> <amountB>",
		Short: "Deposit a pair of assets and mint liquidity shares",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireDurableLedger(); err != nil {
					return err
				}
				caller, err := a.caller()
				if err != nil {
					return err
				}
				assetA, err := parseAddress(args[0], "assetA")
				if err != nil {
					return err
				}
				assetB, err := parseAddress(args[1], "assetB")
				if err != nil {
					return err
				}
				amountA, err := parseAmount(args[2], "amountA")
				if err != nil {
					return err
				}
				amountB, err := parseAmount(args[3], "amountB")
				if err != nil {
					return err
				}
				minted, err := a.engine.AddLiquidity(ctx, caller, assetA, assetB, amountA, amountB)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{"minted": minted})
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove-liquidity <assetA> <assetB> <shares>",
		Short: "Burn liquidity shares and withdraw the pro-rata reserves",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireDurableLedger(); err != nil {
					return err
				}
				caller, err := a.caller()
				if err != nil {
					return err
				}
				assetA, err := parseAddress(args[0], "assetA")
				if err != nil {
					return err
				}
				assetB, err := parseAddress(args[1], "assetB")
				if err != nil {
					return err
				}
				shares, err := parseAmount(args[2], "shares")
				if err != nil {
					return err
				}
				amountA, amountB, err := a.engine.RemoveLiquidity(ctx, caller, assetA, assetB, shares)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{"amount_a": amountA, "amount_b": amountB})
			})
		},
	}

	swapCmd := &cobra.Command{
		Use:   "swap <assetIn> <assetOut> <amountIn>",
		Short: "Swap one asset for the other through its pool",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireDurableLedger(); err != nil {
					return err
				}
				caller, err := a.caller()
				if err != nil {
					return err
				}
				assetIn, err := parseAddress(args[0], "assetIn")
				if err != nil {
					return err
				}
				assetOut, err := parseAddress(args[1], "assetOut")
				if err != nil {
					return err
				}
				amountIn, err := parseAmount(args[2], "amountIn")
				if err != nil {
					return err
				}
				amountOut, err := a.engine.Swap(ctx, caller, assetIn, assetOut, amountIn)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{"amount_out": amountOut})
			})
		},
	}

	quoteCmd := &cobra.Command{
		Use:   "quote <assetIn> <assetOut> <amountIn>",
		Short: "Price a swap without executing it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				assetIn, err := parseAddress(args[0], "assetIn")
				if err != nil {
					return err
				}
				assetOut, err := parseAddress(args[1], "assetOut")
				if err != nil {
					return err
				}
				amountIn, err := parseAmount(args[2], "amountIn")
				if err != nil {
					return err
				}
				amountOut, err := a.engine.Quote(ctx, assetIn, assetOut, amountIn)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{"amount_out": amountOut})
			})
		},
	}

	poolCmd := &cobra.Command{
		Use:   "pool <assetA> <assetB>",
		Short: "Show pool reserves and total shares in the given asset order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				assetA, err := parseAddress(args[0], "assetA")
				if err != nil {
					return err
				}
				assetB, err := parseAddress(args[1], "assetB")
				if err != nil {
					return err
				}
				state, err := a.engine.PoolState(ctx, assetA, assetB)
				if err != nil {
					return err
				}
				return printJSON(cmd, state)
			})
		},
	}

	positionCmd := &cobra.Command{
		Use:   "position <assetA> <assetB> [provider]",
		Short: "Show a provider's liquidity shares (defaults to --caller)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				assetA, err := parseAddress(args[0], "assetA")
				if err != nil {
					return err
				}
				assetB, err := parseAddress(args[1], "assetB")
				if err != nil {
					return err
				}
				var provider common.Address
				if len(args) == 3 {
					provider, err = parseAddress(args[2], "provider")
				} else {
					provider, err = a.caller()
				}
				if err != nil {
					return err
				}
				shares, err := a.engine.Position(ctx, assetA, assetB, provider)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{"provider": provider, "shares": shares})
			})
		},
	}

	return []*cobra.Command{addCmd, removeCmd, swapCmd, quoteCmd, poolCmd, positionCmd}
}
