package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event names as they appear in the event log and the contract ABI.
const (
	EventLiquidityAdded   = "LiquidityAdded"
	EventLiquidityRemoved = "LiquidityRemoved"
	EventSwap             = "Swap"
	EventRoleGranted      = "RoleGranted"
	EventRoleRevoked      = "RoleRevoked"
)

// LiquidityAddedEvent is emitted by a successful deposit. Assets and amounts keep the caller's order.
type LiquidityAddedEvent struct {
	Provider     common.Address `json:"provider"`
	AssetA       common.Address `json:"asset_a"`
	AssetB       common.Address `json:"asset_b"`
	AmountA      *big.Int       `json:"amount_a"`
	AmountB      *big.Int       `json:"amount_b"`
	SharesMinted *big.Int       `json:"shares_minted"`
}

// LiquidityRemovedEvent is emitted by a successful withdrawal.
type LiquidityRemovedEvent struct {
	Provider     common.Address `json:"provider"`
	AssetA       common.Address `json:"asset_a"`
	AssetB       common.Address `json:"asset_b"`
	AmountA      *big.Int       `json:"amount_a"`
	AmountB      *big.Int       `json:"amount_b"`
	SharesBurned *big.Int       `json:"shares_burned"`
}

// SwapEvent is emitted by a successful swap.
type SwapEvent struct {
	Trader    common.Address `json:"trader"`
	AssetIn   common.Address `json:"asset_in"`
	AssetOut  common.Address `json:"asset_out"`
	AmountIn  *big.Int       `json:"amount_in"`
	AmountOut *big.Int       `json:"amount_out"`
}

// RoleEvent is emitted when role membership changes.
type RoleEvent struct {
	Role    Role           `json:"role"`
	Account common.Address `json:"account"`
	Sender  common.Address `json:"sender"`
}
