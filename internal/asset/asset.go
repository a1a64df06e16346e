// Package asset models the fungible-asset contracts whose balances the pool moves.
package asset

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger exposes the transfer, transfer-from, approve and balance capabilities of
// fungible-asset contracts. Each call either completes or fails as a whole.
type Ledger interface {
	// Transfer moves amount of asset from the signing holder to to.
	Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int) error
	// TransferFrom moves amount from from to to, spending spender's allowance.
	TransferFrom(ctx context.Context, asset, spender, from, to common.Address, amount *big.Int) error
	// Approve sets spender's allowance over owner's balance.
	Approve(ctx context.Context, asset, owner, spender common.Address, amount *big.Int) error
	BalanceOf(ctx context.Context, asset, owner common.Address) (*big.Int, error)
}

// Reverser is implemented by ledgers that can exactly undo one completed transfer:
// amount goes back from to to from and, when spender is set, spender's allowance over
// from is restored. Transfers made by anyone else in between are left alone.
type Reverser interface {
	Reverse(ctx context.Context, asset, spender, from, to common.Address, amount *big.Int) error
}
