package amm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammPool/internal/asset"
)

type movement struct {
	asset   common.Address
	holder  common.Address
	amount  *big.Int
	inbound bool
}

// journal records the asset movements of one operation so they can be undone
// when a later step fails.
type journal struct {
	ctx     context.Context
	ledger  asset.Ledger
	custody common.Address
	logger  *zap.Logger
	reverser asset.Reverser
	done     []movement
}

func newJournal(ctx context.Context, ledger asset.Ledger, custody common.Address, logger *zap.Logger) *journal {
	j := &journal{ctx: ctx, ledger: ledger, custody: custody, logger: logger}
	if r, ok := ledger.(asset.Reverser); ok {
		j.reverser = r
	}
	return j
}

// pull moves amount of a from holder into custody, spending custody's allowance.
func (j *journal) pull(a, holder common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := j.ledger.TransferFrom(j.ctx, a, j.custody, holder, j.custody, amount); err != nil {
		return fmt.Errorf("pull %s from %s: %w", a.Hex(), holder.Hex(), err)
	}
	j.done = append(j.done, movement{asset: a, holder: holder, amount: amount, inbound: true})
	return nil
}

// push moves amount of a from custody to holder.
func (j *journal) push(a, holder common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := j.ledger.Transfer(j.ctx, a, j.custody, holder, amount); err != nil {
		return fmt.Errorf("send %s to %s: %w", a.Hex(), holder.Hex(), err)
	}
	j.done = append(j.done, movement{asset: a, holder: holder, amount: amount})
	return nil
}

// rollback undoes completed movements, newest first. Reversible ledgers undo each
// movement exactly. Other ledgers get compensating transfers; an outbound movement can
// then only be reclaimed if the holder has approved custody, and a failed reclaim is
// logged with the movement for reconciliation.
func (j *journal) rollback() error {
	var errs []error
	for i := len(j.done) - 1; i >= 0; i-- {
		m := j.done[i]
		if err := j.undo(m); err != nil {
			j.logger.Error("compensating transfer failed",
				zap.String("asset", m.asset.Hex()),
				zap.String("holder", m.holder.Hex()),
				zap.String("amount", m.amount.String()),
				zap.Bool("inbound", m.inbound),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	j.done = nil
	return errors.Join(errs...)
}

func (j *journal) undo(m movement) error {
	if j.reverser != nil {
		if m.inbound {
			return j.reverser.Reverse(j.ctx, m.asset, j.custody, m.holder, j.custody, m.amount)
		}
		return j.reverser.Reverse(j.ctx, m.asset, common.Address{}, j.custody, m.holder, m.amount)
	}
	if m.inbound {
		return j.ledger.Transfer(j.ctx, m.asset, j.custody, m.holder, m.amount)
	}
	return j.ledger.TransferFrom(j.ctx, m.asset, j.custody, m.holder, j.custody, m.amount)
}
