package asset

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ammPool/internal/chain"
)

// ERC20Ledger moves on-chain ERC-20 balances. It signs with a single custody key,
// so the only holder it can transfer from, approve for, or spend as is that key's address.
type ERC20Ledger struct {
	chain        *chain.Client
	key          *ecdsa.PrivateKey
	custody      common.Address
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger
}

// ERC20Config configures read retries.
type ERC20Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// NewERC20Ledger builds a ledger signing with the hex-encoded private key.
func NewERC20Ledger(client *chain.Client, hexKey string, cfg ERC20Config, logger *zap.Logger) (*ERC20Ledger, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse custody key: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ERC20Ledger{
		chain:        client,
		key:          key,
		custody:      crypto.PubkeyToAddress(key.PublicKey),
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       logger,
	}, nil
}

// Custody returns the address of the signing key.
func (l *ERC20Ledger) Custody() common.Address {
	return l.custody
}

func (l *ERC20Ledger) Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int) error {
	if err := l.requireSigner(from); err != nil {
		return err
	}
	return l.send(ctx, asset, "transfer", amount, to)
}

func (l *ERC20Ledger) TransferFrom(ctx context.Context, asset, spender, from, to common.Address, amount *big.Int) error {
	if err := l.requireSigner(spender); err != nil {
		return err
	}
	return l.send(ctx, asset, "transferFrom", amount, from, to)
}

func (l *ERC20Ledger) Approve(ctx context.Context, asset, owner, spender common.Address, amount *big.Int) error {
	if err := l.requireSigner(owner); err != nil {
		return err
	}
	return l.send(ctx, asset, "approve", amount, spender)
}

func (l *ERC20Ledger) BalanceOf(ctx context.Context, asset, owner common.Address) (*big.Int, error) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	var resp []byte
	err = chain.WithRetry(ctx, l.maxRetries, l.retryBackoff, func(ctx context.Context) error {
		var err error
		resp, err = l.chain.CallContract(ctx, ethereum.CallMsg{To: &asset, Data: data}, nil)
		if err != nil {
			l.logger.Warn("balanceOf call failed", zap.String("asset", asset.Hex()), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	values, err := parsed.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	return bal, nil
}

func (l *ERC20Ledger) send(ctx context.Context, asset common.Address, method string, amount *big.Int, addrs ...common.Address) error {
	data, err := packAmountCall(method, amount, addrs...)
	if err != nil {
		return err
	}
	receipt, err := l.chain.SendTransaction(ctx, l.key, asset, data)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, asset.Hex(), err)
	}
	l.logger.Debug("asset call mined",
		zap.String("method", method),
		zap.String("asset", asset.Hex()),
		zap.String("tx", receipt.TxHash.Hex()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return nil
}

func (l *ERC20Ledger) requireSigner(addr common.Address) error {
	if addr != l.custody {
		return fmt.Errorf("no signing key for %s", addr.Hex())
	}
	return nil
}

// packAmountCall encodes method(addrs..., amount) after checking amount fits in uint256.
func packAmountCall(method string, amount *big.Int, addrs ...common.Address) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount", method)
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return nil, fmt.Errorf("%s: amount %s overflows uint256", method, amount)
	}

	parsed, err := erc20ABIInstance()
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, 0, len(addrs)+1)
	for _, addr := range addrs {
		args = append(args, addr)
	}
	args = append(args, amount)

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}
