package model

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// PairKey identifies a pool by its two assets in canonical order (Asset0 < Asset1).
type PairKey struct {
	Asset0 common.Address `json:"asset0"`
	Asset1 common.Address `json:"asset1"`
}

// NewPairKey normalizes an unordered asset pair. The flipped result reports whether
// a and b were swapped to reach canonical order.
func NewPairKey(a, b common.Address) (key PairKey, flipped bool) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return PairKey{Asset0: b, Asset1: a}, true
	}
	return PairKey{Asset0: a, Asset1: b}, false
}

// String renders the key as lowercase "asset0:asset1", the form used by storage backends.
func (k PairKey) String() string {
	return strings.ToLower(k.Asset0.Hex()) + ":" + strings.ToLower(k.Asset1.Hex())
}

// ParsePairKey parses the String form back into a PairKey.
func ParsePairKey(input string) (PairKey, error) {
	parts := strings.Split(input, ":")
	if len(parts) != 2 || !common.IsHexAddress(parts[0]) || !common.IsHexAddress(parts[1]) {
		return PairKey{}, fmt.Errorf("invalid pair key: %s", input)
	}
	key, _ := NewPairKey(common.HexToAddress(parts[0]), common.HexToAddress(parts[1]))
	return key, nil
}

// Pool holds the reserves and outstanding shares of one asset pair.
// Reserve0 belongs to PairKey.Asset0 and Reserve1 to PairKey.Asset1.
//
// Field order is part of the stored layout: new fields go at the end.
type Pool struct {
	Reserve0    *big.Int `json:"reserve0"`
	Reserve1    *big.Int `json:"reserve1"`
	TotalShares *big.Int `json:"total_shares"`
}

// NewPool returns an empty pool.
func NewPool() Pool {
	return Pool{
		Reserve0:    big.NewInt(0),
		Reserve1:    big.NewInt(0),
		TotalShares: big.NewInt(0),
	}
}

// Clone returns a deep copy with nil fields replaced by zero.
func (p Pool) Clone() Pool {
	return Pool{
		Reserve0:    CopyInt(p.Reserve0),
		Reserve1:    CopyInt(p.Reserve1),
		TotalShares: CopyInt(p.TotalShares),
	}
}

// Equal compares reserves and shares, treating nil as zero.
func (p Pool) Equal(o Pool) bool {
	return CopyInt(p.Reserve0).Cmp(CopyInt(o.Reserve0)) == 0 &&
		CopyInt(p.Reserve1).Cmp(CopyInt(o.Reserve1)) == 0 &&
		CopyInt(p.TotalShares).Cmp(CopyInt(o.TotalShares)) == 0
}

// IsEmpty reports whether the pool has no outstanding shares.
func (p Pool) IsEmpty() bool {
	return p.TotalShares == nil || p.TotalShares.Sign() == 0
}

// Reserves returns the reserves in caller order.
func (p Pool) Reserves(flipped bool) (*big.Int, *big.Int) {
	if flipped {
		return CopyInt(p.Reserve1), CopyInt(p.Reserve0)
	}
	return CopyInt(p.Reserve0), CopyInt(p.Reserve1)
}

// Consistent checks the reserve/share invariant of a single pool record.
func (p Pool) Consistent() bool {
	r0, r1 := CopyInt(p.Reserve0), CopyInt(p.Reserve1)
	if p.IsEmpty() {
		return r0.Sign() == 0 && r1.Sign() == 0
	}
	return r0.Sign() > 0 && r1.Sign() > 0
}

// PoolState is the query view of a pool in the caller's asset order.
type PoolState struct {
	AssetA      common.Address `json:"asset_a"`
	AssetB      common.Address `json:"asset_b"`
	ReserveA    *big.Int       `json:"reserve_a"`
	ReserveB    *big.Int       `json:"reserve_b"`
	TotalShares *big.Int       `json:"total_liquidity_shares"`
}

// Position is a provider's share balance in one pool.
type Position struct {
	Pair     PairKey        `json:"pair"`
	Provider common.Address `json:"provider"`
	Shares   *big.Int       `json:"shares"`
}

// CopyInt copies v, treating nil as zero.
func CopyInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
