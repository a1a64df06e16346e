package amm

import (
	"math/big"
)

const bpsDenominator = 10000

// mintShares prices a deposit. An empty pool mints the geometric mean of the deposit;
// otherwise the smaller of the two proportional claims, so a mismatched ratio never
// dilutes existing providers.
func mintShares(reserveA, reserveB, total, amountA, amountB *big.Int) *big.Int {
	if total.Sign() == 0 {
		product := new(big.Int).Mul(amountA, amountB)
		return product.Sqrt(product)
	}
	if reserveA.Sign() == 0 || reserveB.Sign() == 0 {
		return big.NewInt(0)
	}
	byA := new(big.Int).Mul(total, amountA)
	byA.Quo(byA, reserveA)
	byB := new(big.Int).Mul(total, amountB)
	byB.Quo(byB, reserveB)
	if byA.Cmp(byB) <= 0 {
		return byA
	}
	return byB
}

// withdrawAmounts returns the floor of the pro-rata share of each reserve.
func withdrawAmounts(reserveA, reserveB, total, shares *big.Int) (*big.Int, *big.Int) {
	amountA := new(big.Int).Mul(reserveA, shares)
	amountA.Quo(amountA, total)
	amountB := new(big.Int).Mul(reserveB, shares)
	amountB.Quo(amountB, total)
	return amountA, amountB
}

// swapOutput applies the fee to amountIn and returns
// reserveOut - reserveIn*reserveOut/(reserveIn+effectiveIn), with the quotient floored.
func swapOutput(reserveIn, reserveOut, amountIn *big.Int, feeBps uint32) *big.Int {
	effectiveIn := new(big.Int).Mul(amountIn, big.NewInt(int64(bpsDenominator-feeBps)))
	effectiveIn.Quo(effectiveIn, big.NewInt(bpsDenominator))

	k := new(big.Int).Mul(reserveIn, reserveOut)
	denominator := new(big.Int).Add(reserveIn, effectiveIn)
	newOut := new(big.Int).Quo(k, denominator)
	return newOut.Sub(reserveOut, newOut)
}
