// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"
)

// SwapPlan is the sizer's output: the single swap that brings a token pair
// into the deposit ratio of a target tick range. A nil/zero AmountIn means
// no swap is needed.
type SwapPlan struct {
	ZeroForOne bool
	AmountIn   *big.Int
	AmountOut  *big.Int
}

// NoSwap reports whether the plan is a no-op
func (p SwapPlan) NoSwap() bool {
	return p.AmountIn == nil || p.AmountIn.Sign() == 0
}

const sizerIterations = 128

// OptimalSwap computes the swap that converts (amount0, amount1) into the
// ratio a position over [tickLower, tickUpper) requires, quoting against the
// pool so price impact is part of the answer. Pools with no liquidity cannot
// be swapped against, so the plan degrades to no-swap and the caller mints
// with whatever ratio it holds.
func OptimalSwap(pool *Pool, tickLower, tickUpper int24, amount0, amount1 *big.Int) (SwapPlan, error) {
	if err := CheckTickRange(tickLower, tickUpper, pool.TickSpacing); err != nil {
		return SwapPlan{}, err
	}
	if pool.Liquidity.Sign() == 0 {
		return SwapPlan{}, nil
	}
	if amount0.Sign() == 0 && amount1.Sign() == 0 {
		return SwapPlan{}, nil
	}

	sqrtA := SqrtRatioAtTick(tickLower)
	sqrtB := SqrtRatioAtTick(tickUpper)

	// A range entirely on one side of the current price holds a single
	// token, so the whole other-side balance is surplus.
	if pool.Tick < tickLower {
		return swapAll(pool, false, amount1)
	}
	if pool.Tick >= tickUpper {
		return swapAll(pool, true, amount0)
	}

	zeroForOne, surplus := surplusSide(pool.SqrtPriceX96, sqrtA, sqrtB, amount0, amount1)
	if surplus.Sign() == 0 {
		return SwapPlan{}, nil
	}

	// Binary search the input amount: larger inputs strictly shrink the
	// surplus side and grow the deficit side, so balance is monotone in x.
	lo := big.NewInt(0)
	hi := new(big.Int).Set(surplus)
	best := SwapPlan{}
	for i := 0; i < sizerIterations; i++ {
		if lo.Cmp(hi) >= 0 {
			break
		}
		mid := new(big.Int).Add(lo, hi)
		mid.Add(mid.Rsh(mid, 1), bigOne)

		out, sqrtAfter := QuoteSwap(pool, zeroForOne, mid)

		a0 := new(big.Int).Set(amount0)
		a1 := new(big.Int).Set(amount1)
		if zeroForOne {
			a0.Sub(a0, mid)
			a1.Add(a1, out)
		} else {
			a1.Sub(a1, mid)
			a0.Add(a0, out)
		}

		still, remaining := surplusSide(sqrtAfter, sqrtA, sqrtB, a0, a1)
		if still == zeroForOne && remaining.Sign() > 0 {
			// Not enough swapped yet
			best = SwapPlan{ZeroForOne: zeroForOne, AmountIn: mid, AmountOut: out}
			lo.Set(mid)
		} else {
			hi.Sub(mid, bigOne)
			if remaining.Sign() == 0 {
				best = SwapPlan{ZeroForOne: zeroForOne, AmountIn: mid, AmountOut: out}
				break
			}
		}
	}
	return best, nil
}

var bigOne = big.NewInt(1)

// swapAll plans a full conversion of one side
func swapAll(pool *Pool, zeroForOne bool, amountIn *big.Int) (SwapPlan, error) {
	if amountIn.Sign() == 0 {
		return SwapPlan{}, nil
	}
	out, _ := QuoteSwap(pool, zeroForOne, amountIn)
	return SwapPlan{ZeroForOne: zeroForOne, AmountIn: new(big.Int).Set(amountIn), AmountOut: out}, nil
}

// surplusSide compares the liquidity each token side alone would support
// over the range at the given price and returns which side is in excess,
// together with the token amount the excess represents.
func surplusSide(sqrtP, sqrtA, sqrtB, amount0, amount1 *big.Int) (zeroForOne bool, surplus *big.Int) {
	if sqrtP.Cmp(sqrtA) <= 0 {
		// All token0 territory: every token1 unit is surplus
		return false, new(big.Int).Set(amount1)
	}
	if sqrtP.Cmp(sqrtB) >= 0 {
		return true, new(big.Int).Set(amount0)
	}

	l0 := liquidityForAmount0(sqrtP, sqrtB, amount0)
	l1 := liquidityForAmount1(sqrtA, sqrtP, amount1)
	switch l0.Cmp(l1) {
	case 1:
		// token0 beyond what l1 can pair with
		excess0, _ := AmountsForLiquidity(sqrtP, sqrtA, sqrtB, new(big.Int).Sub(l0, l1))
		return true, excess0
	case -1:
		_, excess1 := AmountsForLiquidity(sqrtP, sqrtA, sqrtB, new(big.Int).Sub(l1, l0))
		return false, excess1
	default:
		return false, big.NewInt(0)
	}
}
