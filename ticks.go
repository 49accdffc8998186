// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"
)

// Tick math: conversions between ticks and Q64.96 sqrt prices, and between
// liquidity and token amounts. Follows Uniswap v3 TickMath/LiquidityAmounts
// semantics; prices are sqrt(1.0001^tick) * 2^96.

// sqrtMagics[i] = sqrt(1/1.0001^(2^i)) in Q128.128, from Uniswap v3 TickMath
var sqrtMagics = func() []*big.Int {
	hexes := []string{
		"fffcb933bd6fad37aa2d162d1a594001",
		"fff97272373d413259a46990580e213a",
		"fff2e50f5f656932ef12357cf3c7fdcc",
		"ffe5caca7e10e4e61c3624eaa0941cd0",
		"ffcb9843d60f6159c9db58835c926644",
		"ff973b41fa98c081472e6896dfb254c0",
		"ff2ea16466c96a3843ec78b326b52861",
		"fe5dee046a99a2a811c461f1969c3053",
		"fcbe86c7900a88aedcffc83b479aa3a4",
		"f987a7253ac413176f2b074cf7815e54",
		"f3392b0822b70005940c7a398e4b70f3",
		"e7159475a2c29b7443b29c7fa6e889d9",
		"d097f3bdfd2022b8845ad8f792aa5825",
		"a9f746462d870fdf8a65dc1f90e061e5",
		"70d869a156d2a1b890bb3df62baf32f7",
		"31be135f97d08fd981231505542fcfa6",
		"9aa508b5b7a84e1c677de54f3e99bc9",
		"5d6af8dedb81196699c329225ee604",
		"2216e584f5fa1ea926041bedfe98",
		"48a170391f7dc42444e8fa2",
	}
	magics := make([]*big.Int, len(hexes))
	for i, h := range hexes {
		magics[i], _ = new(big.Int).SetString(h, 16)
	}
	return magics
}()

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// SqrtRatioAtTick converts a tick to a Q64.96 sqrt price.
// Ticks outside [MinTick, MaxTick] clamp to the ratio bounds.
func SqrtRatioAtTick(tick int24) *big.Int {
	if tick <= MinTick {
		return new(big.Int).Set(MinSqrtRatio)
	}
	if tick >= MaxTick {
		return new(big.Int).Set(MaxSqrtRatio)
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(big.Int).Lsh(big.NewInt(1), 128)
	for i, magic := range sqrtMagics {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, magic)
			ratio.Rsh(ratio, 128)
		}
	}

	// Magics encode negative ticks; invert for positive ones
	if tick > 0 {
		ratio = new(big.Int).Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so TickAtSqrtRatio round-trips
	rem := new(big.Int).And(ratio, new(big.Int).SetUint64(0xffffffff))
	ratio.Rsh(ratio, 32)
	if rem.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio
}

// TickAtSqrtRatio returns the largest tick whose sqrt ratio is <= the given
// Q64.96 sqrt price, by binary search over SqrtRatioAtTick.
func TickAtSqrtRatio(sqrtPriceX96 *big.Int) int24 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) <= 0 {
		return MinTick
	}
	if sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return MaxTick
	}

	low := MinTick
	high := MaxTick
	for low < high {
		mid := low + (high-low+1)/2
		if SqrtRatioAtTick(mid).Cmp(sqrtPriceX96) <= 0 {
			low = mid
		} else {
			high = mid - 1
		}
	}
	return low
}

// CheckTickRange validates a position range against the pool's tick spacing
func CheckTickRange(tickLower, tickUpper, spacing int24) error {
	if tickLower >= tickUpper {
		return ErrInvalidTickRange
	}
	if tickLower < MinTick || tickUpper > MaxTick {
		return ErrTickOutOfRange
	}
	if spacing > 0 && (tickLower%spacing != 0 || tickUpper%spacing != 0) {
		return ErrTickNotAligned
	}
	return nil
}

// MinUsableTick returns the lowest tick aligned to the given spacing
func MinUsableTick(spacing int24) int24 {
	return (MinTick / spacing) * spacing
}

// MaxUsableTick returns the highest tick aligned to the given spacing
func MaxUsableTick(spacing int24) int24 {
	return (MaxTick / spacing) * spacing
}

// amount0ForLiquidity computes the token0 amount spanned by liquidity between
// two sqrt prices: L * Q96 * (sqrtB - sqrtA) / (sqrtA * sqrtB)
func amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	num := new(big.Int).Mul(liquidity, Q96)
	num.Mul(num, new(big.Int).Sub(sqrtB, sqrtA))
	den := new(big.Int).Mul(sqrtA, sqrtB)
	return num.Div(num, den)
}

// amount1ForLiquidity computes the token1 amount spanned by liquidity between
// two sqrt prices: L * (sqrtB - sqrtA) / Q96
func amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	num := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	return num.Div(num, Q96)
}

// AmountsForLiquidity computes the token amounts a position of the given
// liquidity holds at the current price.
func AmountsForLiquidity(sqrtPriceX96, sqrtA, sqrtB, liquidity *big.Int) (*big.Int, *big.Int) {
	if liquidity == nil || liquidity.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	switch {
	case sqrtPriceX96.Cmp(sqrtA) <= 0:
		return amount0ForLiquidity(sqrtA, sqrtB, liquidity), big.NewInt(0)
	case sqrtPriceX96.Cmp(sqrtB) >= 0:
		return big.NewInt(0), amount1ForLiquidity(sqrtA, sqrtB, liquidity)
	default:
		return amount0ForLiquidity(sqrtPriceX96, sqrtB, liquidity),
			amount1ForLiquidity(sqrtA, sqrtPriceX96, liquidity)
	}
}

// liquidityForAmount0 solves L from amount0 between two sqrt prices:
// L = amount0 * sqrtA * sqrtB / (Q96 * (sqrtB - sqrtA))
func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	num := new(big.Int).Mul(amount0, sqrtA)
	num.Mul(num, sqrtB)
	den := new(big.Int).Mul(Q96, new(big.Int).Sub(sqrtB, sqrtA))
	return num.Div(num, den)
}

// liquidityForAmount1 solves L from amount1 between two sqrt prices:
// L = amount1 * Q96 / (sqrtB - sqrtA)
func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	num := new(big.Int).Mul(amount1, Q96)
	return num.Div(num, new(big.Int).Sub(sqrtB, sqrtA))
}

// LiquidityForAmounts computes the maximum liquidity mintable from the given
// token amounts at the current price. The binding side determines the result;
// the other side leaves a residue.
func LiquidityForAmounts(sqrtPriceX96, sqrtA, sqrtB, amount0, amount1 *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	switch {
	case sqrtPriceX96.Cmp(sqrtA) <= 0:
		return liquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtPriceX96.Cmp(sqrtB) >= 0:
		return liquidityForAmount1(sqrtA, sqrtB, amount1)
	default:
		l0 := liquidityForAmount0(sqrtPriceX96, sqrtB, amount0)
		l1 := liquidityForAmount1(sqrtA, sqrtPriceX96, amount1)
		if l0.Cmp(l1) < 0 {
			return l0
		}
		return l1
	}
}
