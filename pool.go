// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"bytes"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
)

// Pool is the pricing/swap collaborator for a (token0, token1, fee) pair.
// It models in-range liquidity only: swaps move the sqrt price within the
// liquidity currently active, and trading fees accrue to the per-liquidity
// fee growth accumulators.
type Pool struct {
	ID          [32]byte
	Token0      common.Address
	Token1      common.Address
	Fee         uint24
	TickSpacing int24

	SqrtPriceX96   *big.Int
	Tick           int24
	Liquidity      *big.Int
	FeeGrowth0X128 *big.Int // fee growth per unit liquidity, token0 (Q128)
	FeeGrowth1X128 *big.Int // fee growth per unit liquidity, token1 (Q128)
}

// Account returns the synthetic address holding the pool's token reserves
func (p *Pool) Account() common.Address {
	return deriveAddress("lxvault/pool", p.ID[:])
}

// Clone returns a deep copy of the pool state. Used by the vault engine's
// snapshot/rollback discipline.
func (p *Pool) Clone() *Pool {
	return &Pool{
		ID:             p.ID,
		Token0:         p.Token0,
		Token1:         p.Token1,
		Fee:            p.Fee,
		TickSpacing:    p.TickSpacing,
		SqrtPriceX96:   new(big.Int).Set(p.SqrtPriceX96),
		Tick:           p.Tick,
		Liquidity:      new(big.Int).Set(p.Liquidity),
		FeeGrowth0X128: new(big.Int).Set(p.FeeGrowth0X128),
		FeeGrowth1X128: new(big.Int).Set(p.FeeGrowth1X128),
	}
}

func (p *Pool) restore(from *Pool) {
	p.SqrtPriceX96.Set(from.SqrtPriceX96)
	p.Tick = from.Tick
	p.Liquidity.Set(from.Liquidity)
	p.FeeGrowth0X128.Set(from.FeeGrowth0X128)
	p.FeeGrowth1X128.Set(from.FeeGrowth1X128)
}

// AMM manages all pools known to the vault engine
type AMM struct {
	mu    sync.RWMutex
	pools map[[32]byte]*Pool
	bank  *TokenBank
}

// NewAMM creates an AMM bound to the token bank
func NewAMM(bank *TokenBank) *AMM {
	return &AMM{
		pools: make(map[[32]byte]*Pool),
		bank:  bank,
	}
}

// CreatePool initializes a pool at the given starting sqrt price
func (a *AMM) CreatePool(token0, token1 common.Address, fee uint24, sqrtPriceX96 *big.Int) (*Pool, error) {
	if bytes.Compare(token0.Bytes(), token1.Bytes()) >= 0 {
		return nil, ErrCurrencyNotSorted
	}
	spacing := TickSpacingForFee(fee)
	if spacing == 0 {
		return nil, ErrInvalidFee
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) > 0 {
		return nil, ErrInvalidSqrtPrice
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id := PoolID(token0, token1, fee)
	if _, exists := a.pools[id]; exists {
		return nil, ErrPoolExists
	}

	pool := &Pool{
		ID:             id,
		Token0:         token0,
		Token1:         token1,
		Fee:            fee,
		TickSpacing:    spacing,
		SqrtPriceX96:   new(big.Int).Set(sqrtPriceX96),
		Tick:           TickAtSqrtRatio(sqrtPriceX96),
		Liquidity:      big.NewInt(0),
		FeeGrowth0X128: big.NewInt(0),
		FeeGrowth1X128: big.NewInt(0),
	}
	a.pools[id] = pool
	return pool, nil
}

// GetPool looks up a pool by token pair and fee tier
func (a *AMM) GetPool(token0, token1 common.Address, fee uint24) (*Pool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	pool, ok := a.pools[PoolID(token0, token1, fee)]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

// QuoteSwap simulates an exact-input swap against the pool without mutating
// it, returning the output amount and the post-swap sqrt price.
func QuoteSwap(pool *Pool, zeroForOne bool, amountIn *big.Int) (amountOut, sqrtPriceAfter *big.Int) {
	liquidity := pool.Liquidity
	sqrtP := pool.SqrtPriceX96
	if liquidity.Sign() == 0 || amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0), new(big.Int).Set(sqrtP)
	}

	// fee is taken from the input before it moves the price
	feePPM := big.NewInt(1_000_000)
	inAfterFee := new(big.Int).Mul(amountIn, new(big.Int).Sub(feePPM, big.NewInt(int64(pool.Fee))))
	inAfterFee.Div(inAfterFee, feePPM)

	if zeroForOne {
		// sqrtP' = L * sqrtP * Q96 / (L * Q96 + dx * sqrtP)
		num := new(big.Int).Mul(liquidity, sqrtP)
		num.Mul(num, Q96)
		den := new(big.Int).Mul(liquidity, Q96)
		den.Add(den, new(big.Int).Mul(inAfterFee, sqrtP))
		after := num.Div(num, den)
		if after.Cmp(MinSqrtRatio) < 0 {
			after.Set(MinSqrtRatio)
		}
		// dy = L * (sqrtP - sqrtP') / Q96
		out := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtP, after))
		out.Div(out, Q96)
		return out, after
	}

	// sqrtP' = sqrtP + dy * Q96 / L
	delta := new(big.Int).Mul(inAfterFee, Q96)
	delta.Div(delta, liquidity)
	after := new(big.Int).Add(sqrtP, delta)
	if after.Cmp(MaxSqrtRatio) > 0 {
		after.Set(MaxSqrtRatio)
	}
	// dx = L * Q96 * (sqrtP' - sqrtP) / (sqrtP' * sqrtP)
	out := new(big.Int).Mul(liquidity, Q96)
	out.Mul(out, new(big.Int).Sub(after, sqrtP))
	out.Div(out, new(big.Int).Mul(after, sqrtP))
	return out, after
}

// Swap executes an exact-input swap, moving tokens between the payer and the
// pool account and accruing the fee to the input side's growth accumulator.
func (a *AMM) Swap(stateDB StateDB, pool *Pool, payer common.Address, zeroForOne bool, amountIn, amountOutMin *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if amountIn.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if pool.Liquidity.Sign() == 0 {
		return nil, ErrNoLiquidity
	}

	amountOut, sqrtAfter := QuoteSwap(pool, zeroForOne, amountIn)
	if amountOutMin != nil && amountOut.Cmp(amountOutMin) < 0 {
		return nil, ErrAmountBelowMin
	}

	tokenIn, tokenOut := pool.Token0, pool.Token1
	if !zeroForOne {
		tokenIn, tokenOut = pool.Token1, pool.Token0
	}

	account := pool.Account()
	if err := a.bank.Transfer(stateDB, tokenIn, payer, account, amountIn); err != nil {
		return nil, err
	}
	if err := a.bank.Transfer(stateDB, tokenOut, account, payer, amountOut); err != nil {
		return nil, err
	}

	// feeGrowth += feeAmount * Q128 / L
	feePPM := big.NewInt(1_000_000)
	feeAmount := new(big.Int).Mul(amountIn, big.NewInt(int64(pool.Fee)))
	feeAmount.Div(feeAmount, feePPM)
	growth := new(big.Int).Mul(feeAmount, Q128)
	growth.Div(growth, pool.Liquidity)
	if zeroForOne {
		pool.FeeGrowth0X128.Add(pool.FeeGrowth0X128, growth)
	} else {
		pool.FeeGrowth1X128.Add(pool.FeeGrowth1X128, growth)
	}

	pool.SqrtPriceX96.Set(sqrtAfter)
	pool.Tick = TickAtSqrtRatio(sqrtAfter)
	return amountOut, nil
}
