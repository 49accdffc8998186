// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"
	"testing"
)

func TestCreatePoolValidations(t *testing.T) {
	amm := NewAMM(NewTokenBank())

	if _, err := amm.CreatePool(tokenY, tokenX, Fee030, new(big.Int).Set(Q96)); err != ErrCurrencyNotSorted {
		t.Errorf("unsorted: got %v", err)
	}
	if _, err := amm.CreatePool(tokenX, tokenX, Fee030, new(big.Int).Set(Q96)); err != ErrCurrencyNotSorted {
		t.Errorf("identical: got %v", err)
	}
	if _, err := amm.CreatePool(tokenX, tokenY, 42, new(big.Int).Set(Q96)); err != ErrInvalidFee {
		t.Errorf("bad fee: got %v", err)
	}
	if _, err := amm.CreatePool(tokenX, tokenY, Fee030, big.NewInt(1)); err != ErrInvalidSqrtPrice {
		t.Errorf("price below range: got %v", err)
	}

	pool, err := amm.CreatePool(tokenX, tokenY, Fee030, new(big.Int).Set(Q96))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if pool.Tick != 0 {
		t.Errorf("tick at price 1 = %d, want 0", pool.Tick)
	}
	if pool.TickSpacing != 60 {
		t.Errorf("spacing = %d, want 60", pool.TickSpacing)
	}

	if _, err := amm.CreatePool(tokenX, tokenY, Fee030, new(big.Int).Set(Q96)); err != ErrPoolExists {
		t.Errorf("duplicate: got %v", err)
	}

	// Same pair at a different fee tier is a distinct pool
	if _, err := amm.CreatePool(tokenX, tokenY, Fee100, new(big.Int).Set(Q96)); err != nil {
		t.Errorf("second tier: %v", err)
	}

	got, err := amm.GetPool(tokenX, tokenY, Fee030)
	if err != nil || got != pool {
		t.Errorf("GetPool = %v, %v", got, err)
	}
	if _, err := amm.GetPool(tokenX, tokenY, Fee005); err != ErrPoolNotFound {
		t.Errorf("missing tier: got %v", err)
	}
}

func TestSwapMovesPriceAndAccruesFees(t *testing.T) {
	engine, stateDB, pool := newTestEngine(t)

	priceBefore := new(big.Int).Set(pool.SqrtPriceX96)
	growth0Before := new(big.Int).Set(pool.FeeGrowth0X128)
	traderXBefore := engine.bank.BalanceOf(stateDB, tokenX, testTrader)
	traderYBefore := engine.bank.BalanceOf(stateDB, tokenY, testTrader)

	in := bigFromString("1000000000000000000000")
	out, err := engine.amm.Swap(stateDB, pool, testTrader, true, in, big.NewInt(0))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Sign() <= 0 {
		t.Fatalf("no output")
	}

	// Selling token0 pushes the price down
	if pool.SqrtPriceX96.Cmp(priceBefore) >= 0 {
		t.Errorf("price did not fall: %s -> %s", priceBefore, pool.SqrtPriceX96)
	}
	// The fee stays with the pool as per-liquidity growth
	if pool.FeeGrowth0X128.Cmp(growth0Before) <= 0 {
		t.Errorf("fee growth did not accrue")
	}

	// Trader paid amountIn and received amountOut
	paid := new(big.Int).Sub(traderXBefore, engine.bank.BalanceOf(stateDB, tokenX, testTrader))
	if paid.Cmp(in) != 0 {
		t.Errorf("paid %s, want %s", paid, in)
	}
	received := new(big.Int).Sub(engine.bank.BalanceOf(stateDB, tokenY, testTrader), traderYBefore)
	if received.Cmp(out) != 0 {
		t.Errorf("received %s, want %s", received, out)
	}

	// Output below the trader's minimum aborts
	if _, err := engine.amm.Swap(stateDB, pool, testTrader, true, in, new(big.Int).Lsh(in, 1)); err != ErrAmountBelowMin {
		t.Errorf("min out: got %v", err)
	}
}

func TestQuoteSwapMatchesExecution(t *testing.T) {
	engine, stateDB, pool := newTestEngine(t)

	in := bigFromString("500000000000000000000")
	quotedOut, quotedPrice := QuoteSwap(pool, false, in)

	out, err := engine.amm.Swap(stateDB, pool, testTrader, false, in, big.NewInt(0))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Cmp(quotedOut) != 0 {
		t.Errorf("out = %s, quote = %s", out, quotedOut)
	}
	if pool.SqrtPriceX96.Cmp(quotedPrice) != 0 {
		t.Errorf("price = %s, quote = %s", pool.SqrtPriceX96, quotedPrice)
	}
}
