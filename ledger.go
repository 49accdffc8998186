// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
)

// ShareLedger tracks fractional ownership of a vault. Shares behave like a
// fungible token: they are minted on deposit, burned on withdrawal, and
// freely transferable in between.
type ShareLedger struct {
	mu          sync.RWMutex
	name        string
	symbol      string
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
}

// NewShareLedger creates an empty ledger
func NewShareLedger(name, symbol string) *ShareLedger {
	return &ShareLedger{
		name:        name,
		symbol:      symbol,
		totalSupply: big.NewInt(0),
		balances:    make(map[common.Address]*big.Int),
	}
}

// Name returns the share token name
func (l *ShareLedger) Name() string { return l.name }

// Symbol returns the share token symbol
func (l *ShareLedger) Symbol() string { return l.symbol }

// TotalSupply returns the outstanding share count
func (l *ShareLedger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.totalSupply)
}

// BalanceOf returns the holder's share balance
func (l *ShareLedger) BalanceOf(holder common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[holder]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Mint issues new shares to a holder
func (l *ShareLedger) Mint(holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroShares
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, ok := l.balances[holder]
	if !ok {
		bal = big.NewInt(0)
		l.balances[holder] = bal
	}
	bal.Add(bal, amount)
	l.totalSupply.Add(l.totalSupply, amount)
	return nil
}

// Burn destroys shares held by a holder
func (l *ShareLedger) Burn(holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroShares
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, ok := l.balances[holder]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	bal.Sub(bal, amount)
	l.totalSupply.Sub(l.totalSupply, amount)
	return nil
}

// Transfer moves shares between holders
func (l *ShareLedger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fromBal, ok := l.balances[from]
	if !ok || fromBal.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	toBal, ok := l.balances[to]
	if !ok {
		toBal = big.NewInt(0)
		l.balances[to] = toBal
	}
	fromBal.Sub(fromBal, amount)
	toBal.Add(toBal, amount)
	return nil
}

// Clone returns a deep copy used for rollback
func (l *ShareLedger) Clone() *ShareLedger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := &ShareLedger{
		name:        l.name,
		symbol:      l.symbol,
		totalSupply: new(big.Int).Set(l.totalSupply),
		balances:    make(map[common.Address]*big.Int, len(l.balances)),
	}
	for addr, bal := range l.balances {
		out.balances[addr] = new(big.Int).Set(bal)
	}
	return out
}

func (l *ShareLedger) restore(from *ShareLedger) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalSupply.Set(from.totalSupply)
	l.balances = make(map[common.Address]*big.Int, len(from.balances))
	for addr, bal := range from.balances {
		l.balances[addr] = new(big.Int).Set(bal)
	}
}
