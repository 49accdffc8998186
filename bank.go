// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// StateDB interface for accessing and modifying EVM state
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int)
	SubBalance(addr common.Address, amount *uint256.Int)
	Exist(addr common.Address) bool
	CreateAccount(addr common.Address)
	GetBlockNumber() uint64
	Snapshot() int
	RevertToSnapshot(id int)
}

// Precompile address holding all bank storage
var engineAddr = common.HexToAddress(EngineAddress)

// Storage key prefixes for bank state
var (
	balancePrefix   = []byte("tbal")
	allowancePrefix = []byte("talw")
)

// TokenBank is the in-state ERC20-style ledger the vault engine routes value
// through. Balances and allowances live in the engine's storage slots; every
// mutation goes through the caller's StateDB so it participates in the
// transaction's snapshot/revert discipline.
type TokenBank struct{}

// NewTokenBank creates the bank handle
func NewTokenBank() *TokenBank {
	return &TokenBank{}
}

func balanceKey(token, holder common.Address) common.Hash {
	return makeStorageKey(balancePrefix, append(token.Bytes(), holder.Bytes()...))
}

func allowanceKey(token, owner, spender common.Address) common.Hash {
	id := append(token.Bytes(), owner.Bytes()...)
	id = append(id, spender.Bytes()...)
	return makeStorageKey(allowancePrefix, id)
}

// BalanceOf returns the holder's balance of token
func (b *TokenBank) BalanceOf(stateDB StateDB, token, holder common.Address) *big.Int {
	word := stateDB.GetState(engineAddr, balanceKey(token, holder))
	return new(big.Int).SetBytes(word[:])
}

// Allowance returns the amount spender may move from owner's balance of token
func (b *TokenBank) Allowance(stateDB StateDB, token, owner, spender common.Address) *big.Int {
	word := stateDB.GetState(engineAddr, allowanceKey(token, owner, spender))
	return new(big.Int).SetBytes(word[:])
}

// Approve sets spender's allowance over owner's balance of token
func (b *TokenBank) Approve(stateDB StateDB, token, owner, spender common.Address, amount *big.Int) {
	var word common.Hash
	amount.FillBytes(word[:])
	stateDB.SetState(engineAddr, allowanceKey(token, owner, spender), word)
}

func (b *TokenBank) setBalance(stateDB StateDB, token, holder common.Address, amount *big.Int) {
	var word common.Hash
	amount.FillBytes(word[:])
	stateDB.SetState(engineAddr, balanceKey(token, holder), word)
}

// Transfer moves amount of token from one holder to another
func (b *TokenBank) Transfer(stateDB StateDB, token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBal := b.BalanceOf(stateDB, token, from)
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	b.setBalance(stateDB, token, from, fromBal.Sub(fromBal, amount))
	toBal := b.BalanceOf(stateDB, token, to)
	b.setBalance(stateDB, token, to, toBal.Add(toBal, amount))
	return nil
}

// TransferFrom moves amount of token from owner to recipient, consuming
// spender's allowance
func (b *TokenBank) TransferFrom(stateDB StateDB, token, owner, to, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	allowance := b.Allowance(stateDB, token, owner, spender)
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := b.Transfer(stateDB, token, owner, to, amount); err != nil {
		return err
	}
	b.Approve(stateDB, token, owner, spender, allowance.Sub(allowance, amount))
	return nil
}

// mint credits freshly bridged/deposited tokens to a holder. Internal: only
// the configurator and tests seed balances this way.
func (b *TokenBank) mint(stateDB StateDB, token, to common.Address, amount *big.Int) {
	bal := b.BalanceOf(stateDB, token, to)
	b.setBalance(stateDB, token, to, bal.Add(bal, amount))
}
