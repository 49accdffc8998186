// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
)

func TestBankTransfer(t *testing.T) {
	bank := NewTokenBank()
	stateDB := NewMockStateDB()
	a := common.HexToAddress("0x0000000000000000000000000000000000000101")
	b := common.HexToAddress("0x0000000000000000000000000000000000000102")

	bank.mint(stateDB, tokenX, a, big.NewInt(100))

	if err := bank.Transfer(stateDB, tokenX, a, b, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := bank.BalanceOf(stateDB, tokenX, a); got.Int64() != 40 {
		t.Errorf("sender = %s, want 40", got)
	}
	if got := bank.BalanceOf(stateDB, tokenX, b); got.Int64() != 60 {
		t.Errorf("recipient = %s, want 60", got)
	}

	if err := bank.Transfer(stateDB, tokenX, a, b, big.NewInt(41)); err != ErrInsufficientBalance {
		t.Errorf("overdraft: got %v", err)
	}
	// Balances are per token
	if got := bank.BalanceOf(stateDB, tokenY, a); got.Sign() != 0 {
		t.Errorf("tokenY balance = %s, want 0", got)
	}
}

func TestBankTransferFrom(t *testing.T) {
	bank := NewTokenBank()
	stateDB := NewMockStateDB()
	owner := common.HexToAddress("0x0000000000000000000000000000000000000101")
	spender := common.HexToAddress("0x0000000000000000000000000000000000000102")
	sink := common.HexToAddress("0x0000000000000000000000000000000000000103")

	bank.mint(stateDB, tokenX, owner, big.NewInt(100))

	if err := bank.TransferFrom(stateDB, tokenX, owner, sink, spender, big.NewInt(10)); err != ErrInsufficientAllowance {
		t.Fatalf("no allowance: got %v", err)
	}

	bank.Approve(stateDB, tokenX, owner, spender, big.NewInt(50))
	if err := bank.TransferFrom(stateDB, tokenX, owner, sink, spender, big.NewInt(30)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := bank.Allowance(stateDB, tokenX, owner, spender); got.Int64() != 20 {
		t.Errorf("allowance = %s, want 20", got)
	}
	if got := bank.BalanceOf(stateDB, tokenX, sink); got.Int64() != 30 {
		t.Errorf("sink = %s, want 30", got)
	}

	if err := bank.TransferFrom(stateDB, tokenX, owner, sink, spender, big.NewInt(21)); err != ErrInsufficientAllowance {
		t.Errorf("allowance exceeded: got %v", err)
	}

	bank.Approve(stateDB, tokenX, owner, spender, big.NewInt(1000))
	if err := bank.TransferFrom(stateDB, tokenX, owner, sink, spender, big.NewInt(71)); err != ErrInsufficientBalance {
		t.Errorf("balance exceeded: got %v", err)
	}
}

func TestBankRevertDiscipline(t *testing.T) {
	bank := NewTokenBank()
	stateDB := NewMockStateDB()
	a := common.HexToAddress("0x0000000000000000000000000000000000000101")
	b := common.HexToAddress("0x0000000000000000000000000000000000000102")

	bank.mint(stateDB, tokenX, a, big.NewInt(100))

	snap := stateDB.Snapshot()
	if err := bank.Transfer(stateDB, tokenX, a, b, big.NewInt(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	stateDB.RevertToSnapshot(snap)

	if got := bank.BalanceOf(stateDB, tokenX, a); got.Int64() != 100 {
		t.Errorf("sender after revert = %s, want 100", got)
	}
	if got := bank.BalanceOf(stateDB, tokenX, b); got.Sign() != 0 {
		t.Errorf("recipient after revert = %s, want 0", got)
	}
}
