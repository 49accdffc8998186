// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
)

// Method selectors for the vault engine
const (
	SelectorCreateVault  uint32 = 0x01000000 // createVault(address,address,uint24,int24,int24,uint256,uint256,uint256,uint256,address,uint16)
	SelectorDeposit      uint32 = 0x02000000 // deposit(address,uint256,uint256,uint256,uint256,address)
	SelectorWithdraw     uint32 = 0x03000000 // withdraw(address,uint256,address,uint256,uint256)
	SelectorRebalance    uint32 = 0x04000000 // rebalance(address,int24,int24,uint256,uint256,uint256,uint256)
	SelectorCompound     uint32 = 0x05000000 // compound(address,uint256,uint256)
	SelectorExit         uint32 = 0x06000000 // exit(address,address,uint256,uint256)
	SelectorExecuteOrder uint32 = 0x07000000 // executeOrder(uint8,address,uint256,uint256,bytes65,bytes)
	SelectorVaultCount   uint32 = 0x08000000 // allVaultsLength()
	SelectorVaultAt      uint32 = 0x09000000 // vaultAt(uint256)
	SelectorTotalValue   uint32 = 0x0A000000 // totalValue(address)
	SelectorShareBalance uint32 = 0x0B000000 // shareBalance(address,address)
)

// Order operation codes for SelectorExecuteOrder
const (
	OrderOpRebalance byte = 0
	OrderOpCompound  byte = 1
	OrderOpExit      byte = 2
)

// Engine bundles the vault family's collaborators behind one precompile
type Engine struct {
	chainID   uint64
	bank      *TokenBank
	amm       *AMM
	positions PositionManager
	policy    *AccessPolicy
	factory   *Factory
	automator *Automator
}

// NewEngine wires a complete vault engine
func NewEngine(chainID uint64, admin, platformRecipient common.Address, platformFeeBps uint16) *Engine {
	bank := NewTokenBank()
	amm := NewAMM(bank)
	positions := NewPositionManager(bank)
	policy := NewAccessPolicy(admin)
	factory := NewFactory(amm, bank, positions, policy, platformFeeBps, platformRecipient)
	return &Engine{
		chainID:   chainID,
		bank:      bank,
		amm:       amm,
		positions: positions,
		policy:    policy,
		factory:   factory,
		automator: NewAutomator(chainID, policy, factory),
	}
}

// Bank returns the engine's token bank
func (e *Engine) Bank() *TokenBank { return e.bank }

// AMM returns the engine's pool registry
func (e *Engine) AMM() *AMM { return e.amm }

// Factory returns the engine's vault factory
func (e *Engine) Factory() *Factory { return e.factory }

// Automator returns the engine's order verifier
func (e *Engine) Automator() *Automator { return e.automator }

// Policy returns the engine's access policy
func (e *Engine) Policy() *AccessPolicy { return e.policy }

// VaultContract implements the vault precompile
type VaultContract struct {
	mu     sync.RWMutex
	engine *Engine
}

// NewVaultContract creates an unconfigured contract; Configure installs the
// engine before the chain dispatches calls.
func NewVaultContract() *VaultContract {
	return &VaultContract{}
}

// SetEngine installs the configured engine
func (c *VaultContract) SetEngine(engine *Engine) {
	c.mu.Lock()
	c.engine = engine
	c.mu.Unlock()
}

// Engine returns the installed engine
func (c *VaultContract) Engine() *Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// word reads the i-th 32-byte argument
func word(input []byte, i int) []byte {
	return input[i*32 : (i+1)*32]
}

func wordBig(input []byte, i int) *big.Int {
	return new(big.Int).SetBytes(word(input, i))
}

func wordAddress(input []byte, i int) common.Address {
	return common.BytesToAddress(word(input, i)[12:])
}

// wordInt24 reads a tick argument; the low 4 bytes carry the two's
// complement value.
func wordInt24(input []byte, i int) int24 {
	w := word(input, i)
	return int24(binary.BigEndian.Uint32(w[28:]))
}

// Run executes the precompile
func (c *VaultContract) Run(
	accessibleState AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	engine := c.Engine()
	if engine == nil {
		return nil, suppliedGas, fmt.Errorf("vault engine not configured")
	}
	if len(input) < 4 {
		return nil, suppliedGas, fmt.Errorf("input too short")
	}

	selector := binary.BigEndian.Uint32(input[:4])
	data := input[4:]

	gasCost := c.RequiredGas(input)
	if suppliedGas < gasCost {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remainingGas = suppliedGas - gasCost

	switch selector {
	case SelectorVaultCount, SelectorVaultAt, SelectorTotalValue, SelectorShareBalance:
		// reads are allowed in read-only mode
	default:
		if readOnly {
			return nil, remainingGas, fmt.Errorf("cannot write in read-only mode")
		}
	}

	stateDB := accessibleState.GetStateDB()

	switch selector {
	case SelectorCreateVault:
		ret, err = c.runCreateVault(engine, stateDB, caller, data)
	case SelectorDeposit:
		ret, err = c.runDeposit(engine, stateDB, caller, data)
	case SelectorWithdraw:
		ret, err = c.runWithdraw(engine, stateDB, caller, data)
	case SelectorRebalance:
		ret, err = c.runRebalance(engine, stateDB, caller, data)
	case SelectorCompound:
		ret, err = c.runCompound(engine, stateDB, caller, data)
	case SelectorExit:
		ret, err = c.runExit(engine, stateDB, caller, data)
	case SelectorExecuteOrder:
		ret, err = c.runExecuteOrder(engine, stateDB, caller, data)
	case SelectorVaultCount:
		ret, err = c.runVaultCount(engine)
	case SelectorVaultAt:
		ret, err = c.runVaultAt(engine, data)
	case SelectorTotalValue:
		ret, err = c.runTotalValue(engine, stateDB, data)
	case SelectorShareBalance:
		ret, err = c.runShareBalance(engine, data)
	default:
		err = fmt.Errorf("unknown method selector: %x", selector)
	}
	return ret, remainingGas, err
}

// RequiredGas returns the gas required for the precompile input
func (c *VaultContract) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return GasVaultLookup
	}
	switch binary.BigEndian.Uint32(input[:4]) {
	case SelectorCreateVault:
		return GasCreateVault
	case SelectorDeposit:
		return GasDeposit
	case SelectorWithdraw:
		return GasWithdraw
	case SelectorRebalance:
		return GasRebalance
	case SelectorCompound:
		return GasCompound
	case SelectorExit:
		return GasExit
	case SelectorExecuteOrder:
		return GasExecuteOrder + GasRebalance
	default:
		return GasVaultLookup
	}
}

func (c *VaultContract) runCreateVault(engine *Engine, stateDB StateDB, caller common.Address, input []byte) ([]byte, error) {
	if len(input) < 11*32 {
		return nil, fmt.Errorf("input too short")
	}
	params := CreationParams{
		Token0:         wordAddress(input, 0),
		Token1:         wordAddress(input, 1),
		Fee:            uint24(wordBig(input, 2).Uint64()),
		TickLower:      wordInt24(input, 3),
		TickUpper:      wordInt24(input, 4),
		Amount0Desired: wordBig(input, 5),
		Amount1Desired: wordBig(input, 6),
		Amount0Min:     wordBig(input, 7),
		Amount1Min:     wordBig(input, 8),
		Recipient:      wordAddress(input, 9),
	}
	ownerFeeBps := uint16(wordBig(input, 10).Uint64())

	v, err := engine.factory.CreateVault(stateDB, caller, params, ownerFeeBps, "LXVault Share", "LXVS")
	if err != nil {
		return nil, err
	}
	result := make([]byte, 32)
	copy(result[12:], v.Account().Bytes())
	return result, nil
}

func (c *VaultContract) runDeposit(engine *Engine, stateDB StateDB, caller common.Address, input []byte) ([]byte, error) {
	if len(input) < 6*32 {
		return nil, fmt.Errorf("input too short")
	}
	v, err := engine.factory.VaultByAccount(wordAddress(input, 0))
	if err != nil {
		return nil, err
	}
	shares, err := v.Deposit(stateDB, caller,
		wordBig(input, 1), wordBig(input, 2),
		wordBig(input, 3), wordBig(input, 4),
		wordAddress(input, 5))
	if err != nil {
		return nil, err
	}
	result := make([]byte, 32)
	shares.FillBytes(result)
	return result, nil
}

func (c *VaultContract) runWithdraw(engine *Engine, stateDB StateDB, caller common.Address, input []byte) ([]byte, error) {
	if len(input) < 5*32 {
		return nil, fmt.Errorf("input too short")
	}
	v, err := engine.factory.VaultByAccount(wordAddress(input, 0))
	if err != nil {
		return nil, err
	}
	amount0, amount1, err := v.Withdraw(stateDB, caller,
		wordBig(input, 1), wordAddress(input, 2),
		wordBig(input, 3), wordBig(input, 4))
	if err != nil {
		return nil, err
	}
	result := make([]byte, 64)
	amount0.FillBytes(result[:32])
	amount1.FillBytes(result[32:])
	return result, nil
}

func (c *VaultContract) runRebalance(engine *Engine, stateDB StateDB, caller common.Address, input []byte) ([]byte, error) {
	if len(input) < 7*32 {
		return nil, fmt.Errorf("input too short")
	}
	v, err := engine.factory.VaultByAccount(wordAddress(input, 0))
	if err != nil {
		return nil, err
	}
	err = v.Rebalance(stateDB, caller,
		wordInt24(input, 1), wordInt24(input, 2),
		wordBig(input, 3), wordBig(input, 4),
		wordBig(input, 5), wordBig(input, 6))
	return nil, err
}

func (c *VaultContract) runCompound(engine *Engine, stateDB StateDB, caller common.Address, input []byte) ([]byte, error) {
	if len(input) < 3*32 {
		return nil, fmt.Errorf("input too short")
	}
	v, err := engine.factory.VaultByAccount(wordAddress(input, 0))
	if err != nil {
		return nil, err
	}
	return nil, v.Compound(stateDB, caller, wordBig(input, 1), wordBig(input, 2))
}

func (c *VaultContract) runExit(engine *Engine, stateDB StateDB, caller common.Address, input []byte) ([]byte, error) {
	if len(input) < 4*32 {
		return nil, fmt.Errorf("input too short")
	}
	v, err := engine.factory.VaultByAccount(wordAddress(input, 0))
	if err != nil {
		return nil, err
	}
	amount0, amount1, err := v.Exit(stateDB, caller, wordAddress(input, 1),
		wordBig(input, 2), wordBig(input, 3))
	if err != nil {
		return nil, err
	}
	result := make([]byte, 64)
	amount0.FillBytes(result[:32])
	amount1.FillBytes(result[32:])
	return result, nil
}

// runExecuteOrder input layout: op word, vault word, amount0Min, amount1Min,
// 65-byte signature, then the order payload.
func (c *VaultContract) runExecuteOrder(engine *Engine, stateDB StateDB, caller common.Address, input []byte) ([]byte, error) {
	if len(input) < 4*32+65 {
		return nil, fmt.Errorf("input too short")
	}
	op := word(input, 0)[31]
	vaultAccount := wordAddress(input, 1)
	amount0Min := wordBig(input, 2)
	amount1Min := wordBig(input, 3)
	sig := input[4*32 : 4*32+65]
	payload := input[4*32+65:]

	switch op {
	case OrderOpRebalance:
		order, err := DecodeOrder(payload)
		if err != nil {
			return nil, err
		}
		if order.Vault != vaultAccount {
			return nil, ErrOrderVault
		}
		return nil, engine.automator.ExecuteRebalance(stateDB, caller, order, sig)
	case OrderOpCompound:
		return nil, engine.automator.ExecuteCompound(stateDB, caller, vaultAccount, amount0Min, amount1Min, payload, sig)
	case OrderOpExit:
		return nil, engine.automator.ExecuteExit(stateDB, caller, vaultAccount, amount0Min, amount1Min, payload, sig)
	default:
		return nil, fmt.Errorf("unknown order op: %d", op)
	}
}

func (c *VaultContract) runVaultCount(engine *Engine) ([]byte, error) {
	result := make([]byte, 32)
	binary.BigEndian.PutUint64(result[24:], engine.factory.AllVaultsLength())
	return result, nil
}

func (c *VaultContract) runVaultAt(engine *Engine, input []byte) ([]byte, error) {
	if len(input) < 32 {
		return nil, fmt.Errorf("input too short")
	}
	v, err := engine.factory.VaultAt(wordBig(input, 0).Uint64())
	if err != nil {
		return nil, err
	}
	result := make([]byte, 32)
	copy(result[12:], v.Account().Bytes())
	return result, nil
}

func (c *VaultContract) runTotalValue(engine *Engine, stateDB StateDB, input []byte) ([]byte, error) {
	if len(input) < 32 {
		return nil, fmt.Errorf("input too short")
	}
	v, err := engine.factory.VaultByAccount(wordAddress(input, 0))
	if err != nil {
		return nil, err
	}
	result := make([]byte, 32)
	v.TotalValue(stateDB).FillBytes(result)
	return result, nil
}

func (c *VaultContract) runShareBalance(engine *Engine, input []byte) ([]byte, error) {
	if len(input) < 64 {
		return nil, fmt.Errorf("input too short")
	}
	v, err := engine.factory.VaultByAccount(wordAddress(input, 0))
	if err != nil {
		return nil, err
	}
	result := make([]byte, 32)
	v.Shares().BalanceOf(wordAddress(input, 1)).FillBytes(result)
	return result, nil
}
