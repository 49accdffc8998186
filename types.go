// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vault implements the LXVault precompile family (LP-9030 series):
// pooled, share-based custody of concentrated-liquidity positions with
// owner-delegated automated maintenance.
//
// A vault holds exactly one live liquidity position on a (token0, token1, fee)
// pool plus idle token balances. Depositors receive fungible shares
// proportional to the value they contribute; the vault owner (or an operator
// presenting a signed automation order) rebalances, compounds, and eventually
// exits the position. All value routing happens through the in-state token
// bank, so every operation is atomic against the EVM state.
package vault

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Precompile addresses for LXVault components
// LP-aligned format: 0x0000000000000000000000000000000000LPNUM
const (
	// LP-9030 LXVault (vault engine)
	EngineAddress = "0x0000000000000000000000000000000000009030"
	// LP-9031 LXVaultFactory (vault registry + creation)
	FactoryAddress = "0x0000000000000000000000000000000000009031"
	// LP-9032 LXVaultAutomator (signed-order execution)
	AutomatorAddress = "0x0000000000000000000000000000000000009032"
)

// Gas costs for vault operations
const (
	GasCreateVault  uint64 = 60_000 // Deploy vault + initial position
	GasDeposit      uint64 = 30_000 // Deposit into vault
	GasWithdraw     uint64 = 30_000 // Withdraw from vault
	GasRebalance    uint64 = 80_000 // Full decrease/swap/mint cycle
	GasCompound     uint64 = 40_000 // Collect + reinvest fees
	GasExit         uint64 = 40_000 // Final decrease + collect
	GasExecuteOrder uint64 = 15_000 // Signature verification overhead
	GasVaultLookup  uint64 = 200    // Registry/state reads
)

// Pool fee tiers (hundredths of a basis point, 1e6 = 100%)
const (
	Fee001 uint24 = 100    // 0.01% - stablecoins
	Fee005 uint24 = 500    // 0.05% - stable pairs
	Fee030 uint24 = 3000   // 0.30% - standard
	Fee100 uint24 = 10000  // 1.00% - exotic pairs
	FeeMax uint24 = 100000 // 10% max fee
)

// Tick spacing for different fee tiers
const (
	TickSpacing001 int24 = 1
	TickSpacing005 int24 = 10
	TickSpacing030 int24 = 60
	TickSpacing100 int24 = 200
)

// TickSpacingForFee returns the tick spacing of a fee tier, or 0 if the fee
// is not a supported tier.
func TickSpacingForFee(fee uint24) int24 {
	switch fee {
	case Fee001:
		return TickSpacing001
	case Fee005:
		return TickSpacing005
	case Fee030:
		return TickSpacing030
	case Fee100:
		return TickSpacing100
	default:
		return 0
	}
}

// Basis point scale for vault fee cuts (owner + platform)
const (
	FeeBasisPointsMax uint24 = 10000 // 100%
)

// VaultState is the lifecycle state of a vault
type VaultState uint8

const (
	// VaultEmpty is the implicit pre-mint state: the vault exists and holds
	// seeded idle balances but no live position yet.
	VaultEmpty VaultState = iota
	// VaultActive means the vault owns exactly one live position.
	VaultActive
	// VaultExited is terminal: the position has been unwound and only idle
	// balances remain for withdrawal.
	VaultExited
)

func (s VaultState) String() string {
	switch s {
	case VaultEmpty:
		return "Empty"
	case VaultActive:
		return "Active"
	case VaultExited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// CreationParams are the caller-supplied parameters for creating a vault.
// Token0 must sort below Token1 by address.
type CreationParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            uint24
	TickLower      int24
	TickUpper      int24
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
}

// PoolID computes the unique pool identifier for a (token0, token1, fee) pair
func PoolID(token0, token1 common.Address, fee uint24) [32]byte {
	h := blake3.New()
	h.Write(token0.Bytes())
	h.Write(token1.Bytes())

	var feeBytes [4]byte
	binary.BigEndian.PutUint32(feeBytes[:], uint32(fee))
	h.Write(feeBytes[1:]) // uint24

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// makeStorageKey creates a storage key from prefix and identifier
func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// deriveAddress derives a deterministic synthetic account address from a
// domain tag and seed material (stand-in for CREATE2).
func deriveAddress(tag string, seed ...[]byte) common.Address {
	h := blake3.New()
	h.Write([]byte(tag))
	for _, s := range seed {
		h.Write(s)
	}
	var buf [32]byte
	h.Digest().Read(buf[:])
	return common.BytesToAddress(buf[12:])
}

// Errors - input validation
var (
	ErrIdenticalAddresses = errors.New("identical token addresses")
	ErrZeroAddress        = errors.New("zero address")
	ErrInvalidFee         = errors.New("invalid fee")
	ErrPoolNotFound       = errors.New("pool not found")
	ErrPoolExists         = errors.New("pool already exists")
	ErrCurrencyNotSorted  = errors.New("currencies not sorted")
	ErrInvalidTickRange   = errors.New("invalid tick range")
	ErrTickOutOfRange     = errors.New("tick out of range")
	ErrTickNotAligned     = errors.New("tick not aligned to spacing")
	ErrInvalidSqrtPrice   = errors.New("invalid sqrt price")
	ErrAmountBelowMin     = errors.New("amount below minimum")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// Errors - authorization and lifecycle
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnauthorizedAccount = errors.New("access control: unauthorized account")
	ErrEnforcedPause       = errors.New("enforced pause")
	ErrExpectedPause       = errors.New("expected pause")
	ErrReentrant           = errors.New("reentrancy detected")
	ErrInvalidPosition     = errors.New("invalid position")
	ErrVaultNotFound       = errors.New("vault not found")
)

// Errors - token bank
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Errors - shares
var (
	ErrZeroShares         = errors.New("would mint zero shares")
	ErrInsufficientShares = errors.New("insufficient shares")
)

// Errors - automation orders
var (
	ErrNotOperator      = errors.New("caller is not an operator")
	ErrOrderExpired     = errors.New("order expired")
	ErrInvalidSignature = errors.New("invalid order signature")
	ErrSignerMismatch   = errors.New("order signer is not the vault owner")
	ErrOrderChainID     = errors.New("order chain id mismatch")
	ErrOrderVault       = errors.New("order vault mismatch")
	ErrOutsideBounds    = errors.New("request outside order bounds")
)

// Errors - AMM
var (
	ErrNoLiquidity = errors.New("no liquidity in pool")
)

// Constants for math
var (
	Q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)
	Q192 = new(big.Int).Lsh(big.NewInt(1), 192)

	MinTick int24 = -887272
	MaxTick int24 = 887272

	MinSqrtRatio    = new(big.Int).SetUint64(4295128739)
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)
)

// uint24 type alias for fees
type uint24 = uint32

// int24 type alias for ticks
type int24 = int32
