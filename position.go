// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// PositionManager is the external position-management collaborator: it owns
// all liquidity positions on the AMM's pools and exposes the mint / increase
// / decrease / collect primitives the vault engine drives.
type PositionManager interface {
	Mint(stateDB StateDB, owner common.Address, pool *Pool, tickLower, tickUpper int24, amount0, amount1 *big.Int) (handle [32]byte, liquidity, used0, used1 *big.Int, err error)
	Increase(stateDB StateDB, handle [32]byte, amount0, amount1 *big.Int) (liquidity, used0, used1 *big.Int, err error)
	Decrease(stateDB StateDB, handle [32]byte, liquidity *big.Int) (amount0, amount1 *big.Int, err error)
	Collect(stateDB StateDB, handle [32]byte) (fee0, fee1 *big.Int, err error)
	Get(handle [32]byte) (*ManagedPosition, error)
}

// ManagedPosition is a liquidity position held by the manager on behalf of
// an owner account.
type ManagedPosition struct {
	Owner     common.Address
	Pool      *Pool
	TickLower int24
	TickUpper int24
	Liquidity *big.Int

	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int
	TokensOwed0              *big.Int
	TokensOwed1              *big.Int
}

// Clone returns a deep copy of the position
func (p *ManagedPosition) Clone() *ManagedPosition {
	return &ManagedPosition{
		Owner:                    p.Owner,
		Pool:                     p.Pool,
		TickLower:                p.TickLower,
		TickUpper:                p.TickUpper,
		Liquidity:                new(big.Int).Set(p.Liquidity),
		FeeGrowthInside0LastX128: new(big.Int).Set(p.FeeGrowthInside0LastX128),
		FeeGrowthInside1LastX128: new(big.Int).Set(p.FeeGrowthInside1LastX128),
		TokensOwed0:              new(big.Int).Set(p.TokensOwed0),
		TokensOwed1:              new(big.Int).Set(p.TokensOwed1),
	}
}

func (p *ManagedPosition) restore(from *ManagedPosition) {
	p.TickLower = from.TickLower
	p.TickUpper = from.TickUpper
	p.Liquidity.Set(from.Liquidity)
	p.FeeGrowthInside0LastX128.Set(from.FeeGrowthInside0LastX128)
	p.FeeGrowthInside1LastX128.Set(from.FeeGrowthInside1LastX128)
	p.TokensOwed0.Set(from.TokensOwed0)
	p.TokensOwed1.Set(from.TokensOwed1)
}

// PrincipalAmounts returns the token amounts the position's liquidity spans
// at the pool's current price.
func (p *ManagedPosition) PrincipalAmounts() (*big.Int, *big.Int) {
	return AmountsForLiquidity(
		p.Pool.SqrtPriceX96,
		SqrtRatioAtTick(p.TickLower),
		SqrtRatioAtTick(p.TickUpper),
		p.Liquidity,
	)
}

// positionHandle computes the unique handle for an owner's position
func positionHandle(owner common.Address, poolID [32]byte, tickLower, tickUpper int24, nonce uint64) [32]byte {
	h := blake3.New()
	h.Write(owner.Bytes())
	h.Write(poolID[:])

	var ticks [8]byte
	binary.BigEndian.PutUint32(ticks[:4], uint32(tickLower))
	binary.BigEndian.PutUint32(ticks[4:], uint32(tickUpper))
	h.Write(ticks[:])

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])

	var handle [32]byte
	h.Digest().Read(handle[:])
	return handle
}

// positionManager is the in-state PositionManager implementation
type positionManager struct {
	mu        sync.RWMutex
	bank      *TokenBank
	positions map[[32]byte]*ManagedPosition
	nonce     uint64
}

// NewPositionManager creates a position manager bound to the token bank
func NewPositionManager(bank *TokenBank) PositionManager {
	return &positionManager{
		bank:      bank,
		positions: make(map[[32]byte]*ManagedPosition),
	}
}

// Mint creates a new position funded from the owner's bank balances.
// The binding token side determines the liquidity; the unused remainder of
// the other side stays with the owner.
func (m *positionManager) Mint(stateDB StateDB, owner common.Address, pool *Pool, tickLower, tickUpper int24, amount0, amount1 *big.Int) ([32]byte, *big.Int, *big.Int, *big.Int, error) {
	if err := CheckTickRange(tickLower, tickUpper, pool.TickSpacing); err != nil {
		return [32]byte{}, nil, nil, nil, err
	}

	sqrtA := SqrtRatioAtTick(tickLower)
	sqrtB := SqrtRatioAtTick(tickUpper)
	liquidity := LiquidityForAmounts(pool.SqrtPriceX96, sqrtA, sqrtB, amount0, amount1)
	if liquidity.Sign() == 0 {
		return [32]byte{}, nil, nil, nil, ErrNoLiquidity
	}
	used0, used1 := AmountsForLiquidity(pool.SqrtPriceX96, sqrtA, sqrtB, liquidity)

	m.mu.Lock()
	defer m.mu.Unlock()

	account := pool.Account()
	if err := m.bank.Transfer(stateDB, pool.Token0, owner, account, used0); err != nil {
		return [32]byte{}, nil, nil, nil, err
	}
	if err := m.bank.Transfer(stateDB, pool.Token1, owner, account, used1); err != nil {
		return [32]byte{}, nil, nil, nil, err
	}

	if tickLower <= pool.Tick && pool.Tick < tickUpper {
		pool.Liquidity.Add(pool.Liquidity, liquidity)
	}

	m.nonce++
	handle := positionHandle(owner, pool.ID, tickLower, tickUpper, m.nonce)
	m.positions[handle] = &ManagedPosition{
		Owner:                    owner,
		Pool:                     pool,
		TickLower:                tickLower,
		TickUpper:                tickUpper,
		Liquidity:                liquidity,
		FeeGrowthInside0LastX128: new(big.Int).Set(pool.FeeGrowth0X128),
		FeeGrowthInside1LastX128: new(big.Int).Set(pool.FeeGrowth1X128),
		TokensOwed0:              big.NewInt(0),
		TokensOwed1:              big.NewInt(0),
	}
	return handle, liquidity, used0, used1, nil
}

// Increase adds liquidity to an existing position at its current range
func (m *positionManager) Increase(stateDB StateDB, handle [32]byte, amount0, amount1 *big.Int) (*big.Int, *big.Int, *big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[handle]
	if !ok {
		return nil, nil, nil, ErrInvalidPosition
	}
	pool := pos.Pool

	sqrtA := SqrtRatioAtTick(pos.TickLower)
	sqrtB := SqrtRatioAtTick(pos.TickUpper)
	liquidity := LiquidityForAmounts(pool.SqrtPriceX96, sqrtA, sqrtB, amount0, amount1)
	if liquidity.Sign() == 0 {
		return nil, nil, nil, ErrNoLiquidity
	}
	used0, used1 := AmountsForLiquidity(pool.SqrtPriceX96, sqrtA, sqrtB, liquidity)

	account := pool.Account()
	if err := m.bank.Transfer(stateDB, pool.Token0, pos.Owner, account, used0); err != nil {
		return nil, nil, nil, err
	}
	if err := m.bank.Transfer(stateDB, pool.Token1, pos.Owner, account, used1); err != nil {
		return nil, nil, nil, err
	}

	m.accrue(pos)
	pos.Liquidity.Add(pos.Liquidity, liquidity)
	if pos.TickLower <= pool.Tick && pool.Tick < pos.TickUpper {
		pool.Liquidity.Add(pool.Liquidity, liquidity)
	}
	return liquidity, used0, used1, nil
}

// Decrease removes liquidity from a position, paying the principal amounts
// back to the owner. Fees accrued so far stay owed until Collect.
func (m *positionManager) Decrease(stateDB StateDB, handle [32]byte, liquidity *big.Int) (*big.Int, *big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[handle]
	if !ok {
		return nil, nil, ErrInvalidPosition
	}
	if liquidity == nil || liquidity.Sign() < 0 || liquidity.Cmp(pos.Liquidity) > 0 {
		return nil, nil, ErrInvalidAmount
	}
	pool := pos.Pool

	m.accrue(pos)

	sqrtA := SqrtRatioAtTick(pos.TickLower)
	sqrtB := SqrtRatioAtTick(pos.TickUpper)
	amount0, amount1 := AmountsForLiquidity(pool.SqrtPriceX96, sqrtA, sqrtB, liquidity)

	account := pool.Account()
	if err := m.bank.Transfer(stateDB, pool.Token0, account, pos.Owner, amount0); err != nil {
		return nil, nil, err
	}
	if err := m.bank.Transfer(stateDB, pool.Token1, account, pos.Owner, amount1); err != nil {
		return nil, nil, err
	}

	pos.Liquidity.Sub(pos.Liquidity, liquidity)
	if pos.TickLower <= pool.Tick && pool.Tick < pos.TickUpper {
		pool.Liquidity.Sub(pool.Liquidity, liquidity)
	}
	return amount0, amount1, nil
}

// Collect harvests the position's accrued fees to the owner
func (m *positionManager) Collect(stateDB StateDB, handle [32]byte) (*big.Int, *big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[handle]
	if !ok {
		return nil, nil, ErrInvalidPosition
	}
	pool := pos.Pool

	m.accrue(pos)

	fee0 := new(big.Int).Set(pos.TokensOwed0)
	fee1 := new(big.Int).Set(pos.TokensOwed1)

	account := pool.Account()
	if err := m.bank.Transfer(stateDB, pool.Token0, account, pos.Owner, fee0); err != nil {
		return nil, nil, err
	}
	if err := m.bank.Transfer(stateDB, pool.Token1, account, pos.Owner, fee1); err != nil {
		return nil, nil, err
	}

	pos.TokensOwed0.SetInt64(0)
	pos.TokensOwed1.SetInt64(0)
	return fee0, fee1, nil
}

// Get returns the position for a handle
func (m *positionManager) Get(handle [32]byte) (*ManagedPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.positions[handle]
	if !ok {
		return nil, ErrInvalidPosition
	}
	return pos, nil
}

// accrue rolls the pool's fee growth since the last snapshot into the
// position's owed tokens: owed += L * (growth - last) / Q128
func (m *positionManager) accrue(pos *ManagedPosition) {
	if pos.Liquidity.Sign() > 0 {
		delta0 := new(big.Int).Sub(pos.Pool.FeeGrowth0X128, pos.FeeGrowthInside0LastX128)
		if delta0.Sign() > 0 {
			owed := new(big.Int).Mul(delta0, pos.Liquidity)
			pos.TokensOwed0.Add(pos.TokensOwed0, owed.Div(owed, Q128))
		}
		delta1 := new(big.Int).Sub(pos.Pool.FeeGrowth1X128, pos.FeeGrowthInside1LastX128)
		if delta1.Sign() > 0 {
			owed := new(big.Int).Mul(delta1, pos.Liquidity)
			pos.TokensOwed1.Add(pos.TokensOwed1, owed.Div(owed, Q128))
		}
	}
	pos.FeeGrowthInside0LastX128.Set(pos.Pool.FeeGrowth0X128)
	pos.FeeGrowthInside1LastX128.Set(pos.Pool.FeeGrowth1X128)
}
