// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
)

// Vault pools depositor funds into a single concentrated-liquidity position
// and accounts ownership through a share ledger. The lifecycle is
// Empty -> Active -> Exited; Exited is terminal.
type Vault struct {
	mu   sync.Mutex
	busy bool

	ID      [32]byte
	Owner   common.Address
	account common.Address

	pool      *Pool
	amm       *AMM
	bank      *TokenBank
	positions PositionManager
	ledger    *ShareLedger
	policy    *AccessPolicy

	state       VaultState
	handle      [32]byte
	hasPosition bool
	tickLower   int24
	tickUpper   int24

	ownerFeeBps       uint16
	platformFeeBps    uint16
	platformRecipient common.Address
}

// NewVault wires a vault to its collaborators. Funding and the initial
// position mint are the factory's job.
func NewVault(id [32]byte, owner common.Address, pool *Pool, amm *AMM, bank *TokenBank, positions PositionManager, policy *AccessPolicy, name, symbol string, ownerFeeBps, platformFeeBps uint16, platformRecipient common.Address) *Vault {
	return &Vault{
		ID:                id,
		Owner:             owner,
		account:           deriveAddress("lxvault/vault", id[:]),
		pool:              pool,
		amm:               amm,
		bank:              bank,
		positions:         positions,
		ledger:            NewShareLedger(name, symbol),
		policy:            policy,
		state:             VaultEmpty,
		ownerFeeBps:       ownerFeeBps,
		platformFeeBps:    platformFeeBps,
		platformRecipient: platformRecipient,
	}
}

// Account returns the vault's bank account address
func (v *Vault) Account() common.Address { return v.account }

// State returns the lifecycle state
func (v *Vault) State() VaultState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Shares exposes the vault's share ledger
func (v *Vault) Shares() *ShareLedger { return v.ledger }

// Pool returns the underlying pool
func (v *Vault) Pool() *Pool { return v.pool }

// TickRange returns the live position's bounds
func (v *Vault) TickRange() (int24, int24) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tickLower, v.tickUpper
}

// Position returns the live position, or ErrInvalidPosition when none exists
func (v *Vault) Position() (*ManagedPosition, error) {
	v.mu.Lock()
	handle, has := v.handle, v.hasPosition
	v.mu.Unlock()
	if !has {
		return nil, ErrInvalidPosition
	}
	return v.positions.Get(handle)
}

// OwnerFeeBps returns the owner's compounding fee cut
func (v *Vault) OwnerFeeBps() uint16 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ownerFeeBps
}

// SetOwnerFee adjusts the owner's compounding cut, keeping the combined cut
// within the basis-point ceiling.
func (v *Vault) SetOwnerFee(caller common.Address, bps uint16) error {
	if caller != v.Owner {
		return ErrUnauthorizedAccount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if uint32(bps)+uint32(v.platformFeeBps) > FeeBasisPointsMax {
		return ErrInvalidFee
	}
	v.ownerFeeBps = bps
	return nil
}

// busy-flag reentrancy guard
func (v *Vault) lock() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.busy {
		return ErrReentrant
	}
	v.busy = true
	return nil
}

func (v *Vault) unlock() {
	v.mu.Lock()
	v.busy = false
	v.mu.Unlock()
}

// valueInToken1 prices (amount0, amount1) in token1 units at sqrtPriceX96:
// amount0 * sqrtP^2 / Q192 + amount1
func valueInToken1(sqrtPriceX96, amount0, amount1 *big.Int) *big.Int {
	val := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	val.Mul(val, amount0)
	val.Div(val, Q192)
	return val.Add(val, amount1)
}

// pendingFees returns the position's accrued-but-uncollected fees without
// mutating its snapshots.
func pendingFees(pos *ManagedPosition) (*big.Int, *big.Int) {
	fee0 := new(big.Int).Set(pos.TokensOwed0)
	fee1 := new(big.Int).Set(pos.TokensOwed1)
	if pos.Liquidity.Sign() > 0 {
		if delta := new(big.Int).Sub(pos.Pool.FeeGrowth0X128, pos.FeeGrowthInside0LastX128); delta.Sign() > 0 {
			delta.Mul(delta, pos.Liquidity)
			fee0.Add(fee0, delta.Div(delta, Q128))
		}
		if delta := new(big.Int).Sub(pos.Pool.FeeGrowth1X128, pos.FeeGrowthInside1LastX128); delta.Sign() > 0 {
			delta.Mul(delta, pos.Liquidity)
			fee1.Add(fee1, delta.Div(delta, Q128))
		}
	}
	return fee0, fee1
}

// totals returns the vault's pooled token amounts: idle balances plus the
// live position's principal and pending fees.
func (v *Vault) totals(stateDB StateDB) (*big.Int, *big.Int) {
	total0 := v.bank.BalanceOf(stateDB, v.pool.Token0, v.account)
	total1 := v.bank.BalanceOf(stateDB, v.pool.Token1, v.account)
	if v.hasPosition {
		if pos, err := v.positions.Get(v.handle); err == nil {
			p0, p1 := pos.PrincipalAmounts()
			f0, f1 := pendingFees(pos)
			total0.Add(total0.Add(total0, p0), f0)
			total1.Add(total1.Add(total1, p1), f1)
		}
	}
	return total0, total1
}

// TotalValue returns the vault's pooled value in token1 units
func (v *Vault) TotalValue(stateDB StateDB) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	total0, total1 := v.totals(stateDB)
	return valueInToken1(v.pool.SqrtPriceX96, total0, total1)
}

// vaultSnapshot captures everything a failed multi-step operation must
// restore: the StateDB revision plus the in-memory pool, position, ledger,
// and lifecycle fields.
type vaultSnapshot struct {
	revision    int
	pool        *Pool
	position    *ManagedPosition
	ledger      *ShareLedger
	state       VaultState
	handle      [32]byte
	hasPosition bool
	tickLower   int24
	tickUpper   int24
}

func (v *Vault) snapshot(stateDB StateDB) *vaultSnapshot {
	snap := &vaultSnapshot{
		revision:    stateDB.Snapshot(),
		pool:        v.pool.Clone(),
		ledger:      v.ledger.Clone(),
		state:       v.state,
		handle:      v.handle,
		hasPosition: v.hasPosition,
		tickLower:   v.tickLower,
		tickUpper:   v.tickUpper,
	}
	if v.hasPosition {
		if pos, err := v.positions.Get(v.handle); err == nil {
			snap.position = pos.Clone()
		}
	}
	return snap
}

func (v *Vault) rollback(stateDB StateDB, snap *vaultSnapshot) {
	stateDB.RevertToSnapshot(snap.revision)
	v.pool.restore(snap.pool)
	v.ledger.restore(snap.ledger)
	v.state = snap.state
	v.handle = snap.handle
	v.hasPosition = snap.hasPosition
	v.tickLower = snap.tickLower
	v.tickUpper = snap.tickUpper
	if snap.position != nil {
		if pos, err := v.positions.Get(snap.handle); err == nil {
			pos.restore(snap.position)
		}
	}
}

// MintPosition performs the one-time Empty -> Active transition: it deploys
// the idle balances the factory seeded into a fresh position and mints the
// bootstrap shares to the recipient at one share per token1 unit of value.
// A second call fails ErrUnauthorized.
func (v *Vault) MintPosition(stateDB StateDB, caller, recipient common.Address, tickLower, tickUpper int24, amount0Min, amount1Min *big.Int) error {
	if err := v.policy.RequireNotPaused(); err != nil {
		return err
	}
	if caller != v.Owner {
		return ErrUnauthorizedAccount
	}
	if err := v.lock(); err != nil {
		return err
	}
	defer v.unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != VaultEmpty || v.hasPosition {
		return ErrUnauthorized
	}

	idle0 := v.bank.BalanceOf(stateDB, v.pool.Token0, v.account)
	idle1 := v.bank.BalanceOf(stateDB, v.pool.Token1, v.account)
	deposited := valueInToken1(v.pool.SqrtPriceX96, idle0, idle1)
	if deposited.Sign() == 0 {
		return ErrInvalidAmount
	}

	snap := v.snapshot(stateDB)
	handle, _, used0, used1, err := v.positions.Mint(stateDB, v.account, v.pool, tickLower, tickUpper, idle0, idle1)
	if err != nil {
		v.rollback(stateDB, snap)
		return err
	}
	if used0.Cmp(amount0Min) < 0 || used1.Cmp(amount1Min) < 0 {
		v.rollback(stateDB, snap)
		return ErrAmountBelowMin
	}

	if err := v.ledger.Mint(recipient, deposited); err != nil {
		v.rollback(stateDB, snap)
		return err
	}
	v.handle = handle
	v.hasPosition = true
	v.tickLower = tickLower
	v.tickUpper = tickUpper
	v.state = VaultActive
	return nil
}

// Deposit pulls funds from the caller pro-rata against the vault's current
// holdings, mints shares for the deposited value, and deploys the pulled
// amounts into the live position. Exited vaults reject deposits.
func (v *Vault) Deposit(stateDB StateDB, caller common.Address, amount0Desired, amount1Desired, amount0Min, amount1Min *big.Int, recipient common.Address) (*big.Int, error) {
	if err := v.policy.RequireNotPaused(); err != nil {
		return nil, err
	}
	if err := v.lock(); err != nil {
		return nil, err
	}
	defer v.unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == VaultExited {
		return nil, ErrInvalidPosition
	}

	total0, total1 := v.totals(stateDB)
	totalValue := valueInToken1(v.pool.SqrtPriceX96, total0, total1)
	totalShares := v.ledger.TotalSupply()

	use0, use1 := fitDeposit(amount0Desired, amount1Desired, total0, total1, totalShares)
	if use0.Cmp(amount0Min) < 0 || use1.Cmp(amount1Min) < 0 {
		return nil, ErrAmountBelowMin
	}
	deposited := valueInToken1(v.pool.SqrtPriceX96, use0, use1)
	if deposited.Sign() == 0 {
		return nil, ErrZeroShares
	}

	var shares *big.Int
	if totalShares.Sign() == 0 || totalValue.Sign() == 0 {
		shares = deposited
	} else {
		shares = new(big.Int).Mul(totalShares, deposited)
		shares.Div(shares, totalValue)
	}
	if shares.Sign() == 0 {
		return nil, ErrZeroShares
	}

	snap := v.snapshot(stateDB)
	if err := v.bank.TransferFrom(stateDB, v.pool.Token0, caller, v.account, engineAddr, use0); err != nil {
		v.rollback(stateDB, snap)
		return nil, err
	}
	if err := v.bank.TransferFrom(stateDB, v.pool.Token1, caller, v.account, engineAddr, use1); err != nil {
		v.rollback(stateDB, snap)
		return nil, err
	}
	if err := v.ledger.Mint(recipient, shares); err != nil {
		v.rollback(stateDB, snap)
		return nil, err
	}

	// Deploy into the live position; dust too small to mint liquidity
	// stays idle.
	if v.hasPosition {
		if _, _, _, err := v.positions.Increase(stateDB, v.handle, use0, use1); err != nil && err != ErrNoLiquidity {
			v.rollback(stateDB, snap)
			return nil, err
		}
	}
	return shares, nil
}

// fitDeposit scales the desired amounts down to the vault's current token
// ratio so a deposit never skews the holdings. A bootstrap deposit (no
// shares yet) is taken as-is.
func fitDeposit(amount0Desired, amount1Desired, total0, total1, totalShares *big.Int) (*big.Int, *big.Int) {
	if totalShares.Sign() == 0 {
		return new(big.Int).Set(amount0Desired), new(big.Int).Set(amount1Desired)
	}
	if total0.Sign() == 0 {
		return big.NewInt(0), new(big.Int).Set(amount1Desired)
	}
	if total1.Sign() == 0 {
		return new(big.Int).Set(amount0Desired), big.NewInt(0)
	}

	// cross-multiply: desired0 * total1 vs desired1 * total0
	lhs := new(big.Int).Mul(amount0Desired, total1)
	rhs := new(big.Int).Mul(amount1Desired, total0)
	if lhs.Cmp(rhs) <= 0 {
		use1 := lhs.Div(lhs, total0)
		return new(big.Int).Set(amount0Desired), use1
	}
	use0 := rhs.Div(rhs, total1)
	return use0, new(big.Int).Set(amount1Desired)
}

// Withdraw burns the caller's shares and pays out the proportional slice of
// the vault: the share fraction of the idle balances and collected fees, plus
// the full proceeds of the pro-rata liquidity decrease. The decrease and the
// fee collection land in the vault account first, so the payout is sized from
// the pre-decrease idle balance to keep the position slice whole. Exited
// vaults pay from idle only.
func (v *Vault) Withdraw(stateDB StateDB, caller common.Address, shares *big.Int, recipient common.Address, amount0Min, amount1Min *big.Int) (*big.Int, *big.Int, error) {
	if err := v.policy.RequireNotPaused(); err != nil {
		return nil, nil, err
	}
	if err := v.lock(); err != nil {
		return nil, nil, err
	}
	defer v.unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if shares == nil || shares.Sign() <= 0 {
		return nil, nil, ErrZeroShares
	}
	totalShares := v.ledger.TotalSupply()
	if totalShares.Sign() == 0 || v.ledger.BalanceOf(caller).Cmp(shares) < 0 {
		return nil, nil, ErrInsufficientShares
	}

	snap := v.snapshot(stateDB)

	// Idle before any position proceeds arrive; the withdrawer gets the
	// share fraction of this plus the share fraction of collected fees,
	// plus the whole decrease output (the cut already is their fraction
	// of the liquidity).
	idle0 := v.bank.BalanceOf(stateDB, v.pool.Token0, v.account)
	idle1 := v.bank.BalanceOf(stateDB, v.pool.Token1, v.account)
	fee0, fee1 := big.NewInt(0), big.NewInt(0)
	dec0, dec1 := big.NewInt(0), big.NewInt(0)

	if v.state == VaultActive && v.hasPosition {
		pos, err := v.positions.Get(v.handle)
		if err != nil {
			return nil, nil, err
		}
		fee0, fee1, err = v.positions.Collect(stateDB, v.handle)
		if err != nil {
			v.rollback(stateDB, snap)
			return nil, nil, err
		}
		if pos.Liquidity.Sign() > 0 {
			cut := new(big.Int).Mul(pos.Liquidity, shares)
			cut.Div(cut, totalShares)
			if cut.Sign() > 0 {
				dec0, dec1, err = v.positions.Decrease(stateDB, v.handle, cut)
				if err != nil {
					v.rollback(stateDB, snap)
					return nil, nil, err
				}
			}
		}
	}

	out0 := new(big.Int).Add(idle0, fee0)
	out0.Mul(out0, shares)
	out0.Div(out0, totalShares)
	out0.Add(out0, dec0)
	out1 := new(big.Int).Add(idle1, fee1)
	out1.Mul(out1, shares)
	out1.Div(out1, totalShares)
	out1.Add(out1, dec1)
	if out0.Cmp(amount0Min) < 0 || out1.Cmp(amount1Min) < 0 {
		v.rollback(stateDB, snap)
		return nil, nil, ErrAmountBelowMin
	}

	if err := v.ledger.Burn(caller, shares); err != nil {
		v.rollback(stateDB, snap)
		return nil, nil, err
	}
	if err := v.bank.Transfer(stateDB, v.pool.Token0, v.account, recipient, out0); err != nil {
		v.rollback(stateDB, snap)
		return nil, nil, err
	}
	if err := v.bank.Transfer(stateDB, v.pool.Token1, v.account, recipient, out1); err != nil {
		v.rollback(stateDB, snap)
		return nil, nil, err
	}
	return out0, out1, nil
}

// Rebalance moves the whole position to a new tick range: decrease all
// liquidity, collect fees, swap toward the new range's ratio, and mint at
// the new bounds. The sequence is atomic; any failed step restores the
// pre-call state.
func (v *Vault) Rebalance(stateDB StateDB, caller common.Address, newTickLower, newTickUpper int24, decrease0Min, decrease1Min, amount0Min, amount1Min *big.Int) error {
	if err := v.policy.RequireNotPaused(); err != nil {
		return err
	}
	if caller != v.Owner {
		return ErrUnauthorizedAccount
	}
	if err := v.lock(); err != nil {
		return err
	}
	defer v.unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != VaultActive || !v.hasPosition {
		return ErrInvalidPosition
	}

	snap := v.snapshot(stateDB)

	pos, err := v.positions.Get(v.handle)
	if err != nil {
		return err
	}
	removed0, removed1 := big.NewInt(0), big.NewInt(0)
	if pos.Liquidity.Sign() > 0 {
		removed0, removed1, err = v.positions.Decrease(stateDB, v.handle, new(big.Int).Set(pos.Liquidity))
		if err != nil {
			v.rollback(stateDB, snap)
			return err
		}
	}
	if removed0.Cmp(decrease0Min) < 0 || removed1.Cmp(decrease1Min) < 0 {
		v.rollback(stateDB, snap)
		return ErrAmountBelowMin
	}
	if _, _, err := v.positions.Collect(stateDB, v.handle); err != nil {
		v.rollback(stateDB, snap)
		return err
	}

	idle0 := v.bank.BalanceOf(stateDB, v.pool.Token0, v.account)
	idle1 := v.bank.BalanceOf(stateDB, v.pool.Token1, v.account)
	plan, err := OptimalSwap(v.pool, newTickLower, newTickUpper, idle0, idle1)
	if err != nil {
		v.rollback(stateDB, snap)
		return err
	}
	if !plan.NoSwap() {
		if _, err := v.amm.Swap(stateDB, v.pool, v.account, plan.ZeroForOne, plan.AmountIn, big.NewInt(0)); err != nil {
			v.rollback(stateDB, snap)
			return err
		}
		idle0 = v.bank.BalanceOf(stateDB, v.pool.Token0, v.account)
		idle1 = v.bank.BalanceOf(stateDB, v.pool.Token1, v.account)
	}

	handle, _, used0, used1, err := v.positions.Mint(stateDB, v.account, v.pool, newTickLower, newTickUpper, idle0, idle1)
	if err != nil {
		v.rollback(stateDB, snap)
		return err
	}
	if used0.Cmp(amount0Min) < 0 || used1.Cmp(amount1Min) < 0 {
		v.rollback(stateDB, snap)
		return ErrAmountBelowMin
	}
	v.handle = handle
	v.tickLower = newTickLower
	v.tickUpper = newTickUpper
	return nil
}

// Compound harvests accrued fees, takes the platform and owner basis-point
// cuts, and reinvests the remainder into the position at its current range.
// Share supply never changes here; the gain accrues to share price.
func (v *Vault) Compound(stateDB StateDB, caller common.Address, amount0Min, amount1Min *big.Int) error {
	if err := v.policy.RequireNotPaused(); err != nil {
		return err
	}
	if caller != v.Owner {
		return ErrUnauthorizedAccount
	}
	if err := v.lock(); err != nil {
		return err
	}
	defer v.unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != VaultActive || !v.hasPosition {
		return ErrInvalidPosition
	}

	snap := v.snapshot(stateDB)

	fee0, fee1, err := v.positions.Collect(stateDB, v.handle)
	if err != nil {
		v.rollback(stateDB, snap)
		return err
	}
	if err := v.payFeeCuts(stateDB, fee0, fee1); err != nil {
		v.rollback(stateDB, snap)
		return err
	}

	idle0 := v.bank.BalanceOf(stateDB, v.pool.Token0, v.account)
	idle1 := v.bank.BalanceOf(stateDB, v.pool.Token1, v.account)
	plan, err := OptimalSwap(v.pool, v.tickLower, v.tickUpper, idle0, idle1)
	if err != nil {
		v.rollback(stateDB, snap)
		return err
	}
	if !plan.NoSwap() {
		if _, err := v.amm.Swap(stateDB, v.pool, v.account, plan.ZeroForOne, plan.AmountIn, big.NewInt(0)); err != nil {
			v.rollback(stateDB, snap)
			return err
		}
		idle0 = v.bank.BalanceOf(stateDB, v.pool.Token0, v.account)
		idle1 = v.bank.BalanceOf(stateDB, v.pool.Token1, v.account)
	}

	used0, used1 := big.NewInt(0), big.NewInt(0)
	if idle0.Sign() > 0 || idle1.Sign() > 0 {
		_, used0, used1, err = v.positions.Increase(stateDB, v.handle, idle0, idle1)
		if err == ErrNoLiquidity {
			used0, used1 = big.NewInt(0), big.NewInt(0)
		} else if err != nil {
			v.rollback(stateDB, snap)
			return err
		}
	}
	if used0.Cmp(amount0Min) < 0 || used1.Cmp(amount1Min) < 0 {
		v.rollback(stateDB, snap)
		return ErrAmountBelowMin
	}
	return nil
}

// payFeeCuts routes the platform and owner basis-point cuts of harvested
// fees out of the vault account.
func (v *Vault) payFeeCuts(stateDB StateDB, fee0, fee1 *big.Int) error {
	pay := func(token common.Address, fee *big.Int, bps uint16, to common.Address) error {
		if fee.Sign() == 0 || bps == 0 {
			return nil
		}
		cut := new(big.Int).Mul(fee, big.NewInt(int64(bps)))
		cut.Div(cut, big.NewInt(int64(FeeBasisPointsMax)))
		if cut.Sign() == 0 {
			return nil
		}
		return v.bank.Transfer(stateDB, token, v.account, to, cut)
	}
	if err := pay(v.pool.Token0, fee0, v.platformFeeBps, v.platformRecipient); err != nil {
		return err
	}
	if err := pay(v.pool.Token1, fee1, v.platformFeeBps, v.platformRecipient); err != nil {
		return err
	}
	if err := pay(v.pool.Token0, fee0, v.ownerFeeBps, v.Owner); err != nil {
		return err
	}
	return pay(v.pool.Token1, fee1, v.ownerFeeBps, v.Owner)
}

// Exit closes the vault: all liquidity is decreased and collected into idle
// balances, fee cuts are taken, the owner's own shares are redeemed to the
// recipient, and the state becomes Exited. Remaining shareholders withdraw
// pro-rata from what stays idle.
func (v *Vault) Exit(stateDB StateDB, caller, recipient common.Address, amount0Min, amount1Min *big.Int) (*big.Int, *big.Int, error) {
	if err := v.policy.RequireNotPaused(); err != nil {
		return nil, nil, err
	}
	if caller != v.Owner {
		return nil, nil, ErrUnauthorizedAccount
	}
	if err := v.lock(); err != nil {
		return nil, nil, err
	}
	defer v.unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != VaultActive || !v.hasPosition {
		return nil, nil, ErrInvalidPosition
	}

	snap := v.snapshot(stateDB)

	pos, err := v.positions.Get(v.handle)
	if err != nil {
		return nil, nil, err
	}
	if pos.Liquidity.Sign() > 0 {
		if _, _, err := v.positions.Decrease(stateDB, v.handle, new(big.Int).Set(pos.Liquidity)); err != nil {
			v.rollback(stateDB, snap)
			return nil, nil, err
		}
	}
	fee0, fee1, err := v.positions.Collect(stateDB, v.handle)
	if err != nil {
		v.rollback(stateDB, snap)
		return nil, nil, err
	}
	if err := v.payFeeCuts(stateDB, fee0, fee1); err != nil {
		v.rollback(stateDB, snap)
		return nil, nil, err
	}

	// Redeem the owner's shares to the recipient
	out0, out1 := big.NewInt(0), big.NewInt(0)
	ownerShares := v.ledger.BalanceOf(v.Owner)
	totalShares := v.ledger.TotalSupply()
	if ownerShares.Sign() > 0 {
		idle0 := v.bank.BalanceOf(stateDB, v.pool.Token0, v.account)
		idle1 := v.bank.BalanceOf(stateDB, v.pool.Token1, v.account)
		out0.Mul(idle0, ownerShares).Div(out0, totalShares)
		out1.Mul(idle1, ownerShares).Div(out1, totalShares)
		if err := v.ledger.Burn(v.Owner, ownerShares); err != nil {
			v.rollback(stateDB, snap)
			return nil, nil, err
		}
		if err := v.bank.Transfer(stateDB, v.pool.Token0, v.account, recipient, out0); err != nil {
			v.rollback(stateDB, snap)
			return nil, nil, err
		}
		if err := v.bank.Transfer(stateDB, v.pool.Token1, v.account, recipient, out1); err != nil {
			v.rollback(stateDB, snap)
			return nil, nil, err
		}
	}
	if out0.Cmp(amount0Min) < 0 || out1.Cmp(amount1Min) < 0 {
		v.rollback(stateDB, snap)
		return nil, nil, ErrAmountBelowMin
	}

	v.hasPosition = false
	v.state = VaultExited
	return out0, out1, nil
}
