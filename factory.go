// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"encoding/binary"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Factory creates vaults and keeps the append-only registry of every vault
// ever created. All vaults share the factory's AMM, bank, position manager,
// and access policy; the platform fee terms are fixed at factory
// construction.
type Factory struct {
	mu        sync.RWMutex
	amm       *AMM
	bank      *TokenBank
	positions PositionManager
	policy    *AccessPolicy

	platformFeeBps    uint16
	platformRecipient common.Address

	byAccount map[common.Address]*Vault
	allVaults []*Vault
}

// NewFactory wires the factory to the engine's shared collaborators
func NewFactory(amm *AMM, bank *TokenBank, positions PositionManager, policy *AccessPolicy, platformFeeBps uint16, platformRecipient common.Address) *Factory {
	return &Factory{
		amm:               amm,
		bank:              bank,
		positions:         positions,
		policy:            policy,
		platformFeeBps:    platformFeeBps,
		platformRecipient: platformRecipient,
		byAccount:         make(map[common.Address]*Vault),
	}
}

func vaultID(owner common.Address, poolID [32]byte, index uint64) [32]byte {
	h := blake3.New()
	h.Write(owner.Bytes())
	h.Write(poolID[:])
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], index)
	h.Write(n[:])

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// CreateVault validates the creation parameters, deploys a vault bound to
// the shared collaborators, seeds it from the caller's balances, performs
// the initial position mint, and registers it. The caller becomes the
// vault's owner and receives the bootstrap shares via params.Recipient.
func (f *Factory) CreateVault(stateDB StateDB, caller common.Address, params CreationParams, ownerFeeBps uint16, name, symbol string) (*Vault, error) {
	if err := f.policy.RequireNotPaused(); err != nil {
		return nil, err
	}
	if params.Token0 == params.Token1 {
		return nil, ErrIdenticalAddresses
	}
	if params.Token0 == (common.Address{}) || params.Token1 == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if TickSpacingForFee(params.Fee) == 0 {
		return nil, ErrInvalidFee
	}
	if uint32(ownerFeeBps)+uint32(f.platformFeeBps) > FeeBasisPointsMax {
		return nil, ErrInvalidFee
	}
	pool, err := f.amm.GetPool(params.Token0, params.Token1, params.Fee)
	if err != nil {
		return nil, ErrPoolNotFound
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := vaultID(caller, pool.ID, uint64(len(f.allVaults)))
	v := NewVault(id, caller, pool, f.amm, f.bank, f.positions, f.policy,
		name, symbol, ownerFeeBps, f.platformFeeBps, f.platformRecipient)

	revision := stateDB.Snapshot()
	if err := f.bank.TransferFrom(stateDB, params.Token0, caller, v.Account(), engineAddr, params.Amount0Desired); err != nil {
		stateDB.RevertToSnapshot(revision)
		return nil, err
	}
	if err := f.bank.TransferFrom(stateDB, params.Token1, caller, v.Account(), engineAddr, params.Amount1Desired); err != nil {
		stateDB.RevertToSnapshot(revision)
		return nil, err
	}
	if err := v.MintPosition(stateDB, caller, params.Recipient, params.TickLower, params.TickUpper, params.Amount0Min, params.Amount1Min); err != nil {
		stateDB.RevertToSnapshot(revision)
		return nil, err
	}

	f.byAccount[v.Account()] = v
	f.allVaults = append(f.allVaults, v)
	return v, nil
}

// VaultByAccount resolves a vault by its account address
func (f *Factory) VaultByAccount(account common.Address) (*Vault, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.byAccount[account]
	if !ok {
		return nil, ErrVaultNotFound
	}
	return v, nil
}

// VaultAt returns the vault at a registry index
func (f *Factory) VaultAt(index uint64) (*Vault, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if index >= uint64(len(f.allVaults)) {
		return nil, ErrVaultNotFound
	}
	return f.allVaults[index], nil
}

// AllVaultsLength returns the registry size
func (f *Factory) AllVaultsLength() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return uint64(len(f.allVaults))
}

// Pause halts vault creation and every vault's state-changing entry points
func (f *Factory) Pause(caller common.Address) error {
	return f.policy.Pause(caller)
}

// Unpause resumes normal operation
func (f *Factory) Unpause(caller common.Address) error {
	return f.policy.Unpause(caller)
}
