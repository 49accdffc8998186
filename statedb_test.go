// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// MockStateDB is an in-memory StateDB with working snapshot/revert
type MockStateDB struct {
	state     map[common.Address]map[common.Hash]common.Hash
	balances  map[common.Address]*uint256.Int
	accounts  map[common.Address]bool
	snapshots []mockSnapshot
	block     uint64
}

type mockSnapshot struct {
	state    map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
}

func NewMockStateDB() *MockStateDB {
	return &MockStateDB{
		state:    make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		accounts: make(map[common.Address]bool),
	}
}

func (m *MockStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if slots, ok := m.state[addr]; ok {
		return slots[key]
	}
	return common.Hash{}
}

func (m *MockStateDB) SetState(addr common.Address, key common.Hash, value common.Hash) {
	slots, ok := m.state[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		m.state[addr] = slots
	}
	slots[key] = value
}

func (m *MockStateDB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := m.balances[addr]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (m *MockStateDB) AddBalance(addr common.Address, amount *uint256.Int) {
	bal := m.GetBalance(addr)
	m.balances[addr] = bal.Add(bal, amount)
}

func (m *MockStateDB) SubBalance(addr common.Address, amount *uint256.Int) {
	bal := m.GetBalance(addr)
	m.balances[addr] = bal.Sub(bal, amount)
}

func (m *MockStateDB) Exist(addr common.Address) bool {
	return m.accounts[addr]
}

func (m *MockStateDB) CreateAccount(addr common.Address) {
	m.accounts[addr] = true
}

func (m *MockStateDB) GetBlockNumber() uint64 {
	return m.block
}

func (m *MockStateDB) Snapshot() int {
	snap := mockSnapshot{
		state:    make(map[common.Address]map[common.Hash]common.Hash, len(m.state)),
		balances: make(map[common.Address]*uint256.Int, len(m.balances)),
	}
	for addr, slots := range m.state {
		copied := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			copied[k] = v
		}
		snap.state[addr] = copied
	}
	for addr, bal := range m.balances {
		snap.balances[addr] = bal.Clone()
	}
	m.snapshots = append(m.snapshots, snap)
	return len(m.snapshots) - 1
}

func (m *MockStateDB) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	snap := m.snapshots[id]
	m.state = snap.state
	m.balances = snap.balances
	m.snapshots = m.snapshots[:id]
}

// mockAccessibleState adapts MockStateDB for contract dispatch
type mockAccessibleState struct {
	stateDB *MockStateDB
}

func (a *mockAccessibleState) GetStateDB() StateDB {
	return a.stateDB
}

func bigFromString(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big int literal: " + s)
	}
	return v
}
