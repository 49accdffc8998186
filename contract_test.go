// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

const testSuppliedGas uint64 = 1_000_000

// packWords builds precompile input: the selector followed by 32-byte words
func packWords(selector uint32, words ...[]byte) []byte {
	input := make([]byte, 4, 4+32*len(words))
	binary.BigEndian.PutUint32(input, selector)
	for _, w := range words {
		padded := make([]byte, 32)
		copy(padded[32-len(w):], w)
		input = append(input, padded...)
	}
	return input
}

func addressWord(a common.Address) []byte { return a.Bytes() }

func bigWord(v *big.Int) []byte { return v.Bytes() }

func uintWord(v uint64) []byte {
	w := make([]byte, 8)
	binary.BigEndian.PutUint64(w, v)
	return w
}

func int24Word(v int24) []byte {
	w := make([]byte, 32)
	binary.BigEndian.PutUint32(w[28:], uint32(v))
	if v < 0 {
		for i := 0; i < 28; i++ {
			w[i] = 0xff
		}
	}
	return w
}

// newTestContract wires a fresh contract around the standard test engine
func newTestContract(t *testing.T) (*VaultContract, *Engine, *mockAccessibleState, *Pool) {
	t.Helper()
	engine, stateDB, pool := newTestEngine(t)
	contract := NewVaultContract()
	contract.SetEngine(engine)
	return contract, engine, &mockAccessibleState{stateDB: stateDB}, pool
}

func createVaultInput(pool *Pool) []byte {
	return packWords(SelectorCreateVault,
		addressWord(tokenX),
		addressWord(tokenY),
		uintWord(uint64(Fee030)),
		int24Word(MinUsableTick(pool.TickSpacing)),
		int24Word(MaxUsableTick(pool.TickSpacing)),
		bigWord(bigFromString("10000000000000000000")),
		bigWord(bigFromString("10000000000000000000")),
		bigWord(big.NewInt(0)),
		bigWord(big.NewInt(0)),
		addressWord(testOwner),
		uintWord(uint64(testOwnerFeeBps)),
	)
}

func TestContractCreateVaultAndQueries(t *testing.T) {
	contract, engine, state, pool := newTestContract(t)

	ret, remaining, err := contract.Run(state, testOwner, engineAddr, createVaultInput(pool), testSuppliedGas, false)
	require.NoError(t, err)
	require.Equal(t, testSuppliedGas-GasCreateVault, remaining)
	require.Len(t, ret, 32)

	account := common.BytesToAddress(ret[12:])
	v, err := engine.factory.VaultByAccount(account)
	require.NoError(t, err)
	require.Equal(t, testOwner, v.Owner)

	// allVaultsLength
	ret, _, err = contract.Run(state, testTrader, engineAddr, packWords(SelectorVaultCount), testSuppliedGas, true)
	require.NoError(t, err)
	require.Equal(t, uint64(1), binary.BigEndian.Uint64(ret[24:]))

	// vaultAt(0)
	ret, _, err = contract.Run(state, testTrader, engineAddr,
		packWords(SelectorVaultAt, uintWord(0)), testSuppliedGas, true)
	require.NoError(t, err)
	require.Equal(t, account, common.BytesToAddress(ret[12:]))

	// totalValue > 0
	ret, _, err = contract.Run(state, testTrader, engineAddr,
		packWords(SelectorTotalValue, addressWord(account)), testSuppliedGas, true)
	require.NoError(t, err)
	require.Positive(t, new(big.Int).SetBytes(ret).Sign())

	// shareBalance(owner) equals the ledger
	ret, _, err = contract.Run(state, testTrader, engineAddr,
		packWords(SelectorShareBalance, addressWord(account), addressWord(testOwner)), testSuppliedGas, true)
	require.NoError(t, err)
	require.Zero(t, new(big.Int).SetBytes(ret).Cmp(v.Shares().BalanceOf(testOwner)))
}

func TestContractDepositWithdraw(t *testing.T) {
	contract, engine, state, pool := newTestContract(t)

	ret, _, err := contract.Run(state, testOwner, engineAddr, createVaultInput(pool), testSuppliedGas, false)
	require.NoError(t, err)
	account := common.BytesToAddress(ret[12:])

	amount := bigFromString("5000000000000000000")
	deposit := packWords(SelectorDeposit,
		addressWord(account),
		bigWord(amount), bigWord(amount),
		bigWord(big.NewInt(0)), bigWord(big.NewInt(0)),
		addressWord(testDepositor),
	)
	ret, _, err = contract.Run(state, testDepositor, engineAddr, deposit, testSuppliedGas, false)
	require.NoError(t, err)
	shares := new(big.Int).SetBytes(ret)
	require.Positive(t, shares.Sign())

	v, err := engine.factory.VaultByAccount(account)
	require.NoError(t, err)
	require.Zero(t, shares.Cmp(v.Shares().BalanceOf(testDepositor)))

	withdraw := packWords(SelectorWithdraw,
		addressWord(account),
		bigWord(shares),
		addressWord(testDepositor),
		bigWord(big.NewInt(0)), bigWord(big.NewInt(0)),
	)
	ret, _, err = contract.Run(state, testDepositor, engineAddr, withdraw, testSuppliedGas, false)
	require.NoError(t, err)
	require.Len(t, ret, 64)
	out0 := new(big.Int).SetBytes(ret[:32])
	out1 := new(big.Int).SetBytes(ret[32:])
	require.True(t, out0.Sign() > 0 || out1.Sign() > 0)
	require.Zero(t, v.Shares().BalanceOf(testDepositor).Sign())
}

func TestContractRebalanceNegativeTicks(t *testing.T) {
	contract, engine, state, pool := newTestContract(t)

	ret, _, err := contract.Run(state, testOwner, engineAddr, createVaultInput(pool), testSuppliedGas, false)
	require.NoError(t, err)
	account := common.BytesToAddress(ret[12:])

	rebalance := packWords(SelectorRebalance,
		addressWord(account),
		int24Word(-300), int24Word(600),
		bigWord(big.NewInt(0)), bigWord(big.NewInt(0)),
		bigWord(big.NewInt(0)), bigWord(big.NewInt(0)),
	)
	_, _, err = contract.Run(state, testOwner, engineAddr, rebalance, testSuppliedGas, false)
	require.NoError(t, err)

	v, err := engine.factory.VaultByAccount(account)
	require.NoError(t, err)
	lower, upper := v.TickRange()
	require.Equal(t, int24(-300), lower)
	require.Equal(t, int24(600), upper)
}

func TestContractGuards(t *testing.T) {
	contract, _, state, pool := newTestContract(t)

	// writes rejected in read-only mode
	_, _, err := contract.Run(state, testOwner, engineAddr, createVaultInput(pool), testSuppliedGas, true)
	require.ErrorContains(t, err, "read-only")

	// reads still work in read-only mode
	_, _, err = contract.Run(state, testOwner, engineAddr, packWords(SelectorVaultCount), testSuppliedGas, true)
	require.NoError(t, err)

	// truncated selector
	_, _, err = contract.Run(state, testOwner, engineAddr, []byte{0x01}, testSuppliedGas, false)
	require.ErrorContains(t, err, "input too short")

	// unknown selector
	_, _, err = contract.Run(state, testOwner, engineAddr, packWords(0xFF000000), testSuppliedGas, false)
	require.ErrorContains(t, err, "unknown method selector")

	// insufficient gas
	_, remaining, err := contract.Run(state, testOwner, engineAddr, createVaultInput(pool), GasCreateVault-1, false)
	require.ErrorContains(t, err, "out of gas")
	require.Zero(t, remaining)

	// unconfigured contract
	bare := NewVaultContract()
	_, _, err = bare.Run(state, testOwner, engineAddr, packWords(SelectorVaultCount), testSuppliedGas, false)
	require.ErrorContains(t, err, "not configured")
}

func TestContractRequiredGas(t *testing.T) {
	contract := NewVaultContract()
	cases := []struct {
		selector uint32
		want     uint64
	}{
		{SelectorCreateVault, GasCreateVault},
		{SelectorDeposit, GasDeposit},
		{SelectorWithdraw, GasWithdraw},
		{SelectorRebalance, GasRebalance},
		{SelectorCompound, GasCompound},
		{SelectorExit, GasExit},
		{SelectorExecuteOrder, GasExecuteOrder + GasRebalance},
		{SelectorVaultCount, GasVaultLookup},
		{SelectorVaultAt, GasVaultLookup},
		{SelectorTotalValue, GasVaultLookup},
		{SelectorShareBalance, GasVaultLookup},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, contract.RequiredGas(packWords(tc.selector)))
	}
	require.Equal(t, GasVaultLookup, contract.RequiredGas(nil))
}

func TestModuleRegistry(t *testing.T) {
	mod, ok := GetPrecompileModuleByAddress(engineAddr)
	require.True(t, ok)
	require.Equal(t, ConfigKey, mod.ConfigKey)
	require.Same(t, VaultPrecompile, mod.Contract)

	_, ok = GetPrecompileModuleByAddress(testTrader)
	require.False(t, ok)

	require.True(t, ReservedAddress(engineAddr))
	require.False(t, ReservedAddress(testTrader))

	require.NotEmpty(t, RegisteredModules())
}

func TestConfigureFromChainConfig(t *testing.T) {
	stateDB := NewMockStateDB()
	cfg := &Config{
		ChainID:              testChainID,
		Admin:                testAdmin,
		Operators:            []common.Address{testOperator},
		PlatformFeeRecipient: testPlatform,
		PlatformFeeBps:       testPlatformFeeBps,
		Pools: []PoolConfig{{
			Token0:       tokenX,
			Token1:       tokenY,
			Fee:          Fee030,
			SqrtPriceX96: Q96.String(),
		}},
	}
	require.NoError(t, cfg.Verify())
	require.NoError(t, (&configurator{}).Configure(cfg, stateDB))

	engine := VaultPrecompile.Engine()
	require.NotNil(t, engine)
	require.True(t, engine.policy.HasRole(RoleOperator, testOperator))
	_, err := engine.amm.GetPool(tokenX, tokenY, Fee030)
	require.NoError(t, err)
}

func TestConfigVerify(t *testing.T) {
	bad := &Config{PlatformFeeBps: 10001}
	require.ErrorIs(t, bad.Verify(), ErrInvalidFee)

	dup := &Config{Pools: []PoolConfig{{Token0: tokenX, Token1: tokenX, Fee: Fee030}}}
	require.ErrorIs(t, dup.Verify(), ErrIdenticalAddresses)

	badFee := &Config{Pools: []PoolConfig{{Token0: tokenX, Token1: tokenY, Fee: 777}}}
	require.ErrorIs(t, badFee.Verify(), ErrInvalidFee)

	good := &Config{ChainID: 1, Admin: testAdmin}
	require.NoError(t, good.Verify())
	require.Equal(t, ConfigKey, good.Key())
	require.False(t, good.IsDisabled())
	require.True(t, good.Equal(&Config{ChainID: 1, Admin: testAdmin}))
	require.False(t, good.Equal(&Config{ChainID: 2, Admin: testAdmin}))
}
