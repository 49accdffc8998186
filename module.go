// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/luxfi/geth/common"
)

var _ Configurator = (*configurator)(nil)
var _ StatefulPrecompiledContract = (*VaultContract)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "lxvaultConfig"

// AccessibleState is the chain state a precompile invocation may touch
type AccessibleState interface {
	GetStateDB() StateDB
}

// StatefulPrecompiledContract is a precompile with access to chain state
type StatefulPrecompiledContract interface {
	Run(accessibleState AccessibleState, caller common.Address, addr common.Address, input []byte, suppliedGas uint64, readOnly bool) (ret []byte, remainingGas uint64, err error)
	RequiredGas(input []byte) uint64
}

// PrecompileConfig is the activation config of a precompile module
type PrecompileConfig interface {
	Key() string
	IsDisabled() bool
}

// Configurator applies a module's config at activation time
type Configurator interface {
	MakeConfig() PrecompileConfig
	Configure(cfg PrecompileConfig, state StateDB) error
}

// Module pairs a precompile contract with its address and config key
type Module struct {
	ConfigKey    string
	Address      common.Address
	Contract     StatefulPrecompiledContract
	Configurator Configurator
}

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

var (
	// registeredModules is a list of Module to preserve order
	// for deterministic iteration
	registeredModules = make([]Module, 0)

	// LP-9xxx: DEX/Markets range; the LXVault family (LP-9030..9032)
	// lives here.
	reservedRanges = []AddressRange{
		{
			Start: common.HexToAddress("0x0000000000000000000000000000000000009000"),
			End:   common.HexToAddress("0x0000000000000000000000000000000000009fff"),
		},
	}
)

// ReservedAddress returns true if [addr] is in a reserved range for custom precompiles
func ReservedAddress(addr common.Address) bool {
	for _, reservedRange := range reservedRanges {
		if reservedRange.Contains(addr) {
			return true
		}
	}
	return false
}

// RegisterModule registers a stateful precompile module
func RegisterModule(stm Module) error {
	address := stm.Address
	key := stm.ConfigKey

	if !ReservedAddress(address) {
		return fmt.Errorf("address %s not in a reserved range", address)
	}

	for _, registeredModule := range registeredModules {
		if registeredModule.ConfigKey == key {
			return fmt.Errorf("name %s already used by a stateful precompile", key)
		}
		if registeredModule.Address == address {
			return fmt.Errorf("address %s already used by a stateful precompile", address)
		}
	}
	// sort by address to ensure deterministic iteration
	registeredModules = append(registeredModules, stm)
	sort.Slice(registeredModules, func(i, j int) bool {
		return bytes.Compare(registeredModules[i].Address[:], registeredModules[j].Address[:]) < 0
	})
	return nil
}

// GetPrecompileModuleByAddress looks a registered module up by address
func GetPrecompileModuleByAddress(address common.Address) (Module, bool) {
	for _, stm := range registeredModules {
		if stm.Address == address {
			return stm, true
		}
	}
	return Module{}, false
}

// RegisteredModules returns the modules in address order
func RegisteredModules() []Module {
	return registeredModules
}

// VaultPrecompile is the singleton instance
var VaultPrecompile = NewVaultContract()

// VaultModule is the precompile module (engine at LP-9030)
var VaultModule = Module{
	ConfigKey:    ConfigKey,
	Address:      common.HexToAddress(EngineAddress),
	Contract:     VaultPrecompile,
	Configurator: &configurator{},
}

func init() {
	if err := RegisterModule(VaultModule); err != nil {
		panic(err)
	}
}

// PoolConfig seeds a pool at activation
type PoolConfig struct {
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
	Fee          uint24         `json:"fee"`
	SqrtPriceX96 string         `json:"sqrtPriceX96"`
}

// Config implements the PrecompileConfig interface
type Config struct {
	Disable              bool             `json:"disable,omitempty"`
	ChainID              uint64           `json:"chainId,omitempty"`
	Admin                common.Address   `json:"admin,omitempty"`
	Operators            []common.Address `json:"operators,omitempty"`
	PlatformFeeRecipient common.Address   `json:"platformFeeRecipient,omitempty"`
	PlatformFeeBps       uint16           `json:"platformFeeBps,omitempty"`
	Pools                []PoolConfig     `json:"pools,omitempty"`
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) IsDisabled() bool {
	return c.Disable
}

func (c *Config) Equal(cfg PrecompileConfig) bool {
	other, ok := cfg.(*Config)
	if !ok {
		return false
	}
	if c.Disable != other.Disable ||
		c.ChainID != other.ChainID ||
		c.Admin != other.Admin ||
		c.PlatformFeeRecipient != other.PlatformFeeRecipient ||
		c.PlatformFeeBps != other.PlatformFeeBps ||
		len(c.Operators) != len(other.Operators) ||
		len(c.Pools) != len(other.Pools) {
		return false
	}
	for i := range c.Operators {
		if c.Operators[i] != other.Operators[i] {
			return false
		}
	}
	for i := range c.Pools {
		if c.Pools[i] != other.Pools[i] {
			return false
		}
	}
	return true
}

func (c *Config) Verify() error {
	if uint32(c.PlatformFeeBps) > FeeBasisPointsMax {
		return ErrInvalidFee
	}
	for _, p := range c.Pools {
		if p.Token0 == p.Token1 {
			return ErrIdenticalAddresses
		}
		if TickSpacingForFee(p.Fee) == 0 {
			return ErrInvalidFee
		}
	}
	return nil
}

type configurator struct{}

func (*configurator) MakeConfig() PrecompileConfig {
	return new(Config)
}

func (*configurator) Configure(cfg PrecompileConfig, state StateDB) error {
	config, ok := cfg.(*Config)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}
	if err := config.Verify(); err != nil {
		return err
	}

	engine := NewEngine(config.ChainID, config.Admin, config.PlatformFeeRecipient, config.PlatformFeeBps)
	for _, op := range config.Operators {
		if err := engine.policy.GrantRole(config.Admin, RoleOperator, op); err != nil {
			return err
		}
	}
	for _, p := range config.Pools {
		sqrtPrice, ok := new(big.Int).SetString(p.SqrtPriceX96, 10)
		if !ok {
			return ErrInvalidSqrtPrice
		}
		if _, err := engine.amm.CreatePool(p.Token0, p.Token1, p.Fee, sqrtPrice); err != nil {
			return err
		}
	}
	VaultPrecompile.SetEngine(engine)
	return nil
}
