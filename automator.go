// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"time"

	"github.com/luxfi/geth/common"
	crypto "github.com/luxfi/crypto"
)

// EIP-712 domain for automation orders
const (
	OrderDomainName    = "V3AutomationOrder"
	OrderDomainVersion = "4.0"
)

// AutomationOrder is an owner-signed authorization an operator presents to
// run maintenance on a vault. One unexpired order may back a rebalance, a
// compound, and an exit in sequence; every call is bounds-checked against
// it independently.
type AutomationOrder struct {
	ChainID    uint64         `json:"chainId"`
	Vault      common.Address `json:"vault"`
	TickLower  int24          `json:"tickLower"`
	TickUpper  int24          `json:"tickUpper"`
	Amount0Min *big.Int       `json:"amount0Min"`
	Amount1Min *big.Int       `json:"amount1Min"`
	Payload    []byte         `json:"payload,omitempty"`
	Deadline   uint64         `json:"deadline"`
}

var (
	orderTypeHash = crypto.Keccak256([]byte(
		"AutomationOrder(uint64 chainId,address vault,int24 tickLower,int24 tickUpper,uint256 amount0Min,uint256 amount1Min,bytes payload,uint64 deadline)"))
	domainTypeHash = crypto.Keccak256([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
)

func abiWord(v *big.Int) []byte {
	var word [32]byte
	// two's complement for negatives, matching int256 ABI encoding
	enc := new(big.Int).Set(v)
	if enc.Sign() < 0 {
		enc.Add(enc, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	enc.FillBytes(word[:])
	return word[:]
}

func abiAddress(a common.Address) []byte {
	var word [32]byte
	copy(word[12:], a.Bytes())
	return word[:]
}

// OrderDomainSeparator computes the EIP-712 domain hash binding orders to a
// chain and the automator's precompile address.
func OrderDomainSeparator(chainID uint64) common.Hash {
	return common.BytesToHash(crypto.Keccak256(
		domainTypeHash,
		crypto.Keccak256([]byte(OrderDomainName)),
		crypto.Keccak256([]byte(OrderDomainVersion)),
		abiWord(new(big.Int).SetUint64(chainID)),
		abiAddress(common.HexToAddress(AutomatorAddress)),
	))
}

// HashOrder returns the EIP-712 digest an order's signature covers
func HashOrder(order *AutomationOrder) common.Hash {
	structHash := crypto.Keccak256(
		orderTypeHash,
		abiWord(new(big.Int).SetUint64(order.ChainID)),
		abiAddress(order.Vault),
		abiWord(big.NewInt(int64(order.TickLower))),
		abiWord(big.NewInt(int64(order.TickUpper))),
		abiWord(order.Amount0Min),
		abiWord(order.Amount1Min),
		crypto.Keccak256(order.Payload),
		abiWord(new(big.Int).SetUint64(order.Deadline)),
	)
	domain := OrderDomainSeparator(order.ChainID)
	return common.BytesToHash(crypto.Keccak256(
		[]byte{0x19, 0x01}, domain.Bytes(), structHash,
	))
}

// SignOrder signs an order's EIP-712 digest with the given key
func SignOrder(order *AutomationOrder, key *ecdsa.PrivateKey) ([]byte, error) {
	digest := HashOrder(order)
	return crypto.Sign(digest.Bytes(), key)
}

// RecoverOrderSigner recovers the signing address from a 65-byte signature,
// accepting both the raw recovery id (0/1) and the transaction-style 27/28.
func RecoverOrderSigner(order *AutomationOrder, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, ErrInvalidSignature
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	digest := HashOrder(order)
	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return common.Address(crypto.PubkeyToAddress(*pub)), nil
}

// EncodeOrder serializes an order for transport as an opaque payload
func EncodeOrder(order *AutomationOrder) ([]byte, error) {
	return json.Marshal(order)
}

// DecodeOrder parses an order payload
func DecodeOrder(data []byte) (*AutomationOrder, error) {
	var order AutomationOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, ErrInvalidSignature
	}
	if order.Amount0Min == nil {
		order.Amount0Min = big.NewInt(0)
	}
	if order.Amount1Min == nil {
		order.Amount1Min = big.NewInt(0)
	}
	return &order, nil
}

// VaultResolver looks vaults up by their account address
type VaultResolver interface {
	VaultByAccount(account common.Address) (*Vault, error)
}

// Automator verifies owner-signed orders and forwards maintenance calls to
// the vault on the owner's behalf. Only allow-listed operators may present
// orders.
type Automator struct {
	chainID uint64
	policy  *AccessPolicy
	vaults  VaultResolver
	now     func() time.Time
}

// NewAutomator creates the order verifier for a chain
func NewAutomator(chainID uint64, policy *AccessPolicy, vaults VaultResolver) *Automator {
	return &Automator{
		chainID: chainID,
		policy:  policy,
		vaults:  vaults,
		now:     time.Now,
	}
}

// verify runs every precondition shared by the execute entry points and
// returns the target vault.
func (a *Automator) verify(caller common.Address, order *AutomationOrder, sig []byte) (*Vault, error) {
	if !a.policy.HasRole(RoleOperator, caller) {
		return nil, ErrNotOperator
	}
	if order.ChainID != a.chainID {
		return nil, ErrOrderChainID
	}
	if order.Deadline <= uint64(a.now().Unix()) {
		return nil, ErrOrderExpired
	}
	target, err := a.vaults.VaultByAccount(order.Vault)
	if err != nil {
		return nil, ErrOrderVault
	}
	signer, err := RecoverOrderSigner(order, sig)
	if err != nil {
		return nil, err
	}
	if signer != target.Owner {
		return nil, ErrSignerMismatch
	}
	return target, nil
}

// ExecuteRebalance moves the vault's position to the order's tick range,
// using the order's minimums as slippage bounds.
func (a *Automator) ExecuteRebalance(stateDB StateDB, caller common.Address, order *AutomationOrder, sig []byte) error {
	target, err := a.verify(caller, order, sig)
	if err != nil {
		return err
	}
	return target.Rebalance(stateDB, target.Owner,
		order.TickLower, order.TickUpper,
		big.NewInt(0), big.NewInt(0),
		order.Amount0Min, order.Amount1Min)
}

// ExecuteCompound reinvests the vault's accrued fees. The operator's
// requested minimums may tighten the order's bounds but never weaken them.
func (a *Automator) ExecuteCompound(stateDB StateDB, caller common.Address, vaultAccount common.Address, amount0Min, amount1Min *big.Int, payload, sig []byte) error {
	order, err := DecodeOrder(payload)
	if err != nil {
		return err
	}
	if order.Vault != vaultAccount {
		return ErrOrderVault
	}
	if amount0Min.Cmp(order.Amount0Min) < 0 || amount1Min.Cmp(order.Amount1Min) < 0 {
		return ErrOutsideBounds
	}
	target, err := a.verify(caller, order, sig)
	if err != nil {
		return err
	}
	return target.Compound(stateDB, target.Owner, amount0Min, amount1Min)
}

// ExecuteExit closes the vault, paying the owner's redemption to the owner
// directly.
func (a *Automator) ExecuteExit(stateDB StateDB, caller common.Address, vaultAccount common.Address, amount0Min, amount1Min *big.Int, payload, sig []byte) error {
	order, err := DecodeOrder(payload)
	if err != nil {
		return err
	}
	if order.Vault != vaultAccount {
		return ErrOrderVault
	}
	if amount0Min.Cmp(order.Amount0Min) < 0 || amount1Min.Cmp(order.Amount1Min) < 0 {
		return ErrOutsideBounds
	}
	target, err := a.verify(caller, order, sig)
	if err != nil {
		return err
	}
	_, _, err = target.Exit(stateDB, target.Owner, target.Owner, amount0Min, amount1Min)
	return err
}
