// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"sync"

	"github.com/luxfi/geth/common"
)

// Role identifiers for the access policy
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// AccessPolicy is the role and pause gate shared by the factory and the
// vaults it deploys. Admins manage roles and the pause switch; operators
// are the accounts allowed to execute signed automation orders.
type AccessPolicy struct {
	mu     sync.RWMutex
	roles  map[string]map[common.Address]bool
	paused bool
}

// NewAccessPolicy creates a policy with the given initial admin
func NewAccessPolicy(admin common.Address) *AccessPolicy {
	p := &AccessPolicy{
		roles: make(map[string]map[common.Address]bool),
	}
	p.roles[RoleAdmin] = map[common.Address]bool{admin: true}
	return p
}

// HasRole reports whether the account holds the role
func (p *AccessPolicy) HasRole(role string, account common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.roles[role][account]
}

// GrantRole adds the account to the role. Caller must be an admin.
func (p *AccessPolicy) GrantRole(caller common.Address, role string, account common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.roles[RoleAdmin][caller] {
		return ErrUnauthorizedAccount
	}
	if p.roles[role] == nil {
		p.roles[role] = make(map[common.Address]bool)
	}
	p.roles[role][account] = true
	return nil
}

// RevokeRole removes the account from the role. Caller must be an admin.
func (p *AccessPolicy) RevokeRole(caller common.Address, role string, account common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.roles[RoleAdmin][caller] {
		return ErrUnauthorizedAccount
	}
	delete(p.roles[role], account)
	return nil
}

// RequireRole errors with ErrUnauthorizedAccount unless the account holds
// the role
func (p *AccessPolicy) RequireRole(role string, account common.Address) error {
	if !p.HasRole(role, account) {
		return ErrUnauthorizedAccount
	}
	return nil
}

// Paused reports the pause state
func (p *AccessPolicy) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// Pause halts state-changing entry points. Caller must be an admin.
func (p *AccessPolicy) Pause(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.roles[RoleAdmin][caller] {
		return ErrUnauthorizedAccount
	}
	if p.paused {
		return ErrEnforcedPause
	}
	p.paused = true
	return nil
}

// Unpause resumes state-changing entry points. Caller must be an admin.
func (p *AccessPolicy) Unpause(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.roles[RoleAdmin][caller] {
		return ErrUnauthorizedAccount
	}
	if !p.paused {
		return ErrExpectedPause
	}
	p.paused = false
	return nil
}

// RequireNotPaused errors with ErrEnforcedPause while paused
func (p *AccessPolicy) RequireNotPaused() error {
	if p.Paused() {
		return ErrEnforcedPause
	}
	return nil
}
