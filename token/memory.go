/*
Package token provides an in-process fungible value store.

PURPOSE:
  The escrow ledger takes custody through the narrow escrow.ValueStore
  interface. This package implements it with an in-memory token ledger
  that mirrors the semantics of an external ERC20-style token:

  - Accounts hold balances in the token's smallest unit
  - An owner must Approve the custody account before funds can be pulled
  - Pull consumes allowance; Push spends the custody account's balance

  Production deployments replace this with a client for the real token
  ledger; development and tests run against this implementation.

FAILURE SIGNALING:
  Pull returns an error wrapping escrow.ErrInsufficientFunds when the
  owner's balance or allowance is short, as the ValueStore contract
  requires. Push fails the same way if custody itself is short, which
  indicates a bookkeeping bug upstream rather than a user error.

SEE ALSO:
  - escrow/valuestore.go: The interface and its failure contract
*/
package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/clearhold/escrow-engine/escrow"
)

// =============================================================================
// MEMORY - In-process token ledger
// =============================================================================

type Memory struct {
	mu        sync.Mutex
	custodian escrow.Identity
	balances  map[escrow.Identity]decimal.Decimal
	// allowances[owner][spender] = remaining approved amount
	allowances map[escrow.Identity]map[escrow.Identity]decimal.Decimal
}

// NewMemory creates a token ledger. The custodian is the account the
// escrow ledger holds funds in; Pull moves value into it, Push out of it.
func NewMemory(custodian escrow.Identity) *Memory {
	return &Memory{
		custodian:  custodian,
		balances:   make(map[escrow.Identity]decimal.Decimal),
		allowances: make(map[escrow.Identity]map[escrow.Identity]decimal.Decimal),
	}
}

// Mint credits an account. Dev/test helper; a real token ledger mints
// through its own governance.
func (m *Memory) Mint(account escrow.Identity, amount escrow.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = m.balances[account].Add(amount.Value)
}

// Approve authorizes the custodian to pull up to amount from owner.
// Matches ERC20 approve: the new allowance replaces any previous one.
func (m *Memory) Approve(owner escrow.Identity, amount escrow.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.allowances[owner] == nil {
		m.allowances[owner] = make(map[escrow.Identity]decimal.Decimal)
	}
	m.allowances[owner][m.custodian] = amount.Value
}

// BalanceOf returns an account's current balance.
func (m *Memory) BalanceOf(account escrow.Identity) escrow.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return escrow.Amount{Value: m.balances[account]}
}

// Allowance returns what the custodian may still pull from owner.
func (m *Memory) Allowance(owner escrow.Identity) escrow.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return escrow.Amount{Value: m.allowances[owner][m.custodian]}
}

// =============================================================================
// escrow.ValueStore
// =============================================================================

// Pull transfers amount from owner to the custodian, consuming allowance.
func (m *Memory) Pull(_ context.Context, from escrow.Identity, amount escrow.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowance := m.allowances[from][m.custodian]
	if allowance.LessThan(amount.Value) {
		return fmt.Errorf("allowance %v below %v for %s: %w",
			allowance, amount.Value, from, escrow.ErrInsufficientFunds)
	}
	balance := m.balances[from]
	if balance.LessThan(amount.Value) {
		return fmt.Errorf("balance %v below %v for %s: %w",
			balance, amount.Value, from, escrow.ErrInsufficientFunds)
	}

	m.allowances[from][m.custodian] = allowance.Sub(amount.Value)
	m.balances[from] = balance.Sub(amount.Value)
	m.balances[m.custodian] = m.balances[m.custodian].Add(amount.Value)
	return nil
}

// Push transfers amount from the custodian to the payee.
func (m *Memory) Push(_ context.Context, to escrow.Identity, amount escrow.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	custody := m.balances[m.custodian]
	if custody.LessThan(amount.Value) {
		return fmt.Errorf("custody balance %v below %v: %w",
			custody, amount.Value, escrow.ErrInsufficientFunds)
	}

	m.balances[m.custodian] = custody.Sub(amount.Value)
	m.balances[to] = m.balances[to].Add(amount.Value)
	return nil
}
