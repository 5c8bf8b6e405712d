// Package store provides in-memory implementations of the escrow
// persistence interfaces, used for testing and development.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/clearhold/escrow-engine/escrow"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	contracts  map[escrow.ContractID]escrow.Contract
	conditions map[conditionKey]escrow.Condition
	events     []escrow.Event
	nextSeq    uint64
}

type conditionKey struct {
	ContractID  escrow.ContractID
	ConditionID escrow.ConditionID
}

func NewMemory() *Memory {
	return &Memory{
		contracts:  make(map[escrow.ContractID]escrow.Contract),
		conditions: make(map[conditionKey]escrow.Condition),
		nextSeq:    1,
	}
}

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

func (m *Memory) CreateContract(_ context.Context, c escrow.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createContractLocked(c)
}

func (m *Memory) createContractLocked(c escrow.Contract) error {
	if _, ok := m.contracts[c.ID]; ok {
		return fmt.Errorf("contract %s: %w", c.ID, escrow.ErrDuplicateContract)
	}
	m.contracts[c.ID] = c
	return nil
}

func (m *Memory) UpdateContract(_ context.Context, c escrow.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateContractLocked(c)
}

func (m *Memory) updateContractLocked(c escrow.Contract) error {
	if _, ok := m.contracts[c.ID]; !ok {
		return fmt.Errorf("contract %s: %w", c.ID, escrow.ErrContractNotFound)
	}
	m.contracts[c.ID] = c
	return nil
}

func (m *Memory) GetContract(_ context.Context, id escrow.ContractID) (*escrow.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contracts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) CreateCondition(_ context.Context, k escrow.Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createConditionLocked(k)
}

func (m *Memory) createConditionLocked(k escrow.Condition) error {
	key := conditionKey{ContractID: k.ContractID, ConditionID: k.ID}
	if _, ok := m.conditions[key]; ok {
		return fmt.Errorf("condition %s/%s: %w", k.ContractID, k.ID, escrow.ErrDuplicateCondition)
	}
	m.conditions[key] = k
	return nil
}

func (m *Memory) UpdateCondition(_ context.Context, k escrow.Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateConditionLocked(k)
}

func (m *Memory) updateConditionLocked(k escrow.Condition) error {
	key := conditionKey{ContractID: k.ContractID, ConditionID: k.ID}
	if _, ok := m.conditions[key]; !ok {
		return fmt.Errorf("condition %s/%s: %w", k.ContractID, k.ID, escrow.ErrConditionNotFound)
	}
	m.conditions[key] = k
	return nil
}

func (m *Memory) GetCondition(_ context.Context, contractID escrow.ContractID, conditionID escrow.ConditionID) (*escrow.Condition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.conditions[conditionKey{ContractID: contractID, ConditionID: conditionID}]
	if !ok {
		return nil, nil
	}
	return &k, nil
}

// -----------------------------------------------------------------------------
// EventLog
// -----------------------------------------------------------------------------

func (m *Memory) AppendEvent(_ context.Context, e escrow.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendEventLocked(e)
	return nil
}

func (m *Memory) appendEventLocked(e escrow.Event) {
	e.Seq = m.nextSeq
	m.nextSeq++
	m.events = append(m.events, e)
}

func (m *Memory) EventsByContract(_ context.Context, id escrow.ContractID) ([]escrow.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []escrow.Event
	for _, e := range m.events {
		if e.ContractID == id {
			result = append(result, e)
		}
	}
	return result, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot and rollback on error
// =============================================================================

// WithTx executes fn within a transaction. For the memory store, this is
// simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(escrow.Store, escrow.EventLog) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txMemoryView{parent: m}

	if err := fn(view, view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	contracts  map[escrow.ContractID]escrow.Contract
	conditions map[conditionKey]escrow.Condition
	events     []escrow.Event
	nextSeq    uint64
}

func (m *Memory) snapshot() memorySnapshot {
	contracts := make(map[escrow.ContractID]escrow.Contract, len(m.contracts))
	for k, v := range m.contracts {
		contracts[k] = v
	}
	conditions := make(map[conditionKey]escrow.Condition, len(m.conditions))
	for k, v := range m.conditions {
		conditions[k] = v
	}
	events := append([]escrow.Event{}, m.events...)
	return memorySnapshot{contracts: contracts, conditions: conditions, events: events, nextSeq: m.nextSeq}
}

func (m *Memory) restore(s memorySnapshot) {
	m.contracts = s.contracts
	m.conditions = s.conditions
	m.events = s.events
	m.nextSeq = s.nextSeq
}

// txMemoryView writes directly to the parent while its lock is held; the
// snapshot taken by WithTx makes rollback possible.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) CreateContract(_ context.Context, c escrow.Contract) error {
	return tv.parent.createContractLocked(c)
}

func (tv *txMemoryView) UpdateContract(_ context.Context, c escrow.Contract) error {
	return tv.parent.updateContractLocked(c)
}

func (tv *txMemoryView) GetContract(_ context.Context, id escrow.ContractID) (*escrow.Contract, error) {
	c, ok := tv.parent.contracts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (tv *txMemoryView) CreateCondition(_ context.Context, k escrow.Condition) error {
	return tv.parent.createConditionLocked(k)
}

func (tv *txMemoryView) UpdateCondition(_ context.Context, k escrow.Condition) error {
	return tv.parent.updateConditionLocked(k)
}

func (tv *txMemoryView) GetCondition(_ context.Context, contractID escrow.ContractID, conditionID escrow.ConditionID) (*escrow.Condition, error) {
	k, ok := tv.parent.conditions[conditionKey{ContractID: contractID, ConditionID: conditionID}]
	if !ok {
		return nil, nil
	}
	return &k, nil
}

func (tv *txMemoryView) AppendEvent(_ context.Context, e escrow.Event) error {
	tv.parent.appendEventLocked(e)
	return nil
}

func (tv *txMemoryView) EventsByContract(_ context.Context, id escrow.ContractID) ([]escrow.Event, error) {
	var result []escrow.Event
	for _, e := range tv.parent.events {
		if e.ContractID == id {
			result = append(result, e)
		}
	}
	return result, nil
}
