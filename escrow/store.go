/*
store.go - Persistence interfaces for contracts, conditions, and events

PURPOSE:
  Defines the interface between the ledger and the database. The Store
  holds the authoritative keyed records (contract id -> contract,
  (contract id, condition id) -> condition); the EventLog is the ordered
  append-only record of committed transitions. Different implementations
  can use SQLite or in-memory storage.

ATOMICITY:
  Every ledger operation commits its record writes and its event appends
  inside a single WithTx call. If the function returns an error, nothing
  is persisted. This is what makes "zero observable mutation, zero event
  emission" hold on any failure.

LAST LINE OF DEFENSE:
  Implementations must enforce id uniqueness themselves (primary keys in
  SQLite) and return ErrDuplicateContract / ErrDuplicateCondition, even
  though the ledger checks first. This guards against races the in-process
  checks cannot see.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - escrow/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: The only consumer of these interfaces
*/
package escrow

import "context"

// =============================================================================
// STORE - Keyed contract/condition records
// =============================================================================

// Store persists the authoritative escrow state. Get methods return
// (nil, nil) when the entity is absent; the ledger maps that to NotFound.
type Store interface {
	// CreateContract inserts a new contract. Returns ErrDuplicateContract
	// if the id exists.
	CreateContract(ctx context.Context, c Contract) error

	// UpdateContract rewrites a contract record (released amount, condition
	// count). The contract must exist.
	UpdateContract(ctx context.Context, c Contract) error

	GetContract(ctx context.Context, id ContractID) (*Contract, error)

	// CreateCondition inserts a new condition. Returns ErrDuplicateCondition
	// if the (contract, condition) pair exists.
	CreateCondition(ctx context.Context, k Condition) error

	// UpdateCondition rewrites a condition record (status, evidence hash,
	// execution time). The condition must exist.
	UpdateCondition(ctx context.Context, k Condition) error

	GetCondition(ctx context.Context, contractID ContractID, conditionID ConditionID) (*Condition, error)
}

// =============================================================================
// EVENT LOG - Append-only, ordered
// =============================================================================

// EventLog stores committed events. Append-only: no update, no delete.
type EventLog interface {
	// AppendEvent assigns the next sequence number and persists the event.
	AppendEvent(ctx context.Context, e Event) error

	// EventsByContract returns a contract's events in sequence order.
	EventsByContract(ctx context.Context, id ContractID) ([]Event, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic multi-write commits
// =============================================================================

// TxStore combines record storage and the event log with transaction
// support. The ledger requires this; plain Store is what runs inside a
// transaction.
type TxStore interface {
	Store
	EventLog

	// WithTx executes fn within a transaction. If fn returns an error, every
	// write made through the passed Store and EventLog is rolled back.
	WithTx(ctx context.Context, fn func(Store, EventLog) error) error
}
