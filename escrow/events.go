/*
events.go - Append-only event log model

PURPOSE:
  Every committed state transition produces exactly one event (approval
  produces two: the approval itself and the payment that executes in the
  same atomic step). Off-core observers (UI, audit trail, notifications)
  consume this log; the ledger never reads it back for its own decisions.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. ORDERED: The log assigns a strictly increasing sequence number at
     append time, so observers see one total order.
  3. COMMIT-ONLY: Events are appended inside the same store transaction as
     the state change. A failed operation emits nothing.

EVENT SHAPES (field sets are fixed for observer compatibility):
  ContractCreated    contractId, payer, approver, totalAmount
  ConditionAdded     contractId, conditionId, payee, amount
  EvidenceSubmitted  contractId, conditionId, evidenceHash
  ConditionApproved  contractId, conditionId
  PaymentExecuted    contractId, conditionId, payee, amount
  ConditionRejected  contractId, conditionId

SEE ALSO:
  - store.go: EventLog persistence interface
  - ledger.go: Emission points
*/
package escrow

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

type EventType string

const (
	EventContractCreated   EventType = "contract_created"
	EventConditionAdded    EventType = "condition_added"
	EventEvidenceSubmitted EventType = "evidence_submitted"
	EventConditionApproved EventType = "condition_approved"
	EventPaymentExecuted   EventType = "payment_executed"
	EventConditionRejected EventType = "condition_rejected"
)

// Event is one entry on the append-only log. Only the fields belonging to
// the event's shape are set; the rest stay zero.
type Event struct {
	// ID is assigned at construction; Seq is assigned by the log at append
	// time and is strictly increasing across the whole ledger.
	ID  string
	Seq uint64

	Type        EventType
	ContractID  ContractID
	ConditionID ConditionID // empty for contract-level events

	Payer        Identity
	Approver     Identity
	Payee        Identity
	Amount       *Amount
	EvidenceHash string

	At time.Time
}

// =============================================================================
// EVENT CONSTRUCTORS - One per shape, fields fixed
// =============================================================================

func newEvent(t EventType, contractID ContractID, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		ContractID: contractID,
		At:         at,
	}
}

func NewContractCreated(c Contract, at time.Time) Event {
	e := newEvent(EventContractCreated, c.ID, at)
	e.Payer = c.Payer
	e.Approver = c.Approver
	total := c.TotalAmount
	e.Amount = &total
	return e
}

func NewConditionAdded(k Condition, at time.Time) Event {
	e := newEvent(EventConditionAdded, k.ContractID, at)
	e.ConditionID = k.ID
	e.Payee = k.Payee
	amount := k.Amount
	e.Amount = &amount
	return e
}

func NewEvidenceSubmitted(k Condition, at time.Time) Event {
	e := newEvent(EventEvidenceSubmitted, k.ContractID, at)
	e.ConditionID = k.ID
	e.EvidenceHash = k.EvidenceHash
	return e
}

func NewConditionApproved(k Condition, at time.Time) Event {
	e := newEvent(EventConditionApproved, k.ContractID, at)
	e.ConditionID = k.ID
	return e
}

func NewPaymentExecuted(k Condition, at time.Time) Event {
	e := newEvent(EventPaymentExecuted, k.ContractID, at)
	e.ConditionID = k.ID
	e.Payee = k.Payee
	amount := k.Amount
	e.Amount = &amount
	return e
}

func NewConditionRejected(k Condition, at time.Time) Event {
	e := newEvent(EventConditionRejected, k.ContractID, at)
	e.ConditionID = k.ID
	return e
}
