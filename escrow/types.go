/*
Package escrow implements the conditional escrow state machine.

PURPOSE:
  This package contains the core custody logic: a payer funds a contract,
  conditions (payable milestones) are attached to it, evidence moves a
  condition into adjudication, and a fixed approver decides whether funds
  are released to the payee. All state transitions are atomic and recorded
  on an append-only event log.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A token quantity in the value store's smallest unit
  - Contract: An escrow agreement binding payer, approver, and deposited funds
  - Condition: A single payable milestone, adjudicated independently
  - Identity: The caller identity carried with every request

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing contract/condition IDs
  3. Centralized Mutation: All writes go through Ledger operations so
     invariant checks live in one place
  4. Auditability: Every transition emits exactly one event (or two for
     approval, which pays in the same atomic step)

USAGE:
  total := escrow.NewAmount(100000)
  ledger := escrow.NewLedger(store, values)
  err := ledger.CreateContract(ctx, "c-1", "payer-1", "approver-1", total)

SEE ALSO:
  - ledger.go: The operation methods and their invariants
  - events.go: Event log model
  - errors.go: Error taxonomy
*/
package escrow

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Token quantity in the value store's smallest unit
// =============================================================================

// Amount is a quantity of escrowed value. Amounts are denominated in the
// smallest unit of the external value store, so arithmetic stays integral.
type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value int64) Amount {
	return Amount{Value: decimal.NewFromInt(value)}
}

// ParseAmount parses a decimal string. Returns an error for malformed input
// so API handlers can reject it before it reaches the ledger.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d}, nil
}

func ZeroAmount() Amount { return Amount{Value: decimal.Zero} }

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) String() string            { return a.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ContractID is unique within the ledger. ConditionID is unique within the
// scope of its owning contract, not globally.
type ContractID string
type ConditionID string

// Identity is an opaque caller/party identifier. The upstream gateway maps
// authenticated sessions to identities before calling the ledger.
type Identity string

// =============================================================================
// CONTRACT - Escrow agreement holding deposited funds
// =============================================================================

type Contract struct {
	ID       ContractID
	Payer    Identity
	Approver Identity

	// TotalAmount is deposited at creation and never re-funded.
	// ReleasedAmount only increases, via condition execution.
	TotalAmount    Amount
	ReleasedAmount Amount

	IsActive       bool
	ConditionCount int
	CreatedAt      time.Time
}

// EscrowBalance returns the unspent custody: TotalAmount - ReleasedAmount.
func (c *Contract) EscrowBalance() Amount {
	return c.TotalAmount.Sub(c.ReleasedAmount)
}

// =============================================================================
// CONDITION - Payable milestone with a forward-only lifecycle
// =============================================================================

type ConditionStatus string

const (
	StatusPending ConditionStatus = "pending"
	StatusJudging ConditionStatus = "judging"
	// StatusApproved is transient: approval and payment happen in one atomic
	// operation, so a stored condition never carries this status. It exists
	// because the approval event is observable on the event log.
	StatusApproved ConditionStatus = "approved"
	StatusRejected ConditionStatus = "rejected"
	StatusExecuted ConditionStatus = "executed"
)

// Terminal reports whether no further transition is permitted.
func (s ConditionStatus) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected
}

type Condition struct {
	ID         ConditionID
	ContractID ContractID
	Payee      Identity

	// Amount is fixed at creation. It is NOT checked against the remaining
	// escrow balance when the condition is added; over-provisioning is legal
	// and the custody bound is enforced at execution time instead.
	Amount Amount

	Status       ConditionStatus
	EvidenceHash string

	CreatedAt  time.Time
	ExecutedAt *time.Time
}

// =============================================================================
// EVIDENCE HASHING
// =============================================================================

// HashEvidence normalizes an arbitrary evidence reference (document id, URL,
// raw text) into a hex-encoded 32-byte digest. Callers that already hold a
// content hash can pass it to SubmitEvidence directly.
func HashEvidence(reference string) string {
	sum := sha256.Sum256([]byte(reference))
	return hex.EncodeToString(sum[:])
}
