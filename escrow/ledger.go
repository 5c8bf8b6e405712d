/*
ledger.go - The escrow state machine

PURPOSE:
  The Ledger owns every state-mutating operation on contracts and
  conditions. It validates role and state, moves funds through the external
  value store, and commits record changes plus events atomically.

CONDITION LIFECYCLE:
  ┌─────────┐  SubmitEvidence  ┌─────────┐  ApproveCondition  ┌──────────┐
  │ Pending │ ───────────────▶ │ Judging │ ─────────────────▶ │ Executed │
  └─────────┘                  └─────────┘                    └──────────┘
                                    │
                                    │  RejectCondition
                                    ▼
                               ┌──────────┐
                               └ Rejected ┘

  Approval and payment are one atomic step: the stored status goes straight
  from judging to executed, and the log carries both ConditionApproved and
  PaymentExecuted. Terminal states (executed, rejected) permit no further
  transition. A condition left in judging stays there until the approver
  acts; there is no expiry.

ORDERING DISCIPLINE (checks-effects-interactions):
  1. Resolve authorization and state-transition validity
  2. Perform the external value store transfer
  3. Commit the ledger's own state change and append events
  Never the reverse, and never interleave another mutating call on the same
  contract while a transfer is outstanding. Mutating operations on one
  contract are serialized by a per-contract mutex; operations on different
  contracts never serialize with each other.

INVARIANTS:
  - ReleasedAmount <= TotalAmount at every observable point
  - PaymentExecuted is emitted exactly once per executed condition
  - Any error aborts with zero state mutation and zero event emission

SEE ALSO:
  - store.go: TxStore atomicity contract
  - guard.go: Role checks
  - events.go: Emission shapes
*/
package escrow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store  TxStore
	values ValueStore
	guard  Guard

	now func() time.Time

	mu    sync.Mutex
	locks map[ContractID]*sync.Mutex
}

type Option func(*Ledger)

// WithEvidencePolicy sets who may submit evidence (default: EvidenceOpen).
func WithEvidencePolicy(p EvidencePolicy) Option {
	return func(l *Ledger) { l.guard.Evidence = p }
}

// WithClock overrides the time source. Tests use this to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store TxStore, values ValueStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		values: values,
		guard:  Guard{Evidence: EvidenceOpen},
		now:    time.Now,
		locks:  make(map[ContractID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// lockContract serializes mutating operations per contract. Cross-contract
// operations proceed in parallel.
func (l *Ledger) lockContract(id ContractID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// =============================================================================
// CREATE CONTRACT - Fund and record a new escrow agreement
// =============================================================================

// CreateContract pulls totalAmount from the payer into custody and records
// the contract. The payer must have pre-authorized the custody account on
// the value store. Nothing is recorded if the pull fails.
func (l *Ledger) CreateContract(
	ctx context.Context,
	id ContractID,
	payer Identity,
	approver Identity,
	totalAmount Amount,
) (*Contract, error) {
	if id == "" {
		return nil, fmt.Errorf("contract id is required: %w", ErrInvalidArgument)
	}
	if payer == "" || approver == "" {
		return nil, fmt.Errorf("payer and approver are required: %w", ErrInvalidArgument)
	}
	if !totalAmount.IsPositive() {
		return nil, fmt.Errorf("total amount %v: %w", totalAmount.Value, ErrInvalidAmount)
	}

	unlock := l.lockContract(id)
	defer unlock()

	existing, err := l.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("contract %s: %w", id, ErrDuplicateContract)
	}

	// Interaction before effect: take custody first so a contract record
	// never exists without its funds.
	if err := l.values.Pull(ctx, payer, totalAmount); err != nil {
		if IsClientError(err) {
			return nil, fmt.Errorf("funding contract %s: %w", id, err)
		}
		return nil, &TransferError{Op: "pull", Party: payer, Err: err}
	}

	now := l.now()
	contract := Contract{
		ID:             id,
		Payer:          payer,
		Approver:       approver,
		TotalAmount:    totalAmount,
		ReleasedAmount: ZeroAmount(),
		IsActive:       true,
		CreatedAt:      now,
	}

	err = l.store.WithTx(ctx, func(s Store, events EventLog) error {
		if err := s.CreateContract(ctx, contract); err != nil {
			return err
		}
		return events.AppendEvent(ctx, NewContractCreated(contract, now))
	})
	if err != nil {
		// Custody was taken but the record failed to commit: return the
		// funds to the payer so no value is stranded.
		if pushErr := l.values.Push(ctx, payer, totalAmount); pushErr != nil {
			log.Printf("ESCROW: refund of %v to %s after failed contract %s commit also failed: %v",
				totalAmount.Value, payer, id, pushErr)
		}
		return nil, err
	}

	return &contract, nil
}

// =============================================================================
// ADD CONDITION - Payer attaches a payable milestone
// =============================================================================

// AddCondition creates a condition in status pending. Only the contract's
// payer may call this. The amount is not checked against the remaining
// escrow balance here: conditions may be proposed speculatively, and the
// custody bound is enforced when a condition executes.
func (l *Ledger) AddCondition(
	ctx context.Context,
	caller Identity,
	contractID ContractID,
	conditionID ConditionID,
	payee Identity,
	amount Amount,
) (*Condition, error) {
	if conditionID == "" {
		return nil, fmt.Errorf("condition id is required: %w", ErrInvalidArgument)
	}
	if payee == "" {
		return nil, fmt.Errorf("payee is required: %w", ErrInvalidArgument)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("condition amount %v: %w", amount.Value, ErrInvalidAmount)
	}

	unlock := l.lockContract(contractID)
	defer unlock()

	contract, err := l.getContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.CheckPayer(caller, contract); err != nil {
		return nil, err
	}
	if !contract.IsActive {
		return nil, &StateTransitionError{ContractID: contractID, Operation: "add condition"}
	}

	existing, err := l.store.GetCondition(ctx, contractID, conditionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("condition %s/%s: %w", contractID, conditionID, ErrDuplicateCondition)
	}

	now := l.now()
	condition := Condition{
		ID:         conditionID,
		ContractID: contractID,
		Payee:      payee,
		Amount:     amount,
		Status:     StatusPending,
		CreatedAt:  now,
	}
	contract.ConditionCount++

	err = l.store.WithTx(ctx, func(s Store, events EventLog) error {
		if err := s.CreateCondition(ctx, condition); err != nil {
			return err
		}
		if err := s.UpdateContract(ctx, *contract); err != nil {
			return err
		}
		return events.AppendEvent(ctx, NewConditionAdded(condition, now))
	})
	if err != nil {
		return nil, err
	}

	return &condition, nil
}

// =============================================================================
// SUBMIT EVIDENCE - Move a condition into adjudication
// =============================================================================

// SubmitEvidence stores the evidence hash and moves the condition from
// pending to judging. Who may call this depends on the configured evidence
// policy; the default is open to any caller.
func (l *Ledger) SubmitEvidence(
	ctx context.Context,
	caller Identity,
	contractID ContractID,
	conditionID ConditionID,
	evidenceHash string,
) (*Condition, error) {
	if evidenceHash == "" {
		return nil, fmt.Errorf("evidence hash is required: %w", ErrInvalidArgument)
	}

	unlock := l.lockContract(contractID)
	defer unlock()

	contract, condition, err := l.getConditionPair(ctx, contractID, conditionID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.CheckEvidenceSubmitter(caller, contract, condition); err != nil {
		return nil, err
	}
	if condition.Status != StatusPending {
		return nil, &StateTransitionError{
			ContractID:  contractID,
			ConditionID: conditionID,
			From:        condition.Status,
			Operation:   "submit evidence",
		}
	}

	now := l.now()
	condition.Status = StatusJudging
	condition.EvidenceHash = evidenceHash

	err = l.store.WithTx(ctx, func(s Store, events EventLog) error {
		if err := s.UpdateCondition(ctx, *condition); err != nil {
			return err
		}
		return events.AppendEvent(ctx, NewEvidenceSubmitted(*condition, now))
	})
	if err != nil {
		return nil, err
	}

	return condition, nil
}

// =============================================================================
// APPROVE CONDITION - Adjudicate and pay in one atomic step
// =============================================================================

// ApproveCondition approves a judging condition and immediately executes
// the payout to the payee. Only the contract's approver may call this.
// If the value store push fails, the condition stays in judging and no
// event is emitted.
func (l *Ledger) ApproveCondition(
	ctx context.Context,
	caller Identity,
	contractID ContractID,
	conditionID ConditionID,
) (*Condition, error) {
	unlock := l.lockContract(contractID)
	defer unlock()

	contract, condition, err := l.getConditionPair(ctx, contractID, conditionID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.CheckApprover(caller, contract); err != nil {
		return nil, err
	}
	if condition.Status != StatusJudging {
		return nil, &StateTransitionError{
			ContractID:  contractID,
			ConditionID: conditionID,
			From:        condition.Status,
			Operation:   "approve",
		}
	}

	// Lazy custody bound: conditions may be over-provisioned at creation,
	// so the check happens here, where funds actually move.
	released := contract.ReleasedAmount.Add(condition.Amount)
	if released.GreaterThan(contract.TotalAmount) {
		return nil, &EscrowBalanceError{
			ContractID: contractID,
			Available:  contract.EscrowBalance(),
			Requested:  condition.Amount,
		}
	}

	// Interaction before effect: pay out first, commit status after. The
	// per-contract lock prevents any other mutating call from observing the
	// condition while the transfer is outstanding.
	if err := l.values.Push(ctx, condition.Payee, condition.Amount); err != nil {
		return nil, &TransferError{Op: "push", Party: condition.Payee, Err: err}
	}

	now := l.now()
	contract.ReleasedAmount = released
	condition.Status = StatusExecuted
	condition.ExecutedAt = &now

	err = l.store.WithTx(ctx, func(s Store, events EventLog) error {
		if err := s.UpdateContract(ctx, *contract); err != nil {
			return err
		}
		if err := s.UpdateCondition(ctx, *condition); err != nil {
			return err
		}
		if err := events.AppendEvent(ctx, NewConditionApproved(*condition, now)); err != nil {
			return err
		}
		return events.AppendEvent(ctx, NewPaymentExecuted(*condition, now))
	})
	if err != nil {
		// The payout has happened but the record commit failed. Clawing the
		// funds back from the payee silently would forfeit value, so the
		// discrepancy is surfaced instead of hidden.
		log.Printf("ESCROW: payout of %v to %s committed on value store but condition %s/%s failed to persist: %v",
			condition.Amount.Value, condition.Payee, contractID, conditionID, err)
		return nil, err
	}

	return condition, nil
}

// =============================================================================
// REJECT CONDITION - Terminal, no fund movement
// =============================================================================

// RejectCondition moves a judging condition to rejected. Only the
// contract's approver may call this. Funds stay in custody.
func (l *Ledger) RejectCondition(
	ctx context.Context,
	caller Identity,
	contractID ContractID,
	conditionID ConditionID,
) (*Condition, error) {
	unlock := l.lockContract(contractID)
	defer unlock()

	contract, condition, err := l.getConditionPair(ctx, contractID, conditionID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.CheckApprover(caller, contract); err != nil {
		return nil, err
	}
	if condition.Status != StatusJudging {
		return nil, &StateTransitionError{
			ContractID:  contractID,
			ConditionID: conditionID,
			From:        condition.Status,
			Operation:   "reject",
		}
	}

	now := l.now()
	condition.Status = StatusRejected

	err = l.store.WithTx(ctx, func(s Store, events EventLog) error {
		if err := s.UpdateCondition(ctx, *condition); err != nil {
			return err
		}
		return events.AppendEvent(ctx, NewConditionRejected(*condition, now))
	})
	if err != nil {
		return nil, err
	}

	return condition, nil
}

// =============================================================================
// READ OPERATIONS - Pure queries, no side effects
// =============================================================================

// GetContract returns a contract or ErrContractNotFound.
func (l *Ledger) GetContract(ctx context.Context, id ContractID) (*Contract, error) {
	return l.getContract(ctx, id)
}

// GetCondition returns a condition or a NotFound error for either the
// contract or the condition.
func (l *Ledger) GetCondition(ctx context.Context, contractID ContractID, conditionID ConditionID) (*Condition, error) {
	_, condition, err := l.getConditionPair(ctx, contractID, conditionID)
	return condition, err
}

// GetEscrowBalance returns totalAmount - releasedAmount for a contract.
func (l *Ledger) GetEscrowBalance(ctx context.Context, id ContractID) (Amount, error) {
	contract, err := l.getContract(ctx, id)
	if err != nil {
		return Amount{}, err
	}
	return contract.EscrowBalance(), nil
}

// Events returns a contract's event history in sequence order.
func (l *Ledger) Events(ctx context.Context, id ContractID) ([]Event, error) {
	if _, err := l.getContract(ctx, id); err != nil {
		return nil, err
	}
	return l.store.EventsByContract(ctx, id)
}

// =============================================================================
// INTERNAL LOOKUPS
// =============================================================================

func (l *Ledger) getContract(ctx context.Context, id ContractID) (*Contract, error) {
	contract, err := l.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, fmt.Errorf("contract %s: %w", id, ErrContractNotFound)
	}
	return contract, nil
}

func (l *Ledger) getConditionPair(ctx context.Context, contractID ContractID, conditionID ConditionID) (*Contract, *Condition, error) {
	contract, err := l.getContract(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}
	condition, err := l.store.GetCondition(ctx, contractID, conditionID)
	if err != nil {
		return nil, nil, err
	}
	if condition == nil {
		return nil, nil, fmt.Errorf("condition %s/%s: %w", contractID, conditionID, ErrConditionNotFound)
	}
	return contract, condition, nil
}
