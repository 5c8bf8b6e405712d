/*
errors.go - Centralized error types for the escrow core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every ledger operation is all-or-nothing: any of these errors means
  zero state mutation and zero event emission.

ERROR CATEGORIES:
  1. Lookup errors      - Missing contracts/conditions, id collisions
  2. Authorization      - Caller is not the required role
  3. State machine      - Transition attempted from the wrong status
  4. Value movement     - Custody bound violations, external transfer failures

PROPAGATION POLICY:
  Errors are always surfaced to the caller. No silent retries, no local
  recovery: every operation here concerns money movement or authorization,
  and silent recovery would mask a correctness violation. Retry policy, if
  any, belongs to the calling application layer.

USAGE:
  if errors.Is(err, escrow.ErrNotAuthorized) { ... }

  var stErr *escrow.StateTransitionError
  if errors.As(err, &stErr) { log.Println(stErr.From) }

SEE ALSO:
  - ledger.go: Where these errors are raised
  - api/handlers.go: Maps them to HTTP status codes
*/
package escrow

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrContractNotFound is returned when a referenced contract doesn't exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrConditionNotFound is returned when a referenced condition doesn't
	// exist under its contract.
	ErrConditionNotFound = errors.New("condition not found")

	// ErrDuplicateContract is returned when a contract id already exists.
	ErrDuplicateContract = errors.New("duplicate contract id")

	// ErrDuplicateCondition is returned when a condition id already exists
	// within the same contract.
	ErrDuplicateCondition = errors.New("duplicate condition id")

	// ErrNotAuthorized is returned when the caller doesn't hold the role the
	// operation requires (payer for condition creation, approver for
	// adjudication).
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidStateTransition is returned when an operation is attempted
	// against a condition that is not in the required source status.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidArgument is returned for missing or malformed operation
	// inputs (empty ids, missing parties, empty evidence hash).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientFunds is returned when the value store cannot cover a
	// pull (balance or allowance shortfall on the payer's account).
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientEscrowBalance is returned when executing a condition
	// would release more than the contract's remaining custody.
	ErrInsufficientEscrowBalance = errors.New("insufficient escrow balance")

	// ErrTransferFailed is returned when the external value store call fails.
	// The enclosing operation commits nothing.
	ErrTransferFailed = errors.New("value store transfer failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AuthorizationError reports which role the caller was missing.
type AuthorizationError struct {
	ContractID ContractID
	Caller     Identity
	Role       string // "payer", "approver", "party"
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("caller %s is not the %s of contract %s", e.Caller, e.Role, e.ContractID)
}

func (e *AuthorizationError) Unwrap() error { return ErrNotAuthorized }

// StateTransitionError reports a transition attempted from the wrong status.
type StateTransitionError struct {
	ContractID  ContractID
	ConditionID ConditionID
	From        ConditionStatus
	Operation   string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s not permitted on condition %s/%s in status %q",
		e.Operation, e.ContractID, e.ConditionID, e.From)
}

func (e *StateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

// EscrowBalanceError reports a payout that would exceed remaining custody.
type EscrowBalanceError struct {
	ContractID ContractID
	Available  Amount
	Requested  Amount
}

func (e *EscrowBalanceError) Error() string {
	return fmt.Sprintf("contract %s: requested %v exceeds remaining escrow balance %v",
		e.ContractID, e.Requested.Value, e.Available.Value)
}

func (e *EscrowBalanceError) Unwrap() error { return ErrInsufficientEscrowBalance }

// TransferError wraps a failed value store call with the direction and party.
type TransferError struct {
	Op    string // "pull" or "push"
	Party Identity
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("value store %s for %s failed: %v", e.Op, e.Party, e.Err)
}

func (e *TransferError) Unwrap() error { return ErrTransferFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound) || errors.Is(err, ErrConditionNotFound)
}

// IsConflict returns true for id collisions and illegal transitions, both of
// which mean the request contradicts current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateContract) ||
		errors.Is(err, ErrDuplicateCondition) ||
		errors.Is(err, ErrInvalidStateTransition)
}

// IsClientError returns true if the error is due to invalid client input
// rather than an internal or upstream failure.
func IsClientError(err error) bool {
	return IsNotFound(err) ||
		IsConflict(err) ||
		errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientEscrowBalance)
}
