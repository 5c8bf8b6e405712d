package escrow_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearhold/escrow-engine/escrow"
)

// =============================================================================
// AMOUNTS
// =============================================================================

func TestAmount_Arithmetic(t *testing.T) {
	a := escrow.NewAmount(100000)
	b := escrow.NewAmount(50000)

	assert.True(t, a.Sub(b).Equal(b))
	assert.True(t, b.Add(b).Equal(a))
	assert.True(t, a.GreaterThan(b))
	assert.True(t, b.LessThan(a))
	assert.True(t, escrow.ZeroAmount().IsZero())
	assert.False(t, escrow.ZeroAmount().IsPositive())
	assert.Equal(t, "100000", a.String())
}

func TestParseAmount(t *testing.T) {
	a, err := escrow.ParseAmount("250000")
	require.NoError(t, err)
	assert.True(t, a.Equal(escrow.NewAmount(250000)))

	_, err = escrow.ParseAmount("not a number")
	assert.Error(t, err)

	neg, err := escrow.ParseAmount("-5")
	require.NoError(t, err, "parsing succeeds; positivity is the ledger's check")
	assert.False(t, neg.IsPositive())
}

// =============================================================================
// CONDITION STATUS
// =============================================================================

func TestConditionStatus_Terminal(t *testing.T) {
	assert.False(t, escrow.StatusPending.Terminal())
	assert.False(t, escrow.StatusJudging.Terminal())
	assert.False(t, escrow.StatusApproved.Terminal(), "approved is transient, not terminal")
	assert.True(t, escrow.StatusRejected.Terminal())
	assert.True(t, escrow.StatusExecuted.Terminal())
}

// =============================================================================
// EVIDENCE HASHING
// =============================================================================

func TestHashEvidence_Deterministic(t *testing.T) {
	h1 := escrow.HashEvidence("delivery receipt #4512")
	h2 := escrow.HashEvidence("delivery receipt #4512")

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "hex-encoded 32-byte digest")
	assert.NotEqual(t, h1, escrow.HashEvidence("delivery receipt #4513"))
}

// =============================================================================
// EVIDENCE POLICY PARSING
// =============================================================================

func TestParseEvidencePolicy(t *testing.T) {
	p, err := escrow.ParseEvidencePolicy("open")
	require.NoError(t, err)
	assert.Equal(t, escrow.EvidenceOpen, p)

	p, err = escrow.ParseEvidencePolicy("parties")
	require.NoError(t, err)
	assert.Equal(t, escrow.EvidenceParties, p)

	p, err = escrow.ParseEvidencePolicy("")
	require.NoError(t, err)
	assert.Equal(t, escrow.EvidenceOpen, p, "empty defaults to open")

	_, err = escrow.ParseEvidencePolicy("everyone")
	assert.Error(t, err)
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

func TestStructuredErrors_UnwrapToSentinels(t *testing.T) {
	var err error

	err = &escrow.AuthorizationError{ContractID: "c-1", Caller: "x", Role: "approver"}
	assert.ErrorIs(t, err, escrow.ErrNotAuthorized)

	err = &escrow.StateTransitionError{ContractID: "c-1", ConditionID: "k-1", From: escrow.StatusPending, Operation: "approve"}
	assert.ErrorIs(t, err, escrow.ErrInvalidStateTransition)

	err = &escrow.EscrowBalanceError{ContractID: "c-1", Available: escrow.NewAmount(1), Requested: escrow.NewAmount(2)}
	assert.ErrorIs(t, err, escrow.ErrInsufficientEscrowBalance)

	err = &escrow.TransferError{Op: "push", Party: "Q", Err: errors.New("down")}
	assert.ErrorIs(t, err, escrow.ErrTransferFailed)
}

func TestErrorHelpers_Classification(t *testing.T) {
	assert.True(t, escrow.IsNotFound(fmt.Errorf("wrap: %w", escrow.ErrContractNotFound)))
	assert.True(t, escrow.IsNotFound(escrow.ErrConditionNotFound))
	assert.False(t, escrow.IsNotFound(escrow.ErrNotAuthorized))

	assert.True(t, escrow.IsConflict(escrow.ErrDuplicateContract))
	assert.True(t, escrow.IsConflict(escrow.ErrDuplicateCondition))
	assert.True(t, escrow.IsConflict(escrow.ErrInvalidStateTransition))
	assert.False(t, escrow.IsConflict(escrow.ErrInvalidAmount))

	assert.True(t, escrow.IsClientError(escrow.ErrInvalidAmount))
	assert.True(t, escrow.IsClientError(escrow.ErrInvalidArgument))
	assert.True(t, escrow.IsClientError(escrow.ErrInsufficientFunds))
	assert.False(t, escrow.IsClientError(escrow.ErrTransferFailed))
	assert.False(t, escrow.IsClientError(errors.New("disk on fire")))
}
