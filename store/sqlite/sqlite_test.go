package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearhold/escrow-engine/escrow"
	"github.com/clearhold/escrow-engine/store/sqlite"
	"github.com/clearhold/escrow-engine/token"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "escrow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testContract(id escrow.ContractID) escrow.Contract {
	return escrow.Contract{
		ID:             id,
		Payer:          "P",
		Approver:       "L",
		TotalAmount:    escrow.NewAmount(100000),
		ReleasedAmount: escrow.ZeroAmount(),
		IsActive:       true,
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
}

// =============================================================================
// CONTRACT PERSISTENCE
// =============================================================================

func TestSQLite_ContractRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	missing, err := st.GetContract(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	original := testContract("c-1")
	require.NoError(t, st.CreateContract(ctx, original))

	got, err := st.GetContract(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, original.Payer, got.Payer)
	assert.Equal(t, original.Approver, got.Approver)
	assert.True(t, got.TotalAmount.Equal(original.TotalAmount))
	assert.True(t, got.ReleasedAmount.IsZero())
	assert.True(t, got.IsActive)
	assert.True(t, got.CreatedAt.Equal(original.CreatedAt.UTC()))
}

func TestSQLite_PrimaryKeyIsLastLineOfDefense(t *testing.T) {
	// GIVEN: A contract row already inserted
	// WHEN: Inserting the same id again, bypassing the ledger's checks
	// THEN: The database constraint maps back to ErrDuplicateContract

	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateContract(ctx, testContract("c-1")))

	err := st.CreateContract(ctx, testContract("c-1"))
	assert.ErrorIs(t, err, escrow.ErrDuplicateContract)

	k := escrow.Condition{ID: "k-1", ContractID: "c-1", Payee: "Q",
		Amount: escrow.NewAmount(1), Status: escrow.StatusPending, CreatedAt: time.Now()}
	require.NoError(t, st.CreateCondition(ctx, k))
	err = st.CreateCondition(ctx, k)
	assert.ErrorIs(t, err, escrow.ErrDuplicateCondition)
}

func TestSQLite_UpdateMissingRows_NotFound(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.UpdateContract(ctx, testContract("ghost"))
	assert.ErrorIs(t, err, escrow.ErrContractNotFound)

	err = st.UpdateCondition(ctx, escrow.Condition{ID: "k-1", ContractID: "ghost"})
	assert.ErrorIs(t, err, escrow.ErrConditionNotFound)
}

// =============================================================================
// CONDITION PERSISTENCE
// =============================================================================

func TestSQLite_ConditionRoundTrip_WithExecutedAt(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateContract(ctx, testContract("c-1")))

	created := time.Now().UTC().Truncate(time.Millisecond)
	k := escrow.Condition{
		ID:         "k-1",
		ContractID: "c-1",
		Payee:      "Q",
		Amount:     escrow.NewAmount(50000),
		Status:     escrow.StatusPending,
		CreatedAt:  created,
	}
	require.NoError(t, st.CreateCondition(ctx, k))

	got, err := st.GetCondition(ctx, "c-1", "k-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, escrow.StatusPending, got.Status)
	assert.Nil(t, got.ExecutedAt, "executed_at starts NULL")

	executed := created.Add(time.Hour)
	got.Status = escrow.StatusExecuted
	got.EvidenceHash = escrow.HashEvidence("done")
	got.ExecutedAt = &executed
	require.NoError(t, st.UpdateCondition(ctx, *got))

	got, err = st.GetCondition(ctx, "c-1", "k-1")
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusExecuted, got.Status)
	require.NotNil(t, got.ExecutedAt)
	assert.True(t, got.ExecutedAt.Equal(executed))
	assert.Equal(t, escrow.HashEvidence("done"), got.EvidenceHash)
}

// =============================================================================
// EVENT LOG
// =============================================================================

func TestSQLite_EventSeqAssignedByDatabase(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	c := testContract("c-1")
	require.NoError(t, st.CreateContract(ctx, c))

	require.NoError(t, st.AppendEvent(ctx, escrow.NewContractCreated(c, time.Now())))
	k := escrow.Condition{ID: "k-1", ContractID: "c-1", Payee: "Q", Amount: escrow.NewAmount(50000)}
	require.NoError(t, st.AppendEvent(ctx, escrow.NewConditionAdded(k, time.Now())))

	events, err := st.EventsByContract(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, escrow.EventContractCreated, events[0].Type)
	assert.Equal(t, escrow.EventConditionAdded, events[1].Type)
	assert.Greater(t, events[1].Seq, events[0].Seq)

	// Shape fields survive the round trip
	require.NotNil(t, events[1].Amount)
	assert.True(t, events[1].Amount.Equal(escrow.NewAmount(50000)))
	assert.Equal(t, escrow.Identity("Q"), events[1].Payee)
	assert.Equal(t, escrow.ConditionID("k-1"), events[1].ConditionID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(s escrow.Store, events escrow.EventLog) error {
		if err := s.CreateContract(ctx, testContract("c-1")); err != nil {
			return err
		}
		if err := events.AppendEvent(ctx, escrow.NewContractCreated(testContract("c-1"), time.Now())); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := st.GetContract(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, got, "contract insert rolled back")

	events, err := st.EventsByContract(ctx, "c-1")
	require.NoError(t, err)
	assert.Empty(t, events, "event append rolled back")
}

// =============================================================================
// LEDGER OVER SQLITE - The full stack against the real store
// =============================================================================

func TestSQLite_FullEscrowLifecycle(t *testing.T) {
	// GIVEN: A ledger wired to the SQLite store
	// WHEN: Running create -> add -> evidence -> approve end to end
	// THEN: State and events persist with the same semantics as in memory

	st := newTestStore(t)
	values := token.NewMemory("escrow-vault")
	ledger := escrow.NewLedger(st, values)
	ctx := context.Background()

	values.Mint("P", escrow.NewAmount(100000))
	values.Approve("P", escrow.NewAmount(100000))

	_, err := ledger.CreateContract(ctx, "c-1", "P", "L", escrow.NewAmount(100000))
	require.NoError(t, err)
	_, err = ledger.AddCondition(ctx, "P", "c-1", "k-1", "Q", escrow.NewAmount(50000))
	require.NoError(t, err)
	_, err = ledger.SubmitEvidence(ctx, "Q", "c-1", "k-1", escrow.HashEvidence("delivered"))
	require.NoError(t, err)
	condition, err := ledger.ApproveCondition(ctx, "L", "c-1", "k-1")
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusExecuted, condition.Status)
	assert.True(t, values.BalanceOf("Q").Equal(escrow.NewAmount(50000)))

	balance, err := ledger.GetEscrowBalance(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(escrow.NewAmount(50000)))

	events, err := ledger.Events(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, escrow.EventPaymentExecuted, events[4].Type)
}
