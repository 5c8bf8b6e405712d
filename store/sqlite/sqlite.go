/*
Package sqlite provides a SQLite-backed implementation of the escrow
storage interfaces.

PURPOSE:
  Implements escrow.TxStore (contract/condition records plus the
  append-only event log) using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  contracts:   Keyed escrow agreements (released amount updated in place)
  conditions:  Keyed milestones, (contract_id, id) primary key
  events:      Append-only log; AUTOINCREMENT seq gives the total order

ATOMICITY:
  WithTx wraps record writes and event appends in one database
  transaction. A ledger operation either commits everything or nothing.

LAST LINE OF DEFENSE:
  Primary keys enforce contract/condition uniqueness at the database
  level even if two processes race past the ledger's in-process checks.
  Constraint violations map back to the escrow duplicate errors.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, a single writer at a time, better crash
  recovery.

USAGE:
  st, err := sqlite.New("./data/escrow.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
  ledger := escrow.NewLedger(st, values)

SEE ALSO:
  - escrow/store.go: Interface definitions
  - escrow/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/clearhold/escrow-engine/escrow"
)

// Store implements escrow.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" gets its own database, so pin
	// the pool to a single connection for in-memory use.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Contracts (keyed escrow agreements)
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		payer TEXT NOT NULL,
		approver TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		released_amount TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		condition_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Conditions (unique per contract, not globally)
	CREATE TABLE IF NOT EXISTS conditions (
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		id TEXT NOT NULL,
		payee TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		evidence_hash TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		executed_at TEXT,
		PRIMARY KEY (contract_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_conditions_status
		ON conditions(contract_id, status);

	-- Events (append-only; seq is the ledger-wide total order)
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		contract_id TEXT NOT NULL,
		condition_id TEXT NOT NULL DEFAULT '',
		payer TEXT NOT NULL DEFAULT '',
		approver TEXT NOT NULL DEFAULT '',
		payee TEXT NOT NULL DEFAULT '',
		amount TEXT,
		evidence_hash TEXT NOT NULL DEFAULT '',
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_contract
		ON events(contract_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// CONTRACTS
// =============================================================================

func (s *Store) CreateContract(ctx context.Context, c escrow.Contract) error {
	return createContract(ctx, s.db, c)
}

func createContract(ctx context.Context, db execer, c escrow.Contract) error {
	query := `
		INSERT INTO contracts
		(id, payer, approver, total_amount, released_amount, is_active, condition_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		c.ID,
		c.Payer,
		c.Approver,
		c.TotalAmount.Value.String(),
		c.ReleasedAmount.Value.String(),
		c.IsActive,
		c.ConditionCount,
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("contract %s: %w", c.ID, escrow.ErrDuplicateContract)
		}
		return fmt.Errorf("failed to insert contract: %w", err)
	}
	return nil
}

func (s *Store) UpdateContract(ctx context.Context, c escrow.Contract) error {
	return updateContract(ctx, s.db, c)
}

func updateContract(ctx context.Context, db execer, c escrow.Contract) error {
	query := `
		UPDATE contracts
		SET released_amount = ?, is_active = ?, condition_count = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		c.ReleasedAmount.Value.String(),
		c.IsActive,
		c.ConditionCount,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("contract %s: %w", c.ID, escrow.ErrContractNotFound)
	}
	return nil
}

func (s *Store) GetContract(ctx context.Context, id escrow.ContractID) (*escrow.Contract, error) {
	return getContract(ctx, s.db, id)
}

func getContract(ctx context.Context, db execer, id escrow.ContractID) (*escrow.Contract, error) {
	query := `
		SELECT id, payer, approver, total_amount, released_amount, is_active, condition_count, created_at
		FROM contracts WHERE id = ?
	`
	row := db.QueryRowContext(ctx, query, id)

	var c escrow.Contract
	var total, released, createdAt string
	err := row.Scan(&c.ID, &c.Payer, &c.Approver, &total, &released, &c.IsActive, &c.ConditionCount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load contract: %w", err)
	}

	if c.TotalAmount, err = escrow.ParseAmount(total); err != nil {
		return nil, fmt.Errorf("corrupt total_amount for contract %s: %w", id, err)
	}
	if c.ReleasedAmount, err = escrow.ParseAmount(released); err != nil {
		return nil, fmt.Errorf("corrupt released_amount for contract %s: %w", id, err)
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at for contract %s: %w", id, err)
	}
	return &c, nil
}

// =============================================================================
// CONDITIONS
// =============================================================================

func (s *Store) CreateCondition(ctx context.Context, k escrow.Condition) error {
	return createCondition(ctx, s.db, k)
}

func createCondition(ctx context.Context, db execer, k escrow.Condition) error {
	query := `
		INSERT INTO conditions
		(contract_id, id, payee, amount, status, evidence_hash, created_at, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		k.ContractID,
		k.ID,
		k.Payee,
		k.Amount.Value.String(),
		k.Status,
		k.EvidenceHash,
		k.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullTime(k.ExecutedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("condition %s/%s: %w", k.ContractID, k.ID, escrow.ErrDuplicateCondition)
		}
		return fmt.Errorf("failed to insert condition: %w", err)
	}
	return nil
}

func (s *Store) UpdateCondition(ctx context.Context, k escrow.Condition) error {
	return updateCondition(ctx, s.db, k)
}

func updateCondition(ctx context.Context, db execer, k escrow.Condition) error {
	query := `
		UPDATE conditions
		SET status = ?, evidence_hash = ?, executed_at = ?
		WHERE contract_id = ? AND id = ?
	`
	res, err := db.ExecContext(ctx, query,
		k.Status,
		k.EvidenceHash,
		nullTime(k.ExecutedAt),
		k.ContractID,
		k.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update condition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("condition %s/%s: %w", k.ContractID, k.ID, escrow.ErrConditionNotFound)
	}
	return nil
}

func (s *Store) GetCondition(ctx context.Context, contractID escrow.ContractID, conditionID escrow.ConditionID) (*escrow.Condition, error) {
	return getCondition(ctx, s.db, contractID, conditionID)
}

func getCondition(ctx context.Context, db execer, contractID escrow.ContractID, conditionID escrow.ConditionID) (*escrow.Condition, error) {
	query := `
		SELECT contract_id, id, payee, amount, status, evidence_hash, created_at, executed_at
		FROM conditions WHERE contract_id = ? AND id = ?
	`
	row := db.QueryRowContext(ctx, query, contractID, conditionID)

	var k escrow.Condition
	var amount, createdAt string
	var executedAt sql.NullString
	err := row.Scan(&k.ContractID, &k.ID, &k.Payee, &amount, &k.Status, &k.EvidenceHash, &createdAt, &executedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load condition: %w", err)
	}

	if k.Amount, err = escrow.ParseAmount(amount); err != nil {
		return nil, fmt.Errorf("corrupt amount for condition %s/%s: %w", contractID, conditionID, err)
	}
	if k.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at for condition %s/%s: %w", contractID, conditionID, err)
	}
	if executedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, executedAt.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt executed_at for condition %s/%s: %w", contractID, conditionID, err)
		}
		k.ExecutedAt = &t
	}
	return &k, nil
}

// =============================================================================
// EVENTS
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, e escrow.Event) error {
	return appendEvent(ctx, s.db, e)
}

func appendEvent(ctx context.Context, db execer, e escrow.Event) error {
	query := `
		INSERT INTO events
		(id, type, contract_id, condition_id, payer, approver, payee, amount, evidence_hash, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var amount sql.NullString
	if e.Amount != nil {
		amount = sql.NullString{String: e.Amount.Value.String(), Valid: true}
	}
	_, err := db.ExecContext(ctx, query,
		e.ID,
		e.Type,
		e.ContractID,
		e.ConditionID,
		e.Payer,
		e.Approver,
		e.Payee,
		amount,
		e.EvidenceHash,
		e.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *Store) EventsByContract(ctx context.Context, id escrow.ContractID) ([]escrow.Event, error) {
	return eventsByContract(ctx, s.db, id)
}

func eventsByContract(ctx context.Context, db execer, id escrow.ContractID) ([]escrow.Event, error) {
	query := `
		SELECT seq, id, type, contract_id, condition_id, payer, approver, payee, amount, evidence_hash, at
		FROM events WHERE contract_id = ? ORDER BY seq ASC
	`
	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []escrow.Event
	for rows.Next() {
		var e escrow.Event
		var amount sql.NullString
		var at string
		err := rows.Scan(&e.Seq, &e.ID, &e.Type, &e.ContractID, &e.ConditionID,
			&e.Payer, &e.Approver, &e.Payee, &amount, &e.EvidenceHash, &at)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if amount.Valid {
			a, err := escrow.ParseAmount(amount.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt amount for event %s: %w", e.ID, err)
			}
			e.Amount = &a
		}
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("corrupt at for event %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. The mutex keeps the
// single SQLite writer serialized under concurrent cross-contract
// operations.
func (s *Store) WithTx(ctx context.Context, fn func(escrow.Store, escrow.EventLog) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	view := &txView{tx: tx}
	if err := fn(view, view); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txView implements the store interfaces over a single *sql.Tx.
type txView struct {
	tx *sql.Tx
}

func (tv *txView) CreateContract(ctx context.Context, c escrow.Contract) error {
	return createContract(ctx, tv.tx, c)
}

func (tv *txView) UpdateContract(ctx context.Context, c escrow.Contract) error {
	return updateContract(ctx, tv.tx, c)
}

func (tv *txView) GetContract(ctx context.Context, id escrow.ContractID) (*escrow.Contract, error) {
	return getContract(ctx, tv.tx, id)
}

func (tv *txView) CreateCondition(ctx context.Context, k escrow.Condition) error {
	return createCondition(ctx, tv.tx, k)
}

func (tv *txView) UpdateCondition(ctx context.Context, k escrow.Condition) error {
	return updateCondition(ctx, tv.tx, k)
}

func (tv *txView) GetCondition(ctx context.Context, contractID escrow.ContractID, conditionID escrow.ConditionID) (*escrow.Condition, error) {
	return getCondition(ctx, tv.tx, contractID, conditionID)
}

func (tv *txView) AppendEvent(ctx context.Context, e escrow.Event) error {
	return appendEvent(ctx, tv.tx, e)
}

func (tv *txView) EventsByContract(ctx context.Context, id escrow.ContractID) ([]escrow.Event, error) {
	return eventsByContract(ctx, tv.tx, id)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
