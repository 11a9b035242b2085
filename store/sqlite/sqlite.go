/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements workflow.TxStore plus the wider query surface the API needs
  (executives, contracts, invoices, rate plans, assignments, statements)
  using SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  account_executives: Who earns commission
  contracts:          Signed deals (immutable)
  invoices:           Billing events (immutable)
  rate_plans:         Versioned plan JSON, parsed through factory
  plan_assignments:   Executive-to-plan links with effective periods
  commissions:        Calculated breakdowns + approval status

IMMUTABILITY:
  Contracts and invoices have no UPDATE path. Commissions update only
  their status and audit columns; the breakdown columns are written once.
  A UNIQUE index on commissions.invoice_id enforces one commission per
  invoice.

DECIMALS:
  All money and rate values are stored as TEXT and parsed back through
  shopspring/decimal, so amounts round-trip exactly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, with the write lock held across
  WithTx. Combined with the database transaction this makes the
  read-YTD/calculate/insert sequence in the workflow a true serialization
  point per store (see workflow/store.go).

ACTIVE CONFIG RESOLUTION:
  ActiveRateConfig picks the assignment covering the evaluation time and
  parses its plan JSON via factory, so defaults resolve in exactly one
  place. Overlapping assignments are rejected at write time, preserving
  the one-active-config invariant.

USAGE:
  store, err := sqlite.New("./data/commissions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := workflow.NewService(store)

SEE ALSO:
  - workflow/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
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
	"github.com/shopspring/decimal"

	"github.com/salesdesk/commission-engine/commission"
	"github.com/salesdesk/commission-engine/factory"
	"github.com/salesdesk/commission-engine/workflow"
)

// Store implements workflow.TxStore and the API's query surface on SQLite.
type Store struct {
	db    *sql.DB
	mu    sync.RWMutex
	plans *factory.PlanFactory
}

var _ workflow.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, plans: factory.NewPlanFactory()}
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
	-- Account executives
	CREATE TABLE IF NOT EXISTS account_executives (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		hired_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Contracts (immutable once created)
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL,
		executive_id TEXT NOT NULL,
		contract_value TEXT NOT NULL,
		acv TEXT NOT NULL,
		contract_type TEXT NOT NULL,
		length_years INTEGER NOT NULL,
		payment_terms TEXT NOT NULL,
		is_pilot BOOLEAN NOT NULL DEFAULT FALSE,
		signed_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_executive
		ON contracts(executive_id);

	-- Invoices (immutable once created)
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		revenue_type TEXT NOT NULL,
		invoice_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_contract
		ON invoices(contract_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_date
		ON invoices(invoice_date);

	-- Rate plans (versioned JSON configs)
	CREATE TABLE IF NOT EXISTS rate_plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Plan assignments (one active plan per executive at any time)
	CREATE TABLE IF NOT EXISTS plan_assignments (
		id TEXT PRIMARY KEY,
		executive_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_executive
		ON plan_assignments(executive_id, effective_from);

	-- Commissions: breakdown written once, status mutated by approval only
	CREATE TABLE IF NOT EXISTS commissions (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL,
		executive_id TEXT NOT NULL,
		base_amount TEXT NOT NULL,
		pilot_bonus TEXT NOT NULL,
		multi_year_bonus TEXT NOT NULL,
		upfront_bonus TEXT NOT NULL,
		total TEXT NOT NULL,
		cap_applied BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'pending',
		decided_by TEXT,
		decided_at TEXT,
		rejection_reason TEXT,
		paid_at TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: Exactly one commission per invoice
	CREATE UNIQUE INDEX IF NOT EXISTS idx_commissions_invoice
		ON commissions(invoice_id);

	-- For approval queue and YTD queries (hot path)
	CREATE INDEX IF NOT EXISTS idx_commissions_status
		ON commissions(status);
	CREATE INDEX IF NOT EXISTS idx_commissions_executive_status
		ON commissions(executive_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx, letting the unexported
// helpers run either directly or inside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNT EXECUTIVES
// =============================================================================

// Executive is a stored account executive record.
type Executive struct {
	ID        commission.ExecutiveID
	Name      string
	Email     string
	HiredAt   time.Time
	CreatedAt time.Time
}

// SaveExecutive creates or updates an account executive.
func (s *Store) SaveExecutive(ctx context.Context, e Executive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO account_executives (id, name, email, hired_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			hired_at = excluded.hired_at
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Email,
		e.HiredAt.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetExecutive retrieves an executive by ID.
func (s *Store) GetExecutive(ctx context.Context, id commission.ExecutiveID) (*Executive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Executive
	var hiredAt, createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, hired_at, created_at FROM account_executives WHERE id = ?",
		id,
	).Scan(&e.ID, &e.Name, &e.Email, &hiredAt, &createdAt)

	if err == sql.ErrNoRows {
		return nil, commission.ErrExecutiveNotFound
	}
	if err != nil {
		return nil, err
	}

	e.HiredAt, _ = time.Parse(time.RFC3339, hiredAt)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

// ListExecutives returns all executives.
func (s *Store) ListExecutives(ctx context.Context) ([]Executive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, hired_at, created_at FROM account_executives ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executives []Executive
	for rows.Next() {
		var e Executive
		var hiredAt, createdAt string
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &hiredAt, &createdAt); err != nil {
			return nil, err
		}
		e.HiredAt, _ = time.Parse(time.RFC3339, hiredAt)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		executives = append(executives, e)
	}
	return executives, rows.Err()
}

// =============================================================================
// CONTRACTS
// =============================================================================

// SaveContract persists a contract. Contracts are immutable; saving an
// existing ID is an error surfaced by the primary key.
func (s *Store) SaveContract(ctx context.Context, c commission.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO contracts
		(id, client_name, executive_id, contract_value, acv, contract_type,
		 length_years, payment_terms, is_pilot, signed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.ClientName, c.ExecutiveID,
		c.ContractValue.String(), c.ACV.String(),
		c.Type, c.LengthYears, c.PaymentTerms, c.IsPilot,
		c.SignedAt.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save contract: %w", err)
	}
	return nil
}

// GetContract retrieves a contract by ID.
func (s *Store) GetContract(ctx context.Context, id commission.ContractID) (*commission.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getContract(ctx, s.db, id)
}

func (s *Store) getContract(ctx context.Context, q querier, id commission.ContractID) (*commission.Contract, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, client_name, executive_id, contract_value, acv, contract_type,
		       length_years, payment_terms, is_pilot, signed_at
		FROM contracts WHERE id = ?
	`, id)

	var c commission.Contract
	var value, acv, signedAt string
	err := row.Scan(&c.ID, &c.ClientName, &c.ExecutiveID, &value, &acv,
		&c.Type, &c.LengthYears, &c.PaymentTerms, &c.IsPilot, &signedAt)
	if err == sql.ErrNoRows {
		return nil, commission.ErrContractNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contract: %w", err)
	}

	c.ContractValue = commission.MustDecimal(value)
	c.ACV = commission.MustDecimal(acv)
	c.SignedAt, _ = time.Parse(time.RFC3339, signedAt)
	return &c, nil
}

// ListContracts returns all contracts, newest first.
func (s *Store) ListContracts(ctx context.Context) ([]commission.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_name, executive_id, contract_value, acv, contract_type,
		       length_years, payment_terms, is_pilot, signed_at
		FROM contracts ORDER BY signed_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanContracts(rows)
}

func scanContracts(rows *sql.Rows) ([]commission.Contract, error) {
	var contracts []commission.Contract
	for rows.Next() {
		var c commission.Contract
		var value, acv, signedAt string
		if err := rows.Scan(&c.ID, &c.ClientName, &c.ExecutiveID, &value, &acv,
			&c.Type, &c.LengthYears, &c.PaymentTerms, &c.IsPilot, &signedAt); err != nil {
			return nil, err
		}
		c.ContractValue = commission.MustDecimal(value)
		c.ACV = commission.MustDecimal(acv)
		c.SignedAt, _ = time.Parse(time.RFC3339, signedAt)
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// =============================================================================
// INVOICES
// =============================================================================

// InsertInvoice persists an invoice. No update path exists.
func (s *Store) InsertInvoice(ctx context.Context, inv commission.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertInvoice(ctx, s.db, inv)
}

func (s *Store) insertInvoice(ctx context.Context, q querier, inv commission.Invoice) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO invoices (id, contract_id, amount, revenue_type, invoice_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		inv.ID, inv.ContractID, inv.Amount.String(), inv.RevenueType,
		inv.Date.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

// GetInvoice retrieves an invoice by ID.
func (s *Store) GetInvoice(ctx context.Context, id commission.InvoiceID) (*commission.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, contract_id, amount, revenue_type, invoice_date
		FROM invoices WHERE id = ?
	`, id)

	var inv commission.Invoice
	var amount, date string
	err := row.Scan(&inv.ID, &inv.ContractID, &amount, &inv.RevenueType, &date)
	if err == sql.ErrNoRows {
		return nil, commission.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}

	inv.Amount = commission.MustDecimal(amount)
	inv.Date, _ = time.Parse(time.RFC3339, date)
	return &inv, nil
}

// ListInvoicesByContract returns a contract's invoices, newest first.
func (s *Store) ListInvoicesByContract(ctx context.Context, id commission.ContractID) ([]commission.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, amount, revenue_type, invoice_date
		FROM invoices WHERE contract_id = ?
		ORDER BY invoice_date DESC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []commission.Invoice
	for rows.Next() {
		var inv commission.Invoice
		var amount, date string
		if err := rows.Scan(&inv.ID, &inv.ContractID, &amount, &inv.RevenueType, &date); err != nil {
			return nil, err
		}
		inv.Amount = commission.MustDecimal(amount)
		inv.Date, _ = time.Parse(time.RFC3339, date)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// =============================================================================
// RATE PLANS
// =============================================================================

// PlanRecord is a stored rate plan with its JSON config.
type PlanRecord struct {
	ID         commission.PlanID
	Name       string
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SavePlan saves a plan record, bumping the version on update. The config
// is factory-validated before it is stored; invalid plans never land.
func (s *Store) SavePlan(ctx context.Context, plan PlanRecord) error {
	if _, err := s.plans.ParsePlan(plan.ConfigJSON); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rate_plans (id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			version = rate_plans.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query, plan.ID, plan.Name, plan.ConfigJSON, now, now)
	return err
}

// GetPlan retrieves a plan by ID.
func (s *Store) GetPlan(ctx context.Context, id commission.PlanID) (*PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p PlanRecord
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, config_json, version, created_at, updated_at FROM rate_plans WHERE id = ?",
		id,
	).Scan(&p.ID, &p.Name, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, commission.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// ListPlans returns all plans.
func (s *Store) ListPlans(ctx context.Context) ([]PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, config_json, version, created_at, updated_at FROM rate_plans ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []PlanRecord
	for rows.Next() {
		var p PlanRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// =============================================================================
// PLAN ASSIGNMENTS
// =============================================================================

// AssignmentRecord links an executive to a plan for an effective period.
type AssignmentRecord struct {
	ID            string
	ExecutiveID   commission.ExecutiveID
	PlanID        commission.PlanID
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	CreatedAt     time.Time
}

// SaveAssignment saves a plan assignment, rejecting any overlap with the
// executive's existing assignments. This is what keeps "exactly one active
// configuration per executive" true.
func (s *Store) SaveAssignment(ctx context.Context, a AssignmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Overlap: existing starts before we end, and ends after we start.
	overlapQuery := `
		SELECT COUNT(*) FROM plan_assignments
		WHERE executive_id = ? AND id != ?
		  AND (? IS NULL OR effective_from <= ?)
		  AND (effective_to IS NULL OR effective_to >= ?)
	`

	var newTo *string
	if a.EffectiveTo != nil {
		t := a.EffectiveTo.Format(time.RFC3339)
		newTo = &t
	}
	newFrom := a.EffectiveFrom.Format(time.RFC3339)

	var count int
	if err := s.db.QueryRowContext(ctx, overlapQuery,
		a.ExecutiveID, a.ID, newTo, newTo, newFrom,
	).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("executive %s: %w", a.ExecutiveID, commission.ErrOverlappingAssignment)
	}

	query := `
		INSERT INTO plan_assignments (id, executive_id, plan_id, effective_from, effective_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plan_id = excluded.plan_id,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.ExecutiveID, a.PlanID, newFrom, newTo,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetAssignmentsByExecutive returns an executive's assignments.
func (s *Store) GetAssignmentsByExecutive(ctx context.Context, id commission.ExecutiveID) ([]AssignmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, executive_id, plan_id, effective_from, effective_to, created_at
		FROM plan_assignments
		WHERE executive_id = ?
		ORDER BY effective_from DESC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []AssignmentRecord
	for rows.Next() {
		var a AssignmentRecord
		var from, createdAt string
		var to sql.NullString
		if err := rows.Scan(&a.ID, &a.ExecutiveID, &a.PlanID, &from, &to, &createdAt); err != nil {
			return nil, err
		}
		a.EffectiveFrom, _ = time.Parse(time.RFC3339, from)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if to.Valid {
			t, _ := time.Parse(time.RFC3339, to.String)
			a.EffectiveTo = &t
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ActiveRateConfig resolves the configuration active for the executive at
// the given time. Returns (nil, nil) when no assignment covers it.
func (s *Store) ActiveRateConfig(ctx context.Context, id commission.ExecutiveID, at time.Time) (*commission.RateConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeRateConfig(ctx, s.db, id, at)
}

func (s *Store) activeRateConfig(ctx context.Context, q querier, id commission.ExecutiveID, at time.Time) (*commission.RateConfig, error) {
	atStr := at.Format(time.RFC3339)

	row := q.QueryRowContext(ctx, `
		SELECT p.config_json
		FROM plan_assignments a
		JOIN rate_plans p ON p.id = a.plan_id
		WHERE a.executive_id = ?
		  AND a.effective_from <= ?
		  AND (a.effective_to IS NULL OR a.effective_to >= ?)
		ORDER BY a.effective_from DESC
		LIMIT 1
	`, id, atStr, atStr)

	var configJSON string
	err := row.Scan(&configJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cfg, err := s.plans.ParsePlan(configJSON)
	if err != nil {
		return nil, fmt.Errorf("stored plan for executive %s: %w", id, err)
	}
	return &cfg, nil
}

// =============================================================================
// COMMISSIONS
// =============================================================================

// InsertCommission persists a freshly calculated commission.
func (s *Store) InsertCommission(ctx context.Context, cm commission.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCommission(ctx, s.db, cm)
}

func (s *Store) insertCommission(ctx context.Context, q querier, cm commission.Commission) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO commissions
		(id, invoice_id, executive_id, base_amount, pilot_bonus, multi_year_bonus,
		 upfront_bonus, total, cap_applied, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		cm.ID, cm.InvoiceID, cm.ExecutiveID,
		cm.Breakdown.Base.String(), cm.Breakdown.PilotBonus.String(),
		cm.Breakdown.MultiYear.String(), cm.Breakdown.Upfront.String(),
		cm.Breakdown.Total.String(), cm.Breakdown.CapApplied,
		cm.Status, cm.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "commissions.invoice_id") {
			return commission.ErrDuplicateCommission
		}
		return fmt.Errorf("failed to insert commission: %w", err)
	}
	return nil
}

// GetCommission retrieves a commission by ID.
func (s *Store) GetCommission(ctx context.Context, id commission.CommissionID) (*commission.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCommission(ctx, s.db, id)
}

const commissionColumns = `
	id, invoice_id, executive_id, base_amount, pilot_bonus, multi_year_bonus,
	upfront_bonus, total, cap_applied, status, decided_by, decided_at,
	rejection_reason, paid_at, created_at
`

func (s *Store) getCommission(ctx context.Context, q querier, id commission.CommissionID) (*commission.Commission, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+commissionColumns+" FROM commissions WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cms, err := scanCommissions(rows)
	if err != nil {
		return nil, err
	}
	if len(cms) == 0 {
		return nil, commission.ErrCommissionNotFound
	}
	return &cms[0], nil
}

// UpdateCommissionStatus persists a status transition. Breakdown columns
// are deliberately absent from the UPDATE.
func (s *Store) UpdateCommissionStatus(ctx context.Context, cm commission.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var decidedAt, paidAt *string
	if cm.DecidedAt != nil {
		t := cm.DecidedAt.Format(time.RFC3339)
		decidedAt = &t
	}
	if cm.PaidAt != nil {
		t := cm.PaidAt.Format(time.RFC3339)
		paidAt = &t
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE commissions
		SET status = ?, decided_by = ?, decided_at = ?, rejection_reason = ?, paid_at = ?
		WHERE id = ?
	`, cm.Status, cm.DecidedBy, decidedAt, cm.RejectionReason, paidAt, cm.ID)
	if err != nil {
		return fmt.Errorf("failed to update commission: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return commission.ErrCommissionNotFound
	}
	return nil
}

// ListCommissions returns commissions, optionally filtered by status,
// newest first.
func (s *Store) ListCommissions(ctx context.Context, status commission.Status) ([]commission.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = s.db.QueryContext(ctx,
			"SELECT "+commissionColumns+" FROM commissions WHERE status = ? ORDER BY created_at DESC",
			status)
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT "+commissionColumns+" FROM commissions ORDER BY created_at DESC")
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCommissions(rows)
}

// ListByExecutive returns an executive's commissions for a calendar year,
// by invoice date, newest first.
func (s *Store) ListByExecutive(ctx context.Context, id commission.ExecutiveID, year int) ([]commission.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.invoice_id, c.executive_id, c.base_amount, c.pilot_bonus,
		       c.multi_year_bonus, c.upfront_bonus, c.total, c.cap_applied, c.status,
		       c.decided_by, c.decided_at, c.rejection_reason, c.paid_at, c.created_at
		FROM commissions c
		JOIN invoices i ON i.id = c.invoice_id
		WHERE c.executive_id = ? AND strftime('%Y', i.invoice_date) = ?
		ORDER BY i.invoice_date DESC
	`, id, fmt.Sprintf("%d", year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCommissions(rows)
}

// YearToDateEarned sums approved and paid commission totals for a
// calendar year (by invoice date).
func (s *Store) YearToDateEarned(ctx context.Context, id commission.ExecutiveID, year int) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.yearToDateEarned(ctx, s.db, id, year)
}

func (s *Store) yearToDateEarned(ctx context.Context, q querier, id commission.ExecutiveID, year int) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.total
		FROM commissions c
		JOIN invoices i ON i.id = c.invoice_id
		WHERE c.executive_id = ?
		  AND c.status IN ('approved', 'paid')
		  AND strftime('%Y', i.invoice_date) = ?
	`, id, fmt.Sprintf("%d", year))
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	// Summed in Go so decimal precision survives; SQLite SUM would go
	// through floats.
	total := decimal.Zero
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(commission.MustDecimal(v))
	}
	return total, rows.Err()
}

func scanCommissions(rows *sql.Rows) ([]commission.Commission, error) {
	var cms []commission.Commission
	for rows.Next() {
		var cm commission.Commission
		var base, pilot, multiYear, upfront, total, createdAt string
		var decidedBy, decidedAt, rejectionReason, paidAt sql.NullString

		if err := rows.Scan(
			&cm.ID, &cm.InvoiceID, &cm.ExecutiveID,
			&base, &pilot, &multiYear, &upfront, &total, &cm.Breakdown.CapApplied,
			&cm.Status, &decidedBy, &decidedAt, &rejectionReason, &paidAt, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan commission: %w", err)
		}

		cm.Breakdown.Base = commission.MustDecimal(base)
		cm.Breakdown.PilotBonus = commission.MustDecimal(pilot)
		cm.Breakdown.MultiYear = commission.MustDecimal(multiYear)
		cm.Breakdown.Upfront = commission.MustDecimal(upfront)
		cm.Breakdown.Total = commission.MustDecimal(total)
		cm.DecidedBy = decidedBy.String
		cm.RejectionReason = rejectionReason.String
		if decidedAt.Valid {
			t, _ := time.Parse(time.RFC3339, decidedAt.String)
			cm.DecidedAt = &t
		}
		if paidAt.Valid {
			t, _ := time.Parse(time.RFC3339, paidAt.String)
			cm.PaidAt = &t
		}
		cm.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		cms = append(cms, cm)
	}
	return cms, rows.Err()
}

// =============================================================================
// STATEMENTS
// =============================================================================

// StatementLine is one commission with its invoice and contract context,
// as shown on an executive's statement.
type StatementLine struct {
	Commission  commission.Commission
	InvoiceDate time.Time
	Amount      decimal.Decimal
	RevenueType commission.RevenueType
	ClientName  string
}

// Statement returns an executive's statement lines for a year, optionally
// filtered by status, oldest first.
func (s *Store) Statement(ctx context.Context, id commission.ExecutiveID, year int, status commission.Status) ([]StatementLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT c.id, c.invoice_id, c.executive_id, c.base_amount, c.pilot_bonus,
		       c.multi_year_bonus, c.upfront_bonus, c.total, c.cap_applied, c.status,
		       c.decided_by, c.decided_at, c.rejection_reason, c.paid_at, c.created_at,
		       i.invoice_date, i.amount, i.revenue_type, ct.client_name
		FROM commissions c
		JOIN invoices i ON i.id = c.invoice_id
		JOIN contracts ct ON ct.id = i.contract_id
		WHERE c.executive_id = ? AND strftime('%Y', i.invoice_date) = ?
	`
	args := []any{id, fmt.Sprintf("%d", year)}
	if status != "" {
		query += " AND c.status = ?"
		args = append(args, status)
	}
	query += " ORDER BY i.invoice_date ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []StatementLine
	for rows.Next() {
		var line StatementLine
		cm := &line.Commission
		var base, pilot, multiYear, upfront, total, createdAt string
		var decidedBy, decidedAt, rejectionReason, paidAt sql.NullString
		var invoiceDate, amount string

		if err := rows.Scan(
			&cm.ID, &cm.InvoiceID, &cm.ExecutiveID,
			&base, &pilot, &multiYear, &upfront, &total, &cm.Breakdown.CapApplied,
			&cm.Status, &decidedBy, &decidedAt, &rejectionReason, &paidAt, &createdAt,
			&invoiceDate, &amount, &line.RevenueType, &line.ClientName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan statement line: %w", err)
		}

		cm.Breakdown.Base = commission.MustDecimal(base)
		cm.Breakdown.PilotBonus = commission.MustDecimal(pilot)
		cm.Breakdown.MultiYear = commission.MustDecimal(multiYear)
		cm.Breakdown.Upfront = commission.MustDecimal(upfront)
		cm.Breakdown.Total = commission.MustDecimal(total)
		cm.DecidedBy = decidedBy.String
		cm.RejectionReason = rejectionReason.String
		if decidedAt.Valid {
			t, _ := time.Parse(time.RFC3339, decidedAt.String)
			cm.DecidedAt = &t
		}
		if paidAt.Valid {
			t, _ := time.Parse(time.RFC3339, paidAt.String)
			cm.PaidAt = &t
		}
		cm.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		line.InvoiceDate, _ = time.Parse(time.RFC3339, invoiceDate)
		line.Amount = commission.MustDecimal(amount)

		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (workflow.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction while holding the
// store's write lock. This is the serialization point the workflow's
// compute-and-record sequence relies on.
func (s *Store) WithTx(ctx context.Context, fn func(store workflow.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes reads and writes through the open transaction. It must
// not call the parent's exported methods - those take the mutex WithTx
// already holds.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) GetContract(ctx context.Context, id commission.ContractID) (*commission.Contract, error) {
	return ts.parent.getContract(ctx, ts.tx, id)
}

func (ts *txStore) InsertInvoice(ctx context.Context, inv commission.Invoice) error {
	return ts.parent.insertInvoice(ctx, ts.tx, inv)
}

func (ts *txStore) GetInvoice(ctx context.Context, id commission.InvoiceID) (*commission.Invoice, error) {
	row := ts.tx.QueryRowContext(ctx,
		"SELECT id, contract_id, amount, revenue_type, invoice_date FROM invoices WHERE id = ?", id)
	var inv commission.Invoice
	var amount, date string
	err := row.Scan(&inv.ID, &inv.ContractID, &amount, &inv.RevenueType, &date)
	if err == sql.ErrNoRows {
		return nil, commission.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.Amount = commission.MustDecimal(amount)
	inv.Date, _ = time.Parse(time.RFC3339, date)
	return &inv, nil
}

func (ts *txStore) ActiveRateConfig(ctx context.Context, id commission.ExecutiveID, at time.Time) (*commission.RateConfig, error) {
	return ts.parent.activeRateConfig(ctx, ts.tx, id, at)
}

func (ts *txStore) YearToDateEarned(ctx context.Context, id commission.ExecutiveID, year int) (decimal.Decimal, error) {
	return ts.parent.yearToDateEarned(ctx, ts.tx, id, year)
}

func (ts *txStore) InsertCommission(ctx context.Context, cm commission.Commission) error {
	return ts.parent.insertCommission(ctx, ts.tx, cm)
}

func (ts *txStore) GetCommission(ctx context.Context, id commission.CommissionID) (*commission.Commission, error) {
	return ts.parent.getCommission(ctx, ts.tx, id)
}

func (ts *txStore) UpdateCommissionStatus(ctx context.Context, cm commission.Commission) error {
	var decidedAt, paidAt *string
	if cm.DecidedAt != nil {
		t := cm.DecidedAt.Format(time.RFC3339)
		decidedAt = &t
	}
	if cm.PaidAt != nil {
		t := cm.PaidAt.Format(time.RFC3339)
		paidAt = &t
	}

	result, err := ts.tx.ExecContext(ctx, `
		UPDATE commissions
		SET status = ?, decided_by = ?, decided_at = ?, rejection_reason = ?, paid_at = ?
		WHERE id = ?
	`, cm.Status, cm.DecidedBy, decidedAt, cm.RejectionReason, paidAt, cm.ID)
	if err != nil {
		return fmt.Errorf("failed to update commission: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return commission.ErrCommissionNotFound
	}
	return nil
}

func (ts *txStore) ListByExecutive(ctx context.Context, id commission.ExecutiveID, year int) ([]commission.Commission, error) {
	rows, err := ts.tx.QueryContext(ctx, `
		SELECT c.id, c.invoice_id, c.executive_id, c.base_amount, c.pilot_bonus,
		       c.multi_year_bonus, c.upfront_bonus, c.total, c.cap_applied, c.status,
		       c.decided_by, c.decided_at, c.rejection_reason, c.paid_at, c.created_at
		FROM commissions c
		JOIN invoices i ON i.id = c.invoice_id
		WHERE c.executive_id = ? AND strftime('%Y', i.invoice_date) = ?
		ORDER BY i.invoice_date DESC
	`, id, fmt.Sprintf("%d", year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCommissions(rows)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"commissions", "invoices", "contracts", "plan_assignments", "rate_plans", "account_executives"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
