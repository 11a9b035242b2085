// Package memory provides an in-memory TxStore implementation (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salesdesk/commission-engine/commission"
	"github.com/salesdesk/commission-engine/workflow"
)

// =============================================================================
// MEMORY STORE - In-memory implementation of workflow.TxStore
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	contracts   map[commission.ContractID]commission.Contract
	invoices    map[commission.InvoiceID]commission.Invoice
	commissions map[commission.CommissionID]commission.Commission
	byInvoice   map[commission.InvoiceID]commission.CommissionID
	assignments map[commission.ExecutiveID][]assignment
}

type assignment struct {
	config commission.RateConfig
	from   time.Time
	to     *time.Time // nil = open-ended
}

func New() *Store {
	return &Store{
		contracts:   make(map[commission.ContractID]commission.Contract),
		invoices:    make(map[commission.InvoiceID]commission.Invoice),
		commissions: make(map[commission.CommissionID]commission.Commission),
		byInvoice:   make(map[commission.InvoiceID]commission.CommissionID),
		assignments: make(map[commission.ExecutiveID][]assignment),
	}
}

var _ workflow.TxStore = (*Store)(nil)

// =============================================================================
// FIXTURE HELPERS - not part of the workflow interface
// =============================================================================

// PutContract stores a contract directly.
func (m *Store) PutContract(c commission.Contract) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[c.ID] = c
}

// AssignConfig makes cfg the active configuration for the executive from
// the given time, open-ended.
func (m *Store) AssignConfig(id commission.ExecutiveID, cfg commission.RateConfig, from time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[id] = append(m.assignments[id], assignment{config: cfg, from: from})
}

// =============================================================================
// workflow.Store
// =============================================================================

func (m *Store) GetContract(_ context.Context, id commission.ContractID) (*commission.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contracts[id]
	if !ok {
		return nil, commission.ErrContractNotFound
	}
	return &c, nil
}

func (m *Store) InsertInvoice(_ context.Context, inv commission.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = inv
	return nil
}

func (m *Store) GetInvoice(_ context.Context, id commission.InvoiceID) (*commission.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, commission.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (m *Store) ActiveRateConfig(_ context.Context, id commission.ExecutiveID, at time.Time) (*commission.RateConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.assignments[id] {
		if at.Before(a.from) {
			continue
		}
		if a.to != nil && at.After(*a.to) {
			continue
		}
		cfg := a.config
		return &cfg, nil
	}
	return nil, nil
}

func (m *Store) YearToDateEarned(_ context.Context, id commission.ExecutiveID, year int) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, cm := range m.commissions {
		if cm.ExecutiveID != id || !cm.Status.Earned() {
			continue
		}
		inv, ok := m.invoices[cm.InvoiceID]
		if !ok || inv.Year() != year {
			continue
		}
		total = total.Add(cm.Breakdown.Total)
	}
	return total, nil
}

func (m *Store) InsertCommission(_ context.Context, cm commission.Commission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byInvoice[cm.InvoiceID]; exists {
		return commission.ErrDuplicateCommission
	}
	m.commissions[cm.ID] = cm
	m.byInvoice[cm.InvoiceID] = cm.ID
	return nil
}

func (m *Store) GetCommission(_ context.Context, id commission.CommissionID) (*commission.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cm, ok := m.commissions[id]
	if !ok {
		return nil, commission.ErrCommissionNotFound
	}
	return &cm, nil
}

func (m *Store) UpdateCommissionStatus(_ context.Context, cm commission.Commission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.commissions[cm.ID]
	if !ok {
		return commission.ErrCommissionNotFound
	}
	// Breakdown fields are immutable after creation.
	existing.Status = cm.Status
	existing.DecidedBy = cm.DecidedBy
	existing.DecidedAt = cm.DecidedAt
	existing.RejectionReason = cm.RejectionReason
	existing.PaidAt = cm.PaidAt
	m.commissions[cm.ID] = existing
	return nil
}

func (m *Store) ListByExecutive(_ context.Context, id commission.ExecutiveID, year int) ([]commission.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []commission.Commission
	for _, cm := range m.commissions {
		if cm.ExecutiveID != id {
			continue
		}
		inv, ok := m.invoices[cm.InvoiceID]
		if !ok || inv.Year() != year {
			continue
		}
		out = append(out, cm)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// =============================================================================
// workflow.TxStore
// =============================================================================

// WithTx runs fn with the store locked for the duration and restores the
// previous state if fn fails, giving the all-or-nothing behavior the
// workflow expects from a real database transaction.
func (m *Store) WithTx(_ context.Context, fn func(workflow.Store) error) error {
	m.mu.Lock()
	snapshot := m.copyState()
	m.mu.Unlock()

	if err := fn(&txView{store: m}); err != nil {
		m.mu.Lock()
		m.restore(snapshot)
		m.mu.Unlock()
		return err
	}
	return nil
}

type state struct {
	invoices    map[commission.InvoiceID]commission.Invoice
	commissions map[commission.CommissionID]commission.Commission
	byInvoice   map[commission.InvoiceID]commission.CommissionID
}

func (m *Store) copyState() state {
	s := state{
		invoices:    make(map[commission.InvoiceID]commission.Invoice, len(m.invoices)),
		commissions: make(map[commission.CommissionID]commission.Commission, len(m.commissions)),
		byInvoice:   make(map[commission.InvoiceID]commission.CommissionID, len(m.byInvoice)),
	}
	for k, v := range m.invoices {
		s.invoices[k] = v
	}
	for k, v := range m.commissions {
		s.commissions[k] = v
	}
	for k, v := range m.byInvoice {
		s.byInvoice[k] = v
	}
	return s
}

func (m *Store) restore(s state) {
	m.invoices = s.invoices
	m.commissions = s.commissions
	m.byInvoice = s.byInvoice
}

// txView delegates to the parent store. The parent's own locking keeps the
// individual operations consistent; single-writer tests don't need more.
type txView struct {
	store *Store
}

func (t *txView) GetContract(ctx context.Context, id commission.ContractID) (*commission.Contract, error) {
	return t.store.GetContract(ctx, id)
}

func (t *txView) InsertInvoice(ctx context.Context, inv commission.Invoice) error {
	return t.store.InsertInvoice(ctx, inv)
}

func (t *txView) GetInvoice(ctx context.Context, id commission.InvoiceID) (*commission.Invoice, error) {
	return t.store.GetInvoice(ctx, id)
}

func (t *txView) ActiveRateConfig(ctx context.Context, id commission.ExecutiveID, at time.Time) (*commission.RateConfig, error) {
	return t.store.ActiveRateConfig(ctx, id, at)
}

func (t *txView) YearToDateEarned(ctx context.Context, id commission.ExecutiveID, year int) (decimal.Decimal, error) {
	return t.store.YearToDateEarned(ctx, id, year)
}

func (t *txView) InsertCommission(ctx context.Context, cm commission.Commission) error {
	return t.store.InsertCommission(ctx, cm)
}

func (t *txView) GetCommission(ctx context.Context, id commission.CommissionID) (*commission.Commission, error) {
	return t.store.GetCommission(ctx, id)
}

func (t *txView) UpdateCommissionStatus(ctx context.Context, cm commission.Commission) error {
	return t.store.UpdateCommissionStatus(ctx, cm)
}

func (t *txView) ListByExecutive(ctx context.Context, id commission.ExecutiveID, year int) ([]commission.Commission, error) {
	return t.store.ListByExecutive(ctx, id, year)
}
