// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redcell/inventory-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	entries []ledger.Entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Append stores a copy of e with generated id and timestamps.
func (m *Memory) Append(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := m.now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	m.entries = append(m.entries, e)
	return e, nil
}

// Query returns matching entries, most recent first.
func (m *Memory) Query(_ context.Context, f ledger.Filter, opts ledger.QueryOptions) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Entry
	for _, e := range m.entries {
		if f.Matches(e) {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// SumQuantity returns the exact decimal sum over matching entries.
func (m *Memory) SumQuantity(_ context.Context, f ledger.Filter) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, e := range m.entries {
		if f.Matches(e) {
			total = total.Add(e.Quantity)
		}
	}
	return total, nil
}

// Distinct returns the set of distinct non-empty reference values.
func (m *Memory) Distinct(_ context.Context, field ledger.RefField, f ledger.Filter) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var result []string
	for _, e := range m.entries {
		if !f.Matches(e) {
			continue
		}
		var v string
		switch field {
		case ledger.RefDonor:
			v = e.Donor
		case ledger.RefHospital:
			v = e.Hospital
		case ledger.RefOrganisation:
			v = e.Organisation
		}
		if v != "" && !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result, nil
}
