package cache

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryMirror is an in-process Mirror. It backs single-node deployments that
// run without redis and the test suites; the two implementations are
// interchangeable behind the Mirror interface.
type MemoryMirror struct {
	mu      sync.RWMutex
	entries map[int64]decimal.Decimal
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{entries: make(map[int64]decimal.Decimal)}
}

func (m *MemoryMirror) Set(_ context.Context, auctionID int64, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[auctionID] = amount
	return nil
}

func (m *MemoryMirror) Get(_ context.Context, auctionID int64) (decimal.Decimal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	amount, ok := m.entries[auctionID]
	if !ok {
		return decimal.Zero, false, nil
	}
	return amount, true, nil
}
