package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// MemoryStore keeps balances in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Balance
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Balance)}
}

func (m *MemoryStore) Open(_ context.Context, accountID string, initial Balance) (Balance, error) {
	if initial.Tickets < 0 || initial.Diamonds < 0 {
		return Balance{}, fmt.Errorf("%w: initial balance %+v", ErrInvalidAmount, initial)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; ok {
		return Balance{}, fmt.Errorf("%w: %s", ErrAccountExists, accountID)
	}
	b := initial
	m.accounts[accountID] = &b
	return b, nil
}

func (m *MemoryStore) Balance(_ context.Context, accountID string) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.accounts[accountID]
	if !ok {
		return Balance{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return *b, nil
}

func (m *MemoryStore) Debit(_ context.Context, accountID string, tickets int64) (int64, error) {
	if tickets <= 0 {
		return 0, fmt.Errorf("%w: debit %d", ErrInvalidAmount, tickets)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.accounts[accountID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if b.Tickets < tickets {
		return b.Tickets, fmt.Errorf("%w: have %d tickets, need %d", ErrInsufficientFunds, b.Tickets, tickets)
	}
	b.Tickets -= tickets
	return b.Tickets, nil
}

func (m *MemoryStore) Exchange(_ context.Context, accountID string, diamonds, tickets int64) (Balance, error) {
	if diamonds <= 0 || tickets <= 0 {
		return Balance{}, fmt.Errorf("%w: exchange %d diamonds for %d tickets", ErrInvalidAmount, diamonds, tickets)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.accounts[accountID]
	if !ok {
		return Balance{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if b.Diamonds < diamonds {
		return *b, fmt.Errorf("%w: have %d diamonds, need %d", ErrInsufficientFunds, b.Diamonds, diamonds)
	}
	if b.Tickets > math.MaxInt64-tickets {
		return *b, fmt.Errorf("%w: credit of %d tickets overflows balance", ErrInvalidAmount, tickets)
	}
	b.Diamonds -= diamonds
	b.Tickets += tickets
	return *b, nil
}

func (m *MemoryStore) Close(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	delete(m.accounts, accountID)
	return nil
}
