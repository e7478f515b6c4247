// Package memory provides a simple in-memory store used for development and
// tests. It keeps code paths easy to follow while allowing a real backend to
// be plugged in later.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/turgut5534/amic-card-app/internal/errs"
	"github.com/turgut5534/amic-card-app/internal/fuelcard"
)

// Store is an in-memory card ledger store guarded by an RWMutex.
type Store struct {
	mu    sync.RWMutex
	cards map[uuid.UUID]fuelcard.CardState
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{cards: make(map[uuid.UUID]fuelcard.CardState)}
}

// Seed inserts a card state directly, for local dev and tests.
func (s *Store) Seed(st fuelcard.CardState) {
	s.mu.Lock()
	s.cards[st.Card.ID] = st.Clone()
	s.mu.Unlock()
}

// Reset drops all cards.
func (s *Store) Reset() {
	s.mu.Lock()
	s.cards = make(map[uuid.UUID]fuelcard.CardState)
	s.mu.Unlock()
}

// Load implements ledger.Store. Unknown cards fail with ErrNotFound.
func (s *Store) Load(_ context.Context, cardID uuid.UUID) (fuelcard.CardState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.cards[cardID]
	if !ok {
		return fuelcard.CardState{}, errs.ErrNotFound
	}
	return st.Clone(), nil
}

// Save implements ledger.Store, replacing the whole card state.
func (s *Store) Save(_ context.Context, st fuelcard.CardState) error {
	s.mu.Lock()
	s.cards[st.Card.ID] = st.Clone()
	s.mu.Unlock()
	return nil
}

// AppendTransaction persists one new transaction and the resulting balance.
func (s *Store) AppendTransaction(_ context.Context, card fuelcard.Card, tx fuelcard.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.cards[card.ID]
	if !ok {
		return errs.ErrNotFound
	}
	next := st.Clone()
	next.Balance = tx.Balance
	next.History = append([]fuelcard.Transaction{tx}, next.History...)
	s.cards[card.ID] = next
	return nil
}

// CreateCard registers a new card with an opening balance.
func (s *Store) CreateCard(_ context.Context, card fuelcard.Card, opening money.Amount) (fuelcard.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cards[card.ID]; exists {
		return fuelcard.Card{}, fmt.Errorf("card %s already exists", card.ID)
	}
	s.cards[card.ID] = fuelcard.CardState{Card: card, Balance: opening}
	return card, nil
}
