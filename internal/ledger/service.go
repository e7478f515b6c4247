// Package ledger owns the card ledger core: balance, append-only history and
// the validation rules for mutating them. Monetary settlement is delegated to
// a pluggable strategy so the same core serves the local-only and the
// server-reconciled deployments.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"

	"github.com/turgut5534/amic-card-app/internal/errs"
	"github.com/turgut5534/amic-card-app/internal/fuelcard"
)

// defaultFuelPriceMinor is the fallback price (2.40 zl/L) reported before any
// spend has been recorded for a card.
const defaultFuelPriceMinor = 240

// Store loads and persists card ledgers, keyed by card ID.
type Store interface {
	Load(ctx context.Context, cardID uuid.UUID) (fuelcard.CardState, error)
	Save(ctx context.Context, state fuelcard.CardState) error
}

// appender is an optional Store fast path: persist one new transaction and
// the resulting balance without rewriting the whole ledger.
type appender interface {
	AppendTransaction(ctx context.Context, card fuelcard.Card, tx fuelcard.Transaction) error
}

// cardCreator is an optional Store fast path for backends that assign or
// validate card identity themselves (SQL insert, remote /cards/add).
type cardCreator interface {
	CreateCard(ctx context.Context, card fuelcard.Card, opening money.Amount) (fuelcard.Card, error)
}

// Settlement computes the authoritative effect of a top-up or spend.
type Settlement interface {
	// ApplyTopUp returns the new balance after adding amount.
	ApplyTopUp(ctx context.Context, cardID uuid.UUID, balance, amount money.Amount) (money.Amount, error)
	// ApplySpend returns the new balance and the dispensed fuel quantity.
	ApplySpend(ctx context.Context, cardID uuid.UUID, balance, amount, unitPrice money.Amount) (money.Amount, decimal.Decimal, error)
	// SupportsManualSet gates SetBalance.
	SupportsManualSet() bool
	// SupportsClearHistory gates ClearHistory.
	SupportsClearHistory() bool
}

// Service is the card ledger. Card states are lazily loaded on first access
// and cached for the life of the process; mutations for a given card are
// serialized by a per-card mutex so at most one is in flight at a time.
type Service struct {
	store  Store
	settle Settlement
	log    *slog.Logger

	mu    sync.Mutex // guards cards and locks
	cards map[uuid.UUID]fuelcard.CardState
	locks map[uuid.UUID]*sync.Mutex
}

// New constructs the ledger service over a store and a settlement strategy.
func New(store Store, settle Settlement, log *slog.Logger) *Service {
	return &Service{
		store:  store,
		settle: settle,
		log:    log,
		cards:  make(map[uuid.UUID]fuelcard.CardState),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

// lockCard returns the mutex serializing mutations of one card.
func (s *Service) lockCard(cardID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[cardID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[cardID] = l
	}
	return l
}

// state returns the cached ledger of a card, loading it from the store on
// first access.
func (s *Service) state(ctx context.Context, cardID uuid.UUID) (fuelcard.CardState, error) {
	s.mu.Lock()
	st, ok := s.cards[cardID]
	s.mu.Unlock()
	if ok {
		return st, nil
	}
	st, err := s.store.Load(ctx, cardID)
	if err != nil {
		return fuelcard.CardState{}, err
	}
	s.mu.Lock()
	s.cards[cardID] = st
	s.mu.Unlock()
	return st, nil
}

func (s *Service) cacheState(st fuelcard.CardState) {
	s.mu.Lock()
	s.cards[st.Card.ID] = st
	s.mu.Unlock()
}

// commit persists the new transaction and only then makes it visible. On any
// persistence error the cached state is left untouched.
func (s *Service) commit(ctx context.Context, st fuelcard.CardState, tx fuelcard.Transaction) (fuelcard.Transaction, error) {
	next := st.Clone()
	next.Balance = tx.Balance
	next.History = append([]fuelcard.Transaction{tx}, next.History...)
	var err error
	if ap, ok := s.store.(appender); ok {
		err = ap.AppendTransaction(ctx, next.Card, tx)
	} else {
		err = s.store.Save(ctx, next)
	}
	if err != nil {
		return fuelcard.Transaction{}, err
	}
	s.cacheState(next)
	s.log.Info("transaction committed",
		"card_id", st.Card.ID.String(),
		"kind", string(tx.Kind),
		"amount", fuelcard.FormatAmount(tx.Amount),
		"balance", fuelcard.FormatAmount(tx.Balance),
	)
	return tx, nil
}

// CreateCard registers a new card with an opening balance and no history.
func (s *Service) CreateCard(ctx context.Context, name string, opening money.Amount) (fuelcard.Card, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return fuelcard.Card{}, fmt.Errorf("%w: card name is required", errs.ErrInvalidAmount)
	}
	if fuelcard.MinorUnits(opening) < 0 {
		return fuelcard.Card{}, fmt.Errorf("%w: opening balance must not be negative", errs.ErrInvalidAmount)
	}
	card := fuelcard.Card{ID: uuid.New(), Name: name}
	st := fuelcard.CardState{Card: card, Balance: opening}
	if cc, ok := s.store.(cardCreator); ok {
		created, err := cc.CreateCard(ctx, card, opening)
		if err != nil {
			return fuelcard.Card{}, err
		}
		st.Card = created
	} else if err := s.store.Save(ctx, st); err != nil {
		return fuelcard.Card{}, err
	}
	s.cacheState(st)
	s.log.Info("card created", "card_id", st.Card.ID.String(), "name", st.Card.Name)
	return st.Card, nil
}

// TopUp adds a strictly positive amount to the card balance.
func (s *Service) TopUp(ctx context.Context, cardID uuid.UUID, amount money.Amount) (fuelcard.Transaction, error) {
	if fuelcard.MinorUnits(amount) <= 0 {
		return fuelcard.Transaction{}, fmt.Errorf("%w: top-up amount must be positive", errs.ErrInvalidAmount)
	}
	l := s.lockCard(cardID)
	l.Lock()
	defer l.Unlock()

	st, err := s.state(ctx, cardID)
	if err != nil {
		return fuelcard.Transaction{}, err
	}
	newBal, err := s.settle.ApplyTopUp(ctx, cardID, st.Balance, amount)
	if err != nil {
		return fuelcard.Transaction{}, err
	}
	tx := fuelcard.Transaction{
		ID:      uuid.New(),
		Kind:    fuelcard.TxTopUp,
		Amount:  amount,
		Balance: newBal,
		Date:    time.Now().UTC(),
	}
	return s.commit(ctx, st, tx)
}

// Spend settles a fuel purchase. The amount is validated against the locally
// known balance before the strategy runs; a remote strategy may still reject
// with ErrInsufficientBalance if server-side state has diverged, and that
// rejection propagates unchanged.
func (s *Service) Spend(ctx context.Context, cardID uuid.UUID, amount, unitPrice money.Amount) (fuelcard.Transaction, error) {
	if fuelcard.MinorUnits(amount) <= 0 {
		return fuelcard.Transaction{}, fmt.Errorf("%w: spend amount must be positive", errs.ErrInvalidAmount)
	}
	if fuelcard.MinorUnits(unitPrice) <= 0 {
		return fuelcard.Transaction{}, fmt.Errorf("%w: fuel price must be positive", errs.ErrInvalidAmount)
	}
	l := s.lockCard(cardID)
	l.Lock()
	defer l.Unlock()

	st, err := s.state(ctx, cardID)
	if err != nil {
		return fuelcard.Transaction{}, err
	}
	if fuelcard.MinorUnits(amount) > fuelcard.MinorUnits(st.Balance) {
		return fuelcard.Transaction{}, fmt.Errorf("%w: spend exceeds balance %s", errs.ErrInsufficientBalance, fuelcard.FormatAmount(st.Balance))
	}
	newBal, liters, err := s.settle.ApplySpend(ctx, cardID, st.Balance, amount, unitPrice)
	if err != nil {
		return fuelcard.Transaction{}, err
	}
	tx := fuelcard.Transaction{
		ID:        uuid.New(),
		Kind:      fuelcard.TxSpend,
		Amount:    fuelcard.AmountFromMinor(-fuelcard.MinorUnits(amount)),
		Balance:   newBal,
		Liters:    liters,
		UnitPrice: unitPrice,
		Date:      time.Now().UTC(),
	}
	return s.commit(ctx, st, tx)
}

// SetBalance overrides the balance to an explicit non-negative value and
// records the implied delta. Only available when the settlement strategy
// supports manual adjustments (local variant).
func (s *Service) SetBalance(ctx context.Context, cardID uuid.UUID, newBalance money.Amount) (fuelcard.Transaction, error) {
	if !s.settle.SupportsManualSet() {
		return fuelcard.Transaction{}, fmt.Errorf("%w: manual balance set", errs.ErrUnsupported)
	}
	if fuelcard.MinorUnits(newBalance) < 0 {
		return fuelcard.Transaction{}, fmt.Errorf("%w: balance must not be negative", errs.ErrInvalidAmount)
	}
	l := s.lockCard(cardID)
	l.Lock()
	defer l.Unlock()

	st, err := s.state(ctx, cardID)
	if err != nil {
		return fuelcard.Transaction{}, err
	}
	delta, err := newBalance.Sub(st.Balance)
	if err != nil {
		return fuelcard.Transaction{}, fmt.Errorf("%w: %v", errs.ErrOverflow, err)
	}
	tx := fuelcard.Transaction{
		ID:      uuid.New(),
		Kind:    fuelcard.TxSet,
		Amount:  delta,
		Balance: newBalance,
		Date:    time.Now().UTC(),
	}
	return s.commit(ctx, st, tx)
}

// ClearHistory drops the whole history of a card, leaving the balance
// untouched. Only available when history is owned locally.
func (s *Service) ClearHistory(ctx context.Context, cardID uuid.UUID) error {
	if !s.settle.SupportsClearHistory() {
		return fmt.Errorf("%w: clear history", errs.ErrUnsupported)
	}
	l := s.lockCard(cardID)
	l.Lock()
	defer l.Unlock()

	st, err := s.state(ctx, cardID)
	if err != nil {
		return err
	}
	next := st.Clone()
	next.History = nil
	if err := s.store.Save(ctx, next); err != nil {
		return err
	}
	s.cacheState(next)
	s.log.Info("history cleared", "card_id", cardID.String())
	return nil
}

// Info returns the card identity and current balance.
func (s *Service) Info(ctx context.Context, cardID uuid.UUID) (fuelcard.Card, money.Amount, error) {
	st, err := s.state(ctx, cardID)
	if err != nil {
		return fuelcard.Card{}, fuelcard.Zero(), err
	}
	return st.Card, st.Balance, nil
}

// Balance returns the current balance of a card.
func (s *Service) Balance(ctx context.Context, cardID uuid.UUID) (money.Amount, error) {
	st, err := s.state(ctx, cardID)
	if err != nil {
		return fuelcard.Zero(), err
	}
	return st.Balance, nil
}

// History returns a newest-first copy of the card's transaction history.
func (s *Service) History(ctx context.Context, cardID uuid.UUID) ([]fuelcard.Transaction, error) {
	st, err := s.state(ctx, cardID)
	if err != nil {
		return nil, err
	}
	out := make([]fuelcard.Transaction, len(st.History))
	copy(out, st.History)
	return out, nil
}

// LatestFuelPrice returns the unit price of the most recent spend, or the
// default price when the card has no priced spend yet.
func (s *Service) LatestFuelPrice(ctx context.Context, cardID uuid.UUID) (money.Amount, error) {
	st, err := s.state(ctx, cardID)
	if err != nil {
		return fuelcard.Zero(), err
	}
	for _, tx := range st.History {
		if tx.Kind == fuelcard.TxSpend && fuelcard.MinorUnits(tx.UnitPrice) > 0 {
			return tx.UnitPrice, nil
		}
	}
	return fuelcard.AmountFromMinor(defaultFuelPriceMinor), nil
}
