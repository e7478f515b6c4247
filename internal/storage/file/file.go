// Package file persists card ledgers as a JSON snapshot on disk, the storage
// backend of the local-only deployment. Writes go to a temporary file first
// and replace the real one with a rename, so a crash mid-write never corrupts
// the previous snapshot.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/turgut5534/amic-card-app/internal/fuelcard"
)

// snapshot is the on-disk layout: a selected-card pointer plus one record per
// card keyed by card ID.
type snapshot struct {
	SelectedCard int                   `json:"selected_card,omitempty"`
	Cards        map[string]cardRecord `json:"cards"`
}

type cardRecord struct {
	Name string `json:"name"`
	// Balance is a two-decimal string, e.g. "50.00".
	Balance string     `json:"balance"`
	History []txRecord `json:"history"` // newest-first
}

type txRecord struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Amount    string    `json:"amount"`
	Balance   string    `json:"balance"`
	Liters    string    `json:"liters,omitempty"`
	FuelPrice string    `json:"fuel_price,omitempty"`
	Date      time.Time `json:"date"`
}

// Store reads and writes the snapshot file. All methods are safe for
// concurrent use; every save rewrites the full snapshot atomically.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a store backed by the snapshot file at path. The file is
// created on first save.
func New(path string) *Store {
	return &Store{path: path}
}

// Load implements ledger.Store. A missing file or unknown card yields a zero
// balance and empty history rather than an error, matching first-run behavior
// of the app.
func (s *Store) Load(_ context.Context, cardID uuid.UUID) (fuelcard.CardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.read()
	if err != nil {
		return fuelcard.CardState{}, err
	}
	rec, ok := snap.Cards[cardID.String()]
	if !ok {
		return fuelcard.CardState{Card: fuelcard.Card{ID: cardID}, Balance: fuelcard.Zero()}, nil
	}
	return decodeCard(cardID, rec)
}

// Save implements ledger.Store, replacing the card's record in the snapshot.
func (s *Store) Save(_ context.Context, st fuelcard.CardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.read()
	if err != nil {
		return err
	}
	snap.Cards[st.Card.ID.String()] = encodeCard(st)
	return s.write(snap)
}

// SelectedCard returns the persisted selected-card pointer (0 when unset).
func (s *Store) SelectedCard() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.read()
	if err != nil {
		return 0, err
	}
	return snap.SelectedCard, nil
}

// SetSelectedCard persists the selected-card pointer.
func (s *Store) SetSelectedCard(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.read()
	if err != nil {
		return err
	}
	snap.SelectedCard = n
	return s.write(snap)
}

func (s *Store) read() (snapshot, error) {
	snap := snapshot{Cards: make(map[string]cardRecord)}
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return snap, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	if snap.Cards == nil {
		snap.Cards = make(map[string]cardRecord)
	}
	return snap, nil
}

// write performs the atomic tmp-then-rename replacement.
func (s *Store) write(snap snapshot) error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func encodeCard(st fuelcard.CardState) cardRecord {
	rec := cardRecord{
		Name:    st.Card.Name,
		Balance: fuelcard.FormatAmount(st.Balance),
		History: make([]txRecord, 0, len(st.History)),
	}
	for _, tx := range st.History {
		tr := txRecord{
			ID:      tx.ID.String(),
			Kind:    string(tx.Kind),
			Amount:  fuelcard.FormatAmount(tx.Amount),
			Balance: fuelcard.FormatAmount(tx.Balance),
			Date:    tx.Date,
		}
		if tx.Kind == fuelcard.TxSpend {
			tr.Liters = tx.Liters.String()
			tr.FuelPrice = fuelcard.FormatAmount(tx.UnitPrice)
		}
		rec.History = append(rec.History, tr)
	}
	return rec
}

func decodeCard(cardID uuid.UUID, rec cardRecord) (fuelcard.CardState, error) {
	bal, err := fuelcard.ParseAmount(rec.Balance)
	if err != nil {
		return fuelcard.CardState{}, fmt.Errorf("card %s: bad balance: %w", cardID, err)
	}
	st := fuelcard.CardState{
		Card:    fuelcard.Card{ID: cardID, Name: rec.Name},
		Balance: bal,
		History: make([]fuelcard.Transaction, 0, len(rec.History)),
	}
	for _, tr := range rec.History {
		id, err := uuid.Parse(tr.ID)
		if err != nil {
			return fuelcard.CardState{}, fmt.Errorf("card %s: bad transaction id %q", cardID, tr.ID)
		}
		amt, err := fuelcard.ParseAmount(tr.Amount)
		if err != nil {
			return fuelcard.CardState{}, fmt.Errorf("card %s: bad amount: %w", cardID, err)
		}
		resBal, err := fuelcard.ParseAmount(tr.Balance)
		if err != nil {
			return fuelcard.CardState{}, fmt.Errorf("card %s: bad resulting balance: %w", cardID, err)
		}
		tx := fuelcard.Transaction{
			ID:      id,
			Kind:    fuelcard.TxKind(tr.Kind),
			Amount:  amt,
			Balance: resBal,
			Date:    tr.Date,
		}
		if !tx.Kind.Valid() {
			return fuelcard.CardState{}, fmt.Errorf("card %s: unknown transaction kind %q", cardID, tr.Kind)
		}
		if tr.Liters != "" {
			if tx.Liters, err = decimal.Parse(tr.Liters); err != nil {
				return fuelcard.CardState{}, fmt.Errorf("card %s: bad liters %q", cardID, tr.Liters)
			}
		}
		if tr.FuelPrice != "" {
			if tx.UnitPrice, err = fuelcard.ParseAmount(tr.FuelPrice); err != nil {
				return fuelcard.CardState{}, fmt.Errorf("card %s: bad fuel price: %w", cardID, err)
			}
		}
		st.History = append(st.History, tx)
	}
	return st, nil
}
