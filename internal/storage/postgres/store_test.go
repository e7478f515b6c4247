package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/turgut5534/amic-card-app/internal/errs"
	"github.com/turgut5534/amic-card-app/internal/fuelcard"
)

// openTestStore connects to the database named by TEST_DATABASE_URL and
// skips the test when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestLoadUnknownCard(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Load(context.Background(), uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAppendLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	card := fuelcard.Card{ID: uuid.New(), Name: "E100"}
	if _, err := s.CreateCard(ctx, card, fuelcard.AmountFromMinor(5000)); err != nil {
		t.Fatalf("create: %v", err)
	}

	liters, _ := fuelcard.LitersFor(fuelcard.AmountFromMinor(2000), fuelcard.AmountFromMinor(500))
	rec := fuelcard.Transaction{
		ID:        uuid.New(),
		Kind:      fuelcard.TxSpend,
		Amount:    fuelcard.AmountFromMinor(-2000),
		Balance:   fuelcard.AmountFromMinor(3000),
		Liters:    liters,
		UnitPrice: fuelcard.AmountFromMinor(500),
		Date:      time.Now().UTC(),
	}
	if err := s.AppendTransaction(ctx, card, rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	st, err := s.Load(ctx, card.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fuelcard.MinorUnits(st.Balance) != 3000 {
		t.Fatalf("balance %d, want 3000", fuelcard.MinorUnits(st.Balance))
	}
	if len(st.History) != 1 {
		t.Fatalf("expected 1 record, got %d", len(st.History))
	}
	got := st.History[0]
	if got.Kind != fuelcard.TxSpend || fuelcard.MinorUnits(got.Amount) != -2000 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Liters.String() != "4.00" || fuelcard.MinorUnits(got.UnitPrice) != 500 {
		t.Fatalf("spend details: liters %s price %d", got.Liters, fuelcard.MinorUnits(got.UnitPrice))
	}
}

func TestAppendToUnknownCard(t *testing.T) {
	s := openTestStore(t)
	rec := fuelcard.Transaction{
		ID:      uuid.New(),
		Kind:    fuelcard.TxTopUp,
		Amount:  fuelcard.AmountFromMinor(100),
		Balance: fuelcard.AmountFromMinor(100),
		Date:    time.Now().UTC(),
	}
	err := s.AppendTransaction(context.Background(), fuelcard.Card{ID: uuid.New()}, rec)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveReplacesHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	card := fuelcard.Card{ID: uuid.New(), Name: "Amic"}
	st := fuelcard.CardState{
		Card:    card,
		Balance: fuelcard.AmountFromMinor(4200),
		History: []fuelcard.Transaction{{
			ID:      uuid.New(),
			Kind:    fuelcard.TxTopUp,
			Amount:  fuelcard.AmountFromMinor(4200),
			Balance: fuelcard.AmountFromMinor(4200),
			Date:    time.Now().UTC(),
		}},
	}
	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	st.History = nil
	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("save cleared: %v", err)
	}
	got, err := s.Load(ctx, card.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.History) != 0 {
		t.Fatalf("expected empty history, got %d records", len(got.History))
	}
	if fuelcard.MinorUnits(got.Balance) != 4200 {
		t.Fatalf("balance %d, want 4200", fuelcard.MinorUnits(got.Balance))
	}
}
