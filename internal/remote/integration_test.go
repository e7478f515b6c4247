package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/turgut5534/amic-card-app/internal/errs"
	"github.com/turgut5534/amic-card-app/internal/fuelcard"
	"github.com/turgut5534/amic-card-app/internal/httpapi"
	"github.com/turgut5534/amic-card-app/internal/ledger"
	"github.com/turgut5534/amic-card-app/internal/settlement"
	"github.com/turgut5534/amic-card-app/internal/storage/memory"
)

// TestClientAgainstService runs the client against a real instance of the
// card service and drives a full session through a client-side ledger.
func TestClientAgainstService(t *testing.T) {
	store := memory.New()
	serverSvc := ledger.New(store, settlement.NewLocal(), testLogger())
	srv := httptest.NewServer(httpapi.New(serverSvc, store, testLogger()).Handler())
	defer srv.Close()

	client := New(srv.URL, testLogger())
	clientSvc := ledger.New(client, client, testLogger())
	ctx := context.Background()

	card, err := clientSvc.CreateCard(ctx, "E100", fuelcard.AmountFromMinor(0))
	if err != nil {
		t.Fatalf("create card: %v", err)
	}

	tx, err := clientSvc.TopUp(ctx, card.ID, fuelcard.AmountFromMinor(5000))
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	if got := fuelcard.MinorUnits(tx.Balance); got != 5000 {
		t.Fatalf("balance %d, want 5000", got)
	}

	tx, err = clientSvc.Spend(ctx, card.ID, fuelcard.AmountFromMinor(2000), fuelcard.AmountFromMinor(500))
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if got := fuelcard.MinorUnits(tx.Balance); got != 3000 {
		t.Fatalf("balance %d, want 3000", got)
	}
	if tx.Liters.String() != "4.00" {
		t.Fatalf("liters %s, want 4.00", tx.Liters)
	}

	// server-side rejection must round-trip as the matching sentinel
	if _, err := clientSvc.Spend(ctx, card.ID, fuelcard.AmountFromMinor(2999), fuelcard.AmountFromMinor(500)); err != nil {
		t.Fatalf("spend within balance: %v", err)
	}
	if _, err := clientSvc.Spend(ctx, card.ID, fuelcard.AmountFromMinor(100000), fuelcard.AmountFromMinor(500)); !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// a fresh client ledger reconstructs the same history from the service
	rebuilt := ledger.New(New(srv.URL, testLogger()), New(srv.URL, testLogger()), testLogger())
	history, err := rebuilt.History(ctx, card.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}
	bal, _ := rebuilt.Balance(ctx, card.ID)
	if fuelcard.MinorUnits(bal) != fuelcard.MinorUnits(history[0].Balance) {
		t.Fatalf("balance %d does not match newest record %d",
			fuelcard.MinorUnits(bal), fuelcard.MinorUnits(history[0].Balance))
	}

	// manual operations stay unavailable against the service
	if _, err := clientSvc.SetBalance(ctx, card.ID, fuelcard.AmountFromMinor(100)); !errors.Is(err, errs.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for set, got %v", err)
	}
	if err := clientSvc.ClearHistory(ctx, card.ID); !errors.Is(err, errs.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for clear, got %v", err)
	}
}
