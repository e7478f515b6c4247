package fuelcard

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"

	"github.com/turgut5534/amic-card-app/internal/errs"
)

// Currency is the single currency the tracker operates in.
const Currency = "PLN"

// DisplayTimeLayout renders transaction dates the way the card screens show
// them, e.g. "07/05/2025 18:32".
const DisplayTimeLayout = "02/01/2006 15:04"

// TxKind enumerates the balance-affecting event types.
type TxKind string

const (
	// TxTopUp increases the balance by the transaction amount.
	TxTopUp TxKind = "topup"
	// TxSpend decreases the balance; carries the dispensed fuel quantity.
	TxSpend TxKind = "spend"
	// TxSet overrides the balance to an explicit value (local variant only).
	TxSet TxKind = "set"
)

// Valid reports whether k is a known transaction kind.
func (k TxKind) Valid() bool {
	switch k {
	case TxTopUp, TxSpend, TxSet:
		return true
	}
	return false
}

// Card identifies one physical prepaid fuel card.
type Card struct {
	ID   uuid.UUID
	Name string
}

// Transaction is one immutable entry of a card's append-only history.
// Amount is the signed balance delta; Balance is the balance immediately
// after the transaction was applied.
type Transaction struct {
	ID     uuid.UUID
	Kind   TxKind
	Amount money.Amount
	// Balance snapshots the card balance right after this transaction.
	Balance money.Amount
	// Liters is the dispensed fuel quantity, set for spends only.
	Liters decimal.Decimal
	// UnitPrice is the fuel price used to settle a spend, zero otherwise.
	UnitPrice money.Amount
	Date      time.Time
}

// CardState is the full ledger of one card: identity, current balance and
// the newest-first transaction history.
type CardState struct {
	Card    Card
	Balance money.Amount
	// History is ordered newest-first; History[0] is the latest transaction.
	History []Transaction
}

// Clone returns a deep enough copy for the history slice to be appended to
// without aliasing the receiver.
func (s CardState) Clone() CardState {
	out := s
	out.History = make([]Transaction, len(s.History))
	copy(out.History, s.History)
	return out
}

// Zero returns an amount of zero in the tracker currency.
func Zero() money.Amount {
	a, _ := money.NewAmountFromMinorUnits(Currency, 0)
	return a
}

// AmountFromMinor builds an amount from minor units (grosz).
func AmountFromMinor(units int64) money.Amount {
	a, _ := money.NewAmountFromMinorUnits(Currency, units)
	return a
}

// MinorUnits returns the amount expressed in minor units. Amounts within the
// tracker's domain always fit.
func MinorUnits(a money.Amount) int64 {
	units, _ := a.MinorUnits()
	return units
}

// ParseAmount parses free-text numeric input ("50", "12.40") into an amount.
// Empty or non-numeric input fails with ErrInvalidAmount.
func ParseAmount(s string) (money.Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero(), fmt.Errorf("%w: empty amount", errs.ErrInvalidAmount)
	}
	a, err := money.ParseAmount(Currency, s)
	if err != nil {
		return Zero(), fmt.Errorf("%w: %q is not a valid amount", errs.ErrInvalidAmount, s)
	}
	return a, nil
}

// FormatAmount renders an amount with exactly two fraction digits, the
// resolution the domain requires ("50.00", "-12.40").
func FormatAmount(a money.Amount) string {
	units := MinorUnits(a)
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s%d.%02d", sign, units/100, units%100)
}

// LitersFor derives the fuel quantity for a spend: amount / unitPrice,
// rounded half-up to two fraction digits (centiliters).
func LitersFor(amount, unitPrice money.Amount) (decimal.Decimal, error) {
	price := MinorUnits(unitPrice)
	if price <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: fuel price must be positive", errs.ErrInvalidAmount)
	}
	amt := MinorUnits(amount)
	centi := (amt*100 + price/2) / price
	return decimal.New(centi, 2)
}

// FormatDate renders a transaction timestamp for display.
func FormatDate(t time.Time) string {
	return t.Format(DisplayTimeLayout)
}
