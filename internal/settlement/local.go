// Package settlement holds the local settlement strategy: all monetary
// arithmetic happens in-process, the store is the source of truth.
package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"

	"github.com/turgut5534/amic-card-app/internal/errs"
	"github.com/turgut5534/amic-card-app/internal/fuelcard"
)

// Local settles top-ups and spends with pure arithmetic on the locally known
// balance. It supports the full operation set, including manual balance set
// and history clearing.
type Local struct{}

// NewLocal returns the local settlement strategy.
func NewLocal() Local { return Local{} }

// ApplyTopUp returns balance + amount.
func (Local) ApplyTopUp(_ context.Context, _ uuid.UUID, balance, amount money.Amount) (money.Amount, error) {
	newBal, err := balance.Add(amount)
	if err != nil {
		return fuelcard.Zero(), fmt.Errorf("%w: %v", errs.ErrOverflow, err)
	}
	return newBal, nil
}

// ApplySpend returns balance - amount and the fuel quantity amount/unitPrice.
// The caller has already validated amount against the balance.
func (Local) ApplySpend(_ context.Context, _ uuid.UUID, balance, amount, unitPrice money.Amount) (money.Amount, decimal.Decimal, error) {
	newBal, err := balance.Sub(amount)
	if err != nil {
		return fuelcard.Zero(), decimal.Decimal{}, fmt.Errorf("%w: %v", errs.ErrOverflow, err)
	}
	liters, err := fuelcard.LitersFor(amount, unitPrice)
	if err != nil {
		return fuelcard.Zero(), decimal.Decimal{}, err
	}
	return newBal, liters, nil
}

// SupportsManualSet reports that direct balance overrides are allowed.
func (Local) SupportsManualSet() bool { return true }

// SupportsClearHistory reports that history is locally owned and clearable.
func (Local) SupportsClearHistory() bool { return true }
