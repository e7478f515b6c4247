package httpapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/govalues/money"

	"github.com/turgut5534/amic-card-app/internal/errs"
	"github.com/turgut5534/amic-card-app/internal/fuelcard"
)

// jsonAmount decodes a monetary wire value that may arrive as a JSON number
// (the mobile client) or a decimal string (the Go client).
type jsonAmount struct {
	money.Amount
	set bool
}

func (a *jsonAmount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == "" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = s
	}
	amt, err := fuelcard.ParseAmount(raw)
	if err != nil {
		return err
	}
	a.Amount = amt
	a.set = true
	return nil
}

// require returns the decoded amount or ErrInvalidAmount when the field was
// absent from the request body.
func (a jsonAmount) require(field string) (money.Amount, error) {
	if !a.set {
		return fuelcard.Zero(), fmt.Errorf("%w: %s is required", errs.ErrInvalidAmount, field)
	}
	return a.Amount, nil
}

type spendRequest struct {
	Amount    jsonAmount `json:"amount"`
	FuelPrice jsonAmount `json:"fuel_price"`
}

type topUpRequest struct {
	Amount jsonAmount `json:"amount"`
}

type addCardRequest struct {
	Name    string     `json:"name"`
	Balance jsonAmount `json:"balance"`
}

type cardInfoResponse struct {
	CardName string `json:"card_name"`
	Balance  string `json:"balance"`
}

type fuelPriceResponse struct {
	LatestFuelPrice string `json:"latest_fuel_price"`
}

type spendResponse struct {
	RemainingBalance string `json:"remaining_balance"`
	Liters           string `json:"liters"`
}

type topUpResponse struct {
	Balance string `json:"balance"`
}

type addCardResponse struct {
	CardID   string `json:"card_id"`
	CardName string `json:"card_name"`
	Balance  string `json:"balance"`
}

type transactionResponse struct {
	TransactionID   string `json:"transaction_id"`
	TransactionType string `json:"transaction_type"`
	Amount          string `json:"amount"`
	NewBalance      string `json:"new_balance"`
	TransactionDate string `json:"transaction_date"`
	Liters          string `json:"liters,omitempty"`
}

type transactionsResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Page         int                   `json:"page"`
	TotalPages   int                   `json:"total_pages"`
	Total        int                   `json:"total"`
}

func toTransactionResponse(tx fuelcard.Transaction) transactionResponse {
	out := transactionResponse{
		TransactionID:   tx.ID.String(),
		TransactionType: string(tx.Kind),
		Amount:          fuelcard.FormatAmount(tx.Amount),
		NewBalance:      fuelcard.FormatAmount(tx.Balance),
		TransactionDate: tx.Date.Format(timeFormat),
	}
	if tx.Kind == fuelcard.TxSpend {
		// The wire carries the magnitude; the sign is implied by the type.
		out.Amount = fuelcard.FormatAmount(fuelcard.AmountFromMinor(-fuelcard.MinorUnits(tx.Amount)))
		out.Liters = tx.Liters.String()
	}
	return out
}
