// Package remote implements the server-reconciled deployment: settlement is
// delegated to the card service over HTTP and the local history is a
// read-through cache of the service's transaction record. The client
// satisfies both ledger.Settlement and ledger.Store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"
	"github.com/sony/gobreaker"

	"github.com/turgut5534/amic-card-app/internal/errs"
	"github.com/turgut5534/amic-card-app/internal/fuelcard"
)

// Client talks to the card service. Transport failures trip a circuit
// breaker; structured rejections from the service do not.
type Client struct {
	base string
	hc   *http.Client
	cb   *gobreaker.CircuitBreaker
	log  *slog.Logger
}

// New constructs a client for the service at baseURL (no trailing slash
// required).
func New(baseURL string, log *slog.Logger) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "card-service",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

type errorPayload struct {
	Error string `json:"error"`
}

// roundTrip runs one HTTP exchange through the breaker and returns status and
// raw body. Only transport-level failures count against the breaker.
func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		payload = bytes.NewReader(b)
	}
	res, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return struct {
			status int
			data   []byte
		}{resp.StatusCode, data}, nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", errs.ErrNetwork, err)
	}
	rt := res.(struct {
		status int
		data   []byte
	})
	return rt.status, rt.data, nil
}

// doJSON wraps roundTrip with error payload handling and decodes 2xx bodies
// into out when provided.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	status, data, err := c.roundTrip(ctx, method, path, body)
	if err != nil {
		return err
	}
	if status >= 400 {
		var ep errorPayload
		_ = json.Unmarshal(data, &ep)
		if ep.Error == "" {
			ep.Error = http.StatusText(status)
		}
		switch status {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", errs.ErrNotFound, ep.Error)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", errs.ErrInsufficientBalance, ep.Error)
		default:
			return fmt.Errorf("%w: %s", errs.ErrRemoteRejected, ep.Error)
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", errs.ErrRemoteRejected, err)
	}
	return nil
}

// --- ledger.Settlement ---

// ApplyTopUp posts the top-up and returns the server-reported balance.
func (c *Client) ApplyTopUp(ctx context.Context, cardID uuid.UUID, _, amount money.Amount) (money.Amount, error) {
	req := map[string]string{"amount": fuelcard.FormatAmount(amount)}
	var resp struct {
		Balance string `json:"balance"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/cards/"+cardID.String()+"/topup", req, &resp); err != nil {
		return fuelcard.Zero(), err
	}
	bal, err := fuelcard.ParseAmount(resp.Balance)
	if err != nil {
		return fuelcard.Zero(), fmt.Errorf("%w: bad balance in response: %v", errs.ErrRemoteRejected, err)
	}
	return bal, nil
}

// ApplySpend posts the spend and returns the server-reported balance and
// fuel quantity. The quantity is taken as-is; the server's rounding wins.
func (c *Client) ApplySpend(ctx context.Context, cardID uuid.UUID, _, amount, unitPrice money.Amount) (money.Amount, decimal.Decimal, error) {
	req := map[string]string{
		"amount":     fuelcard.FormatAmount(amount),
		"fuel_price": fuelcard.FormatAmount(unitPrice),
	}
	var resp struct {
		RemainingBalance string `json:"remaining_balance"`
		Liters           string `json:"liters"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/cards/"+cardID.String()+"/spend", req, &resp); err != nil {
		return fuelcard.Zero(), decimal.Decimal{}, err
	}
	bal, err := fuelcard.ParseAmount(resp.RemainingBalance)
	if err != nil {
		return fuelcard.Zero(), decimal.Decimal{}, fmt.Errorf("%w: bad balance in response: %v", errs.ErrRemoteRejected, err)
	}
	liters, err := decimal.Parse(resp.Liters)
	if err != nil {
		return fuelcard.Zero(), decimal.Decimal{}, fmt.Errorf("%w: bad liters in response: %v", errs.ErrRemoteRejected, err)
	}
	return bal, liters, nil
}

// SupportsManualSet reports false: the service does not expose balance
// overrides.
func (c *Client) SupportsManualSet() bool { return false }

// SupportsClearHistory reports false: history is owned by the service.
func (c *Client) SupportsClearHistory() bool { return false }

// --- ledger.Store ---

type txPayload struct {
	TransactionID   string `json:"transaction_id"`
	TransactionType string `json:"transaction_type"`
	Amount          string `json:"amount"`
	NewBalance      string `json:"new_balance"`
	TransactionDate string `json:"transaction_date"`
	Liters          string `json:"liters,omitempty"`
}

// Load reconstructs a card ledger from the service: card info plus the full
// transaction list, with each delta signed by the transaction type.
func (c *Client) Load(ctx context.Context, cardID uuid.UUID) (fuelcard.CardState, error) {
	var info struct {
		CardName string `json:"card_name"`
		Balance  string `json:"balance"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/cards/"+cardID.String()+"/info", nil, &info); err != nil {
		return fuelcard.CardState{}, err
	}
	bal, err := fuelcard.ParseAmount(info.Balance)
	if err != nil {
		return fuelcard.CardState{}, fmt.Errorf("%w: bad balance in response: %v", errs.ErrRemoteRejected, err)
	}
	var list struct {
		Transactions []txPayload `json:"transactions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/cards/"+cardID.String()+"/transactions", nil, &list); err != nil {
		return fuelcard.CardState{}, err
	}
	st := fuelcard.CardState{
		Card:    fuelcard.Card{ID: cardID, Name: info.CardName},
		Balance: bal,
		History: make([]fuelcard.Transaction, 0, len(list.Transactions)),
	}
	for _, tp := range list.Transactions {
		tx, err := decodeTx(tp)
		if err != nil {
			return fuelcard.CardState{}, err
		}
		st.History = append(st.History, tx)
	}
	return st, nil
}

// Save is a no-op: the service is the source of truth and mutations were
// already settled server-side.
func (c *Client) Save(context.Context, fuelcard.CardState) error { return nil }

// CreateCard registers a new card on the service and returns the
// server-assigned identity.
func (c *Client) CreateCard(ctx context.Context, card fuelcard.Card, opening money.Amount) (fuelcard.Card, error) {
	req := map[string]string{"name": card.Name, "balance": fuelcard.FormatAmount(opening)}
	var resp struct {
		CardID   string `json:"card_id"`
		CardName string `json:"card_name"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/cards/add", req, &resp); err != nil {
		return fuelcard.Card{}, err
	}
	id, err := uuid.Parse(resp.CardID)
	if err != nil {
		return fuelcard.Card{}, fmt.Errorf("%w: bad card_id in response: %v", errs.ErrRemoteRejected, err)
	}
	return fuelcard.Card{ID: id, Name: resp.CardName}, nil
}

func decodeTx(tp txPayload) (fuelcard.Transaction, error) {
	id, err := uuid.Parse(tp.TransactionID)
	if err != nil {
		return fuelcard.Transaction{}, fmt.Errorf("%w: bad transaction_id %q", errs.ErrRemoteRejected, tp.TransactionID)
	}
	amt, err := fuelcard.ParseAmount(tp.Amount)
	if err != nil {
		return fuelcard.Transaction{}, fmt.Errorf("%w: bad amount in transaction: %v", errs.ErrRemoteRejected, err)
	}
	newBal, err := fuelcard.ParseAmount(tp.NewBalance)
	if err != nil {
		return fuelcard.Transaction{}, fmt.Errorf("%w: bad new_balance in transaction: %v", errs.ErrRemoteRejected, err)
	}
	date, err := time.Parse(time.RFC3339, tp.TransactionDate)
	if err != nil {
		return fuelcard.Transaction{}, fmt.Errorf("%w: bad transaction_date %q", errs.ErrRemoteRejected, tp.TransactionDate)
	}
	tx := fuelcard.Transaction{ID: id, Balance: newBal, Date: date}
	switch tp.TransactionType {
	case "spend":
		tx.Kind = fuelcard.TxSpend
		tx.Amount = fuelcard.AmountFromMinor(-fuelcard.MinorUnits(amt))
		if tp.Liters != "" {
			if tx.Liters, err = decimal.Parse(tp.Liters); err != nil {
				return fuelcard.Transaction{}, fmt.Errorf("%w: bad liters %q", errs.ErrRemoteRejected, tp.Liters)
			}
		}
	case "topup":
		tx.Kind = fuelcard.TxTopUp
		tx.Amount = amt
	default:
		tx.Kind = fuelcard.TxSet
		tx.Amount = amt
	}
	return tx, nil
}
