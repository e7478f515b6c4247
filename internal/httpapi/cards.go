package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/turgut5534/amic-card-app/internal/fuelcard"
	"github.com/turgut5534/amic-card-app/internal/pager"
)

// timeFormat is the wire format for transaction dates.
const timeFormat = time.RFC3339

func cardID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// GET /cards/{id}/info
func (s *Server) getCardInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(r)
	if !ok {
		badRequest(w, "invalid card id")
		return
	}
	card, bal, err := s.svc.Info(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, cardInfoResponse{CardName: card.Name, Balance: fuelcard.FormatAmount(bal)})
}

// GET /cards/{id}/latest-fuel-price
func (s *Server) getLatestFuelPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(r)
	if !ok {
		badRequest(w, "invalid card id")
		return
	}
	price, err := s.svc.LatestFuelPrice(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, fuelPriceResponse{LatestFuelPrice: fuelcard.FormatAmount(price)})
}

// GET /cards/{id}/transactions?page=&page_size=
// Without a page param the full newest-first history is returned on one page.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(r)
	if !ok {
		badRequest(w, "invalid card id")
		return
	}
	history, err := s.svc.History(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	q := r.URL.Query()
	page := 1
	paged := false
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "invalid page")
			return
		}
		page = n
		paged = true
	}
	p := s.pages
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, "invalid page_size")
			return
		}
		p = pager.New(n)
		paged = true
	}
	resp := transactionsResponse{Total: len(history), Page: 1, TotalPages: 1}
	items := history
	if paged {
		items, resp.Page = p.Page(history, page)
		resp.TotalPages = p.TotalPages(len(history))
	}
	resp.Transactions = make([]transactionResponse, 0, len(items))
	for _, tx := range items {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(tx))
	}
	toJSON(w, http.StatusOK, resp)
}

// POST /cards/{id}/spend
func (s *Server) postSpend(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(r)
	if !ok {
		badRequest(w, "invalid card id")
		return
	}
	var req spendRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	amount, err := req.Amount.require("amount")
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	price, err := req.FuelPrice.require("fuel_price")
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	tx, err := s.svc.Spend(r.Context(), id, amount, price)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, spendResponse{
		RemainingBalance: fuelcard.FormatAmount(tx.Balance),
		Liters:           tx.Liters.String(),
	})
}

// POST /cards/{id}/topup
func (s *Server) postTopUp(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(r)
	if !ok {
		badRequest(w, "invalid card id")
		return
	}
	var req topUpRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	amount, err := req.Amount.require("amount")
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	tx, err := s.svc.TopUp(r.Context(), id, amount)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, topUpResponse{Balance: fuelcard.FormatAmount(tx.Balance)})
}

// POST /cards/add
func (s *Server) postAddCard(w http.ResponseWriter, r *http.Request) {
	var req addCardRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	opening, err := req.Balance.require("balance")
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	card, err := s.svc.CreateCard(r.Context(), req.Name, opening)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, addCardResponse{
		CardID:   card.ID.String(),
		CardName: card.Name,
		Balance:  fuelcard.FormatAmount(opening),
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// If the underlying store implements ReadyChecker, call it with a short timeout.
	type readyIf interface{ Ready(context.Context) error }
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()
	if rc, ok := any(s.store).(readyIf); ok {
		if err := rc.Ready(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
