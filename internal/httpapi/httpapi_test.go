package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/turgut5534/amic-card-app/internal/fuelcard"
	"github.com/turgut5534/amic-card-app/internal/ledger"
	"github.com/turgut5534/amic-card-app/internal/settlement"
	"github.com/turgut5534/amic-card-app/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestServer(t *testing.T, openingMinor int64) (http.Handler, *ledger.Service, uuid.UUID) {
	t.Helper()
	store := memory.New()
	card := fuelcard.Card{ID: uuid.New(), Name: "E100"}
	store.Seed(fuelcard.CardState{Card: card, Balance: fuelcard.AmountFromMinor(openingMinor)})
	svc := ledger.New(store, settlement.NewLocal(), testLogger())
	return New(svc, store, testLogger()).Handler(), svc, card.ID
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var payload map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("%s %s: invalid JSON response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, payload
}

func TestGetCardInfo(t *testing.T) {
	h, _, id := newTestServer(t, 10000)
	rec, payload := doJSON(t, h, http.MethodGet, "/cards/"+id.String()+"/info", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body)
	}
	if payload["card_name"] != "E100" || payload["balance"] != "100.00" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestUnknownCardIs404(t *testing.T) {
	h, _, _ := newTestServer(t, 0)
	rec, payload := doJSON(t, h, http.MethodGet, "/cards/"+uuid.NewString()+"/info", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
	if payload["error"] == "" {
		t.Fatalf("expected error payload, got %v", payload)
	}
}

func TestInvalidCardIDIs400(t *testing.T) {
	h, _, _ := newTestServer(t, 0)
	rec, _ := doJSON(t, h, http.MethodGet, "/cards/not-a-uuid/info", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestTopUpAndSpendFlow(t *testing.T) {
	h, _, id := newTestServer(t, 0)
	base := "/cards/" + id.String()

	// amounts may arrive as JSON numbers or decimal strings
	rec, payload := doJSON(t, h, http.MethodPost, base+"/topup", `{"amount": 50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("top up status %d, body %s", rec.Code, rec.Body)
	}
	if payload["balance"] != "50.00" {
		t.Fatalf("top up balance %v", payload["balance"])
	}

	rec, payload = doJSON(t, h, http.MethodPost, base+"/spend", `{"amount":"20.00","fuel_price":"5.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("spend status %d, body %s", rec.Code, rec.Body)
	}
	if payload["remaining_balance"] != "30.00" {
		t.Fatalf("remaining balance %v", payload["remaining_balance"])
	}
	if payload["liters"] != "4.00" {
		t.Fatalf("liters %v", payload["liters"])
	}

	rec, payload = doJSON(t, h, http.MethodGet, base+"/transactions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("transactions status %d", rec.Code)
	}
	items, ok := payload["transactions"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 transactions, got %v", payload["transactions"])
	}
	newest := items[0].(map[string]any)
	if newest["transaction_type"] != "spend" || newest["amount"] != "20.00" || newest["new_balance"] != "30.00" || newest["liters"] != "4.00" {
		t.Fatalf("unexpected newest transaction: %v", newest)
	}
	oldest := items[1].(map[string]any)
	if oldest["transaction_type"] != "topup" || oldest["amount"] != "50.00" {
		t.Fatalf("unexpected oldest transaction: %v", oldest)
	}

	rec, payload = doJSON(t, h, http.MethodGet, base+"/latest-fuel-price", "")
	if rec.Code != http.StatusOK || payload["latest_fuel_price"] != "5.00" {
		t.Fatalf("latest fuel price: status %d payload %v", rec.Code, payload)
	}
}

func TestSpendRejections(t *testing.T) {
	h, _, id := newTestServer(t, 1000)
	base := "/cards/" + id.String()

	rec, payload := doJSON(t, h, http.MethodPost, base+"/spend", `{"amount":"50.00","fuel_price":"5.00"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("overspend status %d, want 409", rec.Code)
	}
	if payload["error"] == "" {
		t.Fatalf("expected error payload, got %v", payload)
	}

	cases := []string{
		`{"amount":"0","fuel_price":"5.00"}`,
		`{"amount":"-5","fuel_price":"5.00"}`,
		`{"amount":"5.00"}`,
		`{"fuel_price":"5.00"}`,
		`{"amount":"abc","fuel_price":"5.00"}`,
		`{"amount":"5.00","fuel_price":"5.00","extra":true}`,
	}
	for _, body := range cases {
		rec, _ := doJSON(t, h, http.MethodPost, base+"/spend", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status %d, want 400", body, rec.Code)
		}
	}

	// none of the rejected spends may have left a record behind
	_, payload = doJSON(t, h, http.MethodGet, base+"/transactions", "")
	if items := payload["transactions"].([]any); len(items) != 0 {
		t.Fatalf("expected empty history, got %d records", len(items))
	}
}

func TestTransactionsPaging(t *testing.T) {
	h, svc, id := newTestServer(t, 0)
	base := "/cards/" + id.String()
	for i := 0; i < 45; i++ {
		if _, err := svc.TopUp(context.Background(), id, fuelcard.AmountFromMinor(100)); err != nil {
			t.Fatalf("seed top up %d: %v", i, err)
		}
	}

	// no page param: everything on one page
	_, payload := doJSON(t, h, http.MethodGet, base+"/transactions", "")
	if len(payload["transactions"].([]any)) != 45 {
		t.Fatalf("expected all 45 records, got %v", len(payload["transactions"].([]any)))
	}
	if payload["page"].(float64) != 1 || payload["total_pages"].(float64) != 1 {
		t.Fatalf("unpaged response metadata: %v", payload)
	}

	cases := []struct {
		query     string
		wantCount int
		wantPage  float64
		wantTotal float64
	}{
		{"?page=1", 20, 1, 3},
		{"?page=2", 20, 2, 3},
		{"?page=3", 5, 3, 3},
		{"?page=9", 5, 3, 3}, // clamped to the last page
		{"?page=0", 20, 1, 3},
		{"?page=1&page_size=10", 10, 1, 5},
	}
	for _, tc := range cases {
		rec, payload := doJSON(t, h, http.MethodGet, base+"/transactions"+tc.query, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tc.query, rec.Code)
		}
		if got := len(payload["transactions"].([]any)); got != tc.wantCount {
			t.Errorf("%s: %d records, want %d", tc.query, got, tc.wantCount)
		}
		if payload["page"].(float64) != tc.wantPage || payload["total_pages"].(float64) != tc.wantTotal {
			t.Errorf("%s: page %v of %v, want %v of %v", tc.query,
				payload["page"], payload["total_pages"], tc.wantPage, tc.wantTotal)
		}
		if payload["total"].(float64) != 45 {
			t.Errorf("%s: total %v, want 45", tc.query, payload["total"])
		}
	}

	rec, _ := doJSON(t, h, http.MethodGet, base+"/transactions?page=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid page: status %d, want 400", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodGet, base+"/transactions?page_size=0", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid page_size: status %d, want 400", rec.Code)
	}
}

func TestAddCard(t *testing.T) {
	h, _, _ := newTestServer(t, 0)

	rec, payload := doJSON(t, h, http.MethodPost, "/cards/add", `{"name":"Amic","balance":"100.00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body)
	}
	if payload["card_name"] != "Amic" || payload["balance"] != "100.00" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	cardID, _ := payload["card_id"].(string)
	if _, err := uuid.Parse(cardID); err != nil {
		t.Fatalf("card_id %q is not a uuid", cardID)
	}

	rec, payload = doJSON(t, h, http.MethodGet, fmt.Sprintf("/cards/%s/info", cardID), "")
	if rec.Code != http.StatusOK || payload["balance"] != "100.00" {
		t.Fatalf("new card info: status %d payload %v", rec.Code, payload)
	}

	rec, _ = doJSON(t, h, http.MethodPost, "/cards/add", `{"name":"","balance":"10.00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name: status %d, want 400", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodPost, "/cards/add", `{"name":"Orlen","balance":"-10.00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative opening: status %d, want 400", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t, 0)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec, _ := doJSON(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rec.Code)
		}
	}
}
