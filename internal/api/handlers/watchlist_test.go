package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/onnwee/coin-tracker/internal/apierr"
	"github.com/onnwee/coin-tracker/internal/market"
	"github.com/onnwee/coin-tracker/internal/middleware"
	"github.com/onnwee/coin-tracker/internal/watchlist"
)

type failingStore struct{ watchlist.Store }

func (failingStore) List(ctx context.Context) ([]string, error) {
	return nil, errors.New("disk on fire")
}

func decodeIDs(t *testing.T, rr *httptest.ResponseRecorder) []string {
	t.Helper()
	var out watchlistResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out.IDs
}

func TestWatchlistAddRemove(t *testing.T) {
	h := NewWatchlistHandlers(watchlist.NewMemoryStore(), market.NewFallback(&fakeSource{}))

	for _, id := range []string{"bitcoin", "Solana", "bitcoin"} {
		rr := httptest.NewRecorder()
		h.Add(rr, withVars(httptest.NewRequest(http.MethodPut, "/api/watchlist/"+id, nil), map[string]string{"id": id}))
		if rr.Code != http.StatusOK {
			t.Fatalf("PUT %s: expected 200, got %d", id, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/watchlist", nil))
	if got := decodeIDs(t, rr); !reflect.DeepEqual(got, []string{"bitcoin", "solana"}) {
		t.Fatalf("list = %v", got)
	}

	rr = httptest.NewRecorder()
	h.Remove(rr, withVars(httptest.NewRequest(http.MethodDelete, "/api/watchlist/bitcoin", nil), map[string]string{"id": "bitcoin"}))
	if got := decodeIDs(t, rr); !reflect.DeepEqual(got, []string{"solana"}) {
		t.Fatalf("after delete = %v", got)
	}
}

func TestWatchlistWatched(t *testing.T) {
	h := NewWatchlistHandlers(watchlist.NewMemoryStore("bitcoin"), market.NewFallback(&fakeSource{}))

	tests := []struct {
		id     string
		want   bool
		wantID string
	}{
		{"bitcoin", true, "bitcoin"},
		{"Bitcoin", true, "bitcoin"},
		{"ethereum", false, "ethereum"},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		h.Watched(rr, withVars(httptest.NewRequest(http.MethodGet, "/api/watchlist/"+tt.id, nil), map[string]string{"id": tt.id}))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", tt.id, rr.Code)
		}
		var out watchedResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.Watched != tt.want || out.ID != tt.wantID {
			t.Errorf("GET %s = %+v, want watched=%v id=%s", tt.id, out, tt.want, tt.wantID)
		}
	}

	rr := httptest.NewRecorder()
	h.Watched(rr, withVars(httptest.NewRequest(http.MethodGet, "/api/watchlist/x", nil), map[string]string{"id": "no spaces"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: expected 400, got %d", rr.Code)
	}
}

func TestWatchlistRejectsInvalidID(t *testing.T) {
	h := NewWatchlistHandlers(watchlist.NewMemoryStore(), market.NewFallback(&fakeSource{}))
	rr := httptest.NewRecorder()
	h.Add(rr, withVars(httptest.NewRequest(http.MethodPut, "/api/watchlist/x", nil), map[string]string{"id": "no spaces"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != apierr.ErrCoinInvalidID {
		t.Fatalf("code = %s", e.Code)
	}
}

func TestWatchlistStoreFailure(t *testing.T) {
	h := NewWatchlistHandlers(failingStore{}, market.NewFallback(&fakeSource{}))
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/watchlist", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	e := decodeError(t, rr)
	if e.Code != apierr.ErrWatchlistFailed || e.Message == "disk on fire" {
		t.Fatalf("store errors must not leak: %+v", e)
	}
}

func TestWatchlistCoins(t *testing.T) {
	coins := []market.Coin{{ID: "bitcoin", Name: "Bitcoin"}, {ID: "ethereum", Name: "Ethereum"}, {ID: "solana", Name: "Solana"}}
	src := &fakeSource{coins: coins}
	h := NewWatchlistHandlers(watchlist.NewMemoryStore("solana", "bitcoin", "delisted-coin"), market.NewFallback(src))

	rr := httptest.NewRecorder()
	h.Coins(rr, httptest.NewRequest(http.MethodGet, "/api/watchlist/coins", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out watchlistCoinsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Coins) != 2 || out.Coins[0].ID != "solana" || out.Coins[1].ID != "bitcoin" {
		t.Fatalf("coins = %+v", out.Coins)
	}
	if !reflect.DeepEqual(out.Missing, []string{"delisted-coin"}) {
		t.Fatalf("missing = %v", out.Missing)
	}
}

func TestWatchlistCoins_EmptySkipsUpstream(t *testing.T) {
	src := &fakeSource{}
	h := NewWatchlistHandlers(watchlist.NewMemoryStore(), market.NewFallback(src))
	rr := httptest.NewRecorder()
	h.Coins(rr, httptest.NewRequest(http.MethodGet, "/api/watchlist/coins", nil))
	if rr.Code != http.StatusOK || len(src.Calls()) != 0 {
		t.Fatalf("status=%d calls=%v", rr.Code, src.Calls())
	}
}

func TestWatchlistCoins_Fallback(t *testing.T) {
	src := &fakeSource{coinsErr: unavailable()}
	h := NewWatchlistHandlers(watchlist.NewMemoryStore("bitcoin"), market.NewFallback(src))
	rr := httptest.NewRecorder()
	h.Coins(rr, httptest.NewRequest(http.MethodGet, "/api/watchlist/coins", nil))
	if rr.Header().Get(middleware.SimulatedHeader) != "true" {
		t.Fatal("expected simulated header")
	}
	var out watchlistCoinsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Coins) != 1 || out.Coins[0].ID != "bitcoin" || !out.Simulated {
		t.Fatalf("unexpected body: %+v", out)
	}
}
