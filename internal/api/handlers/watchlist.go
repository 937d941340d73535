package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/onnwee/coin-tracker/internal/apierr"
	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/market"
	"github.com/onnwee/coin-tracker/internal/metrics"
	"github.com/onnwee/coin-tracker/internal/watchlist"
)

// WatchlistHandlers serves the persisted watchlist.
type WatchlistHandlers struct {
	store watchlist.Store
	coins market.Source // fallback policy
}

func NewWatchlistHandlers(store watchlist.Store, coins market.Source) *WatchlistHandlers {
	return &WatchlistHandlers{store: store, coins: coins}
}

type watchlistResponse struct {
	IDs []string `json:"ids"`
}

func (h *WatchlistHandlers) storeFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, watchlist.ErrInvalidID) {
		writeAPIError(w, r, apierr.CoinInvalidID(mux.Vars(r)["id"]))
		return
	}
	logger.ForComponent(r.Context(), "watchlist").Error("watchlist "+op+" failed", "error", err)
	writeAPIError(w, r, apierr.WatchlistFailed(""))
}

func (h *WatchlistHandlers) writeList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.List(r.Context())
	if err != nil {
		h.storeFailed(w, r, "list", err)
		return
	}
	metrics.WatchlistSize.Set(float64(len(ids)))
	writeJSON(w, http.StatusOK, watchlistResponse{IDs: ids})
}

// List handles GET /api/watchlist.
func (h *WatchlistHandlers) List(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r)
}

type watchedResponse struct {
	ID      string `json:"id"`
	Watched bool   `json:"watched"`
}

// Watched handles GET /api/watchlist/{id}: whether the coin page's star is lit.
func (h *WatchlistHandlers) Watched(w http.ResponseWriter, r *http.Request) {
	id, aerr := coinID(mux.Vars(r)["id"])
	if aerr != nil {
		writeAPIError(w, r, aerr)
		return
	}
	ok, err := h.store.Contains(r.Context(), id)
	if err != nil {
		h.storeFailed(w, r, "contains", err)
		return
	}
	writeJSON(w, http.StatusOK, watchedResponse{ID: id, Watched: ok})
}

// Add handles PUT /api/watchlist/{id}. Adding a present id is a no-op.
func (h *WatchlistHandlers) Add(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Add(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.storeFailed(w, r, "add", err)
		return
	}
	h.writeList(w, r)
}

// Remove handles DELETE /api/watchlist/{id}. Removing an absent id is a no-op.
func (h *WatchlistHandlers) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.storeFailed(w, r, "remove", err)
		return
	}
	h.writeList(w, r)
}

type watchlistCoinsResponse struct {
	Coins     []market.Coin `json:"coins"`
	Missing   []string      `json:"missing,omitempty"`
	Simulated bool          `json:"simulated"`
}

// Coins handles GET /api/watchlist/coins: the market list filtered to the
// watched ids, in watchlist order. Ids outside the list are reported as missing.
func (h *WatchlistHandlers) Coins(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.List(r.Context())
	if err != nil {
		h.storeFailed(w, r, "list", err)
		return
	}
	out := watchlistCoinsResponse{Coins: []market.Coin{}}
	if len(ids) == 0 {
		writeJSON(w, http.StatusOK, out)
		return
	}

	ctx, notes := market.TrackFallback(r.Context())
	coins, err := h.coins.Coins(ctx)
	if err != nil {
		writeUpstreamError(w, r, "", err)
		return
	}
	byID := make(map[string]market.Coin, len(coins))
	for _, c := range coins {
		byID[c.ID] = c
	}
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out.Coins = append(out.Coins, c)
		} else {
			out.Missing = append(out.Missing, id)
		}
	}
	out.Simulated = markSimulated(w, notes)
	writeJSON(w, http.StatusOK, out)
}
