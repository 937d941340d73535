package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/onnwee/coin-tracker/internal/market"
	"github.com/onnwee/coin-tracker/internal/middleware"
)

const (
	defaultPerPage  = 10
	maxPerPage      = 100
	maxSearchLength = 100
)

// CoinHandlers serves the dashboard and coin pages. The list goes through
// the fallback policy; the coin page surfaces upstream errors.
type CoinHandlers struct {
	surface  market.Source
	fallback market.Source
}

// NewCoinHandlers wires both policies over the same underlying service.
func NewCoinHandlers(surface, fallback market.Source) *CoinHandlers {
	return &CoinHandlers{surface: surface, fallback: fallback}
}

// CoinPage is one page of the (optionally filtered) coin list.
type CoinPage struct {
	Coins      []market.Coin `json:"coins"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	TotalPages int           `json:"total_pages"`
	Search     string        `json:"search,omitempty"`
	Simulated  bool          `json:"simulated"`
}

// filterCoins keeps coins whose name or symbol contains term, case-insensitively.
func filterCoins(coins []market.Coin, term string) []market.Coin {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return coins
	}
	out := make([]market.Coin, 0, len(coins))
	for _, c := range coins {
		if strings.Contains(strings.ToLower(c.Name), term) || strings.Contains(strings.ToLower(c.Symbol), term) {
			out = append(out, c)
		}
	}
	return out
}

// paginate slices one page. A page past the end resets to the first page.
func paginate(coins []market.Coin, page, perPage int) CoinPage {
	total := len(coins)
	pages := (total + perPage - 1) / perPage
	if page > pages {
		page = 1
	}
	start := (page - 1) * perPage
	end := min(start+perPage, total)
	items := []market.Coin{}
	if start < end {
		items = coins[start:end]
	}
	return CoinPage{Coins: items, Total: total, Page: page, PerPage: perPage, TotalPages: pages}
}

// ListCoins handles GET /api/coins?search=&page=&per_page=.
func (h *CoinHandlers) ListCoins(w http.ResponseWriter, r *http.Request) {
	page, aerr := positiveInt(r, "page", 1, 0)
	if aerr != nil {
		writeAPIError(w, r, aerr)
		return
	}
	perPage, aerr := positiveInt(r, "per_page", defaultPerPage, maxPerPage)
	if aerr != nil {
		writeAPIError(w, r, aerr)
		return
	}
	search := middleware.SanitizeString(r.URL.Query().Get("search"), maxSearchLength)

	ctx, notes := market.TrackFallback(r.Context())
	coins, err := h.fallback.Coins(ctx)
	if err != nil {
		writeUpstreamError(w, r, "", err)
		return
	}

	out := paginate(filterCoins(coins, search), page, perPage)
	out.Search = search
	out.Simulated = markSimulated(w, notes)
	writeJSON(w, http.StatusOK, out)
}

// GetCoin handles GET /api/coins/{id}.
func (h *CoinHandlers) GetCoin(w http.ResponseWriter, r *http.Request) {
	id, aerr := coinID(mux.Vars(r)["id"])
	if aerr != nil {
		writeAPIError(w, r, aerr)
		return
	}
	detail, err := h.surface.CoinDetail(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HistoryResponse is one chart series.
type HistoryResponse struct {
	ID     string        `json:"id"`
	Days   int           `json:"days"`
	Metric market.Metric `json:"metric"`
	Series market.Series `json:"series"`
}

// GetHistory handles GET /api/coins/{id}/history?days=&metric=.
func (h *CoinHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, aerr := coinID(mux.Vars(r)["id"])
	if aerr != nil {
		writeAPIError(w, r, aerr)
		return
	}
	days, metric, aerr := chartParams(r)
	if aerr != nil {
		writeAPIError(w, r, aerr)
		return
	}
	series, err := h.surface.PriceHistory(r.Context(), id, days, metric)
	if err != nil {
		writeUpstreamError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{ID: id, Days: days, Metric: metric, Series: series})
}
