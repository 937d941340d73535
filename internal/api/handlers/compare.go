package handlers

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/coin-tracker/internal/market"
)

const (
	defaultCompareA = "bitcoin"
	defaultCompareB = "ethereum"
)

// CompareSide is one coin of the compare page.
type CompareSide struct {
	Detail market.CoinDetail `json:"detail"`
	Series market.Series     `json:"series"`
}

// CompareResponse holds both coins and which one moved better over 24h.
type CompareResponse struct {
	Days      int           `json:"days"`
	Metric    market.Metric `json:"metric"`
	Coin1     CompareSide   `json:"coin1"`
	Coin2     CompareSide   `json:"coin2"`
	Winner    string        `json:"winner"`
	Simulated bool          `json:"simulated"`
}

func change24h(d market.CoinDetail) float64 {
	if d.MarketData == nil {
		return 0
	}
	return d.MarketData.PriceChangePercentage24h
}

// winner is coin1 only when its 24h change is strictly higher.
func winner(a, b market.CoinDetail) string {
	if change24h(a) > change24h(b) {
		return a.ID
	}
	return b.ID
}

// Compare handles GET /api/compare?coin1=&coin2=&days=&metric=.
// Every fetch goes through the fallback policy, so the page always renders.
func (h *CoinHandlers) Compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw1, raw2 := q.Get("coin1"), q.Get("coin2")
	if raw1 == "" {
		raw1 = defaultCompareA
	}
	if raw2 == "" {
		raw2 = defaultCompareB
	}
	id1, aerr := coinID(raw1)
	if aerr != nil {
		writeAPIError(w, r, aerr)
		return
	}
	id2, aerr := coinID(raw2)
	if aerr != nil {
		writeAPIError(w, r, aerr)
		return
	}
	days, metric, aerr := chartParams(r)
	if aerr != nil {
		writeAPIError(w, r, aerr)
		return
	}

	ctx, notes := market.TrackFallback(r.Context())
	var one, two CompareSide
	g, gctx := errgroup.WithContext(ctx)
	load := func(id string, side *CompareSide) {
		g.Go(func() error {
			d, err := h.fallback.CoinDetail(gctx, id)
			if err != nil {
				return err
			}
			side.Detail = d
			return nil
		})
		g.Go(func() error {
			s, err := h.fallback.PriceHistory(gctx, id, days, metric)
			if err != nil {
				return err
			}
			side.Series = s
			return nil
		})
	}
	load(id1, &one)
	load(id2, &two)
	if err := g.Wait(); err != nil {
		writeUpstreamError(w, r, "", err)
		return
	}

	writeJSON(w, http.StatusOK, CompareResponse{
		Days:      days,
		Metric:    metric,
		Coin1:     one,
		Coin2:     two,
		Winner:    winner(one.Detail, two.Detail),
		Simulated: markSimulated(w, notes),
	})
}
