package market

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/coin-tracker/internal/coingecko"
	"github.com/onnwee/coin-tracker/internal/utils"
)

type rosterEntry struct {
	ID, Name, Symbol string
}

// roster is the fixed coin list served when no real list has ever been fetched.
var roster = []rosterEntry{
	{"bitcoin", "Bitcoin", "BTC"},
	{"ethereum", "Ethereum", "ETH"},
	{"tether", "Tether", "USDT"},
	{"binancecoin", "BNB", "BNB"},
	{"solana", "Solana", "SOL"},
	{"usd-coin", "USDC", "USDC"},
	{"ripple", "XRP", "XRP"},
	{"cardano", "Cardano", "ADA"},
	{"dogecoin", "Dogecoin", "DOGE"},
	{"tron", "TRON", "TRX"},
	{"avalanche-2", "Avalanche", "AVAX"},
	{"shiba-inu", "Shiba Inu", "SHIB"},
	{"polkadot", "Polkadot", "DOT"},
	{"chainlink", "Chainlink", "LINK"},
	{"polygon", "Polygon", "MATIC"},
	{"litecoin", "Litecoin", "LTC"},
	{"bitcoin-cash", "Bitcoin Cash", "BCH"},
	{"uniswap", "Uniswap", "UNI"},
	{"stellar", "Stellar", "XLM"},
	{"cosmos", "Cosmos", "ATOM"},
	{"monero", "Monero", "XMR"},
}

const (
	dayMillis         = int64(24 * time.Hour / time.Millisecond)
	seriesVolatility  = 0.05
	seriesFloor       = 10.0
	simulatedTemplate = "Data for %s is currently simulated due to API rate limits. This ensures the interface remains functional."
)

// seed hashes parts with FNV-1a so every generator is a pure function of its inputs.
func seed(parts ...string) int64 {
	h := fnv.New64a()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return int64(h.Sum64())
}

func lookupRoster(id string) (rosterEntry, bool) {
	for _, e := range roster {
		if e.ID == id {
			return e, true
		}
	}
	return rosterEntry{}, false
}

// identity resolves display name and ticker for any id, known or not.
func identity(id string) (name, symbol string) {
	if e, ok := lookupRoster(id); ok {
		return e.Name, e.Symbol
	}
	symbol = id
	if len(symbol) > 3 {
		symbol = symbol[:3]
	}
	return utils.TitleCase(id), strings.ToUpper(symbol)
}

// basePrice keeps synthetic figures stable per id: longer ids get larger prices.
func basePrice(id string) float64 {
	return float64(len(id)*100 + 50)
}

// AvatarURL is a generated logo for coins without a real image.
func AvatarURL(symbol string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(symbol) +
		"&background=random&color=fff&rounded=true&size=128&bold=true&length=3"
}

type figures struct {
	price, marketCap, change24h, volume float64
}

func syntheticFigures(id string) figures {
	r := rand.New(rand.NewSource(seed("figures", id)))
	base := basePrice(id)
	return figures{
		price:     base * (1 + r.Float64()*0.1),
		marketCap: base * 10_000_000 * (1 + r.Float64()),
		change24h: r.Float64()*10 - 4, // -4% .. +6%
		volume:    base * 500_000,
	}
}

// FallbackCoins returns the fixed roster with synthetic market figures, in
// the same shape as /coins/markets.
func FallbackCoins() []Coin {
	coins := make([]Coin, 0, len(roster))
	for i, e := range roster {
		f := syntheticFigures(e.ID)
		coins = append(coins, Coin{
			ID:                       e.ID,
			Symbol:                   strings.ToLower(e.Symbol),
			Name:                     e.Name,
			Image:                    AvatarURL(e.Symbol),
			CurrentPrice:             f.price,
			MarketCap:                f.marketCap,
			MarketCapRank:            i + 1,
			TotalVolume:              f.volume,
			PriceChangePercentage24h: f.change24h,
		})
	}
	return coins
}

// FallbackDetail returns a synthetic detail document for id. Same id, same document.
func FallbackDetail(id string) CoinDetail {
	name, symbol := identity(id)
	f := syntheticFigures(id)
	avatar := AvatarURL(symbol)
	return CoinDetail{
		ID:          id,
		Symbol:      strings.ToLower(symbol),
		Name:        name,
		Description: coingecko.Description{En: fmt.Sprintf(simulatedTemplate, name)},
		Image:       &coingecko.Image{Thumb: avatar, Small: avatar, Large: avatar},
		MarketData: &coingecko.MarketData{
			CurrentPrice:             map[string]float64{"usd": f.price},
			MarketCap:                map[string]float64{"usd": f.marketCap},
			TotalVolume:              map[string]float64{"usd": f.volume},
			PriceChangePercentage24h: f.change24h,
		},
		Simulated: true,
	}
}

// FallbackSeries returns days+1 daily points ending at now: a bounded random
// walk seeded by id, days and metric.
func FallbackSeries(id string, days int, metric Metric, now time.Time) Series {
	if days < 0 {
		days = 0
	}
	r := rand.New(rand.NewSource(seed("series", id, string(metric), strconv.Itoa(days))))
	nowMs := now.UnixMilli()
	value := r.Float64()*1000 + 500

	series := make(Series, 0, days+1)
	for i := days; i >= 0; i-- {
		value *= 1 + (r.Float64()*seriesVolatility*2 - seriesVolatility)
		if value < seriesFloor {
			value = seriesFloor
		}
		series = append(series, Point{float64(nowMs - int64(i)*dayMillis), value})
	}
	return series
}
