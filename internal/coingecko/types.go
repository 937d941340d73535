package coingecko

// Coin is one row of /coins/markets.
type Coin struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	Image                    string   `json:"image,omitempty"`
	CurrentPrice             float64  `json:"current_price"`
	MarketCap                float64  `json:"market_cap"`
	MarketCapRank            int      `json:"market_cap_rank,omitempty"`
	TotalVolume              float64  `json:"total_volume"`
	High24h                  float64  `json:"high_24h,omitempty"`
	Low24h                   float64  `json:"low_24h,omitempty"`
	PriceChange24h           float64  `json:"price_change_24h,omitempty"`
	PriceChangePercentage24h float64  `json:"price_change_percentage_24h"`
	CirculatingSupply        float64  `json:"circulating_supply,omitempty"`
	TotalSupply              *float64 `json:"total_supply,omitempty"`
	MaxSupply                *float64 `json:"max_supply,omitempty"`
	LastUpdated              string   `json:"last_updated,omitempty"`
}

// CoinDetail is the subset of /coins/{id} the dashboard reads.
type CoinDetail struct {
	ID            string      `json:"id"`
	Symbol        string      `json:"symbol"`
	Name          string      `json:"name"`
	Description   Description `json:"description"`
	Image         *Image      `json:"image,omitempty"`
	MarketCapRank int         `json:"market_cap_rank,omitempty"`
	Links         *Links      `json:"links,omitempty"`
	MarketData    *MarketData `json:"market_data,omitempty"`
	LastUpdated   string      `json:"last_updated,omitempty"`
	// Simulated marks synthetic data substituted for an unavailable upstream.
	Simulated bool `json:"simulated,omitempty"`
}

type Description struct {
	En string `json:"en"`
}

type Image struct {
	Thumb string `json:"thumb,omitempty"`
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

type Links struct {
	Homepage []string `json:"homepage,omitempty"`
}

// MarketData holds per-currency figures keyed by currency code ("usd").
type MarketData struct {
	CurrentPrice             map[string]float64 `json:"current_price,omitempty"`
	MarketCap                map[string]float64 `json:"market_cap,omitempty"`
	TotalVolume              map[string]float64 `json:"total_volume,omitempty"`
	High24h                  map[string]float64 `json:"high_24h,omitempty"`
	Low24h                   map[string]float64 `json:"low_24h,omitempty"`
	PriceChangePercentage24h float64            `json:"price_change_percentage_24h"`
	PriceChangePercentage7d  float64            `json:"price_change_percentage_7d,omitempty"`
	PriceChangePercentage30d float64            `json:"price_change_percentage_30d,omitempty"`
	CirculatingSupply        float64            `json:"circulating_supply,omitempty"`
	TotalSupply              *float64           `json:"total_supply,omitempty"`
	MaxSupply                *float64           `json:"max_supply,omitempty"`
}

// USDPrice returns market_data.current_price.usd.
func (d CoinDetail) USDPrice() (float64, bool) {
	if d.MarketData == nil {
		return 0, false
	}
	v, ok := d.MarketData.CurrentPrice["usd"]
	return v, ok
}

// Point is a [timestamp_ms, value] pair as CoinGecko encodes it.
type Point [2]float64

// Time returns the timestamp in epoch milliseconds.
func (p Point) Time() int64 { return int64(p[0]) }

// Value returns the sampled value.
func (p Point) Value() float64 { return p[1] }

// MarketChart is the /coins/{id}/market_chart payload.
type MarketChart struct {
	Prices       []Point `json:"prices"`
	MarketCaps   []Point `json:"market_caps"`
	TotalVolumes []Point `json:"total_volumes"`
}

// Series picks one metric out of the chart.
func (m MarketChart) Series(metric string) ([]Point, bool) {
	switch metric {
	case "prices":
		return m.Prices, true
	case "market_caps":
		return m.MarketCaps, true
	case "total_volumes":
		return m.TotalVolumes, true
	default:
		return nil, false
	}
}
