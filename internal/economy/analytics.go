package economy

import (
	"sort"
)

// Analytics thresholds.
const (
	shortTrendWindow    = 5
	oversuppliedRatio   = 1.5
	highDemandRatio     = 0.67
	bullishTrendPercent = 5.0
	bearishTrendPercent = -5.0
)

// TrendReport is the percentage price change of a commodity over two windows.
type TrendReport struct {
	Commodity string  `json:"commodity"`
	Short     float64 `json:"short"` // Last 5 turns, percent
	Long      float64 `json:"long"`  // Full recorded history, percent
}

// Trend computes the short and long percentage change from price history.
func Trend(c *Commodity) TrendReport {
	h := c.PriceHistory
	r := TrendReport{Commodity: c.Name}
	if len(h) < 2 {
		return r
	}
	last := h[len(h)-1]
	start := max(len(h)-1-shortTrendWindow, 0)
	r.Short = percentChange(h[start], last)
	r.Long = percentChange(h[0], last)
	return r
}

func percentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// Outlook classifies the near-term direction of a market.
type Outlook uint8

const (
	OutlookStable Outlook = iota
	OutlookOversupplied
	OutlookHighDemand
	OutlookBullish
	OutlookBearish
)

var outlookNames = [...]string{"stable", "oversupplied", "high_demand", "bullish", "bearish"}

func (o Outlook) String() string {
	if int(o) < len(outlookNames) {
		return outlookNames[o]
	}
	return "unknown"
}

// MarshalText encodes the outlook by name.
func (o Outlook) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Recommendation is the suggested action for a trader.
type Recommendation string

const (
	RecommendBuy  Recommendation = "buy"
	RecommendSell Recommendation = "sell"
	RecommendHold Recommendation = "hold"
)

// MarketOutlook is the classification of one commodity with its inputs.
type MarketOutlook struct {
	Commodity         string         `json:"commodity"`
	Outlook           Outlook        `json:"outlook"`
	Recommendation    Recommendation `json:"recommendation"`
	SupplyDemandRatio float64        `json:"supply_demand_ratio"`
	RecentTrend       float64        `json:"recent_trend"` // Short trend, percent
	Summary           string         `json:"summary"`
}

// AnalyzeOutlook classifies a commodity from its supply/demand ratio first,
// then its recent trend.
func AnalyzeOutlook(c *Commodity) MarketOutlook {
	ratio := c.SupplyDemandRatio()
	recent := Trend(c).Short
	o := MarketOutlook{
		Commodity:         c.Name,
		SupplyDemandRatio: ratio,
		RecentTrend:       recent,
	}

	switch {
	case ratio > oversuppliedRatio:
		o.Outlook = OutlookOversupplied
		o.Recommendation = RecommendBuy
		o.Summary = "Market flooded; prices likely to fall further before recovering"
	case ratio < highDemandRatio:
		o.Outlook = OutlookHighDemand
		o.Recommendation = RecommendSell
		o.Summary = "Demand outstrips supply; sellers hold the advantage"
	case recent > bullishTrendPercent:
		o.Outlook = OutlookBullish
		o.Recommendation = RecommendBuy
		o.Summary = "Prices climbing; buy ahead of the rise"
	case recent < bearishTrendPercent:
		o.Outlook = OutlookBearish
		o.Recommendation = RecommendSell
		o.Summary = "Prices sliding; sell before they drop further"
	default:
		o.Outlook = OutlookStable
		o.Recommendation = RecommendHold
		o.Summary = "Market steady"
	}
	return o
}

// Opportunity is a buy-here, sell-there trade with a positive margin.
type Opportunity struct {
	Commodity string   `json:"commodity"`
	From      SectorID `json:"from"`
	To        SectorID `json:"to"`
	BuyPrice  float64  `json:"buy_price"`
	SellPrice float64  `json:"sell_price"`
	Profit    float64  `json:"profit"` // Per unit
	Margin    float64  `json:"margin"` // Profit / BuyPrice
}

// BestOpportunities scans the reachable sectors for commodities that sell for
// more than they cost in the origin sector, best margin first. quotes holds
// each sector's local prices; limit <= 0 returns every opportunity.
func BestOpportunities(from SectorID, reachable []SectorID, quotes map[SectorID]map[string]float64, limit int) []Opportunity {
	home, ok := quotes[from]
	if !ok {
		return nil
	}

	var out []Opportunity
	for _, to := range reachable {
		if to == from {
			continue
		}
		there, ok := quotes[to]
		if !ok {
			continue
		}
		for name, buy := range home {
			sell, ok := there[name]
			if !ok || buy <= 0 || sell <= buy {
				continue
			}
			out = append(out, Opportunity{
				Commodity: name,
				From:      from,
				To:        to,
				BuyPrice:  buy,
				SellPrice: sell,
				Profit:    sell - buy,
				Margin:    (sell - buy) / buy,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Margin != out[j].Margin {
			return out[i].Margin > out[j].Margin
		}
		if out[i].Commodity != out[j].Commodity {
			return out[i].Commodity < out[j].Commodity
		}
		return out[i].To < out[j].To
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
