package economy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction is the side of a trade from the trader's point of view.
type Direction uint8

const (
	Buy Direction = iota
	Sell
)

func (d Direction) String() string {
	if d == Sell {
		return "sell"
	}
	return "buy"
}

// MarshalText encodes the direction as "buy" or "sell".
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes "buy" or "sell".
func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "buy":
		*d = Buy
	case "sell":
		*d = Sell
	default:
		return fmt.Errorf("unknown trade direction %q", b)
	}
	return nil
}

// Trade feedback coefficients.
const (
	demandPerUnit     = 4  // Demand moves by quantity/4
	largeTradeDivisor = 10 // A trade above supply/10 moves the price immediately
	largeTradeImpact  = 0.1
)

// TradeRecord is one entry of the append-only trade history.
type TradeRecord struct {
	Turn      uint32    `json:"turn" db:"turn"`
	Commodity string    `json:"commodity" db:"commodity"`
	Quantity  int64     `json:"quantity" db:"quantity"`
	Price     float64   `json:"price" db:"price"` // Unit price
	Sector    SectorID  `json:"sector" db:"sector_id"`
	Direction Direction `json:"direction" db:"direction"`
}

// TradeReceipt is the result of one executed trade.
type TradeReceipt struct {
	Commodity  string          `json:"commodity"`
	Sector     SectorID        `json:"sector"`
	Direction  Direction       `json:"direction"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  float64         `json:"unit_price"`
	Total      decimal.Decimal `json:"total"` // Cost on a buy, proceeds on a sell
	Turn       uint32          `json:"turn"`
	LargeTrade bool            `json:"large_trade"`
}

// TradeHistory is a ring buffer of the most recent trades.
type TradeHistory struct {
	records []TradeRecord
	limit   int
}

// NewTradeHistory keeps at most limit records; limit <= 0 means unbounded.
func NewTradeHistory(limit int) *TradeHistory {
	return &TradeHistory{limit: limit}
}

// Append adds a record, dropping the oldest once the limit is reached.
func (h *TradeHistory) Append(r TradeRecord) {
	h.records = append(h.records, r)
	if h.limit > 0 && len(h.records) > h.limit {
		h.records = append(h.records[:0], h.records[len(h.records)-h.limit:]...)
	}
}

// Records returns a copy of the history, oldest first.
func (h *TradeHistory) Records() []TradeRecord {
	return append([]TradeRecord(nil), h.records...)
}

// Recent returns up to n of the newest records, newest first.
func (h *TradeHistory) Recent(n int) []TradeRecord {
	n = min(max(n, 0), len(h.records))
	out := make([]TradeRecord, 0, n)
	for i := len(h.records) - 1; i >= len(h.records)-n; i-- {
		out = append(out, h.records[i])
	}
	return out
}

// Len returns the number of records held.
func (h *TradeHistory) Len() int {
	return len(h.records)
}

// TradeExecutor applies single trades to the market and records them.
type TradeExecutor struct {
	History *TradeHistory
}

// Execute applies one buy or sell of quantity units at unitPrice, the price
// quoted by the trading sector. On error nothing is changed.
func (x *TradeExecutor) Execute(c *Commodity, quantity int64, sector *SectorEconomy, isBuy bool, turn uint32, unitPrice float64) (TradeReceipt, error) {
	if sector == nil {
		return TradeReceipt{}, ErrInvalidSector
	}
	if quantity <= 0 {
		return TradeReceipt{}, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	if isBuy && quantity > c.Supply {
		return TradeReceipt{}, &InsufficientSupplyError{Commodity: c.Name, Requested: quantity, Available: c.Supply}
	}

	supplyBefore := max(c.Supply, 1)
	dir := Sell
	if isBuy {
		dir = Buy
		c.Supply = max(c.Supply-quantity, 1)
		c.Demand += quantity / demandPerUnit
	} else {
		c.Supply += quantity
		c.Demand = max(c.Demand-quantity/demandPerUnit, 1)
	}

	large := quantity > supplyBefore/largeTradeDivisor
	if large {
		impact := float64(quantity) / float64(supplyBefore) * largeTradeImpact
		if !isBuy {
			impact = -impact
		}
		c.CurrentPrice = max(c.CurrentPrice*(1+impact), c.PriceFloor())
	}

	if x.History != nil {
		x.History.Append(TradeRecord{
			Turn:      turn,
			Commodity: c.Name,
			Quantity:  quantity,
			Price:     unitPrice,
			Sector:    sector.ID,
			Direction: dir,
		})
	}

	return TradeReceipt{
		Commodity:  c.Name,
		Sector:     sector.ID,
		Direction:  dir,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		Total:      decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(quantity)).Round(2),
		Turn:       turn,
		LargeTrade: large,
	}, nil
}
