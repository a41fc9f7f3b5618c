// Package models provides domain models shared by the scanner packages.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

// PointKind is the structural kind of a swing point.
type PointKind string

const (
	KindPeak   PointKind = "peak"
	KindValley PointKind = "valley"
)

// Recognized reports whether the kind takes part in chain building.
func (k PointKind) Recognized() bool {
	return k == KindPeak || k == KindValley
}

// Opposite flips Peak and Valley. Unrecognized kinds are returned unchanged.
func (k PointKind) Opposite() PointKind {
	switch k {
	case KindPeak:
		return KindValley
	case KindValley:
		return KindPeak
	default:
		return k
	}
}

// Point is a swing point produced by the swing detector. Points are never
// mutated once they enter a point store.
type Point struct {
	Index     int64           `json:"sequence_index"`
	Kind      PointKind       `json:"kind"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Open      decimal.Decimal `json:"open"`
	Close     decimal.Decimal `json:"close"`
	Timestamp time.Time       `json:"timestamp"`
	// SweptBy lists, in ascending order, the indexes of later points that
	// swept this point's liquidity.
	SweptBy []int64 `json:"swept_by,omitempty"`
}

// Extreme returns the high of a peak and the low of anything else.
func (p Point) Extreme() decimal.Decimal {
	return p.Side(p.Kind)
}

// Side returns the price on the side of the given kind: high for a peak,
// low for a valley.
func (p Point) Side(kind PointKind) decimal.Decimal {
	if kind == KindPeak {
		return p.High
	}
	return p.Low
}

// Partition identifies one independent (symbol, timeframe) series.
type Partition struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

func (p Partition) String() string {
	return p.Symbol + "/" + p.Timeframe
}
