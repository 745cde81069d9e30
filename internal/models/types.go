package models

import (
	"fmt"
	"strings"
	"time"
)

// DataType identifies the kind of series an authority publishes.
type DataType string

const (
	DataTypeLMP  DataType = "lmp"
	DataTypeLoad DataType = "load"
)

// ParseDataType accepts "lmp" or "load" in any case.
func ParseDataType(s string) (DataType, error) {
	switch DataType(strings.ToLower(strings.TrimSpace(s))) {
	case DataTypeLMP:
		return DataTypeLMP, nil
	case DataTypeLoad:
		return DataTypeLoad, nil
	}
	return "", &ValidationError{Field: "data_type", Reason: fmt.Sprintf("unknown data type %q", s)}
}

// Market is the settlement timeframe of a series.
type Market string

const (
	MarketRealtime5Min Market = "RT5M"
	MarketHourly       Market = "RTHR"
	MarketDayAhead     Market = "DAHR"
)

var marketAliases = map[string]Market{
	"rt5m":          MarketRealtime5Min,
	"realtime_5min": MarketRealtime5Min,
	"fivemin":       MarketRealtime5Min,
	"rthr":          MarketHourly,
	"hourly":        MarketHourly,
	"dahr":          MarketDayAhead,
	"day_ahead":     MarketDayAhead,
	"dam":           MarketDayAhead,
}

// ParseMarket maps canonical and long market names onto the Market enum.
func ParseMarket(s string) (Market, error) {
	if m, ok := marketAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return "", &ValidationError{Field: "market", Reason: fmt.Sprintf("unknown market %q", s)}
}

// Freq is the sampling cadence of a series.
type Freq string

const (
	Freq5Min   Freq = "5m"
	Freq10Min  Freq = "10m"
	Freq15Min  Freq = "15m"
	FreqHourly Freq = "1hr"
	FreqDaily  Freq = "1d"
)

var freqAliases = map[string]Freq{
	"5m":         Freq5Min,
	"fivemin":    Freq5Min,
	"10m":        Freq10Min,
	"tenmin":     Freq10Min,
	"15m":        Freq15Min,
	"fifteenmin": Freq15Min,
	"1hr":        FreqHourly,
	"1h":         FreqHourly,
	"hourly":     FreqHourly,
	"1d":         FreqDaily,
	"daily":      FreqDaily,
}

// ParseFreq maps cadence labels onto the Freq enum.
func ParseFreq(s string) (Freq, error) {
	if f, ok := freqAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return "", &ValidationError{Field: "freq", Reason: fmt.Sprintf("unknown freq %q", s)}
}

// Duration returns the length of one interval at this cadence.
func (f Freq) Duration() time.Duration {
	switch f {
	case Freq5Min:
		return 5 * time.Minute
	case Freq10Min:
		return 10 * time.Minute
	case Freq15Min:
		return 15 * time.Minute
	case FreqHourly:
		return time.Hour
	case FreqDaily:
		return 24 * time.Hour
	}
	return 0
}

// DefaultFreq is the cadence a market publishes at when none is requested.
func (m Market) DefaultFreq() Freq {
	if m == MarketRealtime5Min {
		return Freq5Min
	}
	return FreqHourly
}

// Accepts reports whether f is a cadence the market can be sampled at.
// Realtime 5-minute markets also cover the other sub-hourly cadences, and
// day-ahead markets may clear in quarter hours.
func (m Market) Accepts(f Freq) bool {
	switch m {
	case MarketRealtime5Min:
		return f == Freq5Min || f == Freq10Min || f == Freq15Min
	case MarketHourly:
		return f == FreqHourly
	case MarketDayAhead:
		return f == FreqHourly || f == Freq15Min
	}
	return false
}

// LMPType is the price component a point carries.
type LMPType string

const (
	LMPTotal      LMPType = "TotalLMP"
	LMPEnergy     LMPType = "Energy"
	LMPCongestion LMPType = "Congestion"
	LMPLoss       LMPType = "Loss"
)

// Point is one canonical observation. Value is $/MWh for LMP and MW for load.
type Point struct {
	BAName    string    `json:"ba_name"`
	Timestamp time.Time `json:"timestamp"`
	Market    Market    `json:"market"`
	Freq      Freq      `json:"freq"`
	Value     float64   `json:"value"`
	NodeID    string    `json:"node_id,omitempty"`
	LMPType   LMPType   `json:"lmp_type,omitempty"`
	DataType  DataType  `json:"data_type"`
}

// Key identifies a point for deduplication across pages and batch members.
type Key struct {
	NodeID    string
	Timestamp int64
	Market    Market
	LMPType   LMPType
}

func (p Point) Key() Key {
	return Key{NodeID: p.NodeID, Timestamp: p.Timestamp.UnixNano(), Market: p.Market, LMPType: p.LMPType}
}

// Less orders points by node, timestamp, price component and market.
func (p Point) Less(o Point) bool {
	if p.NodeID != o.NodeID {
		return p.NodeID < o.NodeID
	}
	if !p.Timestamp.Equal(o.Timestamp) {
		return p.Timestamp.Before(o.Timestamp)
	}
	if p.LMPType != o.LMPType {
		return p.LMPType < o.LMPType
	}
	return p.Market < o.Market
}

// TimeSeriesData is an aggregated archive sample.
type TimeSeriesData struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}
