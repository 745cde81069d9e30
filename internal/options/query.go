package options

import (
	"time"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
)

// Mode is the resolved temporal mode of a query.
type Mode int

const (
	ModeDefault Mode = iota
	ModeLatest
	ModeForecast
	ModeRange
)

func (m Mode) String() string {
	switch m {
	case ModeLatest:
		return "latest"
	case ModeForecast:
		return "forecast"
	case ModeRange:
		return "range"
	}
	return "default"
}

// Query is the immutable, resolved form of Options handed to adapters.
type Query struct {
	Mode       Mode
	Start      time.Time
	End        time.Time
	Now        time.Time
	Market     models.Market
	Freq       models.Freq
	NodeIDs    []string
	NodesGiven bool
}

// Unfiltered reports whether the query covers every node the authority has.
func (q Query) Unfiltered() bool {
	return len(q.NodeIDs) == 0
}

// Nodes returns a copy of the node filter.
func (q Query) Nodes() []string {
	return append([]string(nil), q.NodeIDs...)
}

// WantsNode reports whether id passes the node filter.
func (q Query) WantsNode(id string) bool {
	if q.Unfiltered() {
		return true
	}
	for _, n := range q.NodeIDs {
		if n == id {
			return true
		}
	}
	return false
}

// MarketOr returns the requested market, or def when none was requested.
func (q Query) MarketOr(def models.Market) models.Market {
	if q.Market != "" {
		return q.Market
	}
	return def
}

// WithDefaultWindow resolves ModeDefault: a zero window means the latest
// snapshot, otherwise the trailing window ending at Now.
func (q Query) WithDefaultWindow(window time.Duration) Query {
	if q.Mode != ModeDefault {
		return q
	}
	if window <= 0 {
		q.Mode = ModeLatest
		return q
	}
	q.Mode = ModeRange
	q.Start, q.End = q.Now.Add(-window), q.Now
	return q
}

// WithMarket pins the market, filling in its default cadence when the query
// names none.
func (q Query) WithMarket(m models.Market) Query {
	q.Market = m
	if q.Freq == "" || !m.Accepts(q.Freq) {
		q.Freq = m.DefaultFreq()
	}
	return q
}

// Contains reports whether t satisfies the query's temporal constraints,
// excluding anything earlier than lead after Now for forecasts.
func (q Query) Contains(t time.Time, lead time.Duration) bool {
	switch q.Mode {
	case ModeForecast:
		if t.Before(q.Now) || t.Before(q.Now.Add(lead)) {
			return false
		}
		if !q.Start.IsZero() && (t.Before(q.Start) || t.After(q.End)) {
			return false
		}
		return true
	case ModeRange:
		return !t.Before(q.Start) && !t.After(q.End) && t.Before(q.Now)
	case ModeLatest, ModeDefault:
		return !t.After(q.Now)
	}
	return false
}
