// Package options implements the query configuration shared by every
// authority: the temporal mode, the market and cadence, and the node filter.
//
// Options are built from functional options or a keyword map, validated once,
// and resolved against a reference time into an immutable Query that is passed
// down to the adapters.
package options

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
)

// ForecastHorizon bounds forecast queries that name no explicit window.
const ForecastHorizon = 48 * time.Hour

// Options is the caller-facing query configuration.
type Options struct {
	StartAt  time.Time
	EndAt    time.Time
	Latest   bool
	Forecast bool
	Market   models.Market
	Freq     models.Freq
	NodeIDs  []string

	nodesSet bool
}

// Option mutates Options during construction.
type Option func(*Options) error

// New builds and validates Options.
func New(opts ...Option) (Options, error) {
	var o Options
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return Options{}, err
		}
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// Latest requests the most recent snapshot.
func Latest() Option {
	return func(o *Options) error {
		o.Latest = true
		return nil
	}
}

// Forecast requests forward-looking data.
func Forecast() Option {
	return func(o *Options) error {
		o.Forecast = true
		return nil
	}
}

// WithRange sets both bounds of the query window.
func WithRange(start, end time.Time) Option {
	return func(o *Options) error {
		o.StartAt, o.EndAt = start.UTC(), end.UTC()
		return nil
	}
}

// WithRangeStrings parses both bounds as ISO-8601 dates or datetimes.
func WithRangeStrings(start, end string) Option {
	return func(o *Options) error {
		s, err := ParseTime(start)
		if err != nil {
			return &models.ValidationError{Field: "start_at", Reason: err.Error()}
		}
		e, err := ParseTime(end)
		if err != nil {
			return &models.ValidationError{Field: "end_at", Reason: err.Error()}
		}
		o.StartAt, o.EndAt = s, e
		return nil
	}
}

// WithMarket selects the settlement market.
func WithMarket(m models.Market) Option {
	return func(o *Options) error {
		o.Market = m
		return nil
	}
}

// WithFreq selects the cadence.
func WithFreq(f models.Freq) Option {
	return func(o *Options) error {
		o.Freq = f
		return nil
	}
}

// WithNodes restricts the query to the given node ids. Calling it with no ids
// records an explicit empty filter.
func WithNodes(ids ...string) Option {
	return func(o *Options) error {
		o.NodeIDs = lo.Uniq(lo.Map(ids, func(id string, _ int) string { return strings.TrimSpace(id) }))
		o.nodesSet = true
		return nil
	}
}

// NodesGiven reports whether a node filter was supplied, even an empty one.
func (o Options) NodesGiven() bool {
	return o.nodesSet || len(o.NodeIDs) > 0
}

func (o Options) hasRange() bool {
	return !o.StartAt.IsZero() || !o.EndAt.IsZero()
}

// Validate rejects conflicting or malformed configuration.
func (o Options) Validate() error {
	active := lo.Count([]bool{o.Latest, o.Forecast, o.hasRange()}, true)
	if active > 1 {
		return &models.ValidationError{Reason: "latest, forecast and start_at/end_at are mutually exclusive"}
	}
	if o.StartAt.IsZero() != o.EndAt.IsZero() {
		return &models.ValidationError{Field: "start_at", Reason: "start_at and end_at must be given together"}
	}
	if o.StartAt.After(o.EndAt) {
		return &models.ValidationError{Field: "start_at", Reason: "start_at must not be after end_at"}
	}
	if o.Market != "" {
		if _, err := models.ParseMarket(string(o.Market)); err != nil {
			return err
		}
	}
	if o.Freq != "" {
		if _, err := models.ParseFreq(string(o.Freq)); err != nil {
			return err
		}
	}
	if o.Market != "" && o.Freq != "" && !o.Market.Accepts(o.Freq) {
		return &models.ValidationError{Field: "freq", Reason: fmt.Sprintf("freq %s does not match market %s", o.Freq, o.Market)}
	}
	if lo.Contains(o.NodeIDs, "") {
		return &models.ValidationError{Field: "node_id", Reason: "node ids must not be blank"}
	}
	return nil
}

// Resolve validates the options and derives the effective temporal mode
// relative to now.
func (o Options) Resolve(now time.Time) (Query, error) {
	if err := o.Validate(); err != nil {
		return Query{}, err
	}
	now = now.UTC()
	q := Query{
		Now:        now,
		Market:     o.Market,
		Freq:       o.Freq,
		NodeIDs:    append([]string(nil), o.NodeIDs...),
		NodesGiven: o.NodesGiven(),
	}
	switch {
	case o.Latest:
		q.Mode = ModeLatest
	case o.Forecast:
		q.Mode = ModeForecast
		q.Start, q.End = now, now.Add(ForecastHorizon)
	case o.hasRange():
		q.Start, q.End = o.StartAt.UTC(), o.EndAt.UTC()
		if !q.Start.Before(now) {
			q.Mode = ModeForecast
		} else {
			q.Mode = ModeRange
		}
	default:
		q.Mode = ModeDefault
	}
	if q.Market != "" && q.Freq == "" {
		q.Freq = q.Market.DefaultFreq()
	}
	if q.Market == "" && q.Freq != "" && q.Freq.Duration() < time.Hour {
		q.Market = models.MarketRealtime5Min
	}
	return q, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts ISO-8601 dates and datetimes. Input without an offset is
// taken as UTC; a bare date is UTC midnight.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as an ISO-8601 date or datetime", s)
}

// FromKeywords builds Options from a keyword map such as a decoded request
// body. Unknown keywords are rejected.
func FromKeywords(kw map[string]any) (Options, error) {
	var opts []Option
	var start, end any
	for key, raw := range kw {
		switch key {
		case "start_at":
			start = raw
		case "end_at":
			end = raw
		case "latest", "forecast":
			b, err := asBool(raw)
			if err != nil {
				return Options{}, &models.ValidationError{Field: key, Reason: err.Error()}
			}
			if b && key == "latest" {
				opts = append(opts, Latest())
			} else if b {
				opts = append(opts, Forecast())
			}
		case "market":
			s, ok := raw.(string)
			if !ok {
				return Options{}, &models.ValidationError{Field: key, Reason: "must be a string"}
			}
			m, err := models.ParseMarket(s)
			if err != nil {
				return Options{}, err
			}
			opts = append(opts, WithMarket(m))
		case "freq":
			s, ok := raw.(string)
			if !ok {
				return Options{}, &models.ValidationError{Field: key, Reason: "must be a string"}
			}
			f, err := models.ParseFreq(s)
			if err != nil {
				return Options{}, err
			}
			opts = append(opts, WithFreq(f))
		case "node_id":
			if raw == nil {
				continue
			}
			ids, err := asIDs(raw)
			if err != nil {
				return Options{}, &models.ValidationError{Field: key, Reason: err.Error()}
			}
			opts = append(opts, WithNodes(ids...))
		default:
			return Options{}, &models.ValidationError{Field: key, Reason: "unknown option"}
		}
	}
	if start != nil || end != nil {
		s, err := asTime("start_at", start)
		if err != nil {
			return Options{}, err
		}
		e, err := asTime("end_at", end)
		if err != nil {
			return Options{}, err
		}
		opts = append(opts, func(o *Options) error {
			o.StartAt, o.EndAt = s, e
			return nil
		})
	}
	return New(opts...)
}

func asTime(field string, v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case string:
		parsed, err := ParseTime(t)
		if err != nil {
			return time.Time{}, &models.ValidationError{Field: field, Reason: err.Error()}
		}
		return parsed, nil
	}
	return time.Time{}, &models.ValidationError{Field: field, Reason: fmt.Sprintf("unsupported type %T", v)}
}

func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	}
	return false, fmt.Errorf("unsupported type %T", v)
}

func asIDs(v any) ([]string, error) {
	switch ids := v.(type) {
	case string:
		return []string{ids}, nil
	case []string:
		return ids, nil
	case float64:
		return []string{strconv.FormatFloat(ids, 'f', -1, 64)}, nil
	case int:
		return []string{strconv.Itoa(ids)}, nil
	case []any:
		out := make([]string, 0, len(ids))
		for _, raw := range ids {
			one, err := asIDs(raw)
			if err != nil {
				return nil, err
			}
			if len(one) != 1 {
				return nil, fmt.Errorf("nested lists are not allowed")
			}
			out = append(out, one[0])
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}
