// Package isone serves ISO New England prices and load from the ISO-NE web
// services JSON API. The API is an XML-to-JSON projection: lists holding one
// element arrive as a bare object and empty lists as an empty string.
package isone

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tejusbharadwaj/gridfeed/internal/adapter"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/normalize"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

const (
	apiURL      = "https://webservices.iso-ne.com/api/v1.1/"
	beginLayout = "2006-01-02T15:04:05.000-07:00"
)

// Adapter implements adapter.LMPGetter and adapter.LoadGetter.
type Adapter struct {
	adapter.Base
}

// New builds an ISO-NE adapter.
func New(a registry.Authority, d adapter.Deps) (*Adapter, error) {
	b, err := adapter.NewBase(a, d)
	if err != nil {
		return nil, err
	}
	return &Adapter{Base: b}, nil
}

var lmpPaths = map[models.Market]string{
	models.MarketRealtime5Min: "fiveminutelmp",
	models.MarketHourly:       "hourlylmp/rt/final",
	models.MarketDayAhead:     "hourlylmp/da/final",
}

var cadences = map[models.Market]string{
	models.MarketRealtime5Min: "FiveMinute",
	models.MarketHourly:       "Hourly",
	models.MarketDayAhead:     "DayAhead",
}

// GetLMP reads whole-system reports and filters locations locally.
func (a *Adapter) GetLMP(ctx context.Context, q options.Query) ([]models.Point, error) {
	q = q.WithMarket(q.MarketOr(defaultMarket(q)))
	points := a.collect(ctx, q, lmpPaths[q.Market], q.Market == models.MarketRealtime5Min, func(body []byte) ([]normalize.Record, error) {
		return lmpRecords(body, cadences[q.Market])
	})
	return a.Finish(q, points), nil
}

// GetLoad reads five-minute system load or the hourly load forecast.
func (a *Adapter) GetLoad(ctx context.Context, q options.Query) ([]models.Point, error) {
	market := models.MarketRealtime5Min
	if q.Mode == options.ModeForecast {
		market = models.MarketDayAhead
	}
	q = q.WithMarket(q.MarketOr(market))

	var points []models.Point
	switch q.Market {
	case models.MarketRealtime5Min:
		points = a.collect(ctx, q, "fiveminutesystemload", true, loadRecords)
	case models.MarketDayAhead:
		points = a.collect(ctx, q, "hourlyloadforecast", false, forecastRecords)
	default:
		return nil, &models.UnsupportedQueryError{Authority: a.Authority.Code, DataType: models.DataTypeLoad, Reason: "hourly realtime load is not published"}
	}
	return a.Finish(q, points), nil
}

func defaultMarket(q options.Query) models.Market {
	if q.Mode == options.ModeForecast {
		return models.MarketDayAhead
	}
	return models.MarketRealtime5Min
}

// collect fetches the current report for latest queries when the feed has
// one, and one daily report per local day otherwise.
func (a *Adapter) collect(ctx context.Context, q options.Query, feed string, hasCurrent bool, parse func([]byte) ([]normalize.Record, error)) []models.Point {
	var reqs []transport.Request
	if q.Mode == options.ModeLatest && hasCurrent {
		reqs = append(reqs, a.request(apiURL+feed+"/current.json", false))
	} else {
		start, end := q.Start, q.End
		if q.Mode == options.ModeLatest || start.IsZero() {
			start, end = q.Now, q.Now
		}
		today := adapter.Days(q.Now, q.Now, a.Normalizer.Location())[0]
		for _, day := range adapter.Days(start, end, a.Normalizer.Location()) {
			reqs = append(reqs, a.request(apiURL+feed+"/day/"+day.Format("20060102")+".json", day.Before(today)))
		}
	}

	return adapter.Each(ctx, &a.Base, reqs, func(ctx context.Context, req transport.Request) ([]models.Point, error) {
		body := a.Fetch(ctx, req)
		if body == nil {
			return nil, nil
		}
		records, err := parse(body)
		if err != nil {
			a.Malformed(req, err)
			return nil, nil
		}
		return a.Points(records), nil
	})
}

func (a *Adapter) request(u string, cacheable bool) transport.Request {
	req := transport.Get(u, nil)
	req.Cacheable = cacheable
	req.Header = http.Header{"Accept": {"application/json"}}
	if cred := a.Credential("isone"); cred != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(cred)))
	}
	return req
}

// oneOrMany decodes a list that may arrive as a bare object or "".
type oneOrMany[T any] []T

func (l *oneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || b[0] == '"' || bytes.Equal(b, []byte("null")):
		*l = nil
		return nil
	case b[0] == '{':
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*l = []T{v}
		return nil
	}
	var vs []T
	if err := json.Unmarshal(b, &vs); err != nil {
		return err
	}
	*l = vs
	return nil
}

// wrapper decodes {"Outer": {"Inner": [...]}} where Outer may also be "".
type wrapper[T any] struct {
	Items oneOrMany[T]
}

func (w *wrapper[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(b, &inner); err != nil {
		return err
	}
	for _, raw := range inner {
		return json.Unmarshal(raw, &w.Items)
	}
	return nil
}

type location struct {
	ID   string `json:"@LocId"`
	Name string `json:"$"`
}

type lmpRow struct {
	BeginDate  string   `json:"BeginDate"`
	Location   location `json:"Location"`
	Total      *float64 `json:"LmpTotal"`
	Energy     *float64 `json:"EnergyComponent"`
	Congestion *float64 `json:"CongestionComponent"`
	Loss       *float64 `json:"LossComponent"`
}

type loadRow struct {
	BeginDate string   `json:"BeginDate"`
	LoadMw    *float64 `json:"LoadMw"`
}

func parseBegin(s string) time.Time {
	t, err := time.Parse(beginLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func lmpRecords(body []byte, cadence string) ([]normalize.Record, error) {
	var doc map[string]wrapper[lmpRow]
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, models.Malformed("isone lmp: %v", err)
	}
	var out []normalize.Record
	for _, w := range doc {
		for _, row := range w.Items {
			base := normalize.Record{
				Time:     parseBegin(row.BeginDate),
				Cadence:  cadence,
				NodeID:   row.Location.ID,
				DataType: models.DataTypeLMP,
			}
			for _, c := range []struct {
				typ models.LMPType
				v   *float64
			}{
				{models.LMPTotal, row.Total},
				{models.LMPEnergy, row.Energy},
				{models.LMPCongestion, row.Congestion},
				{models.LMPLoss, row.Loss},
			} {
				if c.v == nil {
					continue
				}
				rec := base
				rec.LMPType = c.typ
				rec.Value = *c.v
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func loadRecords(body []byte) ([]normalize.Record, error) {
	var doc map[string]oneOrMany[loadRow]
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, models.Malformed("isone load: %v", err)
	}
	return loadRows(doc, "FiveMinute"), nil
}

func forecastRecords(body []byte) ([]normalize.Record, error) {
	var doc map[string]wrapper[loadRow]
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, models.Malformed("isone forecast: %v", err)
	}
	flat := make(map[string]oneOrMany[loadRow], len(doc))
	for k, w := range doc {
		flat[k] = w.Items
	}
	return loadRows(flat, "DayAhead"), nil
}

func loadRows(doc map[string]oneOrMany[loadRow], cadence string) []normalize.Record {
	var out []normalize.Record
	for _, rows := range doc {
		for _, row := range rows {
			if row.LoadMw == nil {
				continue
			}
			out = append(out, normalize.Record{
				Time:     parseBegin(row.BeginDate),
				Cadence:  cadence,
				Value:    *row.LoadMw,
				DataType: models.DataTypeLoad,
			})
		}
	}
	return out
}
