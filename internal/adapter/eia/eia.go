// Package eia serves hourly demand and day-ahead demand forecasts for US
// balancing areas from the EIA-930 series of the EIA open data API.
package eia

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tejusbharadwaj/gridfeed/internal/adapter"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/normalize"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

const (
	apiURL       = "https://api.eia.gov/v2/electricity/rto/region-data/data/"
	periodLayout = "2006-01-02T15"
	pageLength   = 5000
	pageWindow   = 30 * 24 * time.Hour

	seriesDemand   = "D"
	seriesForecast = "DF"
)

// Adapter implements adapter.LoadGetter.
type Adapter struct {
	adapter.Base
}

// New builds an EIA adapter for one respondent.
func New(a registry.Authority, d adapter.Deps) (*Adapter, error) {
	b, err := adapter.NewBase(a, d)
	if err != nil {
		return nil, err
	}
	return &Adapter{Base: b}, nil
}

// GetLoad reads demand for latest and range queries and the demand forecast
// for forecast queries. Canadian and Mexican respondents are rejected.
func (a *Adapter) GetLoad(ctx context.Context, q options.Query) ([]models.Point, error) {
	if a.Authority.Class != registry.ClassUS {
		return nil, &models.ValidationError{Field: "ba_name", Reason: a.Authority.Code + " is not a US balancing authority; EIA-930 load is US only"}
	}

	series, market := seriesDemand, models.MarketHourly
	if q.Mode == options.ModeForecast {
		series, market = seriesForecast, models.MarketDayAhead
	}
	q = q.WithMarket(q.MarketOr(market))
	if q.Market == models.MarketRealtime5Min {
		return nil, &models.UnsupportedQueryError{Authority: a.Authority.Code, DataType: models.DataTypeLoad, Reason: "EIA-930 is hourly"}
	}
	if q.Market == models.MarketDayAhead {
		series = seriesForecast
	}

	points := adapter.Each(ctx, &a.Base, a.windows(q), func(ctx context.Context, w adapter.Window) ([]models.Point, error) {
		return a.series(ctx, series, w)
	})
	return a.Finish(q, points), nil
}

func (a *Adapter) windows(q options.Query) []adapter.Window {
	switch q.Mode {
	case options.ModeRange, options.ModeForecast:
		return adapter.Windows(q.Start.Truncate(time.Hour), q.End, pageWindow)
	}
	window := a.Authority.DefaultWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	return []adapter.Window{{Start: q.Now.Add(-window).Truncate(time.Hour), End: q.Now}}
}

type page struct {
	Response struct {
		Total json.Number `json:"total"`
		Data  []struct {
			Period     string          `json:"period"`
			Respondent string          `json:"respondent"`
			Type       string          `json:"type"`
			Value      json.RawMessage `json:"value"`
		} `json:"data"`
	} `json:"response"`
}

// series pages through one window of one series.
func (a *Adapter) series(ctx context.Context, series string, w adapter.Window) ([]models.Point, error) {
	var records []normalize.Record
	for offset := 0; ; {
		req := transport.Get(apiURL, url.Values{
			"api_key":              {a.Credential("eia")},
			"frequency":            {"hourly"},
			"data[0]":              {"value"},
			"facets[respondent][]": {a.Authority.Upstream()},
			"facets[type][]":       {series},
			"start":                {w.Start.UTC().Format(periodLayout)},
			"end":                  {w.End.UTC().Format(periodLayout)},
			"sort[0][column]":      {"period"},
			"sort[0][direction]":   {"asc"},
			"offset":               {strconv.Itoa(offset)},
			"length":               {strconv.Itoa(pageLength)},
		})
		body := a.Fetch(ctx, req)
		if body == nil {
			break
		}
		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			a.Malformed(req, models.Malformed("eia page: %v", err))
			break
		}
		for _, row := range p.Response.Data {
			v, ok := value(row.Value)
			if !ok {
				continue
			}
			ts, err := time.Parse(periodLayout, row.Period)
			if err != nil {
				a.Logger.WithError(err).Warn("Skipping EIA row with bad period")
				continue
			}
			records = append(records, normalize.Record{
				Time:     ts,
				Cadence:  row.Type,
				Value:    v,
				Unit:     normalize.MW,
				DataType: models.DataTypeLoad,
			})
		}
		total, _ := p.Response.Total.Int64()
		offset += len(p.Response.Data)
		if len(p.Response.Data) == 0 || int64(offset) >= total {
			break
		}
	}
	return a.Points(records), nil
}

// value accepts numbers, numeric strings and null.
func value(raw json.RawMessage) (float64, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
