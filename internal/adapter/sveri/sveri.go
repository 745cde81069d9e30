// Package sveri serves the Arizona and New Mexico balancing areas that report
// to the Southwest Variable Energy Resource Initiative. The SVERI API returns
// a CSV with a time column in MST and one column per requested series.
package sveri

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/tejusbharadwaj/gridfeed/internal/adapter"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/normalize"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

const (
	apiURL      = "https://sveri.energy.arizona.edu/api"
	dateLayout  = "2006-01-02"
	stampLayout = "2006-01-02 15:04:05"
	timeColumn  = "Time (MST)"

	// Longer spans time out upstream.
	daysPerCall = 7
)

// loadSeries is the SVERI series id of each member's load.
var loadSeries = map[string]int{
	"AZPS": 1, "DEAA": 2, "ELE": 3, "GRIF": 4, "HGMA": 5,
	"IID": 6, "PNM": 7, "SRP": 8, "TEPC": 9, "WALC": 10,
}

// Adapter implements adapter.LoadGetter.
type Adapter struct {
	adapter.Base
	series int
}

// New builds a SVERI adapter for one member balancing area.
func New(a registry.Authority, d adapter.Deps) (*Adapter, error) {
	series, ok := loadSeries[a.Code]
	if !ok {
		return nil, &models.UnsupportedQueryError{Authority: a.Code, DataType: models.DataTypeLoad, Reason: "no SVERI load series"}
	}
	b, err := adapter.NewBase(a, d)
	if err != nil {
		return nil, err
	}
	return &Adapter{Base: b, series: series}, nil
}

// GetLoad reads five-minute load in spans of at most a week.
func (a *Adapter) GetLoad(ctx context.Context, q options.Query) ([]models.Point, error) {
	q = q.WithMarket(q.MarketOr(models.MarketRealtime5Min))
	if q.Market != models.MarketRealtime5Min || q.Mode == options.ModeForecast {
		return nil, &models.UnsupportedQueryError{Authority: a.Authority.Code, DataType: models.DataTypeLoad, Reason: "only five-minute actuals are published"}
	}

	loc := a.Normalizer.Location()
	start, end := q.Start, q.End
	if q.Mode == options.ModeLatest || start.IsZero() {
		start, end = q.Now, q.Now
	}
	today := adapter.Days(q.Now, q.Now, loc)[0]
	spans := lo.Chunk(adapter.Days(start, end, loc), daysPerCall)

	points := adapter.Each(ctx, &a.Base, spans, func(ctx context.Context, days []time.Time) ([]models.Point, error) {
		first, last := days[0], days[len(days)-1]
		req := transport.Get(apiURL, url.Values{
			"ids":       {strconv.Itoa(a.series)},
			"startDate": {first.Format(dateLayout)},
			"endDate":   {last.Format(dateLayout)},
			"saveData":  {"true"},
		})
		req.Cacheable = last.Before(today)

		body := a.Fetch(ctx, req)
		if body == nil {
			return nil, nil
		}
		t, err := adapter.ParseTable(body, ',')
		if err != nil {
			return nil, err
		}
		if !t.Has(timeColumn) || len(t.Header) < 2 {
			return nil, models.Malformed("sveri response has no series columns: %v", t.Header)
		}
		valueCol := t.Header[1]

		var records []normalize.Record
		for _, row := range t.Rows {
			v, ok := t.Float(row, valueCol)
			if !ok {
				continue
			}
			records = append(records, normalize.Record{
				Local:    t.Get(row, timeColumn),
				Layout:   stampLayout,
				Cadence:  "5MIN",
				Value:    v,
				Unit:     normalize.MW,
				DataType: models.DataTypeLoad,
			})
		}
		return a.Points(records), nil
	})
	return a.Finish(q, points), nil
}
