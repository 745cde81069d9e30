// Package nyiso serves New York ISO zonal prices and load from the daily CSV
// files on the public MIS site. Every file covers one Eastern calendar day.
package nyiso

import (
	"context"
	"strings"
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
	misURL = "http://mis.nyiso.com/public/csv/"

	stampLayout        = "01/02/2006 15:04"
	stampSecondsLayout = "01/02/2006 15:04:05"

	colStamp      = "Time Stamp"
	colName       = "Name"
	colLBMP       = "LBMP ($/MWHr)"
	colLosses     = "Marginal Cost Losses ($/MWHr)"
	colCongestion = "Marginal Cost Congestion ($/MWHr)"
)

// Pal files label each row with its own abbreviation, which settles the
// repeated fall-back hour without guessing.
var palZones = map[string]*time.Location{
	"EDT": time.FixedZone("EDT", -4*60*60),
	"EST": time.FixedZone("EST", -5*60*60),
}

type feed struct {
	dir    string
	suffix string
}

var lmpFeeds = map[models.Market]feed{
	models.MarketRealtime5Min: {"realtime", "realtime_zone"},
	models.MarketHourly:       {"hamlbmp", "hamlbmp_zone"},
	models.MarketDayAhead:     {"damlbmp", "damlbmp_zone"},
}

var (
	palFeed   = feed{"pal", "pal"}
	isolfFeed = feed{"isolf", "isolf"}
)

// Adapter implements adapter.LMPGetter and adapter.LoadGetter.
type Adapter struct {
	adapter.Base
}

// New builds an NYISO adapter.
func New(a registry.Authority, d adapter.Deps) (*Adapter, error) {
	b, err := adapter.NewBase(a, d)
	if err != nil {
		return nil, err
	}
	return &Adapter{Base: b}, nil
}

// GetLMP reads zonal LBMP files. Node ids are zone names such as LONGIL.
func (a *Adapter) GetLMP(ctx context.Context, q options.Query) ([]models.Point, error) {
	q = q.WithMarket(q.MarketOr(defaultMarket(q)))
	f := lmpFeeds[q.Market]
	points := adapter.Each(ctx, &a.Base, a.requests(q, f), func(ctx context.Context, req transport.Request) ([]models.Point, error) {
		t := a.table(ctx, req)
		if t == nil {
			return nil, nil
		}
		return a.Points(lmpRecords(t, f.dir)), nil
	})
	return a.Finish(q, points), nil
}

// GetLoad sums zonal actual load from pal files, or reads the system column
// of the ISO load forecast.
func (a *Adapter) GetLoad(ctx context.Context, q options.Query) ([]models.Point, error) {
	q = q.WithMarket(q.MarketOr(defaultMarket(q)))

	var f feed
	var parse func(*adapter.Table) ([]normalize.Record, error)
	switch q.Market {
	case models.MarketRealtime5Min:
		f, parse = palFeed, palRecords
	case models.MarketDayAhead:
		f, parse = isolfFeed, isolfRecords
	default:
		return nil, &models.UnsupportedQueryError{Authority: a.Authority.Code, DataType: models.DataTypeLoad, Reason: "no hourly realtime load file"}
	}

	points := adapter.Each(ctx, &a.Base, a.requests(q, f), func(ctx context.Context, req transport.Request) ([]models.Point, error) {
		t := a.table(ctx, req)
		if t == nil {
			return nil, nil
		}
		records, err := parse(t)
		if err != nil {
			return nil, err
		}
		return a.Points(records), nil
	})
	return a.Finish(q, points), nil
}

func defaultMarket(q options.Query) models.Market {
	if q.Mode == options.ModeForecast {
		return models.MarketDayAhead
	}
	return models.MarketRealtime5Min
}

// requests lists one daily file per Eastern day in the query. Files for days
// before today are final and may be cached.
func (a *Adapter) requests(q options.Query, f feed) []transport.Request {
	loc := a.Normalizer.Location()
	today := adapter.Days(q.Now, q.Now, loc)[0]
	start, end := q.Start, q.End
	if q.Mode == options.ModeLatest || start.IsZero() {
		start, end = q.Now, q.Now
	}
	return lo.Map(adapter.Days(start, end, loc), func(day time.Time, _ int) transport.Request {
		req := transport.Get(misURL+f.dir+"/"+day.Format("20060102")+f.suffix+".csv", nil)
		req.Cacheable = day.Before(today)
		return req
	})
}

func (a *Adapter) table(ctx context.Context, req transport.Request) *adapter.Table {
	body := a.Fetch(ctx, req)
	if body == nil {
		return nil
	}
	t, err := adapter.ParseTable(body, ',')
	if err != nil {
		a.Malformed(req, err)
		return nil
	}
	return t
}

func layoutFor(stamp string) string {
	if strings.Count(stamp, ":") == 2 {
		return stampSecondsLayout
	}
	return stampLayout
}

func lmpRecords(t *adapter.Table, cadence string) []normalize.Record {
	var out []normalize.Record
	for _, row := range t.Rows {
		stamp := t.Get(row, colStamp)
		base := normalize.Record{
			Local:    stamp,
			Layout:   layoutFor(stamp),
			Cadence:  cadence,
			NodeID:   t.Get(row, colName),
			DataType: models.DataTypeLMP,
		}
		lbmp, ok := t.Float(row, colLBMP)
		if !ok {
			continue
		}
		total := base
		total.LMPType, total.Value = models.LMPTotal, lbmp
		out = append(out, total)

		losses, okL := t.Float(row, colLosses)
		congestion, okC := t.Float(row, colCongestion)
		if !okL || !okC {
			continue
		}
		// NYISO publishes congestion with the opposite sign, so
		// LBMP = energy + losses - congestion.
		for typ, v := range map[models.LMPType]float64{
			models.LMPLoss:       losses,
			models.LMPCongestion: -congestion,
			models.LMPEnergy:     lbmp - losses + congestion,
		} {
			rec := base
			rec.LMPType, rec.Value = typ, v
			out = append(out, rec)
		}
	}
	return out
}

// palRecords sums zonal load into one system value per interval.
func palRecords(t *adapter.Table) ([]normalize.Record, error) {
	if !t.Has(colStamp, "Time Zone", "Load") {
		return nil, models.Malformed("pal file is missing columns: %v", t.Header)
	}
	totals := make(map[time.Time]float64)
	var order []time.Time
	for _, row := range t.Rows {
		loc, ok := palZones[t.Get(row, "Time Zone")]
		if !ok {
			continue
		}
		stamp := t.Get(row, colStamp)
		ts, err := time.ParseInLocation(layoutFor(stamp), stamp, loc)
		if err != nil {
			continue
		}
		v, ok := t.Float(row, "Load")
		if !ok {
			continue
		}
		ts = ts.UTC()
		if _, seen := totals[ts]; !seen {
			order = append(order, ts)
		}
		totals[ts] += v
	}
	return lo.Map(order, func(ts time.Time, _ int) normalize.Record {
		return normalize.Record{Time: ts, Cadence: "pal", Value: totals[ts], Unit: normalize.MW, DataType: models.DataTypeLoad}
	}), nil
}

func isolfRecords(t *adapter.Table) ([]normalize.Record, error) {
	if !t.Has(colStamp, "NYISO") {
		return nil, models.Malformed("isolf file is missing columns: %v", t.Header)
	}
	var out []normalize.Record
	for _, row := range t.Rows {
		v, ok := t.Float(row, "NYISO")
		if !ok {
			continue
		}
		stamp := t.Get(row, colStamp)
		out = append(out, normalize.Record{
			Local:    stamp,
			Layout:   layoutFor(stamp),
			Cadence:  "isolf",
			Value:    v,
			DataType: models.DataTypeLoad,
		})
	}
	return out, nil
}
