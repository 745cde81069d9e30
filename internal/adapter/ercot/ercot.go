// Package ercot serves ERCOT prices and load scraped from the public CDR
// HTML reports. Realtime prices and system demand are current snapshots
// only; day-ahead prices and the load forecast are daily tables keyed by
// hour ending in Central prevailing time.
package ercot

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tejusbharadwaj/gridfeed/internal/adapter"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/normalize"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

const (
	cdrURL         = "http://www.ercot.com/content/cdr/html/"
	scedPage       = cdrURL + "current_np6788.html"
	conditionsPage = cdrURL + "real_time_system_conditions.html"
	forecastPage   = cdrURL + "seven_day_load_forecast.html"

	scedLayout    = "01/02/2006 15:04:05"
	operDayLayout = "01/02/2006"
	updatedLayout = "Jan 2, 2006 15:04:05"
)

var hourEndingPattern = regexp.MustCompile(`^(\d{1,2})`)

// Adapter implements adapter.LMPGetter and adapter.LoadGetter.
type Adapter struct {
	adapter.Base
}

// New builds an ERCOT adapter.
func New(a registry.Authority, d adapter.Deps) (*Adapter, error) {
	b, err := adapter.NewBase(a, d)
	if err != nil {
		return nil, err
	}
	return &Adapter{Base: b}, nil
}

// GetLMP reads the SCED snapshot for realtime queries and the daily
// day-ahead settlement point price tables otherwise. Both pages list every
// settlement point, so node filters are applied locally.
func (a *Adapter) GetLMP(ctx context.Context, q options.Query) ([]models.Point, error) {
	market := models.MarketRealtime5Min
	if q.Mode != options.ModeLatest {
		market = models.MarketDayAhead
	}
	q = q.WithMarket(q.MarketOr(market))

	var points []models.Point
	switch q.Market {
	case models.MarketRealtime5Min:
		if q.Mode != options.ModeLatest {
			return nil, &models.UnsupportedQueryError{Authority: a.Authority.Code, DataType: models.DataTypeLMP, Reason: "realtime prices are only published as a current snapshot"}
		}
		points = a.sced(ctx)
	case models.MarketDayAhead:
		points = adapter.Each(ctx, &a.Base, a.days(q), a.dayAhead)
	default:
		return nil, &models.UnsupportedQueryError{Authority: a.Authority.Code, DataType: models.DataTypeLMP, Reason: "no hourly realtime market"}
	}
	return a.Finish(q, points), nil
}

// GetLoad reads current system demand or the seven-day forecast.
func (a *Adapter) GetLoad(ctx context.Context, q options.Query) ([]models.Point, error) {
	var points []models.Point
	switch q.Mode {
	case options.ModeLatest:
		q = q.WithMarket(q.MarketOr(models.MarketRealtime5Min))
		points = a.demand(ctx)
	case options.ModeForecast:
		q = q.WithMarket(q.MarketOr(models.MarketDayAhead))
		points = a.loadForecast(ctx)
	default:
		return nil, &models.UnsupportedQueryError{Authority: a.Authority.Code, DataType: models.DataTypeLoad, Reason: "historical load is not published"}
	}
	return a.Finish(q, points), nil
}

func (a *Adapter) days(q options.Query) []time.Time {
	switch q.Mode {
	case options.ModeRange, options.ModeForecast:
		end := q.End
		if end.IsZero() {
			end = q.Now.Add(24 * time.Hour)
		}
		return adapter.Days(q.Start, end, a.Normalizer.Location())
	}
	return adapter.Days(q.Now, q.Now, a.Normalizer.Location())
}

func (a *Adapter) page(ctx context.Context, req transport.Request) *goquery.Document {
	body := a.Fetch(ctx, req)
	if body == nil {
		return nil
	}
	doc, err := adapter.ParseHTML(body)
	if err != nil {
		a.Malformed(req, err)
		return nil
	}
	return doc
}

func (a *Adapter) sced(ctx context.Context) []models.Point {
	doc := a.page(ctx, transport.Get(scedPage, nil))
	if doc == nil {
		return nil
	}
	var records []normalize.Record
	for _, t := range adapter.HTMLTables(doc, "table") {
		if !t.Has("SCED Time Stamp", "Settlement Point", "LMP") {
			continue
		}
		for _, row := range t.Rows {
			v, ok := t.Float(row, "LMP")
			if !ok {
				continue
			}
			records = append(records, normalize.Record{
				Local:    t.Get(row, "SCED Time Stamp"),
				Layout:   scedLayout,
				Cadence:  "SCED",
				Value:    v,
				NodeID:   t.Get(row, "Settlement Point"),
				DataType: models.DataTypeLMP,
			})
		}
	}
	return a.Points(records)
}

func (a *Adapter) dayAhead(ctx context.Context, day time.Time) ([]models.Point, error) {
	req := transport.Get(cdrURL+day.Format("20060102")+"_dam_spp.html", nil)
	req.Cacheable = true
	doc := a.page(ctx, req)
	if doc == nil {
		return nil, nil
	}
	var records []normalize.Record
	for _, t := range adapter.HTMLTables(doc, "table") {
		if !t.Has("Oper Day", "Hour Ending") {
			continue
		}
		for _, row := range t.Rows {
			ts, err := a.hourEnding(t.Get(row, "Oper Day"), t.Get(row, "Hour Ending"))
			if err != nil {
				a.Logger.WithError(err).Warn("Skipping day-ahead row")
				continue
			}
			for i, node := range t.Header {
				if i < 2 || i >= len(row) {
					continue
				}
				v, ok := t.Float(row, node)
				if !ok {
					continue
				}
				records = append(records, normalize.Record{
					Time:     ts,
					Cadence:  "DAM",
					Value:    v,
					NodeID:   strings.TrimSpace(node),
					DataType: models.DataTypeLMP,
				})
			}
		}
	}
	return a.Points(records), nil
}

func (a *Adapter) demand(ctx context.Context) []models.Point {
	doc := a.page(ctx, transport.Get(conditionsPage, nil))
	if doc == nil {
		return nil
	}
	updated := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(doc.Find(".schedTime").First().Text()), "Last Updated:"))
	var records []normalize.Record
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() < 2 || strings.TrimSpace(cells.Eq(0).Text()) != "Actual System Demand" {
			return
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(cells.Eq(1).Text()), ",", ""), 64)
		if err != nil {
			a.Logger.WithError(err).Warn("Skipping unparseable system demand")
			return
		}
		records = append(records, normalize.Record{
			Local:    updated,
			Layout:   updatedLayout,
			Cadence:  "SCED",
			Value:    v,
			Unit:     normalize.MW,
			DataType: models.DataTypeLoad,
		})
	})
	return a.Points(records)
}

func (a *Adapter) loadForecast(ctx context.Context) []models.Point {
	doc := a.page(ctx, transport.Get(forecastPage, nil))
	if doc == nil {
		return nil
	}
	var records []normalize.Record
	for _, t := range adapter.HTMLTables(doc, "table") {
		if !t.Has("Oper Day", "Hour Ending", "SystemTotal") {
			continue
		}
		for _, row := range t.Rows {
			ts, err := a.hourEnding(t.Get(row, "Oper Day"), t.Get(row, "Hour Ending"))
			if err != nil {
				a.Logger.WithError(err).Warn("Skipping forecast row")
				continue
			}
			v, ok := t.Float(row, "SystemTotal")
			if !ok {
				continue
			}
			records = append(records, normalize.Record{
				Time:     ts,
				Cadence:  "STLF",
				Value:    v,
				DataType: models.DataTypeLoad,
			})
		}
	}
	return a.Points(records)
}

// hourEnding reads "06/15/2016" and "14" (or "14:00") as the hour that ends
// at 14:00 Central prevailing time.
func (a *Adapter) hourEnding(operDay, he string) (time.Time, error) {
	day, err := time.Parse(operDayLayout, operDay)
	if err != nil {
		return time.Time{}, models.Malformed("oper day %q: %v", operDay, err)
	}
	m := hourEndingPattern.FindStringSubmatch(he)
	if m == nil {
		return time.Time{}, models.Malformed("hour ending %q", he)
	}
	n, _ := strconv.Atoi(m[1])
	if n < 1 || n > 25 {
		return time.Time{}, models.Malformed("hour ending %q out of range", he)
	}
	return a.Normalizer.HourEnding(day, n), nil
}
