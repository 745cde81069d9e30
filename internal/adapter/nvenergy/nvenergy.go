// Package nvenergy serves NV Energy's two balancing areas, Nevada Power
// (NEVP) and Sierra Pacific (SPPC), from the OATI OASIS load pages. Recent
// days come from daily native load pages holding hourly actuals and the
// forecast; older days come from monthly tie and load reports.
package nvenergy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"github.com/tejusbharadwaj/gridfeed/internal/adapter"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/normalize"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

const (
	baseURL = "http://www.oasis.oati.com/NEVP/NEVPdocs/inetloading/"

	// Daily pages are kept for about a month before rolling into the
	// monthly reports.
	dailyRetention = 30 * 24 * time.Hour

	monthlyDateLayout = "01/02/2006"
)

// Adapter implements adapter.LoadGetter.
type Adapter struct {
	adapter.Base
}

// New builds an NV Energy adapter for NEVP or SPPC.
func New(a registry.Authority, d adapter.Deps) (*Adapter, error) {
	b, err := adapter.NewBase(a, d)
	if err != nil {
		return nil, err
	}
	return &Adapter{Base: b}, nil
}

type page struct {
	url     string
	monthly bool
	day     time.Time
}

// GetLoad reads hourly actuals, or the forecast rows for forecast queries.
func (a *Adapter) GetLoad(ctx context.Context, q options.Query) ([]models.Point, error) {
	market := models.MarketHourly
	if q.Mode == options.ModeForecast {
		market = models.MarketDayAhead
	}
	q = q.WithMarket(q.MarketOr(market))
	if q.Market == models.MarketRealtime5Min {
		return nil, &models.UnsupportedQueryError{Authority: a.Authority.Code, DataType: models.DataTypeLoad, Reason: "only hourly load is published"}
	}

	points := adapter.Each(ctx, &a.Base, a.pages(q), func(ctx context.Context, p page) ([]models.Point, error) {
		req := transport.Get(p.url, nil)
		req.Cacheable = p.monthly
		body := a.Fetch(ctx, req)
		if body == nil {
			return nil, nil
		}
		doc, err := adapter.ParseHTML(body)
		if err != nil {
			return nil, err
		}
		if p.monthly {
			return a.Points(a.monthlyRecords(doc)), nil
		}
		return a.Points(a.dailyRecords(doc, p.day)), nil
	})
	return a.Finish(q, points), nil
}

// pages picks a daily page for each recent local day and one monthly report
// for each month holding older days.
func (a *Adapter) pages(q options.Query) []page {
	loc := a.Normalizer.Location()
	start, end := q.Start, q.End
	if q.Mode == options.ModeLatest || start.IsZero() {
		start, end = q.Now, q.Now
	}
	cutoff := adapter.Days(q.Now.Add(-dailyRetention), q.Now.Add(-dailyRetention), loc)[0]

	var out []page
	for _, day := range adapter.Days(start, end, loc) {
		if day.Before(cutoff) {
			first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
			last := first.AddDate(0, 1, -1)
			out = append(out, page{
				url:     fmt.Sprintf("%sMonthly_Ties_and_Loads_L_from_%s_to_%s_.html", baseURL, first.Format("01_02_2006"), last.Format("01_02_2006")),
				monthly: true,
			})
			continue
		}
		out = append(out, page{url: baseURL + "Native_Loads_" + day.Format("01_02_2006") + ".html", day: day})
	}
	return lo.UniqBy(out, func(p page) string { return p.url })
}

// dailyRecords reads rows labelled "<BA> Actual" or "<BA> Forecast" under an
// hour ending header of 1..24.
func (a *Adapter) dailyRecords(doc *goquery.Document, day time.Time) []normalize.Record {
	var out []normalize.Record
	for _, t := range adapter.HTMLTables(doc, "table") {
		if !t.Has("1", "24") {
			continue
		}
		for _, row := range t.Rows {
			if len(row) == 0 {
				continue
			}
			fields := strings.Fields(row[0])
			if len(fields) != 2 || fields[0] != a.Authority.Code {
				continue
			}
			cadence := strings.ToUpper(fields[1])
			if cadence != "ACTUAL" && cadence != "FORECAST" {
				continue
			}
			for he := 1; he <= 25; he++ {
				v, ok := t.Float(row, strconv.Itoa(he))
				if !ok {
					continue
				}
				out = append(out, normalize.Record{
					Time:     a.Normalizer.HourEnding(day, he),
					Cadence:  cadence,
					Value:    v,
					Unit:     normalize.MW,
					DataType: models.DataTypeLoad,
				})
			}
		}
	}
	return out
}

// monthlyRecords reads a Date, HE and "<BA> Load" table of actuals.
func (a *Adapter) monthlyRecords(doc *goquery.Document) []normalize.Record {
	col := a.Authority.Code + " Load"
	var out []normalize.Record
	for _, t := range adapter.HTMLTables(doc, "table") {
		if !t.Has("Date", "HE", col) {
			continue
		}
		for _, row := range t.Rows {
			day, err := time.Parse(monthlyDateLayout, t.Get(row, "Date"))
			if err != nil {
				continue
			}
			he, err := strconv.Atoi(t.Get(row, "HE"))
			if err != nil || he < 1 || he > 25 {
				continue
			}
			v, ok := t.Float(row, col)
			if !ok {
				continue
			}
			out = append(out, normalize.Record{
				Time:     a.Normalizer.HourEnding(day, he),
				Cadence:  "ACTUAL",
				Value:    v,
				Unit:     normalize.MW,
				DataType: models.DataTypeLoad,
			})
		}
	}
	return out
}
