// Package caiso serves California ISO prices and load from the OASIS
// SingleZip API. Each response is a zip archive holding one CSV report; an
// XML member in place of the CSV is OASIS reporting that no data matched.
package caiso

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/url"
	"path"
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
	oasisURL    = "http://oasis.caiso.com/oasisapi/SingleZip"
	oasisLayout = "20060102T15:04-0000"

	// OASIS rejects node lists longer than this.
	maxNodesPerCall = 10
	pageWindow      = 24 * time.Hour
	loadArea        = "CA ISO-TAC"

	// OASIS reports are revised for about a day after the interval closes.
	publicationLag = 24 * time.Hour
)

type report struct {
	query     string
	marketRun string
}

var lmpReports = map[models.Market]report{
	models.MarketRealtime5Min: {"PRC_INTVL_LMP", "RTM"},
	models.MarketHourly:       {"PRC_HASP_LMP", "HASP"},
	models.MarketDayAhead:     {"PRC_LMP", "DAM"},
}

var loadRuns = map[models.Market]string{
	models.MarketRealtime5Min: "RTM",
	models.MarketHourly:       "ACTUAL",
	models.MarketDayAhead:     "DAM",
}

var lmpTypes = map[string]models.LMPType{
	"LMP": models.LMPTotal,
	"MCE": models.LMPEnergy,
	"MCC": models.LMPCongestion,
	"MCL": models.LMPLoss,
}

// Adapter implements adapter.LMPGetter and adapter.LoadGetter.
type Adapter struct {
	adapter.Base
}

// New builds a CAISO adapter.
func New(a registry.Authority, d adapter.Deps) (*Adapter, error) {
	b, err := adapter.NewBase(a, d)
	if err != nil {
		return nil, err
	}
	return &Adapter{Base: b}, nil
}

type job struct {
	nodes  []string
	window adapter.Window
}

// GetLMP sends node lists in chunks; an unfiltered query asks for every node.
func (a *Adapter) GetLMP(ctx context.Context, q options.Query) ([]models.Point, error) {
	q = q.WithMarket(q.MarketOr(defaultMarket(q)))
	rep := lmpReports[q.Market]

	chunks := lo.Chunk(q.Nodes(), maxNodesPerCall)
	if len(chunks) == 0 {
		chunks = [][]string{nil}
	}
	var jobs []job
	for _, w := range a.windows(q) {
		for _, c := range chunks {
			jobs = append(jobs, job{nodes: c, window: w})
		}
	}

	points := adapter.Each(ctx, &a.Base, jobs, func(ctx context.Context, j job) ([]models.Point, error) {
		query := a.params(rep.query, rep.marketRun, j.window)
		if len(j.nodes) == 0 {
			query.Set("grp_type", "ALL")
		} else {
			query.Set("node", strings.Join(j.nodes, ","))
		}
		return a.report(ctx, query, rep.query, models.DataTypeLMP, closed(q, j.window)), nil
	})
	return a.Finish(q, points), nil
}

// GetLoad reads the system load report for the ISO balancing area.
func (a *Adapter) GetLoad(ctx context.Context, q options.Query) ([]models.Point, error) {
	q = q.WithMarket(q.MarketOr(defaultMarket(q)))
	run := loadRuns[q.Market]

	points := adapter.Each(ctx, &a.Base, a.windows(q), func(ctx context.Context, w adapter.Window) ([]models.Point, error) {
		return a.report(ctx, a.params("SLD_FCST", run, w), run, models.DataTypeLoad, closed(q, w)), nil
	})
	return a.Finish(q, points), nil
}

func defaultMarket(q options.Query) models.Market {
	if q.Mode == options.ModeForecast {
		return models.MarketDayAhead
	}
	return models.MarketRealtime5Min
}

// closed reports whether a range window is old enough that OASIS will not
// revise it again.
func closed(q options.Query, w adapter.Window) bool {
	return q.Mode == options.ModeRange && w.End.Before(q.Now.Add(-publicationLag))
}

func (a *Adapter) windows(q options.Query) []adapter.Window {
	switch q.Mode {
	case options.ModeRange:
		return adapter.Windows(q.Start, q.End, pageWindow)
	case options.ModeForecast:
		return adapter.Windows(q.Start.Truncate(time.Hour), q.End, pageWindow)
	}
	return []adapter.Window{{Start: q.Now.Add(-time.Hour), End: q.Now}}
}

func (a *Adapter) params(queryName, marketRun string, w adapter.Window) url.Values {
	return url.Values{
		"queryname":     {queryName},
		"market_run_id": {marketRun},
		"startdatetime": {w.Start.UTC().Format(oasisLayout)},
		"enddatetime":   {w.End.UTC().Format(oasisLayout)},
		"version":       {"1"},
		"resultformat":  {"6"},
	}
}

func (a *Adapter) report(ctx context.Context, query url.Values, cadence string, dt models.DataType, cacheable bool) []models.Point {
	req := transport.Get(oasisURL, query)
	req.Cacheable = cacheable

	body := a.Fetch(ctx, req)
	if body == nil {
		return nil
	}
	csvBody, err := unzipReport(body)
	if err != nil {
		a.Malformed(req, err)
		return nil
	}
	if csvBody == nil {
		return nil
	}
	t, err := adapter.ParseTable(csvBody, ',')
	if err != nil {
		a.Malformed(req, err)
		return nil
	}

	var records []normalize.Record
	for _, row := range t.Rows {
		ts, err := time.Parse(time.RFC3339, t.Get(row, "INTERVALSTARTTIME_GMT"))
		if err != nil {
			a.Logger.WithError(err).Warn("Skipping OASIS row with bad interval")
			continue
		}
		value, ok := t.Float(row, "MW")
		if !ok {
			value, ok = t.Float(row, "VALUE")
		}
		if !ok {
			continue
		}
		rec := normalize.Record{Time: ts, Cadence: cadence, Value: value, DataType: dt}
		if dt == models.DataTypeLMP {
			typ, known := lmpTypes[t.Get(row, "LMP_TYPE")]
			if !known {
				continue
			}
			rec.NodeID = t.Get(row, "NODE")
			rec.LMPType = typ
		} else if t.Get(row, "TAC_AREA_NAME") != loadArea {
			continue
		}
		records = append(records, rec)
	}
	return a.Points(records)
}

// unzipReport returns the CSV member, or nil when OASIS answered with an XML
// error document.
func unzipReport(body []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, models.Malformed("oasis zip: %v", err)
	}
	for _, f := range zr.File {
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".csv":
			rc, err := f.Open()
			if err != nil {
				return nil, models.Malformed("oasis member %s: %v", f.Name, err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				return nil, models.Malformed("oasis member %s: %v", f.Name, err)
			}
			return data, nil
		case ".xml":
			return nil, nil
		}
	}
	return nil, models.Malformed("oasis zip has no report member")
}
