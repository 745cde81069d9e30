// Package pjm serves PJM Interconnection prices and load.
//
// Live and forecast series come from the Data Miner JSON API, one call per
// pricing node and paged by row offset. Hourly load ranges come from the
// yearly metered-load archive, whose rows carry hour-ending columns HE01
// through HE25 in Eastern prevailing time.
package pjm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
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
	dataMinerURL = "https://api.pjm.com/api/v1/"
	archiveURL   = "https://www.pjm.com/pub/operations/hist-meter-load/"

	rowCount   = 50000
	pageWindow = 7 * 24 * time.Hour
	utcLayout  = "2006-01-02T15:04:05"

	feedRT5M         = "rt_fivemin_hrl_lmps"
	feedRTHR         = "rt_hrl_lmps"
	feedDAHR         = "da_hrl_lmps"
	feedInstLoad     = "inst_load"
	feedMeteredLoad  = "hrl_load_metered"
	feedLoadForecast = "load_frcstd_7_day"
)

// Adapter implements adapter.LMPGetter and adapter.LoadGetter.
type Adapter struct {
	adapter.Base
}

// New builds a PJM adapter.
func New(a registry.Authority, d adapter.Deps) (*Adapter, error) {
	b, err := adapter.NewBase(a, d)
	if err != nil {
		return nil, err
	}
	return &Adapter{Base: b}, nil
}

var lmpFeeds = map[models.Market]string{
	models.MarketRealtime5Min: feedRT5M,
	models.MarketHourly:       feedRTHR,
	models.MarketDayAhead:     feedDAHR,
}

var loadFeeds = map[models.Market]string{
	models.MarketRealtime5Min: feedInstLoad,
	models.MarketHourly:       feedMeteredLoad,
	models.MarketDayAhead:     feedLoadForecast,
}

type job struct {
	node   string
	window adapter.Window
}

// GetLMP issues one Data Miner query per node and window.
func (a *Adapter) GetLMP(ctx context.Context, q options.Query) ([]models.Point, error) {
	q = q.WithMarket(q.MarketOr(defaultMarket(q, models.MarketRealtime5Min)))
	feed := lmpFeeds[q.Market]

	nodes := q.Nodes()
	if len(nodes) == 0 {
		nodes = []string{""}
	}
	windows := a.windows(q)
	jobs := lo.FlatMap(nodes, func(node string, _ int) []job {
		return lo.Map(windows, func(w adapter.Window, _ int) job { return job{node: node, window: w} })
	})

	points := adapter.Each(ctx, &a.Base, jobs, func(ctx context.Context, j job) ([]models.Point, error) {
		return a.dataMiner(ctx, feed, j.node, j.window, models.DataTypeLMP), nil
	})
	return a.Finish(q, points), nil
}

// GetLoad serves RTO load. Hourly ranges read the metered archive; every
// other mode queries Data Miner.
func (a *Adapter) GetLoad(ctx context.Context, q options.Query) ([]models.Point, error) {
	q = q.WithMarket(q.MarketOr(defaultMarket(q, models.MarketHourly)))

	var points []models.Point
	if q.Mode == options.ModeRange && q.Market == models.MarketHourly {
		points = a.archive(ctx, q)
	} else {
		feed := loadFeeds[q.Market]
		points = adapter.Each(ctx, &a.Base, a.windows(q), func(ctx context.Context, w adapter.Window) ([]models.Point, error) {
			return a.dataMiner(ctx, feed, "", w, models.DataTypeLoad), nil
		})
	}
	return a.Finish(q, points), nil
}

func defaultMarket(q options.Query, rangeMarket models.Market) models.Market {
	switch q.Mode {
	case options.ModeForecast:
		return models.MarketDayAhead
	case options.ModeRange:
		return rangeMarket
	}
	return models.MarketRealtime5Min
}

func (a *Adapter) windows(q options.Query) []adapter.Window {
	switch q.Mode {
	case options.ModeRange:
		return adapter.Windows(q.Start, q.End, pageWindow)
	case options.ModeForecast:
		end := q.End
		if end.IsZero() {
			end = q.Now.Add(options.ForecastHorizon)
		}
		return adapter.Windows(q.Now.Truncate(time.Hour), end, pageWindow)
	}
	lookback := time.Hour
	if q.Market != models.MarketRealtime5Min {
		lookback = 3 * time.Hour
	}
	return []adapter.Window{{Start: q.Now.Add(-lookback), End: q.Now}}
}

type dmItem struct {
	BeginUTC         string      `json:"datetime_beginning_utc"`
	ForecastBeginUTC string      `json:"forecast_datetime_beginning_utc"`
	PnodeID          json.Number `json:"pnode_id"`

	TotalRT      *float64 `json:"total_lmp_rt"`
	TotalDA      *float64 `json:"total_lmp_da"`
	EnergyRT     *float64 `json:"system_energy_price_rt"`
	EnergyDA     *float64 `json:"system_energy_price_da"`
	CongestionRT *float64 `json:"congestion_price_rt"`
	CongestionDA *float64 `json:"congestion_price_da"`
	LossRT       *float64 `json:"marginal_loss_price_rt"`
	LossDA       *float64 `json:"marginal_loss_price_da"`

	InstantLoad  *float64 `json:"instantaneous_load"`
	MeteredLoad  *float64 `json:"mw"`
	ForecastLoad *float64 `json:"forecast_load_mw"`
}

type dmPage struct {
	TotalRows int      `json:"totalRows"`
	Items     []dmItem `json:"items"`
}

func (a *Adapter) dataMiner(ctx context.Context, feed, node string, w adapter.Window, dt models.DataType) []models.Point {
	query := url.Values{"rowCount": {strconv.Itoa(rowCount)}}
	timeField := "datetime_beginning_utc"
	switch feed {
	case feedLoadForecast:
		timeField = "forecast_datetime_beginning_utc"
		query.Set("forecast_area", "RTO_COMBINED")
	case feedInstLoad:
		query.Set("area", "PJM RTO")
	case feedMeteredLoad:
		query.Set("load_area", "RTO")
	}
	query.Set(timeField, w.Start.UTC().Format(utcLayout)+"to"+w.End.UTC().Format(utcLayout))
	if node != "" {
		query.Set("pnode_id", node)
	}

	var records []normalize.Record
	for startRow := 1; ; startRow += rowCount {
		query.Set("startRow", strconv.Itoa(startRow))
		req := transport.Get(dataMinerURL+feed, query)
		if key := a.Credential("pjm"); key != "" {
			req.Header = http.Header{"Ocp-Apim-Subscription-Key": {key}}
		}

		body := a.Fetch(ctx, req)
		if body == nil {
			break
		}
		var page dmPage
		if err := json.Unmarshal(body, &page); err != nil {
			a.Malformed(req, err)
			break
		}
		for _, item := range page.Items {
			records = append(records, itemRecords(feed, item, dt)...)
		}
		if len(page.Items) == 0 || startRow+rowCount-1 >= page.TotalRows {
			break
		}
	}
	return a.Points(records)
}

func itemRecords(feed string, item dmItem, dt models.DataType) []normalize.Record {
	raw := item.BeginUTC
	if feed == feedLoadForecast {
		raw = item.ForecastBeginUTC
	}
	ts, err := time.Parse(utcLayout, raw)
	if err != nil {
		// Leave Time zero so the normalizer rejects and logs the record.
		ts = time.Time{}
	}
	base := normalize.Record{Time: ts, Cadence: feed, DataType: dt, NodeID: item.PnodeID.String()}

	if dt == models.DataTypeLoad {
		base.NodeID = ""
		v := lo.CoalesceOrEmpty(item.InstantLoad, item.MeteredLoad, item.ForecastLoad)
		if v == nil {
			return nil
		}
		base.Value = *v
		return []normalize.Record{base}
	}

	components := []struct {
		typ    models.LMPType
		rt, da *float64
	}{
		{models.LMPTotal, item.TotalRT, item.TotalDA},
		{models.LMPEnergy, item.EnergyRT, item.EnergyDA},
		{models.LMPCongestion, item.CongestionRT, item.CongestionDA},
		{models.LMPLoss, item.LossRT, item.LossDA},
	}
	var out []normalize.Record
	for _, c := range components {
		v := c.rt
		if feed == feedDAHR {
			v = c.da
		}
		if v == nil {
			continue
		}
		rec := base
		rec.LMPType = c.typ
		rec.Value = *v
		out = append(out, rec)
	}
	return out
}

func archiveFile(year int) string {
	return fmt.Sprintf("%s%d-hourly-loads.csv", archiveURL, year)
}
