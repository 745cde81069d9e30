// Package miso serves Midcontinent ISO prices and load. Current values come
// from the realtime data broker JSON service; hourly prices come from the
// daily market report CSVs. MISO publishes everything in EST year round.
package miso

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
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
	brokerURL  = "https://api.misoenergy.org/MISORTWDDataBroker/DataBrokerServices.asmx"
	reportsURL = "https://docs.misoenergy.org/marketreports/"

	refDateLayout = "02-Jan-2006"
	clockLayout   = "15:04"
)

var refIDPattern = regexp.MustCompile(`^(\d{2}-[A-Za-z]{3}-\d{4}) - Interval (\d{1,2}:\d{2})`)

var reportSuffix = map[models.Market]string{
	models.MarketHourly:   "_rt_lmp_final.csv",
	models.MarketDayAhead: "_da_expost_lmp.csv",
}

var reportCadence = map[models.Market]string{
	models.MarketHourly:   "RT",
	models.MarketDayAhead: "DA",
}

var valueTypes = map[string]models.LMPType{
	"LMP": models.LMPTotal,
	"MCC": models.LMPCongestion,
	"MLC": models.LMPLoss,
}

// Adapter implements adapter.LMPGetter and adapter.LoadGetter.
type Adapter struct {
	adapter.Base
}

// New builds a MISO adapter.
func New(a registry.Authority, d adapter.Deps) (*Adapter, error) {
	b, err := adapter.NewBase(a, d)
	if err != nil {
		return nil, err
	}
	return &Adapter{Base: b}, nil
}

// GetLMP reads the consolidated five-minute table for latest queries and
// the daily hourly reports otherwise.
func (a *Adapter) GetLMP(ctx context.Context, q options.Query) ([]models.Point, error) {
	market := models.MarketHourly
	switch q.Mode {
	case options.ModeLatest:
		market = models.MarketRealtime5Min
	case options.ModeForecast:
		market = models.MarketDayAhead
	}
	q = q.WithMarket(q.MarketOr(market))

	var points []models.Point
	if q.Market == models.MarketRealtime5Min {
		if q.Mode != options.ModeLatest {
			return nil, &models.UnsupportedQueryError{Authority: a.Authority.Code, DataType: models.DataTypeLMP, Reason: "five-minute prices are only published for the current interval"}
		}
		points = a.consolidated(ctx)
	} else {
		points = adapter.Each(ctx, &a.Base, a.reportRequests(q), func(ctx context.Context, req transport.Request) ([]models.Point, error) {
			body := a.Fetch(ctx, req)
			if body == nil {
				return nil, nil
			}
			records, err := reportRecords(body, reportCadence[q.Market])
			if err != nil {
				return nil, err
			}
			return a.Points(a.resolveHourEnding(records)), nil
		})
	}
	return a.Finish(q, points), nil
}

// GetLoad reads the broker's total load document, which carries both the
// five-minute actuals and today's medium-term forecast.
func (a *Adapter) GetLoad(ctx context.Context, q options.Query) ([]models.Point, error) {
	market := models.MarketRealtime5Min
	if q.Mode == options.ModeForecast {
		market = models.MarketDayAhead
	}
	q = q.WithMarket(q.MarketOr(market))
	if q.Mode == options.ModeRange || q.Market == models.MarketHourly {
		return nil, &models.UnsupportedQueryError{Authority: a.Authority.Code, DataType: models.DataTypeLoad, Reason: "only current load and the current forecast are published"}
	}

	req := transport.Get(brokerURL, url.Values{"messageType": {"gettotalload"}, "returnType": {"json"}})
	body := a.Fetch(ctx, req)
	if body == nil {
		return a.Finish(q, nil), nil
	}
	records, err := a.totalLoad(body)
	if err != nil {
		a.Malformed(req, err)
		return a.Finish(q, nil), nil
	}
	return a.Finish(q, a.Points(records)), nil
}

// refDay parses the day and interval clock out of a broker RefId such as
// "15-Jun-2016 - Interval 15:05 EST".
func refDay(refID string) (time.Time, string, error) {
	m := refIDPattern.FindStringSubmatch(strings.TrimSpace(refID))
	if m == nil {
		return time.Time{}, "", models.Malformed("miso ref id %q", refID)
	}
	day, err := time.Parse(refDateLayout, m[1])
	if err != nil {
		return time.Time{}, "", models.Malformed("miso ref id %q: %v", refID, err)
	}
	return day, m[2], nil
}

type consolidatedDoc struct {
	LMPData struct {
		RefID      string `json:"RefId"`
		FiveMinLMP struct {
			PricingNode []struct {
				Name string `json:"name"`
				LMP  string `json:"LMP"`
				MLC  string `json:"MLC"`
				MCC  string `json:"MCC"`
			} `json:"PricingNode"`
		} `json:"FiveMinLMP"`
	} `json:"LMPData"`
}

func (a *Adapter) consolidated(ctx context.Context) []models.Point {
	req := transport.Get(brokerURL, url.Values{"messageType": {"getlmpconsolidatedtable"}, "returnType": {"json"}})
	body := a.Fetch(ctx, req)
	if body == nil {
		return nil
	}
	var doc consolidatedDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		a.Malformed(req, models.Malformed("miso consolidated table: %v", err))
		return nil
	}
	day, clock, err := refDay(doc.LMPData.RefID)
	if err != nil {
		a.Malformed(req, err)
		return nil
	}
	local := day.Format(refDateLayout) + " " + clock

	var records []normalize.Record
	for _, n := range doc.LMPData.FiveMinLMP.PricingNode {
		for typ, raw := range map[models.LMPType]string{
			models.LMPTotal:      n.LMP,
			models.LMPLoss:       n.MLC,
			models.LMPCongestion: n.MCC,
		} {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				continue
			}
			records = append(records, normalize.Record{
				Local:    local,
				Layout:   refDateLayout + " " + clockLayout,
				Cadence:  "ExPost",
				Value:    v,
				NodeID:   n.Name,
				LMPType:  typ,
				DataType: models.DataTypeLMP,
			})
		}
	}
	return a.Points(records)
}

func (a *Adapter) reportRequests(q options.Query) []transport.Request {
	loc := a.Normalizer.Location()
	today := adapter.Days(q.Now, q.Now, loc)[0]
	start, end := q.Start, q.End
	if q.Mode == options.ModeLatest || start.IsZero() {
		start, end = q.Now, q.Now
	}
	return lo.Map(adapter.Days(start, end, loc), func(day time.Time, _ int) transport.Request {
		req := transport.Get(reportsURL+day.Format("20060102")+reportSuffix[q.Market], nil)
		req.Cacheable = day.Before(today)
		return req
	})
}

// hourRecord carries the market day and hour ending until the normalizer's
// zone can resolve them.
type hourRecord struct {
	normalize.Record
	day time.Time
	he  int
}

// reportRecords reads a market report: free-text preamble lines, then a
// "Node,Type,Value,HE 1..HE 24" table with one row per node and value type.
func reportRecords(body []byte, cadence string) ([]hourRecord, error) {
	lines := bytes.Split(body, []byte("\n"))
	var day time.Time
	headerAt := -1
	for i, line := range lines {
		text := strings.TrimSpace(string(line))
		if strings.HasPrefix(text, "Node,") {
			headerAt = i
			break
		}
		for _, layout := range []string{"01/02/2006", "1/2/2006"} {
			if t, err := time.Parse(layout, strings.Trim(text, `", `)); err == nil {
				day = t
			}
		}
	}
	if headerAt < 0 || day.IsZero() {
		return nil, models.Malformed("miso report has no market day or table header")
	}
	t, err := adapter.ParseTable(bytes.Join(lines[headerAt:], []byte("\n")), ',')
	if err != nil {
		return nil, err
	}

	var out []hourRecord
	for _, row := range t.Rows {
		typ, ok := valueTypes[t.Get(row, "Value")]
		if !ok {
			continue
		}
		for he := 1; he <= 24; he++ {
			v, ok := t.Float(row, "HE "+strconv.Itoa(he))
			if !ok {
				continue
			}
			out = append(out, hourRecord{
				Record: normalize.Record{
					Cadence:  cadence,
					Value:    v,
					NodeID:   t.Get(row, "Node"),
					LMPType:  typ,
					DataType: models.DataTypeLMP,
				},
				day: day,
				he:  he,
			})
		}
	}
	return out, nil
}

func (a *Adapter) resolveHourEnding(rows []hourRecord) []normalize.Record {
	return lo.Map(rows, func(r hourRecord, _ int) normalize.Record {
		rec := r.Record
		rec.Time = a.Normalizer.HourEnding(r.day, r.he)
		return rec
	})
}

type totalLoadDoc struct {
	LoadInfo struct {
		RefID                  string `json:"RefId"`
		MediumTermLoadForecast []struct {
			HourEnding   string `json:"HourEnding"`
			LoadForecast string `json:"LoadForecast"`
		} `json:"MediumTermLoadForecast"`
		FiveMinTotalLoad []struct {
			Time  string `json:"Time"`
			Value string `json:"Value"`
		} `json:"FiveMinTotalLoad"`
	} `json:"LoadInfo"`
}

func (a *Adapter) totalLoad(body []byte) ([]normalize.Record, error) {
	var doc totalLoadDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, models.Malformed("miso total load: %v", err)
	}
	day, _, err := refDay(doc.LoadInfo.RefID)
	if err != nil {
		return nil, err
	}

	var out []normalize.Record
	for _, r := range doc.LoadInfo.FiveMinTotalLoad {
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Value), 64)
		if err != nil {
			continue
		}
		out = append(out, normalize.Record{
			Local:    day.Format(refDateLayout) + " " + strings.TrimSpace(r.Time),
			Layout:   refDateLayout + " " + clockLayout,
			Cadence:  "FiveMinTotalLoad",
			Value:    v,
			DataType: models.DataTypeLoad,
		})
	}
	for _, r := range doc.LoadInfo.MediumTermLoadForecast {
		he, err := strconv.Atoi(strings.TrimSpace(r.HourEnding))
		if err != nil || he < 1 || he > 24 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(r.LoadForecast), 64)
		if err != nil {
			continue
		}
		out = append(out, normalize.Record{
			Time:     a.Normalizer.HourEnding(day, he),
			Cadence:  "MTLF",
			Value:    v,
			DataType: models.DataTypeLoad,
		})
	}
	return out, nil
}
