// Package bpa serves Bonneville Power Administration balancing area load from
// the rolling five-minute text report. The report covers roughly the last
// week; older ranges yield whatever overlap remains.
package bpa

import (
	"bytes"
	"context"
	"strings"

	"github.com/tejusbharadwaj/gridfeed/internal/adapter"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/normalize"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

const (
	reportURL   = "https://transmission.bpa.gov/business/operations/wind/baltwg.txt"
	stampLayout = "01/02/2006 15:04"
	headerStart = "Date/Time"
)

// Adapter implements adapter.LoadGetter.
type Adapter struct {
	adapter.Base
}

// New builds a BPA adapter.
func New(a registry.Authority, d adapter.Deps) (*Adapter, error) {
	b, err := adapter.NewBase(a, d)
	if err != nil {
		return nil, err
	}
	return &Adapter{Base: b}, nil
}

// GetLoad reads the five-minute report and lets Finish trim it to the query.
func (a *Adapter) GetLoad(ctx context.Context, q options.Query) ([]models.Point, error) {
	q = q.WithMarket(q.MarketOr(models.MarketRealtime5Min))
	if q.Market != models.MarketRealtime5Min || q.Mode == options.ModeForecast {
		return nil, &models.UnsupportedQueryError{Authority: a.Authority.Code, DataType: models.DataTypeLoad, Reason: "only five-minute actuals are published"}
	}

	req := transport.Get(reportURL, nil)
	body := a.Fetch(ctx, req)
	if body == nil {
		return a.Finish(q, nil), nil
	}
	records, err := parseReport(body)
	if err != nil {
		a.Malformed(req, err)
		return a.Finish(q, nil), nil
	}
	return a.Finish(q, a.Points(records)), nil
}

// parseReport skips the free-text preamble and reads the tab-separated table
// that follows the Date/Time header. Future rows carry no load and are
// dropped.
func parseReport(body []byte) ([]normalize.Record, error) {
	at := bytes.Index(body, []byte(headerStart))
	if at < 0 {
		return nil, models.Malformed("bpa report has no %s header", headerStart)
	}
	t, err := adapter.ParseTable(body[at:], '\t')
	if err != nil {
		return nil, err
	}
	if !t.Has(headerStart, "Load") {
		return nil, models.Malformed("bpa report is missing the Load column")
	}

	var out []normalize.Record
	for _, row := range t.Rows {
		v, ok := t.Float(row, "Load")
		if !ok {
			continue
		}
		stamp := t.Get(row, headerStart)
		if strings.TrimSpace(stamp) == "" {
			continue
		}
		out = append(out, normalize.Record{
			Local:    stamp,
			Layout:   stampLayout,
			Cadence:  "5MIN",
			Value:    v,
			Unit:     normalize.MW,
			DataType: models.DataTypeLoad,
		})
	}
	return out, nil
}
