package entsoe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/gridfeed/internal/adapter"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

var now = time.Date(2016, 6, 15, 19, 7, 0, 0, time.UTC)

const acknowledgement = `<?xml version="1.0" encoding="UTF-8"?>
<Acknowledgement_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-1:acknowledgementdocument:7:0">
  <mRID>1</mRID>
  <Reason><code>999</code><text>No matching data found</text></Reason>
</Acknowledgement_MarketDocument>`

// loadDocument covers [start, end) with one period at the given resolution.
func loadDocument(start, end time.Time, step time.Duration, res string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<GL_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-6:generationloaddocument:3:0">
  <mRID>abc</mRID><type>A65</type>
  <TimeSeries><mRID>1</mRID><quantity_Measure_Unit.name>MAW</quantity_Measure_Unit.name>
    <Period>`)
	fmt.Fprintf(&b, "<timeInterval><start>%s</start><end>%s</end></timeInterval><resolution>%s</resolution>",
		start.Format(intervalLayout), end.Format(intervalLayout), res)
	pos := 1
	for ts := start; ts.Before(end); ts = ts.Add(step) {
		fmt.Fprintf(&b, "<Point><position>%d</position><quantity>%d</quantity></Point>", pos, 30000+pos)
		pos++
	}
	b.WriteString("</Period></TimeSeries></GL_MarketDocument>")
	return b.String()
}

type platform struct {
	t    *testing.T
	res  string
	step time.Duration

	mu   sync.Mutex
	reqs []transport.Request
}

func (p *platform) Do(_ context.Context, req transport.Request) ([]byte, error) {
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	p.mu.Unlock()
	if req.Query.Get("outBiddingZone_Domain") == ControlAreas["FR"] {
		return []byte(acknowledgement), nil
	}
	start, err := time.Parse(periodLayout, req.Query.Get("periodStart"))
	require.NoError(p.t, err)
	end, err := time.Parse(periodLayout, req.Query.Get("periodEnd"))
	require.NoError(p.t, err)
	return []byte(loadDocument(start, end, p.step, p.res)), nil
}

func newAdapter(t *testing.T, tr transport.Transport) *Adapter {
	t.Helper()
	a, err := registry.Lookup("EU")
	require.NoError(t, err)
	ad, err := New(a, adapter.Deps{Transport: tr, Retry: adapter.RetryPolicy{Attempts: 1}, Credentials: map[string]string{"entsoe": "TOKEN"}})
	require.NoError(t, err)
	return ad
}

func resolve(t *testing.T, opts ...options.Option) options.Query {
	t.Helper()
	o, err := options.New(opts...)
	require.NoError(t, err)
	q, err := o.Resolve(now)
	require.NoError(t, err)
	return q
}

func TestControlAreaIsRequired(t *testing.T) {
	p := &platform{t: t, res: "PT60M", step: time.Hour}
	_, err := newAdapter(t, p).GetLoad(context.Background(), resolve(t, options.Latest()))
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, p.reqs)
}

func TestLatestHourly(t *testing.T) {
	p := &platform{t: t, res: "PT60M", step: time.Hour}
	points, err := newAdapter(t, p).GetLoad(context.Background(), resolve(t, options.Latest(), options.WithNodes("IT")))
	require.NoError(t, err)

	require.Len(t, points, 1)
	assert.Equal(t, "IT", points[0].NodeID)
	assert.Equal(t, "EU", points[0].BAName)
	assert.Equal(t, time.Date(2016, 6, 15, 19, 0, 0, 0, time.UTC), points[0].Timestamp)
	assert.Equal(t, models.MarketHourly, points[0].Market)
	assert.Equal(t, models.FreqHourly, points[0].Freq)

	q := p.reqs[0].Query
	assert.Equal(t, "TOKEN", q.Get("securityToken"))
	assert.Equal(t, documentSystemLoad, q.Get("documentType"))
	assert.Equal(t, processRealised, q.Get("processType"))
	assert.Equal(t, ControlAreas["IT"], q.Get("outBiddingZone_Domain"))
}

func TestRangeAcrossAreas(t *testing.T) {
	p := &platform{t: t, res: "PT60M", step: time.Hour}
	start := time.Date(2016, 6, 13, 0, 0, 0, 0, time.UTC)
	end := time.Date(2016, 6, 14, 0, 0, 0, 0, time.UTC)
	q := resolve(t, options.WithRange(start, end), options.WithNodes("DE", "FR", "XX"))
	points, err := newAdapter(t, p).GetLoad(context.Background(), q)
	require.NoError(t, err)

	// FR acknowledges with no data; XX is not a control area.
	assert.Len(t, p.reqs, 2)
	assert.Len(t, points, 25)
	for _, pt := range points {
		assert.Equal(t, "DE", pt.NodeID)
	}
	assert.Equal(t, start, points[0].Timestamp)
	assert.Equal(t, end, points[24].Timestamp)
}

func TestQuarterHourSeriesMapsToFifteenMinutes(t *testing.T) {
	p := &platform{t: t, res: "PT15M", step: 15 * time.Minute}
	start := time.Date(2016, 6, 14, 0, 0, 0, 0, time.UTC)
	q := resolve(t, options.WithRange(start, start.Add(time.Hour)), options.WithNodes("DE"), options.WithMarket(models.MarketRealtime5Min))
	points, err := newAdapter(t, p).GetLoad(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, points, 5)
	assert.Equal(t, models.Freq15Min, points[0].Freq)
	assert.Equal(t, start.Add(15*time.Minute), points[1].Timestamp)
}

func TestQuarterHourRangeWithoutMarket(t *testing.T) {
	p := &platform{t: t, res: "PT15M", step: 15 * time.Minute}
	start := time.Date(2016, 6, 14, 0, 0, 0, 0, time.UTC)
	q := resolve(t, options.WithRange(start, start.Add(2*time.Hour)), options.WithNodes("DE"))
	points, err := newAdapter(t, p).GetLoad(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, p.reqs, 1)
	assert.Equal(t, processRealised, p.reqs[0].Query.Get("processType"))
	require.Len(t, points, 9)
	for _, pt := range points {
		assert.Equal(t, models.MarketRealtime5Min, pt.Market)
		assert.Equal(t, models.Freq15Min, pt.Freq)
	}
	assert.Equal(t, start.Add(2*time.Hour), points[8].Timestamp)
}

func TestQuarterHourForecast(t *testing.T) {
	p := &platform{t: t, res: "PT15M", step: 15 * time.Minute}
	points, err := newAdapter(t, p).GetLoad(context.Background(), resolve(t, options.Forecast(), options.WithNodes("DE")))
	require.NoError(t, err)
	require.NotEmpty(t, p.reqs)
	require.NotEmpty(t, points)
	for _, r := range p.reqs {
		assert.Equal(t, processDayAhead, r.Query.Get("processType"))
	}
	for _, pt := range points {
		assert.False(t, pt.Timestamp.Before(now))
		assert.Equal(t, models.MarketDayAhead, pt.Market)
		assert.Equal(t, models.Freq15Min, pt.Freq)
	}
	// 19:07 falls inside the 19:00 quarter; the first one after it is 19:15.
	assert.Equal(t, time.Date(2016, 6, 15, 19, 15, 0, 0, time.UTC), points[0].Timestamp)
}

func TestForecastUsesDayAheadProcess(t *testing.T) {
	p := &platform{t: t, res: "PT60M", step: time.Hour}
	points, err := newAdapter(t, p).GetLoad(context.Background(), resolve(t, options.Forecast(), options.WithNodes("IT")))
	require.NoError(t, err)
	require.NotEmpty(t, points)
	for _, r := range p.reqs {
		assert.Equal(t, processDayAhead, r.Query.Get("processType"))
	}
	for _, pt := range points {
		assert.False(t, pt.Timestamp.Before(now))
		assert.Equal(t, models.MarketDayAhead, pt.Market)
	}
}

func TestParseDocument(t *testing.T) {
	records, err := parseDocument([]byte(acknowledgement), processRealised, "FR")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = parseDocument([]byte("<html"), processRealised, "FR")
	assert.ErrorIs(t, err, models.ErrMalformedUpstream)

	_, err = parseDocument([]byte(loadDocument(now, now.Add(time.Hour), time.Hour, "P1D")), processRealised, "FR")
	assert.ErrorIs(t, err, models.ErrMalformedUpstream)
}
