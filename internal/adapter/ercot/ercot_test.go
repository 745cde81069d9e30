package ercot

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

const scedHTML = `<html><body>
<table class="tableStyle">
<tr><th>SCED Time Stamp</th><th>Repeated Hour Flag</th><th>Settlement Point</th><th>LMP</th></tr>
<tr><td>06/15/2016 14:05:12</td><td>N</td><td>HB_HOUSTON</td><td>25.31</td></tr>
<tr><td>06/15/2016 14:05:12</td><td>N</td><td>LZ_HOUSTON</td><td>26.02</td></tr>
<tr><td>06/15/2016 14:00:11</td><td>N</td><td>LZ_HOUSTON</td><td>24.90</td></tr>
<tr><td>06/15/2016 14:05:12</td><td>N</td><td>LZ_NORTH</td><td>n/a</td></tr>
</table></body></html>`

const conditionsHTML = `<html><body>
<div class="schedTime">Last Updated: Jun 15, 2016 14:05:10</div>
<table class="tableStyle">
<tr><td class="tdLeft">Actual System Demand</td><td class="labelClassCenter">51,234</td></tr>
<tr><td class="tdLeft">Total System Capacity</td><td class="labelClassCenter">60000</td></tr>
</table></body></html>`

func damHTML(day time.Time) string {
	var b strings.Builder
	b.WriteString(`<html><body><table><tr><th>Oper Day</th><th>Hour Ending</th><th>HB_HOUSTON</th><th>LZ_HOUSTON</th></tr>`)
	for he := 1; he <= 24; he++ {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%02d</td><td>%d.5</td><td>%d.25</td></tr>", day.Format(operDayLayout), he, 20+he, 21+he)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func forecastHTML() string {
	var b strings.Builder
	b.WriteString(`<table><tr><th>Oper Day</th><th>Hour Ending</th><th>Coast</th><th>SystemTotal</th></tr>`)
	for _, day := range []string{"06/15/2016", "06/16/2016"} {
		for he := 1; he <= 24; he++ {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%d:00</td><td>10000</td><td>%d</td></tr>", day, he, 50000+he)
		}
	}
	b.WriteString("</table>")
	return b.String()
}

func site(t *testing.T, urls *[]string) transport.Transport {
	return transport.Func(func(_ context.Context, req transport.Request) ([]byte, error) {
		*urls = append(*urls, req.URL)
		switch {
		case req.URL == scedPage:
			return []byte(scedHTML), nil
		case req.URL == conditionsPage:
			return []byte(conditionsHTML), nil
		case req.URL == forecastPage:
			return []byte(forecastHTML()), nil
		case strings.HasSuffix(req.URL, "_dam_spp.html"):
			day, err := time.Parse("20060102", strings.TrimSuffix(strings.TrimPrefix(req.URL, cdrURL), "_dam_spp.html"))
			require.NoError(t, err)
			return []byte(damHTML(day)), nil
		}
		return nil, nil
	})
}

func newAdapter(t *testing.T, tr transport.Transport) *Adapter {
	t.Helper()
	a, err := registry.Lookup("ERCOT")
	require.NoError(t, err)
	ad, err := New(a, adapter.Deps{Transport: tr, Concurrency: 1})
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

func TestLatestLMPFiltersNodesLocally(t *testing.T) {
	var urls []string
	points, err := newAdapter(t, site(t, &urls)).GetLMP(context.Background(), resolve(t, options.Latest(), options.WithNodes("LZ_HOUSTON", "LZ_NORTH")))
	require.NoError(t, err)

	require.Len(t, points, 1)
	assert.Equal(t, "LZ_HOUSTON", points[0].NodeID)
	assert.Equal(t, 26.02, points[0].Value)
	assert.Equal(t, time.Date(2016, 6, 15, 19, 5, 0, 0, time.UTC), points[0].Timestamp)
	assert.Equal(t, models.MarketRealtime5Min, points[0].Market)
	assert.Equal(t, []string{scedPage}, urls)
}

func TestDayAheadRange(t *testing.T) {
	var urls []string
	start := time.Date(2016, 6, 10, 5, 0, 0, 0, time.UTC)
	q := resolve(t, options.WithRange(start, start.Add(47*time.Hour)), options.WithNodes("HB_HOUSTON"))
	points, err := newAdapter(t, site(t, &urls)).GetLMP(context.Background(), q)
	require.NoError(t, err)

	assert.Len(t, points, 48)
	assert.Equal(t, start, points[0].Timestamp)
	assert.Equal(t, 21.5, points[0].Value)
	for _, p := range points {
		assert.Equal(t, "HB_HOUSTON", p.NodeID)
		assert.Equal(t, models.MarketDayAhead, p.Market)
	}
	assert.Len(t, urls, 2)
}

func TestRealtimeRangeIsUnsupported(t *testing.T) {
	var urls []string
	q := resolve(t, options.WithRange(now.Add(-time.Hour), now), options.WithMarket(models.MarketRealtime5Min))
	_, err := newAdapter(t, site(t, &urls)).GetLMP(context.Background(), q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnsupportedQuery))
	assert.Empty(t, urls)
}

func TestLatestLoad(t *testing.T) {
	var urls []string
	points, err := newAdapter(t, site(t, &urls)).GetLoad(context.Background(), resolve(t, options.Latest()))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 51234.0, points[0].Value)
	assert.Equal(t, time.Date(2016, 6, 15, 19, 5, 0, 0, time.UTC), points[0].Timestamp)
}

func TestLoadForecast(t *testing.T) {
	var urls []string
	points, err := newAdapter(t, site(t, &urls)).GetLoad(context.Background(), resolve(t, options.Forecast()))
	require.NoError(t, err)
	require.NotEmpty(t, points)
	for _, p := range points {
		assert.False(t, p.Timestamp.Before(now))
		assert.Equal(t, models.MarketDayAhead, p.Market)
	}
	// 14:00 CDT is HE15; the first forecast hour after 14:07 CDT starts at 15:00 CDT.
	assert.Equal(t, time.Date(2016, 6, 15, 20, 0, 0, 0, time.UTC), points[0].Timestamp)
	assert.Equal(t, 50016.0, points[0].Value)
}

func TestBrokenPagesAreEmpty(t *testing.T) {
	tr := transport.Func(func(context.Context, transport.Request) ([]byte, error) {
		return []byte("<html><body><p>maintenance</p></body></html>"), nil
	})
	points, err := newAdapter(t, tr).GetLMP(context.Background(), resolve(t, options.Latest()))
	require.NoError(t, err)
	assert.Empty(t, points)
}
