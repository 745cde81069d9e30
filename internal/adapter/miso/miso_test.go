package miso

import (
	"context"
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

// 14:07 EST
var now = time.Date(2016, 6, 15, 19, 7, 0, 0, time.UTC)

const consolidated = `{"LMPData":{"RefId":"15-Jun-2016 - Interval 14:05 EST","FiveMinLMP":{"HourAndMin":"14:05","PricingNode":[
 {"name":"AECI","LMP":"23.45","MLC":"0.12","MCC":"-0.01"},
 {"name":"ALTW.WELLS1","LMP":"20.10","MLC":"-0.30","MCC":"n/a"}
]}}}`

const totalLoad = `{"LoadInfo":{"RefId":"15-Jun-2016 - Interval 14:05 EST",
 "ClearedMW":[{"Hour":"1","Value":"70000"}],
 "MediumTermLoadForecast":[{"HourEnding":"14","LoadForecast":"90000"},{"HourEnding":"15","LoadForecast":"91000"},{"HourEnding":"16","LoadForecast":"92000"},{"HourEnding":"17","LoadForecast":"93000"}],
 "FiveMinTotalLoad":[{"Time":"14:00","Value":"89500"},{"Time":"14:05","Value":"89750"},{"Time":"14:10","Value":"90000"}]}}`

func report(day string, nodes ...string) string {
	var b strings.Builder
	b.WriteString("\"Day Ahead Market ExPost LMPs\"\n")
	fmt.Fprintf(&b, "%s\n", day)
	b.WriteString(",,,,,\n\"All Hours-Ending are Eastern Standard Time (EST)\"\n")
	b.WriteString("Node,Type,Value")
	for he := 1; he <= 24; he++ {
		fmt.Fprintf(&b, ",HE %d", he)
	}
	b.WriteString("\n")
	for _, n := range nodes {
		for _, v := range []string{"LMP", "MCC", "MLC"} {
			fmt.Fprintf(&b, "%s,Loadzone,%s", n, v)
			for he := 1; he <= 24; he++ {
				fmt.Fprintf(&b, ",%d.25", he)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func broker(pages map[string]string, seen *[]string) transport.Transport {
	return transport.Func(func(_ context.Context, req transport.Request) ([]byte, error) {
		key := strings.TrimPrefix(req.URL, reportsURL)
		if req.URL == brokerURL {
			key = req.Query.Get("messageType")
		}
		*seen = append(*seen, key)
		if body, ok := pages[key]; ok {
			return []byte(body), nil
		}
		return nil, &transport.StatusError{StatusCode: 404, URL: req.URL}
	})
}

func newAdapter(t *testing.T, tr transport.Transport) *Adapter {
	t.Helper()
	a, err := registry.Lookup("MISO")
	require.NoError(t, err)
	ad, err := New(a, adapter.Deps{Transport: tr, Retry: adapter.RetryPolicy{Attempts: 1}, Concurrency: 1})
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

func TestLatestLMPFromConsolidatedTable(t *testing.T) {
	var seen []string
	points, err := newAdapter(t, broker(map[string]string{"getlmpconsolidatedtable": consolidated}, &seen)).
		GetLMP(context.Background(), resolve(t, options.Latest()))
	require.NoError(t, err)

	// MCC of "n/a" is skipped.
	require.Len(t, points, 5)
	for _, p := range points {
		assert.Equal(t, time.Date(2016, 6, 15, 19, 5, 0, 0, time.UTC), p.Timestamp)
		assert.Equal(t, models.MarketRealtime5Min, p.Market)
	}
	assert.Equal(t, "AECI", points[0].NodeID)
	assert.Equal(t, models.LMPCongestion, points[0].LMPType)
	assert.Equal(t, -0.01, points[0].Value)
}

func TestDayAheadReportHourEnding(t *testing.T) {
	var seen []string
	pages := map[string]string{
		"20160614_da_expost_lmp.csv": report("06/14/2016", "AECI", "AMIL.BGS6"),
	}
	q := resolve(t,
		options.WithRange(time.Date(2016, 6, 14, 5, 0, 0, 0, time.UTC), time.Date(2016, 6, 15, 4, 0, 0, 0, time.UTC)),
		options.WithMarket(models.MarketDayAhead),
		options.WithNodes("AECI"))
	points, err := newAdapter(t, broker(pages, &seen)).GetLMP(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, points, 24*3)
	// HE 1 on June 14 is 00:00 EST.
	assert.Equal(t, time.Date(2016, 6, 14, 5, 0, 0, 0, time.UTC), points[0].Timestamp)
	assert.Equal(t, time.Date(2016, 6, 15, 4, 0, 0, 0, time.UTC), points[len(points)-1].Timestamp)
	assert.Equal(t, 24.25, points[len(points)-1].Value)
	assert.Equal(t, []string{"20160614_da_expost_lmp.csv"}, seen)
}

func TestRangeDefaultsToHourlyRealtime(t *testing.T) {
	var seen []string
	q := resolve(t, options.WithRange(now.Add(-3*time.Hour), now.Add(-time.Hour)))
	points, err := newAdapter(t, broker(nil, &seen)).GetLMP(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.Equal(t, []string{"20160615_rt_lmp_final.csv"}, seen)
}

func TestFiveMinuteRangeIsUnsupported(t *testing.T) {
	var seen []string
	q := resolve(t, options.WithRange(now.Add(-3*time.Hour), now), options.WithMarket(models.MarketRealtime5Min))
	_, err := newAdapter(t, broker(nil, &seen)).GetLMP(context.Background(), q)
	assert.ErrorIs(t, err, models.ErrUnsupportedQuery)
	assert.Empty(t, seen)
}

func TestLoadLatestAndForecast(t *testing.T) {
	var seen []string
	ad := newAdapter(t, broker(map[string]string{"gettotalload": totalLoad}, &seen))

	latest, err := ad.GetLoad(context.Background(), resolve(t, options.Latest()))
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, time.Date(2016, 6, 15, 19, 5, 0, 0, time.UTC), latest[0].Timestamp)
	assert.Equal(t, 89750.0, latest[0].Value)

	forecast, err := ad.GetLoad(context.Background(), resolve(t, options.Forecast()))
	require.NoError(t, err)
	// HE 15 starts at 14:00 EST, before now; HE 16 and 17 remain.
	require.Len(t, forecast, 2)
	assert.Equal(t, time.Date(2016, 6, 15, 20, 0, 0, 0, time.UTC), forecast[0].Timestamp)
	assert.Equal(t, 92000.0, forecast[0].Value)
	assert.Equal(t, models.MarketDayAhead, forecast[0].Market)
}

func TestLoadNullAndBrokenResponses(t *testing.T) {
	var seen []string
	points, err := newAdapter(t, broker(nil, &seen)).GetLoad(context.Background(), resolve(t, options.Latest()))
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)

	points, err = newAdapter(t, broker(map[string]string{"gettotalload": `{"LoadInfo":{"RefId":"garbage"}}`}, &seen)).
		GetLoad(context.Background(), resolve(t, options.Latest()))
	require.NoError(t, err)
	assert.Empty(t, points)

	_, err = newAdapter(t, broker(nil, &seen)).GetLoad(context.Background(), resolve(t, options.WithRange(now.Add(-time.Hour), now)))
	assert.ErrorIs(t, err, models.ErrUnsupportedQuery)
}
