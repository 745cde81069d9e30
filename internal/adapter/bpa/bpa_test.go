package bpa

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

// 12:07 PDT
var now = time.Date(2016, 6, 15, 19, 7, 0, 0, time.UTC)

// baltwg writes rows from local midnight on June 14 through 13:00 on June 15,
// leaving load blank after 12:05.
func baltwg() string {
	var b strings.Builder
	b.WriteString("BPA Balancing Authority Load & Total Wind, Hydro, Fossil/Biomass, and Nuclear Generation, Near-Real-Time\n")
	b.WriteString("Date range: 06/14/2016 - 06/15/2016\n\n")
	b.WriteString("Date/Time       \tLoad\tWind\tHydro\tFossil/Biomass\tNuclear\n")
	start := time.Date(2016, 6, 14, 0, 0, 0, 0, time.UTC)
	last := time.Date(2016, 6, 15, 12, 5, 0, 0, time.UTC)
	for ts := start; !ts.After(time.Date(2016, 6, 15, 13, 0, 0, 0, time.UTC)); ts = ts.Add(5 * time.Minute) {
		if ts.After(last) {
			fmt.Fprintf(&b, "%s\t\t\t\t\t\n", ts.Format(stampLayout))
			continue
		}
		fmt.Fprintf(&b, "%s\t%d\t1200\t7000\t300\t1100\n", ts.Format(stampLayout), 6000+ts.Minute())
	}
	return b.String()
}

func newAdapter(t *testing.T, body string, calls *int) *Adapter {
	t.Helper()
	a, err := registry.Lookup("BPA")
	require.NoError(t, err)
	tr := transport.Func(func(_ context.Context, req transport.Request) ([]byte, error) {
		*calls++
		assert.Equal(t, reportURL, req.URL)
		if body == "" {
			return nil, nil
		}
		return []byte(body), nil
	})
	ad, err := New(a, adapter.Deps{Transport: tr, Retry: adapter.RetryPolicy{Attempts: 1}})
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

func TestLatest(t *testing.T) {
	var calls int
	points, err := newAdapter(t, baltwg(), &calls).GetLoad(context.Background(), resolve(t, options.Latest()))
	require.NoError(t, err)

	require.Len(t, points, 1)
	assert.Equal(t, time.Date(2016, 6, 15, 19, 5, 0, 0, time.UTC), points[0].Timestamp)
	assert.Equal(t, 6005.0, points[0].Value)
	assert.Equal(t, models.MarketRealtime5Min, points[0].Market)
	assert.Equal(t, models.Freq5Min, points[0].Freq)
	assert.Equal(t, "BPA", points[0].BAName)
	assert.Equal(t, 1, calls)
}

func TestRange(t *testing.T) {
	var calls int
	start := time.Date(2016, 6, 14, 19, 0, 0, 0, time.UTC)
	points, err := newAdapter(t, baltwg(), &calls).GetLoad(context.Background(), resolve(t, options.WithRange(start, start.Add(2*time.Hour))))
	require.NoError(t, err)

	require.Len(t, points, 25)
	assert.Equal(t, start, points[0].Timestamp)
	assert.Equal(t, start.Add(2*time.Hour), points[24].Timestamp)
}

func TestNullResponse(t *testing.T) {
	var calls int
	points, err := newAdapter(t, "", &calls).GetLoad(context.Background(), resolve(t, options.Latest()))
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestMissingHeaderIsMalformed(t *testing.T) {
	_, err := parseReport([]byte("maintenance page"))
	assert.ErrorIs(t, err, models.ErrMalformedUpstream)

	var calls int
	points, err := newAdapter(t, "maintenance page", &calls).GetLoad(context.Background(), resolve(t, options.Latest()))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestForecastIsUnsupported(t *testing.T) {
	var calls int
	_, err := newAdapter(t, baltwg(), &calls).GetLoad(context.Background(), resolve(t, options.Forecast()))
	assert.ErrorIs(t, err, models.ErrUnsupportedQuery)
	assert.Zero(t, calls)
}
