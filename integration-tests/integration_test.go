//go:build integration
// +build integration

package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tejusbharadwaj/gridfeed/internal/api"
	"github.com/tejusbharadwaj/gridfeed/internal/database"
	server "github.com/tejusbharadwaj/gridfeed/internal/grpc"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

const bufSize = 1024 * 1024

var logger = logrus.New()

func connString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnvOrDefault("DB_HOST", "db"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_USER", "gridfeed"),
		getEnvOrDefault("DB_PASSWORD", "gridfeed"),
		getEnvOrDefault("DB_NAME", "gridfeed"),
	)
}

func setupTestDB(t *testing.T) *database.PostgresRepo {
	repo, err := database.NewPostgresRepo(connString())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	// Clean up any existing test data
	db, err := sql.Open("postgres", connString())
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("TRUNCATE TABLE grid_points")
	require.NoError(t, err)

	return repo
}

// Helper function to get environment variables with defaults
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// redirect sends every upstream request to the test server, keeping the path.
type redirect struct {
	target *url.URL
}

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

// setupMockUpstream serves a BPA rolling report for the given local day, with
// load equal to 6000 plus the minute of the hour.
func setupMockUpstream(t *testing.T, day time.Time) *httptest.Server {
	var b strings.Builder
	b.WriteString("BPA Balancing Authority Load\n\nDate/Time\tLoad\tWind\tHydro\tFossil/Biomass\tNuclear\n")
	for ts := day; ts.Before(day.Add(24 * time.Hour)); ts = ts.Add(5 * time.Minute) {
		fmt.Fprintf(&b, "%s\t%d\t1\t1\t1\t1\n", ts.Format("01/02/2006 15:04"), 6000+ts.Minute())
	}
	body := b.String()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupPool(t *testing.T, upstream *httptest.Server, now time.Time) *api.Pool {
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	httpClient := &http.Client{Transport: redirect{target: target}, Timeout: 10 * time.Second}

	return api.NewPool(func(a registry.Authority) []api.ClientOption {
		return []api.ClientOption{
			api.WithTransport(transport.NewHTTP(a.Code, transport.HTTPConfig{RateLimit: 50, Burst: 10},
				transport.WithHTTPClient(httpClient),
				transport.WithLogger(logger),
			)),
			api.WithClock(func() time.Time { return now }),
			api.WithLogger(logger),
		}
	})
}

func setupTestClient(t *testing.T, svc server.GridServiceServer) *server.GridServiceClient {
	srv, _, err := server.SetupServer(svc, server.DefaultServerConfig(), logger, prometheus.NewRegistry())
	require.NoError(t, err)

	lis := bufconn.Listen(bufSize)
	go func() {
		if err := srv.Serve(lis); err != nil {
			logger.Errorf("Server exited with error: %v", err)
		}
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return server.NewGridServiceClient(conn)
}

func seriesRequest(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestCollectAndQueryE2E(t *testing.T) {
	repo := setupTestDB(t)

	// The upstream day is local Pacific time; 2016-06-14 07:00Z is local midnight.
	day := time.Date(2016, 6, 14, 0, 0, 0, 0, time.UTC)
	now := time.Date(2016, 6, 15, 19, 7, 0, 0, time.UTC)
	pool := setupPool(t, setupMockUpstream(t, day), now)

	bpa, err := pool.Client("BPA")
	require.NoError(t, err)
	collector := api.NewCollector(repo, logger, api.Target{Client: bpa})

	start := time.Date(2016, 6, 14, 10, 0, 0, 0, time.UTC)
	end := time.Date(2016, 6, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, collector.Collect(context.Background(), start, end))
	// Re-collecting the same window must not duplicate rows.
	require.NoError(t, collector.Collect(context.Background(), start, end))

	client := setupTestClient(t, server.NewGridService(pool, repo, logger))

	tests := []struct {
		name        string
		aggregation string
		window      string
		buckets     int
		first       float64
	}{
		{name: "hourly average", aggregation: "AVG", window: "1h", buckets: 3, first: 6027.5},
		{name: "hourly max", aggregation: "MAX", window: "1h", buckets: 3, first: 6055},
		{name: "five minute sum", aggregation: "SUM", window: "5m", buckets: 25, first: 6000},
		{name: "daily min", aggregation: "MIN", window: "1d", buckets: 1, first: 6000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.QuerySeries(context.Background(), seriesRequest(t, map[string]interface{}{
				"ba_name":     "BPA",
				"data_type":   "load",
				"start":       start.Format(time.RFC3339),
				"end":         end.Add(time.Minute).Format(time.RFC3339),
				"window":      tt.window,
				"aggregation": tt.aggregation,
			}))
			require.NoError(t, err)
			data := resp.GetFields()["data"].GetListValue().GetValues()
			require.Len(t, data, tt.buckets)
			assert.Equal(t, tt.first, data[0].GetStructValue().GetFields()["value"].GetNumberValue())
		})
	}
}

func TestLiveQueryThroughHTTPTransport(t *testing.T) {
	day := time.Date(2016, 6, 15, 0, 0, 0, 0, time.UTC)
	now := time.Date(2016, 6, 15, 19, 7, 0, 0, time.UTC)
	pool := setupPool(t, setupMockUpstream(t, day), now)
	client := setupTestClient(t, server.NewGridService(pool, nil, logger))

	resp, err := client.GetLoad(context.Background(), seriesRequest(t, map[string]interface{}{
		"ba_name": "BPA",
		"latest":  true,
	}))
	require.NoError(t, err)
	points := resp.GetFields()["points"].GetListValue().GetValues()
	require.Len(t, points, 1)
	assert.Equal(t, "2016-06-15T19:05:00Z", points[0].GetStructValue().GetFields()["timestamp"].GetStringValue())
}

func TestQuerySeriesErrorCases(t *testing.T) {
	repo := setupTestDB(t)
	pool := setupPool(t, setupMockUpstream(t, time.Now().UTC().Truncate(24*time.Hour)), time.Now())
	client := setupTestClient(t, server.NewGridService(pool, repo, logger))

	tests := []struct {
		name   string
		fields map[string]interface{}
	}{
		{name: "missing timestamps", fields: map[string]interface{}{"ba_name": "BPA", "data_type": "load", "window": "1h", "aggregation": "AVG"}},
		{name: "invalid window", fields: map[string]interface{}{"ba_name": "BPA", "data_type": "load", "start": "2016-06-14", "end": "2016-06-15", "window": "1w", "aggregation": "AVG"}},
		{name: "invalid aggregation", fields: map[string]interface{}{"ba_name": "BPA", "data_type": "load", "start": "2016-06-14", "end": "2016-06-15", "window": "1h", "aggregation": "P99"}},
		{name: "reversed range", fields: map[string]interface{}{"ba_name": "BPA", "data_type": "load", "start": "2016-06-15", "end": "2016-06-14", "window": "1h", "aggregation": "AVG"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.QuerySeries(context.Background(), seriesRequest(t, tt.fields))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}
