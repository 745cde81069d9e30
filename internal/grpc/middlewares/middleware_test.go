package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/gridfeed.v1.GridService/GetLoad"}

func ok(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

func TestRateLimiter(t *testing.T) {
	limit := NewRateLimiter(1, 2)

	for i := 0; i < 2; i++ {
		_, err := limit(context.Background(), nil, info, ok)
		require.NoError(t, err)
	}
	_, err := limit(context.Background(), nil, info, ok)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestRateLimiterDisabled(t *testing.T) {
	limit := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		_, err := limit(context.Background(), nil, info, ok)
		require.NoError(t, err)
	}
}

func TestContextMiddleware(t *testing.T) {
	var seen string
	capture := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = RequestID(ctx)
		return nil, nil
	}

	_, err := ContextMiddleware(context.Background(), nil, info, capture)
	require.NoError(t, err)
	assert.Len(t, seen, 36)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, "caller-id"))
	_, err = ContextMiddleware(ctx, nil, info, capture)
	require.NoError(t, err)
	assert.Equal(t, "caller-id", seen)
}

func TestLoggingInterceptor(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logging := NewLoggingInterceptor(logger)

	ctx := context.WithValue(context.Background(), requestIDKey, "req-1")
	_, err := logging(ctx, nil, info, ok)
	require.NoError(t, err)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, "OK", entry.Data["code"])

	fail := func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown authority")
	}
	_, err = logging(ctx, nil, info, fail)
	require.Error(t, err)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "NotFound", hook.LastEntry().Data["code"])
}

func TestMetricsInterceptor(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	intercept := m.Interceptor()
	_, _ = intercept(context.Background(), nil, info, ok)
	_, _ = intercept(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GetLoad", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GetLoad", "Unknown")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Latency))
}
