package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tejusbharadwaj/gridfeed/internal/api"
	"github.com/tejusbharadwaj/gridfeed/internal/database"
	middleware "github.com/tejusbharadwaj/gridfeed/internal/grpc/middlewares"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
)

// ServerConfig holds configuration options for the gRPC server
type ServerConfig struct {
	CacheSize      int           // Size of the LRU response cache
	CacheTTL       time.Duration // Lifetime of a cached response
	RateLimit      float64       // Requests per second
	RateLimitBurst int           // Maximum burst size for rate limiting
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		CacheSize:      1000,
		CacheTTL:       time.Minute,
		RateLimit:      5.0,
		RateLimitBurst: 10,
	}
}

// Clients hands out the client for an authority code.
type Clients interface {
	Client(code string) (*api.Client, error)
}

// SeriesRepository is the read side of the point archive.
type SeriesRepository interface {
	Query(ctx context.Context, q database.SeriesQuery) ([]models.TimeSeriesData, error)
}

// GridService answers live queries through authority clients and archive
// queries from the repository.
type GridService struct {
	clients    Clients
	repository SeriesRepository
	validator  *RequestValidator
	logger     logrus.FieldLogger
}

// NewGridService creates a new service instance. repo may be nil, in which
// case QuerySeries reports Unavailable.
func NewGridService(clients Clients, repo SeriesRepository, logger logrus.FieldLogger) *GridService {
	return &GridService{
		clients:    clients,
		repository: repo,
		validator:  NewRequestValidator(),
		logger:     logger,
	}
}

// GetLMP implements the gRPC service method
func (s *GridService) GetLMP(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.points(ctx, req, (*api.Client).GetLMPWith)
}

// GetLoad implements the gRPC service method
func (s *GridService) GetLoad(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.points(ctx, req, (*api.Client).GetLoadWith)
}

type query func(*api.Client, context.Context, options.Options) ([]models.Point, error)

func (s *GridService) points(ctx context.Context, req *structpb.Struct, run query) (*structpb.Struct, error) {
	kw := req.AsMap()
	code, _ := kw["ba_name"].(string)
	if code == "" {
		return nil, status.Error(codes.InvalidArgument, "missing ba_name")
	}
	delete(kw, "ba_name")

	opts, err := options.FromKeywords(kw)
	if err != nil {
		return nil, toStatus(err)
	}
	client, err := s.clients.Client(code)
	if err != nil {
		return nil, toStatus(err)
	}
	points, err := run(client, ctx, opts)
	if err != nil {
		s.logger.WithError(err).WithField("ba_name", code).Debug("Live query rejected")
		return nil, toStatus(err)
	}
	return encodePoints(points), nil
}

// ListAuthorities implements the gRPC service method
func (s *GridService) ListAuthorities(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var dt models.DataType
	if raw := req.GetFields()["data_type"].GetStringValue(); raw != "" {
		parsed, err := models.ParseDataType(raw)
		if err != nil {
			return nil, toStatus(err)
		}
		dt = parsed
	}

	authorities := api.ListAuthorities(dt)
	list := make([]*structpb.Value, 0, len(authorities))
	for _, a := range authorities {
		types := make([]*structpb.Value, 0, len(a.DataTypes))
		for _, t := range a.DataTypes {
			types = append(types, structpb.NewStringValue(string(t)))
		}
		list = append(list, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"code":           structpb.NewStringValue(a.Code),
			"display_name":   structpb.NewStringValue(a.DisplayName),
			"class":          structpb.NewStringValue(string(a.Class)),
			"data_types":     structpb.NewListValue(&structpb.ListValue{Values: types}),
			"requires_nodes": structpb.NewBoolValue(a.RequiresNodes),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"authorities": structpb.NewListValue(&structpb.ListValue{Values: list}),
	}}, nil
}

// QuerySeries implements the gRPC service method
func (s *GridService) QuerySeries(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.repository == nil {
		return nil, status.Error(codes.Unavailable, "archive is not configured")
	}
	q, err := decodeSeriesQuery(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.validator.Validate(q); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	data, err := s.repository.Query(ctx, q)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}

	values := make([]*structpb.Value, 0, len(data))
	for _, dp := range data {
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"time":  structpb.NewStringValue(dp.Time.UTC().Format(time.RFC3339)),
			"value": structpb.NewNumberValue(dp.Value),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"data": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}, nil
}

func decodeSeriesQuery(req *structpb.Struct) (database.SeriesQuery, error) {
	f := req.GetFields()
	q := database.SeriesQuery{
		BAName:      strings.ToUpper(f["ba_name"].GetStringValue()),
		DataType:    models.DataType(f["data_type"].GetStringValue()),
		NodeID:      f["node_id"].GetStringValue(),
		LMPType:     models.LMPType(f["lmp_type"].GetStringValue()),
		Window:      f["window"].GetStringValue(),
		Aggregation: strings.ToUpper(f["aggregation"].GetStringValue()),
	}
	var err error
	if raw := f["start"].GetStringValue(); raw != "" {
		if q.Start, err = options.ParseTime(raw); err != nil {
			return q, err
		}
	}
	if raw := f["end"].GetStringValue(); raw != "" {
		if q.End, err = options.ParseTime(raw); err != nil {
			return q, err
		}
	}
	return q, nil
}

func encodePoints(points []models.Point) *structpb.Struct {
	values := make([]*structpb.Value, 0, len(points))
	for _, p := range points {
		fields := map[string]*structpb.Value{
			"ba_name":   structpb.NewStringValue(p.BAName),
			"timestamp": structpb.NewStringValue(p.Timestamp.UTC().Format(time.RFC3339)),
			"market":    structpb.NewStringValue(string(p.Market)),
			"freq":      structpb.NewStringValue(string(p.Freq)),
			"value":     structpb.NewNumberValue(p.Value),
			"data_type": structpb.NewStringValue(string(p.DataType)),
		}
		if p.NodeID != "" {
			fields["node_id"] = structpb.NewStringValue(p.NodeID)
		}
		if p.LMPType != "" {
			fields["lmp_type"] = structpb.NewStringValue(string(p.LMPType))
		}
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: fields}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"points": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, models.ErrUnknownAuthority):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, models.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Errorf(codes.Internal, "query failed: %v", err)
}

// SetupServer initializes and configures the gRPC server with all middleware.
// metrics is registered on reg; pass nil to skip registration.
func SetupServer(svc GridServiceServer, config ServerConfig, logger logrus.FieldLogger, reg prometheus.Registerer) (*grpc.Server, *HealthChecker, error) {
	cache, err := middleware.NewCache(config.CacheSize, config.CacheTTL)
	if err != nil {
		return nil, nil, err
	}
	metrics := middleware.NewMetrics()
	if reg != nil {
		if err := metrics.Register(reg); err != nil {
			return nil, nil, err
		}
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.ContextMiddleware,                                       // Add request ID first
			middleware.NewRateLimiter(config.RateLimit, config.RateLimitBurst), // Rate limit early
			middleware.NewLoggingInterceptor(logger),                           // Log all requests (with request ID)
			metrics.Interceptor(),                                              // Collect metrics
			cache.Interceptor(MethodListAuthorities, MethodQuerySeries),        // Cache last to avoid caching errors
		),
	)

	RegisterGridServiceServer(server, svc)

	health := NewHealthChecker()
	health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(server, health)

	return server, health, nil
}
