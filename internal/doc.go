// Package internal holds the gridfeed service: a uniform client for
// electricity market prices and load published by grid authorities.
//
// # Architecture
//
// The service is structured into several key packages:
//   - registry: the immutable table of supported authorities
//   - options: query options and their resolution into a Query
//   - normalize: authority time zones and vocabulary to canonical points
//   - transport: HTTP access with rate limiting, retries and an archive cache
//   - adapter: shared fetch, fan-out and result shaping, plus one package
//     per authority family
//   - api: the Client, the client Pool and the archive Collector
//   - database: TimescaleDB archive of collected points
//   - grpc: the gridfeed.v1.GridService server and its middleware
//   - scheduler: cron-driven collection
//   - config: YAML configuration
//
// Key Features
//
//   - Live Queries:
//     Latest snapshots, forecasts and historical ranges for LMP and load,
//     with every timestamp in UTC.
//
//   - Archive:
//     Points can be collected on a schedule and aggregated (MIN, MAX, AVG,
//     SUM) over 5m, 1h and 1d windows.
//
// Example Usage
//
//	client, err := api.NewClient("PJM")
//	points, err := client.GetLMP(ctx,
//	    options.WithRangeStrings("2016-06-10", "2016-06-11"),
//	    options.WithNodes("33092371"),
//	)
//
// For more information about specific packages, see their respective
// documentation.
package internal
