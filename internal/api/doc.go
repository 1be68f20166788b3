// Package api hosts the HTTP server for operators and downstream readers.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/campgrounds, /v1/campgrounds/{id} and /v1/stats to read stored
//     campgrounds.
//   - POST /v1/crawl to start a crawl, GET /v1/crawl/status and
//     /v1/scheduler/status to watch runs.
package api
