/*
Package metrics provides Prometheus metrics collection and exposition for
synccore's client process.

It defines and registers gauges, counters, and histograms covering the API
connection pool, binary-RPC command outcomes, transfer throughput, account
quota, and metastore transaction latency, exposed over HTTP for scraping.
A Collector periodically republishes pkg/status's snapshot into the gauges
so a scrape is never more than one tick behind the live state.

# Metrics Catalog

Pool:

  - synccore_pool_connected: gauge, 1 if the API pool has a live connection
  - synccore_pool_idle_connections: gauge, idle connections cached
  - synccore_pool_dials_total{outcome}: counter of dial attempts

API:

  - synccore_api_requests_total{command,result}: counter of RPC commands run
  - synccore_api_request_duration_seconds{command}: histogram of RPC latency

Transfer:

  - synccore_bytes_uploaded_total / synccore_bytes_downloaded_total: counters
  - synccore_transfer_duration_seconds{direction}: histogram
  - synccore_transfers_failed_total{direction,result}: counter

Quota:

  - synccore_quota_used_bytes / synccore_quota_total_bytes: gauges
  - synccore_local_full: gauge, 1 when uploads are paused over quota

Metastore:

  - synccore_metastore_tx_duration_seconds{kind}: histogram

Classifier:

  - synccore_files_classified_total{category}: counter

# Usage

	timer := metrics.NewTimer()
	resp, err := pool.RunCommand(ctx, "uploadfile", params...)
	metrics.APIRequestDuration.WithLabelValues("uploadfile").Observe(timer.Duration().Seconds())

	collector := metrics.NewCollector(pool)
	collector.Start()
	defer collector.Stop()

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())

# Design Patterns

Package Init Registration: all metrics are registered in init(); MustRegister
panics on a duplicate name, which surfaces a programming error immediately
rather than silently dropping a metric.

Timer Pattern: construct a Timer at an operation's start, observe its
duration into a histogram at the end — same helper for both plain
histograms and label-vector histograms.

Health/Readiness: a process-wide HealthChecker with named components;
readiness additionally requires the pool and metastore components to be
registered and healthy before reporting ready, matching what a supervisor
probe needs before routing traffic.
*/
package metrics
