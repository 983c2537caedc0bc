// Package influxdb is the optional telemetry pipe to an InfluxDB v2 server.
//
// The SQLite history store remains the system of record for samples and
// reports; this package mirrors per-bank and per-outlet readings into a
// long-term time-series bucket for operators who already run InfluxDB and
// Grafana. It is disabled by default and the bridge runs identically
// without it.
//
// Writes are non-blocking: points are handed to the client library's
// batching write API and flushed on its schedule. Write failures surface
// through the SetOnError callback; a failed point is dropped, never
// retried, because the SQLite store already holds the authoritative copy.
package influxdb
