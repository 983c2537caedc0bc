// Package history is the sample archive for polled PDU metrics.
//
// Architecture:
//
//	poller ──> Store.Record ──> batch queue ──> single writer ──> SQLite (WAL)
//	                                                    │
//	HTTP/API ──> QueryBanks/QueryOutlets <── downsampled reads
//	scheduler ──> Sweep (retention) / GenerateWeeklyReports
//
// The store is the single writer; WAL mode keeps concurrent readers off the
// writer's back. Each poll cycle submits one batch of bank and outlet rows;
// batches are coalesced and committed when enough accumulate or a flush
// interval elapses, whichever comes first. A crash therefore loses at most
// the last uncommitted window of samples.
//
// Queries downsample server-side: the bucket width is derived from the
// requested range so responses stay bounded regardless of span. Numeric
// fields average within a bucket; outlet state takes the last value.
package history
