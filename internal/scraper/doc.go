// Package scraper coordinates the per-unit download pipeline.
//
// A unit is one (ROM, media kind) pair. Each unit walks the state machine
// Pending -> Resolving -> CacheCheck -> Fetching -> Masking -> Committing ->
// Done, with Failed and Cancelled terminals reachable from any non-terminal
// state. The cancellation flag is consulted at every transition boundary;
// in-flight network calls finish but their results are discarded. A partially
// fetched asset is never visible: commit into the cache store is the only
// hand-off.
package scraper
