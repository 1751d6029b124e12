// Package catalog wraps the remote game-database API behind a typed client.
//
// The client covers the three operations the pipeline needs: game lookup by
// checksum, search by name, and media download. Every request passes through
// the shared rate limiter, transient faults are retried with bounded backoff,
// and throttling responses feed a cool-down back into the limiter on a
// separate retry budget.
package catalog
