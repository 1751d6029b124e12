// Package jobs accepts scrape requests and executes them asynchronously on a
// bounded worker pool.
//
// At most one active job may target a given (system, rom) pair; duplicates
// are rejected with ErrAlreadyInProgress so callers get an explicit signal
// instead of silent coalescing. Whole-system jobs fan out into per-ROM units
// that share the queue-wide worker bound. The UI collaborator only ever holds
// a job ID and talks to the queue through Enqueue, Cancel, Status, and Await.
package jobs
