// Package ratelimit throttles outbound catalog API calls to the remote quota.
//
// A single Limiter is shared by every worker because it models one external
// budget. It only delays callers; the sole error it returns is the caller's
// context expiring while blocked.
package ratelimit
