// Package romscan builds the local ROM inventory the scrape pipeline works
// from.
//
// Entries are immutable snapshots of a directory scan; the checksum is
// computed lazily by callers because hashing every file on a handheld's SD
// card up front is too slow. A Watcher reports directory changes so callers
// can trigger explicit re-scans.
package romscan
