// Package identity maps local ROM files to remote catalog records.
//
// Resolution runs staged strategies: exact checksum lookup, exact normalized
// name match, then fuzzy ranking over the name-search candidates. A ROM no
// stage accepts is Unresolved, an expected outcome rather than a failure. The last
// strategy that worked for a ROM is remembered in a small hint store and tried
// first next time; the hint is an optimization and never decides correctness.
package identity
