package scraper

import (
	"artie/internal/catalog"
	"artie/internal/romscan"
)

// UnitState tracks where a (ROM, media kind) unit is in its lifecycle.
type UnitState string

const (
	StatePending    UnitState = "pending"
	StateResolving  UnitState = "resolving"
	StateCacheCheck UnitState = "cache_check"
	StateFetching   UnitState = "fetching"
	StateMasking    UnitState = "masking"
	StateCommitting UnitState = "committing"
	StateDone       UnitState = "done"
	StateFailed     UnitState = "failed"
	StateCancelled  UnitState = "cancelled"
)

// Outcome is the terminal classification of a unit.
type Outcome string

const (
	OutcomeSucceeded    Outcome = "succeeded"
	OutcomeSkippedCache Outcome = "skipped-cached"
	OutcomeUnresolved   Outcome = "unresolved"
	OutcomeMissing      Outcome = "missing"
	OutcomeFailed       Outcome = "failed"
	OutcomeCancelled    Outcome = "cancelled"
)

// UnitResult reports one finished unit back to the job layer. Fatal marks a
// failure that poisons the whole job, bad credentials for example; retrying
// the remaining units would burn the rate budget on calls doomed the same way.
type UnitResult struct {
	Rom     romscan.Entry
	Kind    catalog.MediaKind
	Outcome Outcome
	Reason  string
	Fatal   bool
}

// Counters aggregates unit outcomes for a job's completion report.
type Counters struct {
	Attempted    int
	Succeeded    int
	SkippedCache int
	Unresolved   int
	Missing      int
	Failed       int
	Cancelled    int
}

// Record folds one unit outcome into the counters.
func (c *Counters) Record(outcome Outcome) {
	c.Attempted++
	switch outcome {
	case OutcomeSucceeded:
		c.Succeeded++
	case OutcomeSkippedCache:
		c.SkippedCache++
	case OutcomeUnresolved:
		c.Unresolved++
	case OutcomeMissing:
		c.Missing++
	case OutcomeCancelled:
		c.Cancelled++
	default:
		c.Failed++
	}
}
