// Package timeline resolves which trend-radar actions are active at a given
// wall-clock instant.
//
// # Model
//
// A Timeline is made of named periods (HH:MM windows that may wrap past
// midnight), day plans (ordered period lists) and a week map from ISO weekday
// (1=Monday ... 7=Sunday) to a day plan. Each period may override any field of
// the default action profile.
//
// # Flow
//
// Build selects a preset (or the custom slot) from a Source and returns a deep
// copy. Validate rejects structural problems and, under the error_on_overlap
// policy, temporally overlapping periods. A Resolver then maps an instant to a
// ResolvedSchedule. Resolvers are immutable once built; a config reload builds
// and validates a fresh Timeline and swaps the Resolver as a whole.
//
// # Once-dedup
//
// Periods may mark analyze and push as "once": the action runs at most once per
// date for that period. The Resolver only delegates to a Ledger; it does not
// make the check-then-record pair atomic.
package timeline
