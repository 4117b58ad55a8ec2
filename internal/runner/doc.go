// Package runner drives the timeline on a cron tick.
//
// Each tick resolves the active schedule, consults the execution ledger for
// once-per-day actions, dispatches the enabled actions to an Executor and
// records successful once-actions. Ticks never overlap.
package runner
