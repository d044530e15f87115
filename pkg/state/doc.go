// Package state persists the teardown ledger in a local bbolt database.
//
// The orchestrator records each run's cluster name and credential
// directories as it provisions them and deletes the record once cleanup
// finishes. If a run dies between the two, `buildhive down --all` replays
// the stale records so no builder cluster or credential directory leaks.
package state
