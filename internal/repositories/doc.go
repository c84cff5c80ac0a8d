// Package repositories implements durable storage for queued actions and dead letters.
//
// Two backends implement the queue's store contract:
//   - [ActionRepository] : SQLite table with per-action replay leases
//   - [RedisActionStore] : Redis hash shared by every process pointing at the same server
//
// Evicted actions land in a [DeadLetterRepository] or [RedisDeadLetterStore], matching the chosen backend.
//
// Sequence numbers provide a stable tie-breaker for actions sharing a millisecond timestamp.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
