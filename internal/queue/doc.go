// Package queue implements the offline action queue: a durable holding area for watchlist mutations that must eventually reach the server.
//
// # Operations
//
// [OfflineActionQueue] exposes the queue operations:
//
//  1. [OfflineActionQueue.Init] : idempotent store setup; an unavailable store degrades the queue instead of failing
//  2. [OfflineActionQueue.AddAction] : assigns id, timestamp and retry count, persists before returning
//  3. [OfflineActionQueue.GetActions] : all actions in enqueue order, never an error
//  4. [OfflineActionQueue.RemoveAction], [OfflineActionQueue.UpdateAction], [OfflineActionQueue.ClearActions]
//  5. [OfflineActionQueue.ProcessQueue] : the replay driver
//
// # Replay
//
// A processing pass replays actions strictly in ascending timestamp order, one at a time.
// An add followed by an edit of the same title must reach the server in that order, so passes never replay in parallel.
//
// A failed replay increments the action's retry count and moves on to the next action.
// Once the retry count reaches the ceiling the action is removed and handed to the [DeadLetterSink].
// There is no backoff: the next attempt happens on the next pass, driven by a [Trigger].
//
// # Concurrency
//
// Overlapping passes in one process are refused by a re-entrancy guard.
// Stores implementing [Claimer] give each replay a lease, so two processes sharing a store never submit the same action twice.
// The record is reloaded once leased, and the outcome is written back with [Store.Update], which never recreates an action
// removed or cleared while its replay was in flight.
//
// # Progress Reporting
//
// [OfflineActionQueue.Process] emits [ProgressUpdate] values on an optional channel.
// Updates use select with default to prevent blocking.
package queue
