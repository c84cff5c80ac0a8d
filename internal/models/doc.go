// Package models defines the records handled by the offline action queue.
//
// The package contains two categories of types:
//
// 1. Queue records: persisted by the queue stores
//   - [QueuedAction] : a pending watchlist mutation awaiting replay
//   - [DeadLetter] : an action evicted after reaching the retry ceiling
//
// 2. Data Transfer Objects (DTOs): payloads the CLI builds into queued actions
//   - [ActionInput] : the caller-supplied part of a [QueuedAction]
//   - [WatchlistItem] : a saved title with its watch status
//
// [QueuedAction] serializes with camelCase field names (id, type, url, method, body, headers, timestamp, retryCount) so
// records written by other clients of the same store decode unchanged.
package models
