// Package services talks to the watchlist API on behalf of the queue.
//
// # API Client
//
// [APIService] executes raw HTTP requests against the configured base URL. Action URLs may be absolute
// or relative to the base URL; relative URLs are resolved on every request, so a queue filled against one
// deployment can be replayed after the base URL changes.
//
// Every request carries Content-Type: application/json unless the action's own headers override it.
//
// # Replay
//
// [HTTPReplayer] adapts [APIService] to the queue's replayer contract. A success status completes the action.
// Anything else is returned as an error; non-success statuses wrap [shared.ErrAPIRequest].
//
// # Connectivity
//
// [HealthProbe] polls the API's health endpoint and reports connectivity. Each offline to online transition
// is announced on [HealthProbe.Restored], which the queue trigger listens to.
//
// # Authentication
//
// [NewAuthenticatedClient] wraps a static bearer token in an [oauth2.Transport].
package services
