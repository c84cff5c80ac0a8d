// Package server provides HTTP routing, middleware and the local queue API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so unsupported methods get a 405.
//
// # Queue API
//
// [QueueHandler] exposes the offline action queue to other local processes, such as a browser extension or
// a shell script, that cannot link the queue directly. See its documentation for the routes.
//
// Errors are JSON objects with an "error" field. Invalid actions map to 400, an unavailable store to 503,
// and an overlapping processing pass to 409.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
