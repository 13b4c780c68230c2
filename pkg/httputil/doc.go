// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Error responses
//
// Services return classified errors from pkg/apperr. Handlers hand them to
// WriteAppError, which maps the kind to a status code:
//
//	bad_request -> 400, not_found -> 404, unauthenticated -> 401,
//	forbidden -> 403 (with "missing"), conflict -> 409, anything else -> 500
//
// Internal errors are logged with the request logger and reported to the
// client as "internal server error".
//
// # Request parsing
//
//	var req moveRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	boardID, ok := httputil.ParsePathStringOrError(w, r, "boardId")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.TimeoutMiddleware(30*time.Second),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
