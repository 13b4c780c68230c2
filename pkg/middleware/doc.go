// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// AuthMiddleware validates Bearer tokens and stores the resulting
// *auth.Principal in the request context:
//
//	authMW := middleware.NewAuthMiddleware(tokenManager, true)
//	router.Use(authMW.Handler)
//
// With optional set, anonymous requests pass through and the authorization
// gate answers them with 401 where a permission is required.
//
// RateLimitMiddleware counts requests per user (or client IP when anonymous)
// in fixed windows. With a Redis client the counters are shared across
// instances; without one an in-memory limiter is used. Redis failures fail
// open.
//
//	limiter := middleware.NewRateLimitMiddleware(redisClient, middleware.DefaultRateLimitConfig())
//	authRouter.Use(limiter.Handler)
package middleware
