// Package middleware provides HTTP middleware components for the rice-eval server.
//
// Available middleware:
//   - RateLimiter: Per-client token buckets, optionally weighted per route
//   - Logging: Request ids and completion logs
//   - MaxBytes: Request body size cap
//
// Usage:
//
//	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
//	defer rl.Stop()
//	handler = middleware.Logging(log, rl.Middleware(handler))
package middleware
