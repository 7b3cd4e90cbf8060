// Package middleware provides the HTTP middleware chain: request IDs,
// bearer session authentication, tenant resolution from the Host
// header, and rate limiting.
package middleware
