// Package postgres provides PostgreSQL connection management with read
// replica support, a versioned migration runner shared by the domain
// packages, and a Redis client wrapper for caching and rate limiting.
package postgres
