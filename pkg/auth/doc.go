// Package auth issues and validates opaque bearer session tokens.
//
// Identity itself lives outside this system; a session just binds a
// proven user ID to a random token for its lifetime. Tokens are never
// stored in plaintext, only their SHA-256 hash is persisted, so a
// database leak does not leak live sessions.
package auth
