// Package audit records security-relevant events: role and assignment
// changes, domain mapping changes, subscription lifecycle transitions and
// denied access attempts.
//
// Events are written through the Logger interface. The database-backed
// implementation persists to the audit_events table; a no-op logger is
// returned from FromContext when none is configured so call sites never
// need nil checks.
package audit
