// Package rbac implements role-based access control scoped to workspaces.
//
// A role is a named bundle of admin permissions drawn from a closed
// vocabulary. Users are linked to roles per workspace through assignments,
// and an assignment can be disabled without being deleted so an admin's
// history is preserved when access is revoked.
//
// Permission checks are existential: a user holds a permission in a
// workspace when at least one of their active assignments in that
// workspace carries a role granting it. The super admin role is special
// cased, holding it actively in any workspace grants every permission
// everywhere.
//
// The Checker is total. It never returns errors to callers; any storage
// failure during a check is logged and treated as a denial, so an outage
// can never grant access it should not.
package rbac
