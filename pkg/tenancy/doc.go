// Package tenancy maps request hostnames to workspaces.
//
// A workspace is one tenant site. Domains bind normalized hostnames to
// workspaces, with at most one primary domain per workspace used when
// generating links back to the tenant.
//
// Resolution is total: every hostname resolves to some outcome. A mapped
// hostname resolves to its workspace, honoring the workspace's disabled
// flag with no fallback, so a suspended tenant stays suspended no matter
// which of its domains is hit. Unmapped hostnames fall back to the
// default workspace. The resolver never returns an error; when nothing
// matches, the outcome is unresolved and callers treat the request as
// unavailable.
package tenancy
