// Package content stores workspace-scoped content items and gates
// premium items behind subscription entitlements.
//
// Articles, blog posts, videos and courses share one item model; the
// gate treats every kind the same. Access control composes three
// inputs: the item's access level, the viewer's super admin standing,
// and the viewer's active entitlements.
package content
