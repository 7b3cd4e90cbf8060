package tenancy

import (
	"strings"
)

// NormalizeHostname canonicalizes a request hostname for lookup.
//
// The steps, in order: trim whitespace, lowercase, drop everything from
// the first colon (port), drop a single trailing dot (FQDN form), and
// drop one leading "www." label. "www.KidsSite.org:443" and
// "kidssite.org" therefore resolve identically.
func NormalizeHostname(raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))

	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[:i]
	}

	h = strings.TrimSuffix(h, ".")
	h = strings.TrimPrefix(h, "www.")

	return h
}
