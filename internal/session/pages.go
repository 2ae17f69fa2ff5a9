package session

import "robodata.org/internal/directory"

// Page identifies a workspace. Each role owns exactly one workspace; admins
// additionally reach the diagnostics page.
type Page string

const (
	PageCollect     Page = "collect"
	PageAnnotate    Page = "annotate"
	PagePlatform    Page = "platform"
	PageDiagnostics Page = "diagnostics"
)

var roleDefaultPage = map[directory.Role]Page{
	directory.RoleCollector: PageCollect,
	directory.RoleReviewer:  PageAnnotate,
	directory.RoleAdmin:     PagePlatform,
}

// DefaultPage returns the workspace a role lands on.
func DefaultPage(r directory.Role) Page {
	return roleDefaultPage[r]
}

// AllowedPages returns every page reachable by the given role set, in role
// order.
func AllowedPages(roles []directory.Role) []Page {
	seen := make(map[Page]struct{}, len(roles)+1)
	var out []Page
	add := func(p Page) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, r := range roles {
		add(roleDefaultPage[r])
		if r == directory.RoleAdmin {
			add(PageDiagnostics)
		}
	}
	return out
}

// PageAllowed reports whether any role in the set reaches the page.
func PageAllowed(roles []directory.Role, page Page) bool {
	for _, p := range AllowedPages(roles) {
		if p == page {
			return true
		}
	}
	return false
}
