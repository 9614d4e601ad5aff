package graph

import (
	"regexp"
	"strings"
)

var (
	numericSegment = regexp.MustCompile(`/\d+`)
	uuidSegment    = regexp.MustCompile(`(?i)/[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}`)
)

// NormalizeRoute canonicalizes an API route so that a frontend call
// like "/api/users/123?page=1" matches the handler registered for
// "/api/users/:id". Trailing slashes and query strings are dropped;
// numeric and UUID path segments collapse to ":id".
func NormalizeRoute(route string) string {
	route = strings.TrimRight(route, "/")
	if idx := strings.Index(route, "?"); idx >= 0 {
		route = route[:idx]
	}
	route = numericSegment.ReplaceAllString(route, "/:id")
	route = uuidSegment.ReplaceAllString(route, "/:id")
	return route
}
