package apiclient

import "strings"

// untrackedResources never get health tracking.
var untrackedResources = map[string]struct{}{
	"api":    {},
	"health": {},
	"auth":   {},
	"login":  {},
	"logout": {},
}

// Classify extracts the logical resource type of a request path, eg. "/api/materials/42" -> "materials".
// It reports false when the path should not be tracked by the health registry.
func Classify(path string) (string, bool) {
	path = stripQuery(path)
	path = strings.TrimLeft(path, "/")
	for _, prefix := range []string{"api/", "fallback/"} {
		if strings.HasPrefix(strings.ToLower(path), prefix) {
			path = path[len(prefix):]
			break
		}
	}
	seg := strings.ToLower(strings.SplitN(strings.TrimLeft(path, "/"), "/", 2)[0])
	if seg == "" {
		return "", false
	}
	if _, denied := untrackedResources[seg]; denied {
		return "", false
	}
	return seg, true
}

// stripQuery drops the query string and fragment of a path.
func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}
